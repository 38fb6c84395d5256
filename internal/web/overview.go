package web

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/ledgerview/internal/core"
)

//go:generate templ generate -f overview.templ

// overviewRows is how many records the overview page previews.
const overviewRows = 20

// OverviewPage is the data behind the /overview page.
type OverviewPage struct {
	Status  core.Status
	Columns []core.ColumnInfo
	Preview *core.QueryResult

	// Notice explains why the tables are missing.
	Notice string
}

func summaryText(st core.Status) string {
	s := fmt.Sprintf("%d rows, %d columns", st.Rows, st.Columns)
	if st.LoadedAt != nil {
		s += ", loaded " + st.LoadedAt.Format(time.RFC3339)
	}
	return s + "."
}

func recordText(rec core.Record, name string) string {
	switch v, _ := rec.Get(name); x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
