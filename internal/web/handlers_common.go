package web

// handlers_common.go holds the request parsing shared by the data, stats
// and export handlers.

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/ledgerview/internal/core"
)

// dateLayouts are the ISO-8601 forms accepted for date_from and date_to.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// parseDateParam parses an ISO-8601 date. A trailing Z is accepted.
func parseDateParam(field, raw string) (*time.Time, *core.FieldError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, &core.FieldError{Field: field, Message: "invalid date format, use YYYY-MM-DD"}
}

// parseIntParam parses an integer query parameter, falling back to def when
// it is absent. Bounds are checked by the service validator.
func parseIntParam(q url.Values, name string, def int) (int, *core.FieldError) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &core.FieldError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

// splitColumns parses a comma-separated column list, dropping blanks.
func splitColumns(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// parseFilter builds a FilterSpec from the query string. Pagination and
// sort parameters are read only when paged is true.
func (s *Server) parseFilter(r *http.Request, paged bool) (core.FilterSpec, error) {
	q := r.URL.Query()
	spec := s.service.DefaultFilter()
	var fields []core.FieldError

	spec.Search = q.Get("search")
	spec.Columns = splitColumns(q.Get("columns"))

	from, fe := parseDateParam("date_from", q.Get("date_from"))
	if fe != nil {
		fields = append(fields, *fe)
	}
	to, fe := parseDateParam("date_to", q.Get("date_to"))
	if fe != nil {
		fields = append(fields, *fe)
	}
	spec.DateFrom, spec.DateTo = from, to

	if paged {
		if spec.Page, fe = parseIntParam(q, "page", spec.Page); fe != nil {
			fields = append(fields, *fe)
		}
		if spec.PageSize, fe = parseIntParam(q, "page_size", spec.PageSize); fe != nil {
			fields = append(fields, *fe)
		}
		spec.SortBy = strings.TrimSpace(q.Get("sort_by"))
		if order := strings.TrimSpace(q.Get("sort_order")); order != "" {
			spec.SortOrder = core.SortOrder(strings.ToLower(order))
		}
	}

	if len(fields) > 0 {
		return spec, &core.ValidationError{Fields: fields}
	}
	return spec, nil
}
