package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateParam(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{raw: "2024-01-15", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-01-15T10:30:00", want: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{raw: "2024-01-15T10:30:00Z", want: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{raw: " 2024-01-15 10:30:00 ", want: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{raw: "15/01/2024", wantErr: true},
		{raw: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, fe := parseDateParam("date_from", tt.raw)
			if tt.wantErr {
				require.NotNil(t, fe)
				assert.Equal(t, "date_from", fe.Field)
				return
			}
			require.Nil(t, fe)
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}

	got, fe := parseDateParam("date_to", "")
	assert.Nil(t, got)
	assert.Nil(t, fe)
}

func TestSplitColumns(t *testing.T) {
	assert.Nil(t, splitColumns(""))
	assert.Equal(t, []string{"a", "b c"}, splitColumns(" a, ,b c,"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("query: %w", core.ErrNoDataset), http.StatusBadRequest},
		{fmt.Errorf("%w: %q", core.ErrColumnNotFound, "x"), http.StatusNotFound},
		{&core.ValidationError{Fields: []core.FieldError{{Field: "page"}}}, http.StatusBadRequest},
		{&core.LoadError{Err: errors.New("boom")}, http.StatusBadRequest},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusRequestTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
