// Package core holds the dataset session logic: loading a tabular file,
// normalizing and typing its columns, and serving filtered, sorted,
// paginated views, column statistics and exports over it.
//
// The package has no transport dependencies and is driven through [Service].
//
// # Load pipeline
//
// A load runs entirely outside the session lock and installs its result with
// a single atomic swap:
//
//  1. The source is read by [ReadCSV] or [ReadXLSX] into raw string cells
//  2. Headers are normalized with [NormalizeHeaders] and made unique
//  3. All-null rows are dropped and every column gets a [Kind]
//  4. Columns whose names mention a date or an amount are coerced
//  5. The finished [Table] replaces the previous snapshot in [Session]
//
// A failed load leaves the previous dataset untouched.
//
// # Query pipeline
//
// [Apply] filters by search text and by the date bounds of the first datetime
// column, projects the requested columns, sorts stably with nulls last and
// finally paginates. Exports reuse the same filter stage without paging.
//
// # Error Handling
//
// Callers branch on [ErrNoDataset], [ErrColumnNotFound], [*ValidationError]
// and [*LoadError]. [MapError] turns any of them into a coded [UserMessage]:
//
//   - DATA001-DATA003: dataset state and load failures
//   - COL001: unknown column
//   - VAL001-VAL003: invalid request parameters
//   - FILE001-FILE005: upload problems (size, shape, format, missing file)
//   - UPL001-UPL003: upload capacity, cancellation and timeouts
//   - RATE001: client rate limit
//   - ERR000: anything else; check the logs
package core
