package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SQLExecutor is what repositories need to run marked queries.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// ErrSQLMarker is returned for queries without a valid "--sql <uuid>" first line.
var ErrSQLMarker = errors.New("sql marker missing or invalid")

var markerRegexp = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)

// SQLRunner strips the marker line from each query before handing it to the
// pool and logs the call under that marker with its duration. *pgxpool.Pool
// satisfies SQLExecutor and is the usual backend.
type SQLRunner struct {
	backend SQLExecutor
	logger  zerolog.Logger
	now     func() time.Time
}

func NewSQLRunner(backend SQLExecutor, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{
		backend: backend,
		logger:  logger.With().Str("component", "sql").Logger(),
		now:     time.Now,
	}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, body, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := r.now()
	tag, err := r.backend.Exec(ctx, body, args...)
	r.done("exec", marker, start, err).Int64("rows", tag.RowsAffected()).Send()
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, body, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return &loggingRow{
		row:    r.backend.QueryRow(ctx, body, args...),
		runner: r,
		marker: marker,
		start:  r.now(),
	}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, body, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	start := r.now()
	rows, err := r.backend.Query(ctx, body, args...)
	if err != nil {
		r.done("query", marker, start, err).Send()
		return nil, err
	}
	return &loggingRows{Rows: rows, runner: r, marker: marker, start: start}, nil
}

// done opens the log event for a finished call. Empty results are not errors.
func (r *SQLRunner) done(op, marker string, start time.Time, err error) *zerolog.Event {
	ev := r.logger.Debug()
	if err != nil && !IsNoRows(err) {
		ev = r.logger.Error().Err(err)
	}
	return ev.Str("op", op).Str("sql", marker).Dur("elapsed", r.now().Sub(start))
}

type loggingRow struct {
	row    pgx.Row
	runner *SQLRunner
	marker string
	start  time.Time
}

func (l *loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	l.runner.done("query_row", l.marker, l.start, err).Bool("found", err == nil).Send()
	return err
}

type loggingRows struct {
	pgx.Rows
	runner *SQLRunner
	marker string
	start  time.Time
	closed bool
}

func (l *loggingRows) Close() {
	l.Rows.Close()
	if l.closed {
		return
	}
	l.closed = true
	l.runner.done("query", l.marker, l.start, l.Rows.Err()).Send()
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

// extractMarker splits a query into its marker uuid and the SQL that follows.
func extractMarker(query string) (string, string, error) {
	head, body, _ := strings.Cut(strings.TrimSpace(query), "\n")
	m := markerRegexp.FindStringSubmatch(strings.TrimSpace(head))
	if m == nil {
		return "", "", ErrSQLMarker
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", "", errors.New("sql " + m[1] + ": empty query body")
	}
	return m[1], body, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)

// IsNoRows reports whether err signals an empty result set.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
