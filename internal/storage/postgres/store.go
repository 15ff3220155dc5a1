package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"oracleScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS benchmark_points (
	run_id          TEXT    NOT NULL,
	ts              BIGINT  NOT NULL,
	defined         BOOLEAN NOT NULL,
	price           NUMERIC,
	total_liquidity NUMERIC NOT NULL,
	top_venue       TEXT    NOT NULL,
	top_weight      NUMERIC NOT NULL,
	flag_count      INT     NOT NULL,
	max_severity    TEXT    NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, ts)
);
CREATE TABLE IF NOT EXISTS venue_views (
	run_id    TEXT    NOT NULL,
	ts        BIGINT  NOT NULL,
	venue_id  TEXT    NOT NULL,
	price     NUMERIC,
	liquidity NUMERIC,
	age       BIGINT  NOT NULL,
	weight    NUMERIC NOT NULL,
	included  BOOLEAN NOT NULL,
	reason    TEXT    NOT NULL,
	PRIMARY KEY (run_id, ts, venue_id)
);
CREATE TABLE IF NOT EXISTS oracle_flags (
	run_id      TEXT   NOT NULL,
	ts          BIGINT NOT NULL,
	detector    TEXT   NOT NULL,
	kind        TEXT   NOT NULL,
	venue       TEXT   NOT NULL,
	flag_ts     BIGINT NOT NULL,
	severity    TEXT   NOT NULL,
	score       NUMERIC,
	window_from BIGINT,
	window_to   BIGINT,
	message     TEXT   NOT NULL,
	PRIMARY KEY (run_id, ts, detector, kind, venue, flag_ts)
);
`

const upsertPoint = `
	INSERT INTO benchmark_points (
		run_id, ts, defined, price, total_liquidity, top_venue, top_weight, flag_count, max_severity, created_at, updated_at
	) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7::numeric, $8, $9, now(), now())
	ON CONFLICT (run_id, ts)
	DO UPDATE SET
		defined = EXCLUDED.defined,
		price = EXCLUDED.price,
		total_liquidity = EXCLUDED.total_liquidity,
		top_venue = EXCLUDED.top_venue,
		top_weight = EXCLUDED.top_weight,
		flag_count = EXCLUDED.flag_count,
		max_severity = EXCLUDED.max_severity,
		updated_at = now()
`

const upsertVenue = `
	INSERT INTO venue_views (
		run_id, ts, venue_id, price, liquidity, age, weight, included, reason
	) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7::numeric, $8, $9)
	ON CONFLICT (run_id, ts, venue_id)
	DO UPDATE SET
		price = EXCLUDED.price,
		liquidity = EXCLUDED.liquidity,
		age = EXCLUDED.age,
		weight = EXCLUDED.weight,
		included = EXCLUDED.included,
		reason = EXCLUDED.reason
`

const upsertFlag = `
	INSERT INTO oracle_flags (
		run_id, ts, detector, kind, venue, flag_ts, severity, score, window_from, window_to, message
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11)
	ON CONFLICT (run_id, ts, detector, kind, venue, flag_ts)
	DO UPDATE SET
		severity = EXCLUDED.severity,
		score = EXCLUDED.score,
		window_from = EXCLUDED.window_from,
		window_to = EXCLUDED.window_to,
		message = EXCLUDED.message
`

// Store exports oracle reports to Postgres. Rows are keyed by run id so several runs
// can share one database.
type Store struct {
	pool  *pgxpool.Pool
	runID string
}

func NewStore(ctx context.Context, dsn, runID string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, runID: runID}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the report tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutReports upserts the benchmark point, venue views and flags of every report in
// one batch.
func (s *Store) PutReports(ctx context.Context, reports []model.Report) error {
	if len(reports) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, report := range reports {
		queueReport(batch, s.runID, report)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert reports: %w", err)
		}
	}
	return nil
}

func queueReport(batch *pgx.Batch, runID string, report model.Report) {
	batch.Queue(upsertPoint, pointArgs(runID, report)...)
	for _, view := range report.Point.Venues {
		// The first sample of a venue owns its row.
		if view.Reason == model.ReasonDuplicate {
			continue
		}
		batch.Queue(upsertVenue, venueArgs(runID, report.Timestamp, view)...)
	}
	for _, flag := range report.Flags {
		batch.Queue(upsertFlag, flagArgs(runID, report.Timestamp, flag)...)
	}
}

func pointArgs(runID string, report model.Report) []any {
	point := report.Point
	var price *string
	if point.Defined {
		price = numeric(point.Price)
	}
	top, weight := point.TopWeight()
	return []any{
		runID,
		report.Timestamp,
		point.Defined,
		price,
		orZero(numeric(point.TotalLiquidity)),
		top,
		orZero(numeric(weight)),
		len(report.Flags),
		report.Flags.MaxSeverity().String(),
	}
}

func venueArgs(runID string, ts int64, view model.VenueView) []any {
	return []any{
		runID,
		ts,
		view.VenueID,
		numeric(view.Price),
		numeric(view.Liquidity),
		view.Age,
		orZero(numeric(view.Weight)),
		view.Included,
		string(view.Reason),
	}
}

func flagArgs(runID string, ts int64, flag model.Flag) []any {
	var from, to *int64
	if flag.Window != nil {
		from, to = &flag.Window.From, &flag.Window.To
	}
	return []any{
		runID,
		ts,
		flag.Detector,
		string(flag.Kind),
		flag.Venue,
		flag.Timestamp,
		flag.Severity.String(),
		numeric(flag.Score),
		from,
		to,
		flag.Message,
	}
}

// numeric renders a float as NUMERIC text; NaN and Inf become NULL.
func numeric(v float64) *string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	s := decimal.NewFromFloat(v).String()
	return &s
}

func orZero(v *string) string {
	if v == nil {
		return "0"
	}
	return *v
}
