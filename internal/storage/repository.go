package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"aave-hf-watcher/internal/alerting"
	"aave-hf-watcher/internal/fetcher"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS position_samples (
        id                    BIGSERIAL PRIMARY KEY,
        wallet                TEXT        NOT NULL,
        chain                 TEXT        NOT NULL,
        health_factor         NUMERIC     NOT NULL,
        total_collateral_usd  NUMERIC     NOT NULL,
        total_debt_usd        NUMERIC     NOT NULL,
        utilization_pct       NUMERIC     NOT NULL,
        liquidation_threshold NUMERIC     NOT NULL,
        block_number          BIGINT,
        sampled_at            TIMESTAMPTZ NOT NULL
    );
    CREATE INDEX IF NOT EXISTS position_samples_sampled_at_idx ON position_samples (sampled_at);
    CREATE TABLE IF NOT EXISTS notifications (
        id       UUID PRIMARY KEY,
        kind     TEXT        NOT NULL,
        title    TEXT        NOT NULL,
        priority INTEGER     NOT NULL,
        sent_at  TIMESTAMPTZ NOT NULL,
        error    TEXT
    );`

	insertSampleSQL = `INSERT INTO position_samples (
        wallet,
        chain,
        health_factor,
        total_collateral_usd,
        total_debt_usd,
        utilization_pct,
        liquidation_threshold,
        block_number,
        sampled_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	sampleColumns = `id,
        wallet,
        chain,
        health_factor,
        total_collateral_usd,
        total_debt_usd,
        utilization_pct,
        liquidation_threshold,
        block_number,
        sampled_at`

	listSamplesBetweenSQL = `SELECT ` + sampleColumns + `
    FROM position_samples
    WHERE sampled_at >= $1
      AND sampled_at < $2
    ORDER BY sampled_at;`

	listRecentSamplesSQL = `SELECT ` + sampleColumns + `
    FROM position_samples
    ORDER BY sampled_at DESC
    LIMIT $1;`

	insertNotificationSQL = `INSERT INTO notifications (
        id,
        kind,
        title,
        priority,
        sent_at,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (id) DO NOTHING;`

	listRecentNotificationsSQL = `SELECT
        id,
        kind,
        title,
        priority,
        sent_at,
        error
    FROM notifications
    ORDER BY sent_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SampleStore defines operations for position sample persistence.
type SampleStore interface {
	InsertPositionSample(ctx context.Context, sample PositionSample) error
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]PositionSample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]PositionSample, error)
}

// NotificationStore defines operations for notification auditing.
type NotificationStore interface {
	InsertNotification(ctx context.Context, rec NotificationRecord) error
	ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to position samples and notifications.
type Store struct {
	pool  *pgxpool.Pool
	chain string
}

// NewStore wires a pgx pool into a Store. chain tags every recorded sample.
func NewStore(pool *pgxpool.Pool, chain string) *Store {
	return &Store{pool: pool, chain: chain}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
// The lock is session scoped, so the connection is held until unlock.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// RecordSample stores a fetched position.
func (s *Store) RecordSample(ctx context.Context, pos fetcher.Position) error {
	if _, err := s.getPool(); err != nil {
		return err
	}
	return s.InsertPositionSample(ctx, SampleFromPosition(pos, s.chain))
}

// RecordNotification stores a dispatch attempt.
func (s *Store) RecordNotification(ctx context.Context, req alerting.Request, sendErr error, at time.Time) error {
	return s.InsertNotification(ctx, RecordFromRequest(req, sendErr, at))
}

// SampleFromPosition maps a fetched position to its persisted form.
func SampleFromPosition(pos fetcher.Position, chain string) PositionSample {
	sample := PositionSample{
		Wallet:               pos.Wallet.Hex(),
		Chain:                chain,
		HealthFactor:         pos.HealthFactor,
		TotalCollateral:      pos.TotalCollateral,
		TotalDebt:            pos.TotalDebt,
		Utilization:          pos.Utilization,
		LiquidationThreshold: pos.LiquidationThreshold,
		SampledAt:            pos.FetchedAt.UTC(),
	}
	if sample.SampledAt.IsZero() {
		sample.SampledAt = time.Now().UTC()
	}
	if pos.BlockNumber != 0 {
		block := int64(pos.BlockNumber)
		sample.BlockNumber = &block
	}
	return sample
}

// RecordFromRequest maps a dispatched request to its audit record.
func RecordFromRequest(req alerting.Request, sendErr error, at time.Time) NotificationRecord {
	rec := NotificationRecord{
		ID:       req.ID,
		Kind:     string(req.Kind),
		Title:    req.Title,
		Priority: int(req.Priority),
		SentAt:   at.UTC(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		rec.Error = &msg
	}
	return rec
}

// InsertPositionSample persists a position sample.
func (s *Store) InsertPositionSample(ctx context.Context, sample PositionSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var block interface{}
	if sample.BlockNumber != nil {
		block = *sample.BlockNumber
	}

	_, execErr := pool.Exec(ctx, insertSampleSQL,
		sample.Wallet,
		sample.Chain,
		sample.HealthFactor.String(),
		sample.TotalCollateral.String(),
		sample.TotalDebt.String(),
		sample.Utilization.String(),
		sample.LiquidationThreshold.String(),
		block,
		sample.SampledAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert position sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]PositionSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]PositionSample, 0)
	for rows.Next() {
		sample, scanErr := scanPositionSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples, newest first.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]PositionSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]PositionSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanPositionSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// InsertNotification persists a dispatch attempt.
func (s *Store) InsertNotification(ctx context.Context, rec NotificationRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if rec.Error != nil {
		errMsg = *rec.Error
	}

	if _, execErr := pool.Exec(ctx, insertNotificationSQL,
		rec.ID,
		rec.Kind,
		rec.Title,
		rec.Priority,
		rec.SentAt,
		errMsg,
	); execErr != nil {
		return fmt.Errorf("insert notification: %w", execErr)
	}
	return nil
}

// ListRecentNotifications lists the most recent dispatch attempts.
func (s *Store) ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentNotificationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent notifications: %w", queryErr)
	}
	defer rows.Close()

	records := make([]NotificationRecord, 0, limit)
	for rows.Next() {
		var (
			rec    NotificationRecord
			errMsg sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Kind,
			&rec.Title,
			&rec.Priority,
			&rec.SentAt,
			&errMsg,
		); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.Error = &msg
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanPositionSample(rows pgx.Rows) (PositionSample, error) {
	var (
		sample         PositionSample
		hfStr          string
		collateralStr  string
		debtStr        string
		utilizationStr string
		ltStr          string
		block          sql.NullInt64
	)

	if err := rows.Scan(
		&sample.ID,
		&sample.Wallet,
		&sample.Chain,
		&hfStr,
		&collateralStr,
		&debtStr,
		&utilizationStr,
		&ltStr,
		&block,
		&sample.SampledAt,
	); err != nil {
		return PositionSample{}, err
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"health factor", hfStr, &sample.HealthFactor},
		{"collateral", collateralStr, &sample.TotalCollateral},
		{"debt", debtStr, &sample.TotalDebt},
		{"utilization", utilizationStr, &sample.Utilization},
		{"liquidation threshold", ltStr, &sample.LiquidationThreshold},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return PositionSample{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}

	if block.Valid {
		value := block.Int64
		sample.BlockNumber = &value
	}
	return sample, nil
}
