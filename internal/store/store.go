// Package store reads traveler, dependent and questionnaire rows from
// PostgreSQL and writes back the admin lock flag.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/metrics"
	"github.com/a3tai/visa-pdf-filler/internal/records"
)

const (
	DefaultQueryTimeout = 10 * time.Second
	DefaultMaxOpenConns = 10

	connectAttempts = 10
	connectBackoff  = 500 * time.Millisecond
)

const (
	selectQuestions = `SELECT * FROM traveler_questions WHERE record_id = $1 AND record_type = $2 LIMIT 1`
	selectDocuments = `SELECT category, file_name, file_path FROM documents WHERE record_id = $1 AND record_type = $2 ORDER BY category, file_name`
)

func selectRecord(rt records.RecordType) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE id = $1 LIMIT 1", rt.Table())
}

func updateLock(rt records.RecordType) string {
	return fmt.Sprintf("UPDATE %s SET is_locked = $1 WHERE id = $2", rt.Table())
}

// Connect opens a PostgreSQL pool, retrying while the server comes up.
func Connect(ctx context.Context, dsn string, maxOpenConns int, logger *zap.Logger) (*sqlx.DB, error) {
	if maxOpenConns <= 0 {
		maxOpenConns = DefaultMaxOpenConns
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err == nil {
			db.SetMaxOpenConns(maxOpenConns)
			db.SetMaxIdleConns(maxOpenConns)
			db.SetConnMaxLifetime(30 * time.Minute)
			return db, nil
		}
		lastErr = err
		logger.Warn("database not reachable yet", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.KindUnavailable, ctx.Err(), "database connection cancelled")
		case <-time.After(connectBackoff):
		}
	}
	return nil, apperrors.Wrap(apperrors.KindUnavailable, lastErr, "failed to connect to database")
}

// Store runs the record queries. Every query runs under its own timeout.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
	metrics *metrics.Registry
	logger  *zap.Logger
}

// New wraps an open pool. reg may be nil.
func New(db *sqlx.DB, timeout time.Duration, reg *metrics.Registry, logger *zap.Logger) *Store {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Store{db: db, timeout: timeout, metrics: reg, logger: logger}
}

// LoadContext reads the record and its questionnaire concurrently and, for
// dependents, the owning traveler.
func (s *Store) LoadContext(ctx context.Context, id int64, rt records.RecordType) (records.Context, error) {
	var record, questions records.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		record, err = s.FetchRecord(gctx, id, rt)
		return err
	})
	g.Go(func() error {
		var err error
		questions, err = s.FetchQuestions(gctx, id, rt)
		return err
	})
	if err := g.Wait(); err != nil {
		return records.Context{}, err
	}

	if rt == records.RecordTypeTraveler {
		return records.NewContext(record, questions), nil
	}

	travelerID, ok := record.Int64("traveler_id")
	if !ok {
		return records.Context{}, apperrors.NotFound("dependent %d has no owning traveler", id)
	}
	traveler, err := s.FetchRecord(ctx, travelerID, records.RecordTypeTraveler)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return records.Context{}, apperrors.NotFound("traveler %d owning dependent %d not found", travelerID, id)
		}
		return records.Context{}, err
	}
	return records.NewDependentContext(traveler, record, questions), nil
}

// FetchRecord reads one traveler or dependent row.
func (s *Store) FetchRecord(ctx context.Context, id int64, rt records.RecordType) (records.Record, error) {
	row := make(map[string]interface{})
	err := s.run(ctx, string(rt), func(ctx context.Context) error {
		return s.db.QueryRowxContext(ctx, selectRecord(rt), id).MapScan(row)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return records.Record{}, apperrors.NotFound("%s %d not found", rt, id)
	}
	if err != nil {
		return records.Record{}, err
	}
	return records.FromRow(row), nil
}

// FetchQuestions reads the questionnaire of a record. A record that has not
// answered yet gets an empty questionnaire.
func (s *Store) FetchQuestions(ctx context.Context, id int64, rt records.RecordType) (records.Record, error) {
	row := make(map[string]interface{})
	err := s.run(ctx, "questions", func(ctx context.Context) error {
		return s.db.QueryRowxContext(ctx, selectQuestions, id, string(rt)).MapScan(row)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return records.New(nil), nil
	}
	if err != nil {
		return records.Record{}, err
	}
	return records.FromRow(row), nil
}

// FetchDocuments lists the admin-uploaded documents of a record.
func (s *Store) FetchDocuments(ctx context.Context, id int64, rt records.RecordType) ([]records.Document, error) {
	docs := []records.Document{}
	err := s.run(ctx, "documents", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &docs, selectDocuments, id, string(rt))
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// SetLockStatus writes the admin lock flag of a record.
func (s *Store) SetLockStatus(ctx context.Context, id int64, rt records.RecordType, locked bool) error {
	var affected int64
	err := s.run(ctx, "lock", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, updateLock(rt), locked, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("%s %d not found", rt, id)
	}
	s.logger.Info("lock status updated",
		zap.String("recordType", string(rt)),
		zap.Int64("id", id),
		zap.Bool("locked", locked))
	return nil
}

// Ping checks the pool within the query timeout.
func (s *Store) Ping(ctx context.Context) error {
	return s.run(ctx, "ping", func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// run executes one query under the store timeout and classifies its error.
// sql.ErrNoRows is returned unchanged.
func (s *Store) run(ctx context.Context, queryType string, fn func(context.Context) error) error {
	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(qctx)
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.ObserveQuery(queryType, start, nil)
		return err
	}
	s.metrics.ObserveQuery(queryType, start, err)
	if err == nil {
		return nil
	}

	classified := classify(qctx, queryType, s.timeout, err)
	s.logger.Warn("query failed",
		zap.String("query", queryType),
		zap.Stringer("kind", apperrors.KindOf(classified)),
		zap.Error(err))
	return classified
}

func classify(qctx context.Context, queryType string, timeout time.Duration, err error) error {
	if errors.Is(qctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindUnavailable, err, "%s query timed out after %s", queryType, timeout)
	}
	if errors.Is(qctx.Err(), context.Canceled) {
		return apperrors.Wrap(apperrors.KindUnavailable, err, "%s query cancelled", queryType)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return apperrors.Wrap(apperrors.KindUnavailable, err, "%s query lost its connection", queryType)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		// connection exception, insufficient resources, operator intervention
		case "08", "53", "57":
			return apperrors.Wrap(apperrors.KindUnavailable, err, "%s query failed: %s", queryType, pqErr.Message)
		}
	}
	return apperrors.Wrap(apperrors.KindInternal, err, "%s query failed", queryType)
}
