package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/metrics"
	"github.com/a3tai/visa-pdf-filler/internal/records"
)

func newTestStore(t *testing.T, timeout time.Duration) (*Store, sqlmock.Sqlmock, *metrics.Registry) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { db.Close() })

	reg := metrics.New(prometheus.NewRegistry())
	return New(sqlx.NewDb(db, "postgres"), timeout, reg, zaptest.NewLogger(t)), mock, reg
}

func q(query string) string {
	return regexp.QuoteMeta(query)
}

func travelerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "first_name", "last_name", "dob", "travel_country", "passport_issue_date"}).
		AddRow(int64(7), "Ana", []byte("Silva"), time.Date(1990, 5, 4, 0, 0, 0, 0, time.UTC), "Austria", "0000-00-00")
}

func TestLoadContextTraveler(t *testing.T) {
	s, mock, reg := newTestStore(t, time.Second)

	mock.ExpectQuery(q("SELECT * FROM travelers WHERE id = $1 LIMIT 1")).
		WithArgs(int64(7)).
		WillReturnRows(travelerRows())
	mock.ExpectQuery(q(selectQuestions)).
		WithArgs(int64(7), "traveler").
		WillReturnRows(sqlmock.NewRows([]string{"record_id", "occupation_status", "school_name"}).
			AddRow(int64(7), "Student", nil))

	rc, err := s.LoadContext(context.Background(), 7, records.RecordTypeTraveler)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, records.RecordTypeTraveler, rc.RecordType())
	assert.Equal(t, "Ana", rc.Traveler().Value("first_name"))
	assert.Equal(t, "Silva", rc.Traveler().Value("last_name"))
	assert.Equal(t, "1990-05-04", rc.Traveler().Value("dob"))
	_, set := rc.Traveler().Get("passport_issue_date")
	assert.False(t, set)
	_, set = rc.Questions().Get("school_name")
	assert.False(t, set)
	assert.Equal(t, string(records.OccupationStudent), rc.Discriminators().Value(records.DiscOccupationStatus))

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.DBQueriesTotal.WithLabelValues("traveler", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.DBQueriesTotal.WithLabelValues("questions", "ok")))
}

func TestLoadContextDependentPullsTraveler(t *testing.T) {
	s, mock, _ := newTestStore(t, time.Second)

	mock.ExpectQuery(q("SELECT * FROM dependents WHERE id = $1 LIMIT 1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "traveler_id", "first_name", "travel_country"}).
			AddRow(int64(3), int64(7), "Rui", "Portugal"))
	mock.ExpectQuery(q(selectQuestions)).
		WithArgs(int64(3), "dependent").
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}))
	mock.ExpectQuery(q("SELECT * FROM travelers WHERE id = $1 LIMIT 1")).
		WithArgs(int64(7)).
		WillReturnRows(travelerRows())

	rc, err := s.LoadContext(context.Background(), 3, records.RecordTypeDependent)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	dependent, ok := rc.Dependent()
	require.True(t, ok)
	assert.Equal(t, "Rui", dependent.Value("first_name"))
	assert.Equal(t, "Rui", rc.Applicant().Value("first_name"))
	assert.Equal(t, "Ana", rc.Traveler().Value("first_name"))
	assert.Equal(t, "Portugal", rc.TravelCountry())
	assert.True(t, rc.Questions().IsEmpty())
}

func TestLoadContextNotFound(t *testing.T) {
	s, mock, _ := newTestStore(t, time.Second)

	mock.ExpectQuery(q("SELECT * FROM travelers WHERE id = $1 LIMIT 1")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(q(selectQuestions)).
		WithArgs(int64(99), "traveler").
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}))

	_, err := s.LoadContext(context.Background(), 99, records.RecordTypeTraveler)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Contains(t, err.Error(), "traveler 99 not found")
}

func TestLoadContextDependentWithoutTraveler(t *testing.T) {
	s, mock, _ := newTestStore(t, time.Second)

	mock.ExpectQuery(q("SELECT * FROM dependents WHERE id = $1 LIMIT 1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "traveler_id"}).AddRow(int64(3), nil))
	mock.ExpectQuery(q(selectQuestions)).
		WithArgs(int64(3), "dependent").
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}))

	_, err := s.LoadContext(context.Background(), 3, records.RecordTypeDependent)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestQueryTimeoutIsUnavailable(t *testing.T) {
	s, mock, _ := newTestStore(t, 20*time.Millisecond)

	mock.ExpectQuery(q("SELECT * FROM travelers WHERE id = $1 LIMIT 1")).
		WithArgs(int64(7)).
		WillDelayFor(500 * time.Millisecond).
		WillReturnRows(travelerRows())

	_, err := s.FetchRecord(context.Background(), 7, records.RecordTypeTraveler)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindUnavailable))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestClassifyDriverErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Kind
	}{
		{"connection exception", &pq.Error{Code: "08006", Message: "connection failure"}, apperrors.KindUnavailable},
		{"too many connections", &pq.Error{Code: "53300"}, apperrors.KindUnavailable},
		{"undefined column", &pq.Error{Code: "42703"}, apperrors.KindInternal},
		{"plain error", errors.New("boom"), apperrors.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(context.Background(), "traveler", time.Second, tt.err)
			assert.Equal(t, tt.want, apperrors.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestFetchDocuments(t *testing.T) {
	s, mock, _ := newTestStore(t, time.Second)

	mock.ExpectQuery(q(selectDocuments)).
		WithArgs(int64(7), "traveler").
		WillReturnRows(sqlmock.NewRows([]string{"category", "file_name", "file_path"}).
			AddRow("Flight Reservation", "flight.pdf", "/uploads/7/flight.pdf").
			AddRow("Travel Insurance", "ins.pdf", "/uploads/7/ins.pdf"))

	docs, err := s.FetchDocuments(context.Background(), 7, records.RecordTypeTraveler)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, records.Document{Category: "Flight Reservation", FileName: "flight.pdf", FilePath: "/uploads/7/flight.pdf"}, docs[0])
}

func TestSetLockStatus(t *testing.T) {
	s, mock, _ := newTestStore(t, time.Second)

	mock.ExpectExec(q("UPDATE dependents SET is_locked = $1 WHERE id = $2")).
		WithArgs(true, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE travelers SET is_locked = $1 WHERE id = $2")).
		WithArgs(false, int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.SetLockStatus(context.Background(), 3, records.RecordTypeDependent, true))

	err := s.SetLockStatus(context.Background(), 404, records.RecordTypeTraveler, false)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
