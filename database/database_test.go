package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"washclub-checkout-api/checkout"
)

func newMockConnection(t *testing.T) (*Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFromDB(db), mock
}

func TestDSN(t *testing.T) {
	dsn := DatabaseConfig{Host: "db:3306", User: "wash", Password: "secret", DBName: "checkout"}.DSN()
	assert.Equal(t, "wash:secret@tcp(db:3306)/checkout?parseTime=true", dsn)
}

func TestEnsureSchema(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS checkout_states").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS checkout_subscriptions").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, conn.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutStateStorageGet(t *testing.T) {
	conn, mock := newMockConnection(t)
	s := NewCheckoutStateStorage(conn)

	mock.ExpectQuery("SELECT value FROM checkout_states").
		WithArgs("sess:checkoutSession").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"step":"plan"}`))
	mock.ExpectQuery("SELECT value FROM checkout_states").
		WithArgs("sess:missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectQuery("SELECT value FROM checkout_states").
		WithArgs("sess:broken").
		WillReturnError(errors.New("connection reset"))

	v, err := s.Get(context.Background(), "sess:checkoutSession")
	require.NoError(t, err)
	assert.Equal(t, `{"step":"plan"}`, v)

	_, err = s.Get(context.Background(), "sess:missing")
	assert.ErrorIs(t, err, checkout.ErrNotFound)

	_, err = s.Get(context.Background(), "sess:broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, checkout.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutStateStorageSetAndRemove(t *testing.T) {
	conn, mock := newMockConnection(t)
	s := NewCheckoutStateStorage(conn)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	mock.ExpectExec("INSERT INTO checkout_states").
		WithArgs("k", "v", fixed).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM checkout_states").
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "k", "v"))
	require.NoError(t, s.Remove(context.Background(), "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreOnMySQL(t *testing.T) {
	conn, mock := newMockConnection(t)
	store := checkout.NewStore(checkout.Scope(NewCheckoutStateStorage(conn), "sess"))

	mock.ExpectExec("DELETE FROM checkout_states").
		WithArgs("sess:checkoutSession").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSubscription(t *testing.T) {
	conn, mock := newMockConnection(t)

	mock.ExpectExec("INSERT INTO checkout_subscriptions").
		WithArgs("sub_1", "cus_1", "sess", "works", "monthly", "34.99", "ada@example.com", "ABC123", "incomplete", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := conn.RecordSubscription(context.Background(), SubscriptionRecord{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		SessionID:      "sess",
		PlanID:         "works",
		Period:         "monthly",
		Price:          decimal.RequireFromString("34.99"),
		Email:          "ada@example.com",
		LicensePlate:   "ABC123",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSubscriptionStatus(t *testing.T) {
	conn, mock := newMockConnection(t)

	mock.ExpectExec("UPDATE checkout_subscriptions SET status").
		WithArgs("active", sqlmock.AnyArg(), "sub_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE checkout_subscriptions SET status").
		WithArgs("active", sqlmock.AnyArg(), "sub_unknown").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, conn.UpdateSubscriptionStatus(context.Background(), "sub_1", "active"))
	assert.Error(t, conn.UpdateSubscriptionStatus(context.Background(), "sub_unknown", "active"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
