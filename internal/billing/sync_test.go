package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"inbox-service/pkg/config"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqldb,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func subscriptionEvent(eventType, raw string) stripe.Event {
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestApplyEventCheckoutCompleted(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "clients" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	event := subscriptionEvent("checkout.session.completed", `{"customer":"cus_123"}`)
	require.NoError(t, ApplyEvent(db, event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEventSubscriptionUpdated(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "clients" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	event := subscriptionEvent("customer.subscription.updated",
		`{"customer":"cus_123","status":"past_due","current_period_end":1700000000}`)
	require.NoError(t, ApplyEvent(db, event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEventSubscriptionDeleted(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "clients" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	event := subscriptionEvent("customer.subscription.deleted", `{"customer":"cus_123","status":"canceled"}`)
	require.NoError(t, ApplyEvent(db, event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEventUnknownCustomer(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "clients" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	event := subscriptionEvent("customer.subscription.deleted", `{"customer":"cus_unknown"}`)
	err := ApplyEvent(db, event)
	assert.ErrorIs(t, err, ErrUnknownCustomer)
}

func TestApplyEventIgnoredType(t *testing.T) {
	db, _ := newMockDB(t)

	event := subscriptionEvent("invoice.created", `{}`)
	err := ApplyEvent(db, event)
	assert.ErrorIs(t, err, ErrEventIgnored)
}

func TestApplyEventMissingCustomer(t *testing.T) {
	db, _ := newMockDB(t)

	event := subscriptionEvent("checkout.session.completed", `{}`)
	err := ApplyEvent(db, event)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEventIgnored)
}

func TestMapSubscriptionStatus(t *testing.T) {
	assert.Equal(t, "active", mapSubscriptionStatus(stripe.SubscriptionStatusActive))
	assert.Equal(t, "active", mapSubscriptionStatus(stripe.SubscriptionStatusTrialing))
	assert.Equal(t, "past_due", mapSubscriptionStatus(stripe.SubscriptionStatusPastDue))
	assert.Equal(t, "past_due", mapSubscriptionStatus(stripe.SubscriptionStatusUnpaid))
	assert.Equal(t, "canceled", mapSubscriptionStatus(stripe.SubscriptionStatusCanceled))
	assert.Equal(t, "none", mapSubscriptionStatus(stripe.SubscriptionStatusIncomplete))
}

func signPayload(secret string, payload []byte, at time.Time) string {
	signed := fmt.Sprintf("%d.%s", at.Unix(), payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestConstructEventVerifiesSignature(t *testing.T) {
	Initialize(&config.StripeConfig{WebhookSecret: "whsec_test"})

	payload := []byte(`{"id":"evt_1","type":"customer.subscription.deleted","data":{"object":{"customer":"cus_123"}}}`)
	header := signPayload("whsec_test", payload, time.Now())

	event, err := ConstructEvent(payload, header)
	require.NoError(t, err)
	assert.Equal(t, stripe.EventType("customer.subscription.deleted"), event.Type)
}

func TestConstructEventRejectsBadSignature(t *testing.T) {
	Initialize(&config.StripeConfig{WebhookSecret: "whsec_test"})

	payload := []byte(`{"id":"evt_1","type":"customer.subscription.deleted"}`)
	header := signPayload("wrong-secret", payload, time.Now())

	_, err := ConstructEvent(payload, header)
	assert.Error(t, err)
}
