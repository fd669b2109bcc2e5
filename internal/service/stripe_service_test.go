package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"creatorstudio/internal/config"
	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test"

type fakeUsers struct {
	repository.UserRepository
	byCustomer map[string]*model.User
}

func (f *fakeUsers) GetUserByStripeCustomerID(_ context.Context, customerID string) (*model.User, error) {
	return f.byCustomer[customerID], nil
}

type upsertCall struct {
	userID, planID, status, stripeID string
}

type fakeSubscriptionService struct {
	upserts    []upsertCall
	downgraded []string
}

func (f *fakeSubscriptionService) Current(context.Context, string) (*SubscriptionView, error) {
	return nil, ErrNotFound
}

func (f *fakeSubscriptionService) UpsertStripeSubscription(_ context.Context, userID, planID string, _, _ time.Time, status, stripeID string) error {
	f.upserts = append(f.upserts, upsertCall{userID, planID, status, stripeID})
	return nil
}

func (f *fakeSubscriptionService) DowngradeUserToFreePlan(_ context.Context, userID string) error {
	f.downgraded = append(f.downgraded, userID)
	return nil
}

func newTestStripeService() (*StripeService, *fakeSubscriptionService, *fakePayments) {
	subs := &fakeSubscriptionService{}
	payments := &fakePayments{}
	users := &fakeUsers{byCustomer: map[string]*model.User{"cus_1": {UserID: "u1"}}}
	svc := NewStripeService(&config.Config{StripeWebhookSecret: testWebhookSecret}, users, payments, subs, zerolog.Nop())
	svc.fetchSubscription = func(id string) (*stripe.Subscription, error) {
		return &stripe.Subscription{ID: id, Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
			{Price: &stripe.Price{ID: "price_pro_mo"}, CurrentPeriodStart: 1700000000, CurrentPeriodEnd: 1702592000},
		}}}, nil
	}
	return svc, subs, payments
}

func event(t *testing.T, typ string, obj any) stripe.Event {
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return stripe.Event{ID: "evt_1", Type: stripe.EventType(typ), Data: &stripe.EventData{Raw: raw}}
}

func TestStripeSubscriptionEvents(t *testing.T) {
	svc, subs, _ := newTestStripeService()
	ctx := context.Background()

	updated := map[string]any{
		"id":                   "sub_1",
		"customer":             "cus_1",
		"status":               "active",
		"cancel_at_period_end": true,
		"items": map[string]any{"data": []map[string]any{
			{"price": map[string]any{"id": "price_pro_mo"}, "current_period_start": 1700000000, "current_period_end": 1702592000},
		}},
	}
	require.NoError(t, svc.handleEvent(ctx, event(t, "customer.subscription.updated", updated)))
	require.Len(t, subs.upserts, 1)
	assert.Equal(t, upsertCall{"u1", "price_pro_mo", "cancelled", "sub_1"}, subs.upserts[0])

	deleted := map[string]any{"id": "sub_1", "metadata": map[string]string{"user_id": "u7"}}
	require.NoError(t, svc.handleEvent(ctx, event(t, "customer.subscription.deleted", deleted)))
	assert.Equal(t, []string{"u7"}, subs.downgraded)

	orphan := map[string]any{"id": "sub_2", "customer": "cus_unknown"}
	assert.ErrorIs(t, svc.handleEvent(ctx, event(t, "customer.subscription.deleted", orphan)), errBadEvent)
}

func TestStripeCheckoutAndInvoice(t *testing.T) {
	svc, subs, payments := newTestStripeService()
	ctx := context.Background()

	checkout := map[string]any{
		"id":           "cs_1",
		"subscription": "sub_9",
		"metadata":     map[string]string{"user_id": "u1"},
	}
	require.NoError(t, svc.handleEvent(ctx, event(t, "checkout.session.completed", checkout)))
	require.Len(t, subs.upserts, 1)
	assert.Equal(t, "active", subs.upserts[0].status)

	invoice := map[string]any{
		"id":          "in_1",
		"customer":    "cus_1",
		"amount_paid": 1900,
		"currency":    "usd",
		"lines": map[string]any{"data": []map[string]any{
			{"id": "il_1", "subscription": "sub_9"},
		}},
	}
	require.NoError(t, svc.handleEvent(ctx, event(t, "invoice.payment_succeeded", invoice)))
	require.Len(t, payments.rows, 1)
	p := payments.rows["pay-1"]
	assert.Equal(t, model.PaymentApproved, p.Status)
	assert.Equal(t, model.PaymentMethodStripe, p.Method)
	assert.Equal(t, "in_1", p.Reference)

	require.NoError(t, svc.handleEvent(ctx, event(t, "invoice.payment_failed", invoice)))
	assert.Equal(t, "past_due", subs.upserts[len(subs.upserts)-1].status)
	assert.Len(t, payments.rows, 1)
}

func TestStripeWebhookSignature(t *testing.T) {
	svc, subs, _ := newTestStripeService()

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	rec := httptest.NewRecorder()
	svc.HandleWebhook(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","metadata":{"user_id":"u3"}}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret, Timestamp: time.Now()})
	req = httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(string(signed.Payload)))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec = httptest.NewRecorder()
	svc.HandleWebhook(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u3"}, subs.downgraded)
}
