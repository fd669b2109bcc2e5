package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"creatorstudio/internal/config"
	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBody = 64 << 10

// errBadEvent marks webhook payloads that will never succeed on retry.
var errBadEvent = errors.New("bad stripe event")

// StripeService manages checkout, the billing portal and webhooks.
type StripeService struct {
	cfg         *config.Config
	userRepo    repository.UserRepository
	paymentRepo repository.PaymentRepository
	subSvc      SubscriptionService
	// fetchSubscription is swapped in tests.
	fetchSubscription func(id string) (*stripe.Subscription, error)
	logger            zerolog.Logger
}

func NewStripeService(cfg *config.Config, userRepo repository.UserRepository, paymentRepo repository.PaymentRepository, subSvc SubscriptionService, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	return &StripeService{
		cfg:         cfg,
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		subSvc:      subSvc,
		fetchSubscription: func(id string) (*stripe.Subscription, error) {
			return subscriptionpkg.Get(id, nil)
		},
		logger: logger.With().Str("service", "StripeService").Logger(),
	}
}

// resolveUserID reads the user from event metadata, falling back to the
// customer id stored on the profile.
func (s *StripeService) resolveUserID(ctx context.Context, metadata map[string]string, customer *stripe.Customer) (string, error) {
	if userID := metadata["user_id"]; userID != "" {
		return userID, nil
	}
	if customer == nil || customer.ID == "" {
		return "", fmt.Errorf("%w: no user metadata and no customer", errBadEvent)
	}
	u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customer.ID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", fmt.Errorf("%w: no user for customer %s", errBadEvent, customer.ID)
	}
	return u.UserID, nil
}

func (s *StripeService) CreateCustomer(ctx context.Context, user *model.User) (string, error) {
	cust, err := customerpkg.New(&stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.Name),
		Metadata: map[string]string{"user_id": user.UserID},
	})
	if err != nil {
		return "", fmt.Errorf("creating stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.UserID, cust.ID); err != nil {
		return "", fmt.Errorf("storing stripe customer id: %w", err)
	}
	return cust.ID, nil
}

func (s *StripeService) priceFor(plan string) (string, error) {
	var price string
	switch plan {
	case "monthly":
		price = s.cfg.StripePriceMonthly
	case "annual":
		price = s.cfg.StripePriceAnnual
	}
	if price == "" {
		return "", fmt.Errorf("%w: plan %q", ErrInvalidInput, plan)
	}
	return price, nil
}

// CreateCheckoutSession returns the URL of a subscription checkout page.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error) {
	priceID, err := s.priceFor(plan)
	if err != nil {
		return "", err
	}
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	customerID := ""
	if user.StripeCustomerID != nil {
		customerID = *user.StripeCustomerID
	}
	if customerID == "" {
		s.logger.Warn().Str("user_id", userID).Msg("No Stripe customer at checkout, creating one")
		if customerID, err = s.CreateCustomer(ctx, user); err != nil {
			return "", err
		}
	}
	sess, err := checkoutsession.New(&stripe.CheckoutSessionParams{
		Customer:   stripe.String(customerID),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.cfg.StripePortalReturnURL + "?status=success"),
		CancelURL:  stripe.String(s.cfg.StripePortalReturnURL + "?status=cancel"),
		Metadata:   map[string]string{"user_id": userID},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("creating checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession returns the URL of the customer billing portal.
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil || user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", fmt.Errorf("%w: no stripe customer for user %s", ErrNotFound, userID)
	}
	sess, err := billingsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*user.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.StripePortalReturnURL),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("creating billing portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies and applies a Stripe webhook. Malformed events are
// answered with 400 so Stripe stops retrying; storage failures with 500.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stripe webhook signature verification failed")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Stripe webhook received")

	if err := s.handleEvent(r.Context(), event); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errBadEvent) {
			status = http.StatusBadRequest
		}
		s.logger.Error().Err(err).Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Failed to apply Stripe webhook")
		http.Error(w, "failed to process event", status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *StripeService) handleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("%w: checkout session: %w", errBadEvent, err)
		}
		if cs.Subscription == nil || cs.Subscription.ID == "" {
			return nil
		}
		userID, err := s.resolveUserID(ctx, cs.Metadata, cs.Customer)
		if err != nil {
			return err
		}
		sub, err := s.fetchSubscription(cs.Subscription.ID)
		if err != nil {
			return fmt.Errorf("fetching subscription %s: %w", cs.Subscription.ID, err)
		}
		return s.applySubscription(ctx, userID, sub, "active")

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: subscription: %w", errBadEvent, err)
		}
		userID, err := s.resolveUserID(ctx, sub.Metadata, sub.Customer)
		if err != nil {
			return err
		}
		status := string(sub.Status)
		if sub.CancelAtPeriodEnd || sub.Status == stripe.SubscriptionStatusCanceled {
			status = "cancelled"
		}
		return s.applySubscription(ctx, userID, &sub, status)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: subscription: %w", errBadEvent, err)
		}
		userID, err := s.resolveUserID(ctx, sub.Metadata, sub.Customer)
		if err != nil {
			return err
		}
		return s.subSvc.DowngradeUserToFreePlan(ctx, userID)

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%w: invoice: %w", errBadEvent, err)
		}
		return s.applyInvoice(ctx, &inv, event.Type == "invoice.payment_succeeded")

	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
		return nil
	}
}

// applySubscription stores the plan and period of the first subscription item.
// Plans are keyed by Stripe price id.
func (s *StripeService) applySubscription(ctx context.Context, userID string, sub *stripe.Subscription, status string) error {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return fmt.Errorf("%w: subscription %s has no priced items", errBadEvent, sub.ID)
	}
	item := sub.Items.Data[0]
	return s.subSvc.UpsertStripeSubscription(ctx, userID, item.Price.ID,
		time.Unix(item.CurrentPeriodStart, 0), time.Unix(item.CurrentPeriodEnd, 0), status, sub.ID)
}

func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Lines == nil {
		return ""
	}
	for _, line := range inv.Lines.Data {
		if line.Subscription != nil && line.Subscription.ID != "" {
			return line.Subscription.ID
		}
	}
	return ""
}

// applyInvoice extends or suspends the subscription an invoice belongs to and
// records paid invoices in the payment ledger.
func (s *StripeService) applyInvoice(ctx context.Context, inv *stripe.Invoice, paid bool) error {
	subID := invoiceSubscriptionID(inv)
	if subID == "" {
		s.logger.Info().Str("invoice_id", inv.ID).Msg("Invoice has no subscription, skipping")
		return nil
	}
	userID, err := s.resolveUserID(ctx, inv.Metadata, inv.Customer)
	if err != nil {
		return err
	}
	sub, err := s.fetchSubscription(subID)
	if err != nil {
		return fmt.Errorf("fetching subscription %s: %w", subID, err)
	}
	status := "active"
	if !paid {
		status = "past_due"
	}
	if err := s.applySubscription(ctx, userID, sub, status); err != nil {
		return err
	}
	if !paid || inv.AmountPaid <= 0 {
		return nil
	}
	p := &model.Payment{
		UserID:      userID,
		PlanID:      sub.Items.Data[0].Price.ID,
		AmountCents: int(inv.AmountPaid),
		Currency:    string(inv.Currency),
		Method:      model.PaymentMethodStripe,
		Reference:   inv.ID,
		Status:      model.PaymentApproved,
	}
	if err := s.paymentRepo.CreatePayment(ctx, p); err != nil {
		return fmt.Errorf("recording invoice %s: %w", inv.ID, err)
	}
	return nil
}
