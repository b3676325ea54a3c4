package services

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/washline/carwash-app/models"
)

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	Currency       string
}

// StripeService handles Stripe API interactions.
type StripeService struct {
	config *StripeConfig
}

var (
	stripeService *StripeService
	stripeOnce    sync.Once
)

// GetStripeService returns the singleton instance of StripeService.
func GetStripeService() *StripeService {
	stripeOnce.Do(func() {
		cfg := &StripeConfig{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			PublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:       os.Getenv("STRIPE_CURRENCY"),
		}
		if cfg.Currency == "" {
			cfg.Currency = "eur"
		}

		stripe.Key = cfg.SecretKey
		stripeService = &StripeService{config: cfg}
	})
	return stripeService
}

// ValidateConfig validates the Stripe configuration.
func (ss *StripeService) ValidateConfig() error {
	if ss.config.SecretKey == "" {
		return fmt.Errorf("stripe secret key is required")
	}
	if ss.config.PublishableKey == "" {
		return fmt.Errorf("stripe publishable key is required")
	}
	if ss.config.Currency == "" {
		return fmt.Errorf("stripe currency is required")
	}
	return nil
}

// PublishableKey returns the client-side key for Stripe Elements.
func (ss *StripeService) PublishableKey() string {
	return ss.config.PublishableKey
}

// MinorUnits converts a monetary amount to the integer minor units Stripe
// expects (cents for eur).
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreatePaymentIntent creates a Stripe payment intent for a job's total and
// returns the client secret together with the intent id.
func (ss *StripeService) CreatePaymentIntent(job *models.Job) (clientSecret, intentID string, err error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(MinorUnits(job.Total)),
		Currency:    stripe.String(ss.config.Currency),
		Description: stripe.String(job.Reference()),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("job_id", fmt.Sprintf("%d", job.ID))

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ClientSecret, pi.ID, nil
}

// CheckPaymentIntentStatus fetches the current status of a payment intent
// and maps it onto the job payment states.
func (ss *StripeService) CheckPaymentIntentStatus(intentID string) (string, error) {
	pi, err := paymentintent.Get(intentID, nil)
	if err != nil {
		return "", fmt.Errorf("get payment intent: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return JobStatusPaid, nil
	case stripe.PaymentIntentStatusCanceled:
		return JobStatusCancelled, nil
	default:
		return JobStatusPendingPayment, nil
	}
}

// RefundPaymentIntent refunds the full amount of a payment intent. An intent
// whose charge was already refunded counts as success, so a retry after a
// failed local commit converges instead of failing at Stripe forever.
func (ss *StripeService) RefundPaymentIntent(intentID string) error {
	_, err := refund.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	})
	if IsAlreadyRefunded(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

// IsAlreadyRefunded reports whether err is Stripe telling us the charge has
// already been fully refunded.
func IsAlreadyRefunded(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Code == stripe.ErrorCodeChargeAlreadyRefunded
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (ss *StripeService) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, ss.config.WebhookSecret)
}
