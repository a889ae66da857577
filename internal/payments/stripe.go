package payments

import (
	"context"
	"math"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Client wraps stripe-go for the hold/capture/cancel fare flow. Payment
// is a mocked collaborator in this system: when no STRIPE_API_KEY is set
// the client is disabled and every call is a no-op, so local runs and
// tests never touch the network.
type Client struct {
	enabled bool
}

func NewClient() *Client {
	key := os.Getenv("STRIPE_API_KEY")
	if key == "" {
		return &Client{}
	}
	stripe.Key = key
	return &Client{enabled: true}
}

func (c *Client) Enabled() bool { return c.enabled }

// HoldFare creates a manual-capture PaymentIntent for the fare, returning
// the intent id. Fare is in currency units; stripe wants the smallest
// denomination.
func (c *Client) HoldFare(ctx context.Context, fare float64, currency string) (string, error) {
	if !c.enabled {
		return "", nil
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(math.Round(fare * 100))),
		Currency: stripe.String(currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes a held fare after trip completion.
func (c *Client) Capture(ctx context.Context, paymentIntentID string) error {
	if !c.enabled || paymentIntentID == "" {
		return nil
	}
	_, err := paymentintent.Capture(paymentIntentID, nil)
	return err
}

// Cancel releases the hold when a ride is cancelled.
func (c *Client) Cancel(ctx context.Context, paymentIntentID string) error {
	if !c.enabled || paymentIntentID == "" {
		return nil
	}
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}
