package gateway

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/trezcool/ismis/core/payment"
)

// Stripe is the card processor gateway. Cards are tokenized client-side, only PaymentMethod IDs reach the server.
type Stripe struct {
	api *client.API
}

var _ payment.Gateway = (*Stripe)(nil) // interface compliance check

// NewStripe returns payment.ErrGatewayNotConfigured when `secretKey` is empty. nil `backends` means Stripe's API.
func NewStripe(secretKey string, backends *stripe.Backends) (*Stripe, error) {
	if secretKey == "" {
		return nil, payment.ErrGatewayNotConfigured
	}
	api := new(client.API)
	api.Init(secretKey, backends)
	return &Stripe{api: api}, nil
}

func (s *Stripe) CreateIntent(ctx context.Context, amountMinor int64) (payment.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(payment.ChargeCurrency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return payment.Intent{}, processorError(err)
	}
	return payment.Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *Stripe) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(payment.ChargeCurrency),
		PaymentMethod:      stripe.String(req.PaymentMethodID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		Description:        stripe.String(req.Description),
	}
	params.Context = ctx
	if req.StudentID != "" {
		params.AddMetadata("student_id", req.StudentID)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.StudentID + ":" + req.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return payment.Charge{}, processorError(err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return payment.Charge{}, payment.NewProcessorError(
			http.StatusPaymentRequired,
			string(pi.Status),
			"payment was not completed (status: "+string(pi.Status)+")",
		)
	}
	return payment.Charge{ID: pi.ID, Status: string(pi.Status), AmountMinor: pi.Amount}, nil
}

// processorError surfaces Stripe's message as is.
func processorError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = http.StatusText(stripeErr.HTTPStatusCode)
		}
		return payment.NewProcessorError(stripeErr.HTTPStatusCode, string(stripeErr.Code), msg)
	}
	return errors.Wrap(err, "calling stripe")
}
