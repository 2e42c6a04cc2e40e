package payment

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core/student"
)

var (
	ErrNotFound             = errors.New("payment not found")
	ErrDuplicateKey         = errors.New("payment already recorded for this idempotency key")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	ErrInvalidAmount        = errors.New("Invalid amount provided")
	ErrAmountTooLarge       = errors.New("amount too large - please check your input")
	ErrAmountTooSmall       = errors.New("amount too small - please check your input")
)

// NewID returns a payment ID. It is derived from the student & idempotency key when there is one,
// so a second payment recorded under the same key collides with the first.
func NewID(studentID, idempotencyKey string) string {
	if idempotencyKey == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(studentID+"/"+idempotencyKey)).String()
}

// ProcessorError is a failure reported by the card processor; Message is shown to the user as is.
type ProcessorError struct {
	Status  int // HTTP status
	Code    string
	Message string
}

func NewProcessorError(status int, code, msg string) *ProcessorError {
	if status == 0 {
		status = http.StatusPaymentRequired
	}
	return &ProcessorError{Status: status, Code: code, Message: msg}
}

func (e ProcessorError) Error() string { return e.Message }

type (
	Intent struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}

	ChargeRequest struct {
		AmountMinor     int64
		PaymentMethodID string
		IdempotencyKey  string
		Description     string
		StudentID       string
	}

	Charge struct {
		ID          string
		Status      string
		AmountMinor int64
	}

	// Payment is the record of one successful charge applied to a student's ledger.
	Payment struct {
		ID             string    `json:"id"`
		StudentID      string    `json:"student_id"`
		AmountLocal    float64   `json:"amount_local"` // JMD
		AmountMinor    int64     `json:"amount_minor"` // charge currency cents
		Currency       string    `json:"currency"`
		ExchangeRate   float64   `json:"exchange_rate"`
		ChargeID       string    `json:"charge_id"`
		IdempotencyKey string    `json:"idempotency_key,omitempty"`
		CreatedAt      time.Time `json:"created_at"` // UTC
	}

	Rate struct {
		Rate    float64 `json:"rate"` // JMD per USD
		Warning string  `json:"warning,omitempty"`
	}

	PayRequest struct {
		Amount          float64 `json:"amount" validate:"gt=0"` // JMD
		PaymentMethodID string  `json:"payment_method_id" validate:"required"`
		IdempotencyKey  string  `json:"-"`
	}

	IntentRequest struct {
		Amount int64 `json:"amount"` // USD cents
	}

	Receipt struct {
		Payment      Payment        `json:"payment"`
		Student      student.Record `json:"student"`
		AmountUSD    float64        `json:"amount_usd"`
		ExchangeRate float64        `json:"exchange_rate"`
		Warning      string         `json:"warning,omitempty"`
	}

	receiptEmailData struct {
		Name          string
		AmountLocal   string
		AmountUSD     string
		ExchangeRate  string
		ChargeID      string
		Date          string
		TotalPaid     string
		Balance       string
		PaymentStatus string
		Clearance     bool
	}
)
