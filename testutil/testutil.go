// Package testutil holds the fakes & helpers shared by the tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
)

type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// NewValidator returns a validator with every custom tag & translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	return validate, translator
}

// FixedRates is a payment.RateProvider returning Rate, or Err when set.
type FixedRates struct {
	Rate float64
	Err  error
}

func (r FixedRates) JMDPerUSD(context.Context) (float64, error) {
	return r.Rate, r.Err
}

// FakeGateway records the calls it receives. Charges sharing an idempotency key get the same charge ID.
type FakeGateway struct {
	mu      sync.Mutex
	Err     error
	Charges []payment.ChargeRequest
	Intents []int64
}

var _ payment.Gateway = (*FakeGateway)(nil)

func (g *FakeGateway) CreateIntent(_ context.Context, amountMinor int64) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return payment.Intent{}, g.Err
	}
	g.Intents = append(g.Intents, amountMinor)
	id := fmt.Sprintf("pi_%d", len(g.Intents))
	return payment.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *FakeGateway) Charge(_ context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return payment.Charge{}, g.Err
	}
	if req.IdempotencyKey != "" {
		for i, c := range g.Charges {
			if c.StudentID == req.StudentID && c.IdempotencyKey == req.IdempotencyKey {
				return payment.Charge{ID: fmt.Sprintf("ch_%d", i+1), Status: "succeeded", AmountMinor: c.AmountMinor}, nil
			}
		}
	}
	g.Charges = append(g.Charges, req)
	return payment.Charge{ID: fmt.Sprintf("ch_%d", len(g.Charges)), Status: "succeeded", AmountMinor: req.AmountMinor}, nil
}

func (g *FakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Charges) + len(g.Intents)
}

// Register registers a user through `svc`, failing the test on error.
func Register(t *testing.T, svc user.Service, reg user.Registration) user.Profile {
	t.Helper()
	if reg.Password == "" {
		reg.Password = "secret123"
	}
	prof, err := svc.Register(context.Background(), reg)
	if err != nil {
		t.Fatalf("Register() failed: %+v", err)
	}
	return prof
}
