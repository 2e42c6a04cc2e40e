package payment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
)

const (
	ledgerAttempts = 3

	receiptTemplate = "payment_receipt"
	receiptSubject  = "Tuition payment receipt"
)

type (
	// RateProvider gives the current number of JMD per USD.
	RateProvider interface {
		JMDPerUSD(ctx context.Context) (float64, error)
	}

	// Gateway is the card processor.
	Gateway interface {
		CreateIntent(ctx context.Context, amountMinor int64) (Intent, error)
		// Charge creates & confirms a card charge in one call.
		Charge(ctx context.Context, req ChargeRequest) (Charge, error)
	}

	Repository interface {
		// ApplyPayment runs `apply` on the latest version of the student's record and stores the
		// resulting record along with `p` atomically.
		// It fails with student.ErrConflict when the record changed in between,
		// and with ErrDuplicateKey when the student already has a payment with p.IdempotencyKey.
		ApplyPayment(ctx context.Context, p Payment, apply func(*student.Record) error) (student.Record, Payment, error)
		GetPaymentByKey(ctx context.Context, studentID, key string) (Payment, error)
		QueryPayments(ctx context.Context, studentID string) ([]Payment, error)
	}

	RecordGetter interface {
		GetRecord(ctx context.Context, id string) (student.Record, error)
	}

	Service interface {
		// ExchangeRate never fails: the fallback rate is returned with a warning when no live rate is available.
		ExchangeRate(ctx context.Context) Rate
		CreateIntent(ctx context.Context, amountMinor int64) (Intent, error)
		// Pay charges the card of the student `actor` and applies the payment to their ledger.
		Pay(ctx context.Context, actor user.Profile, req PayRequest) (Receipt, error)
		History(ctx context.Context, actor user.Profile, studentID string) ([]Payment, error)
	}

	Deps struct {
		Repo     Repository
		Records  RecordGetter
		Gateway  Gateway
		Rates    RateProvider
		MailSvc  core.EmailService
		Validate *validator.Validate
		Logger   core.Logger
	}

	service struct {
		Deps
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{Deps: deps, nowFunc: time.Now}
}

func (svc *service) ExchangeRate(ctx context.Context) Rate {
	rate, err := svc.Rates.JMDPerUSD(ctx)
	if err != nil || rate <= 0 {
		if err == nil {
			err = errors.Errorf("invalid rate %v", rate)
		}
		svc.Logger.Warn("exchange rate unavailable, using fallback", err)
		return Rate{
			Rate:    FallbackRate,
			Warning: fmt.Sprintf("couldn't fetch exchange rate; using default %s JMD/USD", core.FormatDecimal(FallbackRate)),
		}
	}
	return Rate{Rate: rate}
}

func (svc *service) CreateIntent(ctx context.Context, amountMinor int64) (Intent, error) {
	if amountMinor <= 0 {
		return Intent{}, core.NewValidationError(ErrInvalidAmount)
	}
	if svc.Gateway == nil {
		return Intent{}, ErrGatewayNotConfigured
	}
	intent, err := svc.Gateway.CreateIntent(ctx, amountMinor)
	return intent, errors.Wrap(err, "creating intent")
}

func (svc *service) Pay(ctx context.Context, actor user.Profile, req PayRequest) (Receipt, error) {
	if actor.Role != user.RoleStudent {
		return Receipt{}, user.ErrPermissionDenied
	}
	if !(req.Amount > 0) { // also rejects NaN
		return Receipt{}, core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "amount", Error: ErrInvalidAmount.Error()})
	}
	if err := svc.Validate.Struct(req); err != nil {
		return Receipt{}, err
	}
	if svc.Gateway == nil {
		return Receipt{}, ErrGatewayNotConfigured
	}

	if req.IdempotencyKey != "" {
		if receipt, found, err := svc.replay(ctx, actor.ID, req.IdempotencyKey); err != nil || found {
			return receipt, err
		}
	}

	rate := svc.ExchangeRate(ctx)
	usd := ConvertToUSD(req.Amount, rate.Rate)
	minor := ToMinorUnits(usd)
	if minor > MaxChargeMinorUnits {
		return Receipt{}, core.NewValidationError(ErrAmountTooLarge, core.FieldError{Field: "amount", Error: ErrAmountTooLarge.Error()})
	}
	if minor <= 0 {
		return Receipt{}, core.NewValidationError(ErrAmountTooSmall, core.FieldError{Field: "amount", Error: ErrAmountTooSmall.Error()})
	}

	// never charge a student without a record
	if _, err := svc.Records.GetRecord(ctx, actor.ID); err != nil {
		return Receipt{}, errors.Wrap(err, "getting record")
	}

	charge, err := svc.Gateway.Charge(ctx, ChargeRequest{
		AmountMinor:     minor,
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  req.IdempotencyKey,
		Description:     "Tuition payment - " + actor.Name,
		StudentID:       actor.ID,
	})
	if err != nil {
		return Receipt{}, errors.Wrap(err, "charging card")
	}

	p := Payment{
		ID:             NewID(actor.ID, req.IdempotencyKey),
		StudentID:      actor.ID,
		AmountLocal:    req.Amount,
		AmountMinor:    minor,
		Currency:       ChargeCurrency,
		ExchangeRate:   rate.Rate,
		ChargeID:       charge.ID,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      svc.nowFunc().UTC(),
	}
	ledgerCtx := context.WithoutCancel(ctx)
	rec, p, err := svc.applyToLedger(ledgerCtx, p)
	if errors.Cause(err) == ErrDuplicateKey {
		// a concurrent request with the same key recorded this charge first
		receipt, found, rErr := svc.replay(ledgerCtx, actor.ID, req.IdempotencyKey)
		if rErr == nil && found {
			return receipt, nil
		}
		if rErr != nil {
			err = rErr
		}
	}
	if err != nil {
		// the card was charged: this must not go unnoticed
		svc.Logger.Error("charge succeeded but ledger update failed", errors.Wrapf(err, "charge %s", charge.ID), actor)
		return Receipt{}, errors.Wrapf(err, "applying charge %s", charge.ID)
	}

	svc.sendReceipt(actor, p, rec)
	return Receipt{
		Payment:      p,
		Student:      rec,
		AmountUSD:    float64(minor) / 100,
		ExchangeRate: rate.Rate,
		Warning:      rate.Warning,
	}, nil
}

// replay returns the receipt of an already recorded payment with the same idempotency key.
func (svc *service) replay(ctx context.Context, studentID, key string) (Receipt, bool, error) {
	p, err := svc.Repo.GetPaymentByKey(ctx, studentID, key)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Receipt{}, false, nil
		}
		return Receipt{}, false, errors.Wrap(err, "getting payment by key")
	}
	rec, err := svc.Records.GetRecord(ctx, studentID)
	if err != nil {
		return Receipt{}, false, errors.Wrap(err, "getting record")
	}
	return Receipt{
		Payment:      p,
		Student:      rec,
		AmountUSD:    float64(p.AmountMinor) / 100,
		ExchangeRate: p.ExchangeRate,
	}, true, nil
}

// applyToLedger re-runs the reconciliation on a fresh record after a concurrent update.
func (svc *service) applyToLedger(ctx context.Context, p Payment) (student.Record, Payment, error) {
	apply := func(rec *student.Record) error {
		Reconcile(rec, p.AmountLocal)
		rec.UpdatedAt = p.CreatedAt
		return nil
	}

	var err error
	for attempt := 1; attempt <= ledgerAttempts; attempt++ {
		var rec student.Record
		var saved Payment
		rec, saved, err = svc.Repo.ApplyPayment(ctx, p, apply)
		if err == nil {
			return rec, saved, nil
		}
		if errors.Cause(err) != student.ErrConflict {
			break
		}
		svc.Logger.Warn("ledger update conflict, retrying", errors.Wrapf(err, "attempt %d", attempt))
	}
	return student.Record{}, Payment{}, err
}

func (svc *service) sendReceipt(actor user.Profile, p Payment, rec student.Record) {
	if svc.MailSvc == nil || actor.Email == "" {
		return
	}
	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: actor.Name, Address: actor.Email}},
		Subject:      receiptSubject,
		TemplateName: receiptTemplate,
		TemplateData: receiptEmailData{
			Name:          actor.Name,
			AmountLocal:   core.FormatDecimal(p.AmountLocal),
			AmountUSD:     core.FormatDecimal(float64(p.AmountMinor) / 100),
			ExchangeRate:  core.FormatDecimal(p.ExchangeRate),
			ChargeID:      p.ChargeID,
			Date:          p.CreatedAt.Format("2006-01-02 15:04 MST"),
			TotalPaid:     core.FormatDecimal(rec.TotalPaid),
			Balance:       core.FormatDecimal(rec.Balance),
			PaymentStatus: string(rec.PaymentStatus),
			Clearance:     rec.Clearance,
		},
	})
}

func (svc *service) History(ctx context.Context, actor user.Profile, studentID string) ([]Payment, error) {
	if !(actor.Role.IsStaff() || actor.ID == studentID) {
		return nil, user.ErrPermissionDenied
	}
	return svc.Repo.QueryPayments(ctx, studentID)
}
