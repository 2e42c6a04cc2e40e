package payment

import (
	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/student"
)

const (
	// FallbackRate is the JMD per USD rate used when no live rate can be fetched.
	FallbackRate = 157.19
	// MaxChargeMinorUnits is the largest charge accepted, in USD cents.
	MaxChargeMinorUnits = 100000

	ChargeCurrency = "usd"
	LocalCurrency  = "jmd"
)

// ConvertToUSD converts a JMD amount into USD at `rate` JMD per USD.
func ConvertToUSD(amount, rate float64) float64 {
	return amount / rate
}

// ToMinorUnits converts USD into cents, rounding half away from zero.
func ToMinorUnits(usd float64) int64 {
	return core.RoundHalfAway(usd * 100)
}

func DerivePaymentStatus(balance, totalPaid float64) student.PaymentStatus {
	switch {
	case balance <= 0:
		return student.StatusPaid
	case totalPaid > 0:
		return student.StatusPartiallyPaid
	default:
		return student.StatusUnpaid
	}
}

// AllocateInstallments marks unpaid installments as paid, in order, while `amount` covers them.
// It stops at the first unpaid installment the remainder cannot cover and returns the remainder.
func AllocateInstallments(installments []student.Installment, amount float64) float64 {
	remaining := amount
	for i := range installments {
		if installments[i].Paid {
			continue
		}
		if installments[i].Amount > remaining {
			break
		}
		installments[i].Paid = true
		remaining -= installments[i].Amount
	}
	return remaining
}

// Reconcile applies a payment of `amount` JMD to the financial fields of `rec`.
// Clearance is granted when the first installment gets paid by this payment or the balance is settled,
// it is never revoked here.
func Reconcile(rec *student.Record, amount float64) {
	rec.TotalPaid += amount
	rec.Balance = rec.TotalOwed - rec.TotalPaid
	rec.PaymentStatus = DerivePaymentStatus(rec.Balance, rec.TotalPaid)

	insts := rec.PaymentPlan.Installments
	firstWasPaid := len(insts) > 0 && insts[0].Paid
	AllocateInstallments(insts, amount)
	firstNowPaid := len(insts) > 0 && insts[0].Paid

	if (firstNowPaid && !firstWasPaid) || rec.Balance <= 0 {
		rec.Clearance = true
	}
}
