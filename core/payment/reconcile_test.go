package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/ismis/core/student"
)

func TestConvertToUSD(t *testing.T) {
	tests := []struct {
		name      string
		amount    float64
		rate      float64
		wantUSD   float64
		wantMinor int64
	}{
		{name: "fallback rate", amount: 15719, rate: FallbackRate, wantUSD: 100, wantMinor: 10000},
		{name: "live rate", amount: 1000, rate: 160, wantUSD: 6.25, wantMinor: 625},
		{name: "rounds half away", amount: 0.125, rate: 1, wantUSD: 0.125, wantMinor: 13},
		{name: "rounds to nearest", amount: 100, rate: FallbackRate, wantUSD: 100 / FallbackRate, wantMinor: 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usd := ConvertToUSD(tt.amount, tt.rate)
			assert.InDelta(t, tt.wantUSD, usd, 1e-9)
			assert.Equal(t, tt.wantMinor, ToMinorUnits(usd))
		})
	}
}

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		name      string
		owed      float64
		paid      float64
		wantState student.PaymentStatus
	}{
		{name: "paid", owed: 1000, paid: 1000, wantState: student.StatusPaid},
		{name: "overpaid", owed: 1000, paid: 1200, wantState: student.StatusPaid},
		{name: "partially paid", owed: 1000, paid: 400, wantState: student.StatusPartiallyPaid},
		{name: "unpaid", owed: 1000, paid: 0, wantState: student.StatusUnpaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantState, DerivePaymentStatus(tt.owed-tt.paid, tt.paid))
		})
	}
}

func TestAllocateInstallments(t *testing.T) {
	tests := []struct {
		name          string
		installments  []student.Installment
		amount        float64
		wantPaid      []bool
		wantRemaining float64
	}{
		{
			name:          "covers first only",
			installments:  []student.Installment{{Amount: 500}, {Amount: 500}},
			amount:        500,
			wantPaid:      []bool{true, false},
			wantRemaining: 0,
		},
		{
			name:          "covers both",
			installments:  []student.Installment{{Amount: 500}, {Amount: 500}},
			amount:        1000,
			wantPaid:      []bool{true, true},
			wantRemaining: 0,
		},
		{
			name:          "no partial credit",
			installments:  []student.Installment{{Amount: 500}, {Amount: 500}},
			amount:        700,
			wantPaid:      []bool{true, false},
			wantRemaining: 200,
		},
		{
			name:          "skips paid installments",
			installments:  []student.Installment{{Amount: 500, Paid: true}, {Amount: 300}, {Amount: 200}},
			amount:        500,
			wantPaid:      []bool{true, true, true},
			wantRemaining: 0,
		},
		{
			name:          "stops at first uncovered",
			installments:  []student.Installment{{Amount: 600}, {Amount: 100}},
			amount:        500,
			wantPaid:      []bool{false, false},
			wantRemaining: 500,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining := AllocateInstallments(tt.installments, tt.amount)
			assert.Equal(t, tt.wantRemaining, remaining)
			for i, inst := range tt.installments {
				assert.Equal(t, tt.wantPaid[i], inst.Paid, "installment %d", i)
			}
		})
	}
}

func newRecord(clearance bool, installments ...student.Installment) student.Record {
	var owed float64
	for _, inst := range installments {
		owed += inst.Amount
	}
	return student.Record{
		TotalOwed:     owed,
		Balance:       owed,
		PaymentStatus: student.StatusUnpaid,
		Clearance:     clearance,
		PaymentPlan:   student.PaymentPlan{PlanType: student.PlanTwoInstallments, Installments: installments},
	}
}

func TestReconcile(t *testing.T) {
	t.Run("first installment grants clearance", func(t *testing.T) {
		rec := newRecord(false, student.Installment{Amount: 500}, student.Installment{Amount: 500})
		Reconcile(&rec, 500)

		assert.Equal(t, 500.0, rec.TotalPaid)
		assert.Equal(t, 500.0, rec.Balance)
		assert.Equal(t, student.StatusPartiallyPaid, rec.PaymentStatus)
		assert.True(t, rec.PaymentPlan.Installments[0].Paid)
		assert.False(t, rec.PaymentPlan.Installments[1].Paid)
		assert.True(t, rec.Clearance)
	})

	t.Run("partial payment does not grant clearance", func(t *testing.T) {
		rec := newRecord(false, student.Installment{Amount: 500}, student.Installment{Amount: 500})
		Reconcile(&rec, 200)

		assert.Equal(t, student.StatusPartiallyPaid, rec.PaymentStatus)
		assert.False(t, rec.PaymentPlan.Installments[0].Paid)
		assert.False(t, rec.Clearance)
	})

	t.Run("clearance is kept once granted", func(t *testing.T) {
		rec := newRecord(true, student.Installment{Amount: 500, Paid: true}, student.Installment{Amount: 500})
		rec.TotalPaid, rec.Balance = 500, 500
		Reconcile(&rec, 100)

		assert.True(t, rec.Clearance)
		assert.Equal(t, 600.0, rec.TotalPaid)
	})

	t.Run("revoked clearance is not granted back by a later installment", func(t *testing.T) {
		rec := newRecord(false, student.Installment{Amount: 500, Paid: true}, student.Installment{Amount: 300}, student.Installment{Amount: 200})
		rec.TotalPaid, rec.Balance = 500, 500
		Reconcile(&rec, 300)

		assert.True(t, rec.PaymentPlan.Installments[1].Paid)
		assert.False(t, rec.Clearance)
	})

	t.Run("settled balance grants clearance", func(t *testing.T) {
		rec := newRecord(false, student.Installment{Amount: 500, Paid: true}, student.Installment{Amount: 500})
		rec.TotalPaid, rec.Balance = 500, 500
		Reconcile(&rec, 500)

		assert.Equal(t, 0.0, rec.Balance)
		assert.Equal(t, student.StatusPaid, rec.PaymentStatus)
		assert.True(t, rec.Clearance)
	})

	t.Run("idempotent clearance", func(t *testing.T) {
		rec := newRecord(true, student.Installment{Amount: 1000})
		Reconcile(&rec, 1000)
		assert.True(t, rec.Clearance)
		Reconcile(&rec, 0)
		assert.True(t, rec.Clearance)
	})
}
