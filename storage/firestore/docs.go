package firestoredb

import (
	"time"

	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
)

// Collections
const (
	usersCol       = "users"
	credentialsCol = "credentials"
	studentsCol    = "students"
	paymentsCol    = "payments"
)

// document field names records may be ordered by
var orderingFields = map[string]string{
	"name":           "name",
	"total_owed":     "totalOwed",
	"total_paid":     "totalPaid",
	"balance":        "balance",
	"payment_status": "paymentStatus",
	"updated_at":     "updatedAt",
}

type userDoc struct {
	Email     string    `firestore:"email"`
	Name      string    `firestore:"name"`
	Role      string    `firestore:"role"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func newUserDoc(p user.Profile) userDoc {
	return userDoc{Email: p.Email, Name: p.Name, Role: p.Role.String(), CreatedAt: p.CreatedAt}
}

func (d userDoc) toProfile(id string) user.Profile {
	return user.Profile{ID: id, Email: d.Email, Name: d.Name, Role: user.Role(d.Role), CreatedAt: d.CreatedAt.UTC()}
}

type credentialDoc struct {
	Email        string    `firestore:"email"`
	PasswordHash []byte    `firestore:"passwordHash"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

type (
	subjectDoc struct {
		Name   string            `firestore:"name"`
		Grades map[string]string `firestore:"grades"`
	}

	courseDoc struct {
		Name     string       `firestore:"name"`
		Fee      float64      `firestore:"fee"`
		Subjects []subjectDoc `firestore:"subjects"`
	}

	installmentDoc struct {
		Amount  float64   `firestore:"amount"`
		DueDate time.Time `firestore:"dueDate"`
		Paid    bool      `firestore:"paid"`
	}

	paymentPlanDoc struct {
		PlanType     string           `firestore:"planType"`
		Installments []installmentDoc `firestore:"installments"`
	}

	studentDoc struct {
		Name          string         `firestore:"name"`
		Courses       []courseDoc    `firestore:"courses"`
		TotalOwed     float64        `firestore:"totalOwed"`
		TotalPaid     float64        `firestore:"totalPaid"`
		Balance       float64        `firestore:"balance"`
		PaymentStatus string         `firestore:"paymentStatus"`
		Clearance     bool           `firestore:"clearance"`
		PaymentPlan   paymentPlanDoc `firestore:"paymentPlan"`
		Version       int64          `firestore:"version"`
		UpdatedAt     time.Time      `firestore:"updatedAt"`
	}
)

func newStudentDoc(rec student.Record) studentDoc {
	courses := make([]courseDoc, len(rec.Courses))
	for i, c := range rec.Courses {
		subjects := make([]subjectDoc, len(c.Subjects))
		for j, s := range c.Subjects {
			subjects[j] = subjectDoc{Name: s.Name, Grades: s.Grades.ToMap()}
		}
		courses[i] = courseDoc{Name: c.Name, Fee: c.Fee, Subjects: subjects}
	}
	installments := make([]installmentDoc, len(rec.PaymentPlan.Installments))
	for i, inst := range rec.PaymentPlan.Installments {
		installments[i] = installmentDoc(inst)
	}
	return studentDoc{
		Name:          rec.Name,
		Courses:       courses,
		TotalOwed:     rec.TotalOwed,
		TotalPaid:     rec.TotalPaid,
		Balance:       rec.Balance,
		PaymentStatus: string(rec.PaymentStatus),
		Clearance:     rec.Clearance,
		PaymentPlan:   paymentPlanDoc{PlanType: rec.PaymentPlan.PlanType, Installments: installments},
		Version:       rec.Version,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func (d studentDoc) toRecord(id string) student.Record {
	courses := make([]student.Course, len(d.Courses))
	for i, c := range d.Courses {
		subjects := make([]student.Subject, len(c.Subjects))
		for j, s := range c.Subjects {
			subjects[j] = student.Subject{Name: s.Name, Grades: student.GradesFromMap(s.Grades)}
		}
		courses[i] = student.Course{Name: c.Name, Fee: c.Fee, Subjects: subjects}
	}
	installments := make([]student.Installment, len(d.PaymentPlan.Installments))
	for i, inst := range d.PaymentPlan.Installments {
		inst.DueDate = inst.DueDate.UTC()
		installments[i] = student.Installment(inst)
	}
	version := d.Version
	if version == 0 { // documents written before versioning
		version = 1
	}
	return student.Record{
		ID:            id,
		Name:          d.Name,
		Courses:       courses,
		TotalOwed:     d.TotalOwed,
		TotalPaid:     d.TotalPaid,
		Balance:       d.Balance,
		PaymentStatus: student.PaymentStatus(d.PaymentStatus),
		Clearance:     d.Clearance,
		PaymentPlan:   student.PaymentPlan{PlanType: d.PaymentPlan.PlanType, Installments: installments},
		Version:       version,
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

type paymentDoc struct {
	StudentID      string    `firestore:"studentId"`
	AmountLocal    float64   `firestore:"amountLocal"`
	AmountMinor    int64     `firestore:"amountMinor"`
	Currency       string    `firestore:"currency"`
	ExchangeRate   float64   `firestore:"exchangeRate"`
	ChargeID       string    `firestore:"chargeId"`
	IdempotencyKey string    `firestore:"idempotencyKey,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

func newPaymentDoc(p payment.Payment) paymentDoc {
	return paymentDoc{
		StudentID:      p.StudentID,
		AmountLocal:    p.AmountLocal,
		AmountMinor:    p.AmountMinor,
		Currency:       p.Currency,
		ExchangeRate:   p.ExchangeRate,
		ChargeID:       p.ChargeID,
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      p.CreatedAt,
	}
}

func (d paymentDoc) toPayment(id string) payment.Payment {
	return payment.Payment{
		ID:             id,
		StudentID:      d.StudentID,
		AmountLocal:    d.AmountLocal,
		AmountMinor:    d.AmountMinor,
		Currency:       d.Currency,
		ExchangeRate:   d.ExchangeRate,
		ChargeID:       d.ChargeID,
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}
