package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ismis/core"
)

type Role string

// Roles
const (
	RoleStudent       Role = "student"
	RoleTeacher       Role = "teacher"
	RoleAdmin         Role = "admin"
	RoleAccountsAdmin Role = "accountsadmin"
)

var (
	AllRoles   = []Role{RoleStudent, RoleTeacher, RoleAdmin, RoleAccountsAdmin}
	StaffRoles = []Role{RoleTeacher, RoleAdmin, RoleAccountsAdmin}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Accounts Admin", Value: RoleAccountsAdmin},
	}
)

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

// ParseRole returns the Role named by `s` (case-insensitive) or ErrInvalidRole.
func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true /* lower */))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin, RoleAccountsAdmin:
		return true
	default:
		return false
	}
}

// IsStaff reports whether `r` may list every student.
func (r Role) IsStaff() bool {
	switch r {
	case RoleTeacher, RoleAdmin, RoleAccountsAdmin:
		return true
	default:
		return false
	}
}

func (r Role) CanEditGrades() bool {
	switch r {
	case RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) CanManageClearance() bool {
	switch r {
	case RoleAdmin, RoleAccountsAdmin:
		return true
	default:
		return false
	}
}

func (r Role) In(roles ...Role) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (p Profile) IsStudent() bool { return p.Role == RoleStudent }

// Greeting returns the time-of-day greeting shown to a user at `t`.
func Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Good Morning"
	case h < 18:
		return "Good Afternoon"
	default:
		return "Good Night"
	}
}

// Registration contains information needed to register a new user.
// Courses & PaymentPlan only apply to students.
type Registration struct {
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=6"`
	Name        string   `json:"name" validate:"required"`
	Role        Role     `json:"role" validate:"required,role"`
	Courses     []string `json:"courses"`
	PaymentPlan string   `json:"payment_plan"`
}

func (r *Registration) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.Role = Role(core.CleanString(string(r.Role), true /* lower */))
	r.PaymentPlan = core.CleanString(r.PaymentPlan, true /* lower */)
	for i, c := range r.Courses {
		r.Courses[i] = core.CleanString(c)
	}
	return validate.Struct(r)
}

// LoginRequest carries the credentials of the local identity provider.
// Name & Role must match the registered profile.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Role     Role   `json:"role" validate:"required,role"`
	Password string `json:"password" validate:"required"`
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	lr.Name = core.CleanString(lr.Name)
	lr.Role = Role(core.CleanString(string(lr.Role), true /* lower */))
	return validate.Struct(lr)
}

// matchesProfile compares names case-insensitively.
func (lr LoginRequest) matchesProfile(p Profile) bool {
	return strings.EqualFold(lr.Name, p.Name) && lr.Role == p.Role
}

type QueryFilter struct {
	Role Role `query:"role"`
}

// Credential is the password of a local identity.
type Credential struct {
	UID          string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
