package student

import (
	"math"
	"time"
)

// Payment plans
const (
	PlanFull              = "full"
	PlanTwoInstallments   = "two-installments"
	PlanThreeInstallments = "three-installments"
)

const installmentInterval = 30 * 24 * time.Hour

type CatalogCourse struct {
	Name     string   `json:"name"`
	Fee      float64  `json:"fee"`
	Subjects []string `json:"subjects"`
}

// Catalog lists the courses offered at registration.
var Catalog = []CatalogCourse{
	{
		Name: "Computer Course",
		Fee:  150000,
		Subjects: []string{
			"Introduction to Programming",
			"Database Fundamentals",
			"Web Development Basics",
			"Operating Systems",
			"Network Essentials",
			"Software Engineering Principles",
		},
	},
	{
		Name: "Science Course",
		Fee:  175000,
		Subjects: []string{
			"Biology Basics",
			"Chemistry Foundations",
			"Physics Principles",
			"Environmental Science",
			"Lab Techniques",
			"Scientific Research Methods",
		},
	},
	{
		Name: "Management Information System",
		Fee:  185000,
		Subjects: []string{
			"Business Systems: Analysis, Design and Development",
			"Work Experience",
			"Troubleshooting I",
			"Small Business Management (Theory and Practical)",
			"Introduction to Computer and Network Security",
			"Oral Communication",
		},
	},
}

var PaymentPlans = []string{PlanFull, PlanTwoInstallments, PlanThreeInstallments}

func findCatalogCourse(name string) (CatalogCourse, bool) {
	for _, c := range Catalog {
		if c.Name == name {
			return c, true
		}
	}
	return CatalogCourse{}, false
}

func validPlan(plan string) bool {
	switch plan {
	case PlanFull, PlanTwoInstallments, PlanThreeInstallments:
		return true
	default:
		return false
	}
}

// enrolledCourses builds the courses of a new record; unknown and duplicate names are skipped.
func enrolledCourses(names []string) ([]Course, float64) {
	var (
		courses = make([]Course, 0, len(names))
		seen    = make(map[string]bool, len(names))
		total   float64
	)
	for _, name := range names {
		cc, ok := findCatalogCourse(name)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true

		subjects := make([]Subject, len(cc.Subjects))
		for i, s := range cc.Subjects {
			subjects[i] = Subject{Name: s, Grades: NewGrades()}
		}
		courses = append(courses, Course{Name: cc.Name, Fee: cc.Fee, Subjects: subjects})
		total += cc.Fee
	}
	return courses, total
}

// BuildInstallments splits `total` according to `plan`, due dates counting from `now`.
func BuildInstallments(plan string, total float64, now time.Time) []Installment {
	switch plan {
	case PlanTwoInstallments:
		half := total / 2
		return []Installment{
			{Amount: half, DueDate: now},
			{Amount: half, DueDate: now.Add(installmentInterval)},
		}
	case PlanThreeInstallments:
		third := math.Floor(total / 3)
		return []Installment{
			{Amount: third, DueDate: now},
			{Amount: third, DueDate: now.Add(installmentInterval)},
			{Amount: total - 2*third, DueDate: now.Add(2 * installmentInterval)},
		}
	default:
		return []Installment{{Amount: total, DueDate: now}}
	}
}
