package student

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const reportSheet = "Grades"

var reportHeader = []string{"Student", "Course", "Subject", "Classwork", "Exam", "Final", "Status"}

type (
	CourseReport struct {
		Course   string    `json:"course"`
		Subjects []Subject `json:"subjects"`
		Average  string    `json:"average"`
	}

	Report struct {
		StudentID   string         `json:"student_id"`
		StudentName string         `json:"student_name"`
		Courses     []CourseReport `json:"courses"`
	}
)

func BuildReport(rec Record) Report {
	rpt := Report{
		StudentID:   rec.ID,
		StudentName: rec.Name,
		Courses:     make([]CourseReport, len(rec.Courses)),
	}
	for i, c := range rec.Courses {
		rpt.Courses[i] = CourseReport{
			Course:   c.Name,
			Subjects: c.Subjects,
			Average:  CourseAverage(c.Subjects),
		}
	}
	return rpt
}

// reportRows flattens the reports into one row per subject, eg. Classwork: "C1=80; C2=90".
func reportRows(reports []Report) [][]string {
	var rows [][]string
	for _, rpt := range reports {
		for _, c := range rpt.Courses {
			for _, s := range c.Subjects {
				cw := make([]string, len(s.Grades.Classwork))
				for i, v := range s.Grades.Classwork {
					cw[i] = ClassworkField(i) + "=" + v
				}
				rows = append(rows, []string{
					rpt.StudentName,
					c.Course,
					s.Name,
					strings.Join(cw, "; "),
					s.Grades.Exam,
					s.Grades.Final,
					string(s.Grades.Status),
				})
			}
		}
	}
	return rows
}

func WriteReportsCSV(w io.Writer, reports []Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if err := cw.WriteAll(reportRows(reports)); err != nil {
		return errors.Wrap(err, "writing rows")
	}
	return nil
}

func WriteReportsXLSX(w io.Writer, reports []Report) error {
	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	rows := append([][]string{reportHeader}, reportRows(reports)...)
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return errors.Wrap(err, "naming cell")
		}
		vals := make([]interface{}, len(row))
		for i, v := range row {
			vals[i] = v
		}
		if err := f.SetSheetRow(reportSheet, cell, &vals); err != nil {
			return errors.Wrapf(err, "writing row %d", r+1)
		}
	}

	_, err := f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}
