// Package export renders progress reports as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/speakeasy/internal/progress"
)

// Sheet names of the workbook.
const (
	SheetSummary = "Summary"
	SheetPhases  = "Phases"
	SheetLessons = "Lessons"
)

const timeLayout = "2006-01-02 15:04"

// WriteProgressXLSX writes report as an .xlsx workbook with a Summary,
// Phases and Lessons sheet.
func WriteProgressXLSX(w io.Writer, report progress.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("renaming default sheet: %w", err)
	}
	for _, name := range []string{SheetPhases, SheetLessons} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	current := "-"
	if report.Overall.CurrentLesson != nil {
		current = strconv.Itoa(*report.Overall.CurrentLesson)
	}
	summary := [][]any{
		{"Metric", "Value"},
		{"Target language", report.TargetLanguage},
		{"Generated at", report.GeneratedAt.Format(timeLayout)},
		{"Overall progress (%)", report.Overall.Percentage},
		{"Lessons completed", report.Overall.Completed},
		{"Total lessons", report.Overall.Total},
		{"Current lesson", current},
		{"Total time spent (min)", report.Statistics.TotalTimeSpent / 60},
		{"Average quiz score (%)", report.Statistics.AverageQuizScore},
		{"Current streak (days)", report.Statistics.Streak},
		{"Lessons this week", report.Statistics.LessonsThisWeek},
	}
	if err := writeRows(f, SheetSummary, summary, header); err != nil {
		return err
	}

	phases := [][]any{{"Phase", "Name", "Completed", "Total", "Progress (%)"}}
	for _, p := range report.Phases {
		phases = append(phases, []any{p.Phase, p.Name, p.Completed, p.Total, p.Percentage})
	}
	if err := writeRows(f, SheetPhases, phases, header); err != nil {
		return err
	}

	lessons := [][]any{{"Lesson", "Title", "Best score (%)", "Time spent (min)", "Completed at"}}
	for _, l := range report.CompletedLessons {
		completed := ""
		if !l.CompletedAt.IsZero() {
			completed = l.CompletedAt.Format(timeLayout)
		}
		lessons = append(lessons, []any{l.LessonID, l.Title, l.Score, l.TimeSpent / 60, completed})
	}
	if err := writeRows(f, SheetLessons, lessons, header); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 22)
}
