package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/course-jobs/internal/entity"
)

// JobLister returns a principal's jobs created in [from, to).
type JobLister interface {
	ListJobs(ctx context.Context, principal string, from, to *time.Time) ([]*entity.Job, error)
}

// Service produces XLSX bytes for job reports.
type Service struct {
	jobs   JobLister
	now    func() time.Time
	logger *slog.Logger
}

func NewService(jobs JobLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, now: time.Now, logger: logger}
}

// ExportJobsXLSX returns an XLSX workbook (as bytes) for the principal's jobs in a date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all jobs of the principal.
func (s *Service) ExportJobsXLSX(ctx context.Context, principal string, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	lo, hi := window(from, to, s.now())
	jobs, err := s.jobs.ListJobs(ctx, principal, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Jobs"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Job ID",
		"Type",
		"Status",
		"Course",
		"Attempts",
		"Created At",
		"Updated At",
		"Duration (s)",
		"Message / Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, j := range jobs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		course := ""
		if j.RelatedEntityID != nil {
			course = *j.RelatedEntityID
		}
		note := ""
		switch {
		case j.Error != nil:
			note = *j.Error
		case j.Message != nil:
			note = *j.Message
		}

		write(1, j.ID.String())
		write(2, j.Type.String())
		write(3, j.Status.String())
		write(4, course)
		write(5, j.Attempts)
		write(6, j.CreatedAt.UTC().Format(time.RFC3339))
		write(7, j.UpdatedAt.UTC().Format(time.RFC3339))
		if j.Status.IsTerminal() {
			write(8, j.UpdatedAt.Sub(j.CreatedAt).Round(time.Second).Seconds())
		}
		write(9, truncate(note, 200))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // id
	_ = f.SetColWidth(sheet, "B", "B", 26) // type
	_ = f.SetColWidth(sheet, "C", "E", 12)
	_ = f.SetColWidth(sheet, "F", "G", 22) // timestamps
	_ = f.SetColWidth(sheet, "H", "H", 12)
	_ = f.SetColWidth(sheet, "I", "I", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"principal", principal,
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// window turns inclusive calendar dates into a half-open UTC range.
func window(from, to *time.Time, now time.Time) (*time.Time, *time.Time) {
	day := func(t time.Time) time.Time {
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	var lo, hi *time.Time
	if from != nil {
		f := day(*from)
		lo = &f
		if to == nil {
			t := day(now).AddDate(0, 0, 1)
			hi = &t
		}
	}
	if to != nil {
		t := day(*to).AddDate(0, 0, 1)
		hi = &t
	}
	return lo, hi
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
