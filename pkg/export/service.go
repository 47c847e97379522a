package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jordanlanch/leadcrm/pkg/domain"
	"github.com/jordanlanch/leadcrm/pkg/leadstatus"
	"github.com/jordanlanch/leadcrm/pkg/logger"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/xuri/excelize/v2"
)

// Export formats
const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
)

// SheetName is the worksheet that holds exported leads.
const SheetName = "Leads"

// DateLayout renders exported timestamps.
const DateLayout = "2006-01-02 15:04:05"

// Headers are the exported columns in order.
var Headers = []string{
	"ID", "Name", "Phone", "Email", "Interested Location", "Status", "Substatus",
	"Status Label", "Assigned To", "Source", "Follow Up Date", "Site Visit Date",
	"Notes", "Follow Ups", "Site Visits", "Last Note", "Created At", "Updated At",
}

// LeadLister runs the lead query without paging.
type LeadLister interface {
	All(ctx context.Context, scope models.Scope, req models.LeadQueryRequest) ([]*models.Lead, error)
}

// Service handles export business logic
type Service struct {
	leads LeadLister
	loc   *time.Location
	log   logger.Logger
	now   func() time.Time
}

// NewService creates a new export service. Dates are rendered in loc.
func NewService(leads LeadLister, loc *time.Location, log logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{leads: leads, loc: loc, log: log, now: time.Now}
}

// ParseFormat validates an export format. "xlsx" is accepted for excel and an
// empty format means csv.
func ParseFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatExcel, "xlsx":
		return FormatExcel, nil
	}
	return "", domain.NewFieldError("format", "invalid format: must be csv or excel")
}

// Filename returns the download name for an export made now.
func (s *Service) Filename(format string) string {
	ext := "csv"
	if format == FormatExcel {
		ext = "xlsx"
	}
	return fmt.Sprintf("leads-export-%s.%s", s.now().In(s.loc).Format("2006-01-02"), ext)
}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	if format == FormatExcel {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ExportAll writes every lead visible in scope that matches req to w and
// returns how many were written. Paging fields of req are ignored.
func (s *Service) ExportAll(ctx context.Context, scope models.Scope, req models.LeadQueryRequest, format string, w io.Writer) (int, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return 0, err
	}

	found, err := s.leads.All(ctx, scope, req)
	if err != nil {
		return 0, err
	}

	if format == FormatExcel {
		err = s.writeExcel(w, found)
	} else {
		err = s.writeCSV(w, found)
	}
	if err != nil {
		return 0, err
	}

	s.log.Info("leads exported", "format", format, "count", len(found), "user_id", scope.UserID)
	return len(found), nil
}

func (s *Service) writeCSV(w io.Writer, leads []*models.Lead) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, lead := range leads {
		if err := writer.Write(s.row(lead)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func (s *Service) writeExcel(w io.Writer, leads []*models.Lead) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(Headers), 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, lead := range leads {
		values := s.row(lead)
		cells := make([]interface{}, len(values))
		for j, v := range values {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// row renders one lead in Headers order. History arrays are summarized by count.
func (s *Service) row(lead *models.Lead) []string {
	return []string{
		lead.ID,
		lead.Name,
		lead.Phone,
		lead.Email,
		lead.InterestedLocation,
		string(lead.Status),
		string(lead.Substatus),
		statusLabel(lead),
		deref(lead.AssignedTo),
		lead.Source,
		s.formatTime(lead.FollowUpDate),
		s.formatTime(lead.SiteVisitDate),
		strconv.Itoa(len(lead.Notes)),
		strconv.Itoa(len(lead.FollowUpHistory)),
		strconv.Itoa(len(lead.VisitHistory)),
		lead.LastNote(),
		s.formatTime(&lead.CreatedAt),
		s.formatTime(&lead.UpdatedAt),
	}
}

func statusLabel(lead *models.Lead) string {
	label := leadstatus.Label(lead.Status)
	if sub := leadstatus.SubstatusLabel(lead.Substatus); sub != "" {
		label += " - " + sub
	}
	return label
}

func (s *Service) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(s.loc).Format(DateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
