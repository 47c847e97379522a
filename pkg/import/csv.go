package importpkg

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jordanlanch/leadcrm/pkg/domain"
	"github.com/jordanlanch/leadcrm/pkg/leads"
	"github.com/jordanlanch/leadcrm/pkg/logger"
	"github.com/jordanlanch/leadcrm/pkg/models"
)

// Row failure reasons
const (
	ReasonDuplicate    = "duplicate"
	ReasonValidation   = "validation"
	ReasonMalformed    = "malformed"
	ReasonNotProcessed = "not_processed"
	ReasonFailed       = "failed"
)

// Import modes
const (
	ModeSkip  = "skip"
	ModeMerge = "merge"
)

// Columns is the header the parser consumes and the template emits.
var Columns = []string{"name", "phonenumber", "location", "email"}

// header aliases accepted on input, keyed by lowercased header text
var headerAliases = map[string]string{
	"name":               "name",
	"phonenumber":        "phonenumber",
	"phone":              "phonenumber",
	"phone_number":       "phonenumber",
	"location":           "location",
	"interestedlocation": "location",
	"email":              "email",
}

var requiredColumns = []string{"name", "phonenumber", "location"}

// lead request fields reported under their CSV column names
var fieldColumns = map[string]string{
	"name":               "name",
	"phone":              "phonenumber",
	"interestedLocation": "location",
	"email":              "email",
}

// LeadCreator stores validated leads.
type LeadCreator interface {
	Create(ctx context.Context, in leads.CreateInput) (*models.Lead, bool, error)
}

// CSVImportService handles bulk import of leads from CSV
type CSVImportService struct {
	leads LeadCreator
	log   logger.Logger
}

// NewCSVImportService creates a new CSV import service
func NewCSVImportService(creator LeadCreator, log logger.Logger) *CSVImportService {
	if log == nil {
		log = logger.Nop()
	}
	return &CSVImportService{leads: creator, log: log}
}

// ImportResult holds the result of a CSV import operation
type ImportResult struct {
	TotalRows         int           `json:"totalRows"`
	CreatedCount      int           `json:"createdCount"`
	SkippedCount      int           `json:"skippedCount"`
	NotProcessedCount int           `json:"notProcessedCount"`
	MergedCount       int           `json:"mergedCount"`
	Errors            []ImportError `json:"errors"`
	Duration          string        `json:"duration"`
}

// ImportError represents a row that did not create a lead
type ImportError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// CSVConfig holds configuration for CSV import
type CSVConfig struct {
	MaxRows    int    // rows beyond this are reported not processed (0 = unlimited)
	BatchSize  int    // rows per progress chunk
	Mode       string // ModeSkip or ModeMerge
	AssignedTo *string
	Actor      string
}

// DefaultCSVConfig returns default configuration
func DefaultCSVConfig() CSVConfig {
	return CSVConfig{
		MaxRows:   10000,
		BatchSize: 100,
		Mode:      ModeSkip,
	}
}

// Template returns the CSV header accepted by ImportFromCSV.
func Template() string {
	return strings.Join(Columns, ",") + "\n"
}

// WriteTemplate writes the CSV template to w.
func WriteTemplate(w io.Writer) error {
	_, err := io.WriteString(w, Template())
	return err
}

// ImportFromCSV imports leads from r. Bad rows are reported in the result and
// never abort the import. The returned error is reserved for an unreadable
// header.
func (s *CSVImportService) ImportFromCSV(ctx context.Context, r io.Reader, config CSVConfig) (*ImportResult, error) {
	startTime := time.Now()
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultCSVConfig().BatchSize
	}
	if config.Mode == "" {
		config.Mode = ModeSkip
	}
	if config.Mode != ModeSkip && config.Mode != ModeMerge {
		return nil, domain.NewFieldError("mode", fmt.Sprintf("mode must be %s or %s", ModeSkip, ModeMerge))
	}

	result := &ImportResult{Errors: []ImportError{}}

	csvReader := csv.NewReader(r)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, domain.NewFieldError("file", "CSV file is empty")
	}
	if err != nil {
		return nil, domain.NewFieldError("file", fmt.Sprintf("failed to read CSV header: %v", err))
	}
	headerMap, err := mapHeaders(headers)
	if err != nil {
		return nil, err
	}

	var stopReason string
	rowNum := 0
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		result.TotalRows++

		if stopReason == "" {
			switch {
			case config.MaxRows > 0 && rowNum > config.MaxRows:
				stopReason = fmt.Sprintf("row limit of %d reached", config.MaxRows)
			case ctx.Err() != nil:
				stopReason = fmt.Sprintf("import interrupted: %v", ctx.Err())
			}
			if stopReason != "" {
				result.Errors = append(result.Errors, ImportError{
					Row:     rowNum,
					Reason:  ReasonNotProcessed,
					Message: stopReason + "; this and later rows were not processed",
				})
				s.log.Warn("import stopped", "row", rowNum, "reason", stopReason)
			}
		}
		if stopReason != "" {
			result.NotProcessedCount++
			continue
		}

		if err != nil {
			result.SkippedCount++
			result.Errors = append(result.Errors, ImportError{
				Row:     rowNum,
				Reason:  ReasonMalformed,
				Message: fmt.Sprintf("CSV read error: %v", csvMessage(err)),
			})
			continue
		}

		s.importRow(ctx, rowNum, parseRow(row, headerMap), config, result)

		if rowNum%config.BatchSize == 0 {
			s.log.Debug("import progress", "rows", rowNum, "created", result.CreatedCount, "skipped", result.SkippedCount)
		}
	}

	result.Duration = time.Since(startTime).String()

	s.log.Info("CSV import completed",
		"total_rows", result.TotalRows,
		"created", result.CreatedCount,
		"skipped", result.SkippedCount,
		"merged", result.MergedCount,
		"not_processed", result.NotProcessedCount,
		"duration", result.Duration,
	)

	return result, nil
}

func (s *CSVImportService) importRow(ctx context.Context, rowNum int, req models.CreateLeadRequest, config CSVConfig, result *ImportResult) {
	req.AssignedTo = config.AssignedTo

	lead, created, err := s.leads.Create(ctx, leads.CreateInput{
		Request: req,
		Source:  models.SourceImport,
		Actor:   config.Actor,
		Merge:   config.Mode == ModeMerge,
	})
	switch {
	case err == nil && created:
		result.CreatedCount++
	case err == nil:
		result.SkippedCount++
		result.MergedCount++
		s.log.Debug("import row merged", "row", rowNum, "lead_id", lead.ID)
	case domain.IsDuplicate(err):
		result.SkippedCount++
		result.Errors = append(result.Errors, ImportError{
			Row:     rowNum,
			Field:   "phonenumber",
			Value:   req.Phone,
			Reason:  ReasonDuplicate,
			Message: "a lead with this phone number already exists",
		})
	case domain.IsValidation(err):
		field := domain.GetField(err)
		column := fieldColumns[field]
		if column == "" {
			column = field
		}
		result.SkippedCount++
		result.Errors = append(result.Errors, ImportError{
			Row:     rowNum,
			Field:   column,
			Value:   rowValue(req, column),
			Reason:  ReasonValidation,
			Message: validationMessage(err),
		})
	default:
		result.SkippedCount++
		result.Errors = append(result.Errors, ImportError{
			Row:     rowNum,
			Reason:  ReasonFailed,
			Message: "failed to create lead",
		})
		s.log.Error("import row failed", "row", rowNum, "error", err)
	}
}

func mapHeaders(headers []string) (map[string]int, error) {
	headerMap := make(map[string]int)
	for i, header := range headers {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "")
		if col, ok := headerAliases[key]; ok {
			if _, seen := headerMap[col]; !seen {
				headerMap[col] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := headerMap[col]; !ok {
			return nil, domain.NewFieldError("file", fmt.Sprintf("missing required column: %s", col))
		}
	}
	return headerMap, nil
}

// parseRow maps a CSV row onto a create request. Missing cells are empty.
func parseRow(row []string, headerMap map[string]int) models.CreateLeadRequest {
	getField := func(col string) string {
		if idx, ok := headerMap[col]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}
	return models.CreateLeadRequest{
		Name:               getField("name"),
		Phone:              getField("phonenumber"),
		InterestedLocation: getField("location"),
		Email:              getField("email"),
	}
}

func rowValue(req models.CreateLeadRequest, column string) string {
	switch column {
	case "name":
		return req.Name
	case "phonenumber":
		return req.Phone
	case "location":
		return req.InterestedLocation
	case "email":
		return req.Email
	}
	return ""
}

func validationMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func csvMessage(err error) string {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}
