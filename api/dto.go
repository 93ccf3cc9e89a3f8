/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  DTOs are pure data carriers. Field parsing happens in handlers; rule
  invariants are enforced by the store.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/tax-engine/tax"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// TaxDTO is the resolution result for GET /api/tax/{municipality}/{date}.
type TaxDTO struct {
	Municipality string `json:"municipality"`
	Date         string `json:"date"`
	Tax          string `json:"tax"`
	RuleID       int64  `json:"rule_id"`
}

// RuleDTO represents a stored tax rule in API responses.
type RuleDTO struct {
	ID           int64   `json:"id"`
	Municipality string  `json:"municipality"`
	Type         string  `json:"type"`
	Tax          string  `json:"tax"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	DayOfMonth   *int    `json:"day_of_month,omitempty"`
	DayOfWeek    *string `json:"day_of_week,omitempty"`
	DayOfYear    *int    `json:"day_of_year,omitempty"`
	Source       string  `json:"source,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// SaveRuleRequest is the request body for creating or updating a rule.
// It doubles as one row in a JSON import batch.
type SaveRuleRequest struct {
	Municipality string  `json:"municipality"`
	Type         string  `json:"type"`
	Tax          string  `json:"tax"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	DayOfMonth   *int    `json:"day_of_month,omitempty"`
	DayOfWeek    *string `json:"day_of_week,omitempty"`
	DayOfYear    *int    `json:"day_of_year,omitempty"`
}

// ImportReportDTO summarizes one import batch.
type ImportReportDTO struct {
	BatchID   string          `json:"batch_id"`
	Source    string          `json:"source"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Failures  []RowFailureDTO `json:"failures"`
}

// RowFailureDTO describes one rejected import row.
type RowFailureDTO struct {
	Line         int    `json:"line"`
	Municipality string `json:"municipality,omitempty"`
	Reason       string `json:"reason"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN <-> DTO MAPPING
// =============================================================================

func toRuleDTO(r tax.Rule) RuleDTO {
	dto := RuleDTO{
		ID:           int64(r.ID),
		Municipality: r.Municipality,
		Type:         string(r.Kind),
		Tax:          r.Rate.String(),
		StartDate:    r.Start.String(),
		EndDate:      r.End.String(),
		DayOfMonth:   r.DayOfMonth,
		DayOfYear:    r.DayOfYear,
		Source:       r.Source,
	}
	if r.DayOfWeek != nil {
		name := r.DayOfWeek.String()
		dto.DayOfWeek = &name
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toImportReportDTO(report tax.Report) ImportReportDTO {
	dto := ImportReportDTO{
		BatchID:   report.BatchID.String(),
		Source:    report.Source,
		Total:     report.Total,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Failures:  []RowFailureDTO{},
	}
	for _, f := range report.Failures {
		dto.Failures = append(dto.Failures, RowFailureDTO{
			Line:         f.Line,
			Municipality: f.Municipality,
			Reason:       f.Reason,
		})
	}
	return dto
}
