/*
handlers.go - HTTP API handlers for the municipality tax engine

PURPOSE:
  Exposes the tax rule resolution engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Tax:
    GET    /api/tax/{municipality}/{date}  Resolve the applicable rate

  Rules:
    GET    /api/rules?municipality=X       List a municipality's rules
    POST   /api/rules                      Add a rule
    GET    /api/rules/{id}                 Get a single rule
    PUT    /api/rules/{id}                 Update a rule

  Import:
    POST   /api/import?source=X            Bulk import (CSV upload or JSON)

REQUEST FLOW:
  1. Parse HTTP request
  2. Parse field strings into domain values (dates, rates, weekdays)
  3. Call domain logic (resolver, store, importer)
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown rule id, or no rule applies to (municipality, date)
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/tax-engine/importer"
	"github.com/warp/tax-engine/tax"
)

// maxImportBytes caps import uploads at 8 MiB.
const maxImportBytes = 8 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    tax.Store
	Resolver *tax.Resolver
	Importer *tax.Importer
}

// NewHandler creates a new handler around the given store.
func NewHandler(store tax.Store) *Handler {
	return &Handler{
		Store:    store,
		Resolver: tax.NewResolver(store),
		Importer: tax.NewImporter(store),
	}
}

// =============================================================================
// TAX RESOLUTION
// =============================================================================

// GetTax resolves the applicable rate for a municipality on a date.
// GET /api/tax/{municipality}/{date}
func (h *Handler) GetTax(w http.ResponseWriter, r *http.Request) {
	municipality := chi.URLParam(r, "municipality")

	date, err := tax.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	res, found, err := h.Resolver.Resolve(r.Context(), municipality, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve tax", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("No tax rule applies to %s on %s", municipality, date), nil)
		return
	}

	writeJSON(w, http.StatusOK, TaxDTO{
		Municipality: res.Municipality,
		Date:         res.Date.String(),
		Tax:          res.Rate.String(),
		RuleID:       int64(res.RuleID),
	})
}

// =============================================================================
// RULE MANAGEMENT
// =============================================================================

// CreateRule adds a new tax rule.
// POST /api/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req SaveRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fields, err := toFields(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule fields", err)
		return
	}
	fields.Source = "api"

	rule, err := h.Store.Add(r.Context(), fields)
	if err != nil {
		writeDomainError(w, err, "Failed to add rule")
		return
	}

	writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}

// UpdateRule replaces the fields of an existing rule.
// PUT /api/rules/{id}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule id", err)
		return
	}

	var req SaveRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fields, err := toFields(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule fields", err)
		return
	}

	rule, err := h.Store.Update(r.Context(), tax.RuleID(id), fields)
	if err != nil {
		writeDomainError(w, err, "Failed to update rule")
		return
	}

	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

// GetRule returns a single rule by id.
// GET /api/rules/{id}
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule id", err)
		return
	}

	rule, err := h.Store.Get(r.Context(), tax.RuleID(id))
	if err != nil {
		writeDomainError(w, err, "Failed to get rule")
		return
	}

	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

// ListRules returns all rules for a municipality.
// GET /api/rules?municipality=Copenhagen
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	municipality := r.URL.Query().Get("municipality")
	if municipality == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'municipality' is required", nil)
		return
	}

	rules, err := h.Store.List(r.Context(), municipality)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BULK IMPORT
// =============================================================================

// ImportRules bulk-imports rules from a CSV upload (multipart field "file")
// or a JSON array of rule objects. Per-row failures land in the report;
// only unreadable input fails the request.
// POST /api/import?source=Local
func (h *Handler) ImportRules(w http.ResponseWriter, r *http.Request) {
	rows, err := h.readImportRows(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable import payload", err)
		return
	}

	report, err := h.Importer.Import(r.Context(), rows, r.URL.Query().Get("source"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Import aborted", err)
		return
	}

	writeJSON(w, http.StatusOK, toImportReportDTO(report))
}

func (h *Handler) readImportRows(r *http.Request) ([]tax.Row, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxImportBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing 'file' field: %w", err)
		}
		defer file.Close()
		return importer.ParseCSV(file)
	}

	var reqs []SaveRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		return nil, fmt.Errorf("expected a JSON array of rules: %w", err)
	}

	rows := make([]tax.Row, len(reqs))
	for i, req := range reqs {
		rows[i] = tax.Row{Line: i + 1}
		fields, err := toFields(req)
		if err != nil {
			rows[i].Fields.Municipality = req.Municipality
			rows[i].Err = err
			continue
		}
		rows[i].Fields = fields
	}
	return rows, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// toFields parses the string-typed request fields into domain values.
func toFields(req SaveRuleRequest) (tax.Fields, error) {
	kind, err := tax.ParseRecurrenceKind(req.Type)
	if err != nil {
		return tax.Fields{}, err
	}

	rate, err := decimal.NewFromString(req.Tax)
	if err != nil {
		return tax.Fields{}, fmt.Errorf("invalid tax value %q", req.Tax)
	}

	start, err := tax.ParseDate(req.StartDate)
	if err != nil {
		return tax.Fields{}, err
	}
	end, err := tax.ParseDate(req.EndDate)
	if err != nil {
		return tax.Fields{}, err
	}

	fields := tax.Fields{
		Municipality: req.Municipality,
		Kind:         kind,
		Rate:         rate,
		Start:        start,
		End:          end,
		DayOfMonth:   req.DayOfMonth,
		DayOfYear:    req.DayOfYear,
	}
	if req.DayOfWeek != nil {
		weekday, err := tax.ParseWeekday(*req.DayOfWeek)
		if err != nil {
			return tax.Fields{}, err
		}
		fields.DayOfWeek = &weekday
	}
	return fields, nil
}

// writeDomainError maps store errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error, message string) {
	switch {
	case tax.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Rule not found", err)
	case tax.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
