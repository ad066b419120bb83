/*
handlers.go - HTTP API handlers for the contribution engine

PURPOSE:
  Exposes contributor commands and the read model via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the
  contributor service.

ENDPOINTS:
  Contributors:
    POST   /api/contributors                         Register a contributor
    GET    /api/contributors                         List contributors (read model)
    GET    /api/contributors/{id}                    Live contribution summary
    POST   /api/contributors/{id}/incomes            Declare income (dry_run supported)
    GET    /api/contributors/{id}/contributions      Monthly rows (read model), ?year=

  Calculators:
    GET    /api/calculators                          Configured fiscal years
    GET    /api/calculators/{year}/preview           ?income=&monthly= one-off computation

  Scenarios (scenarios.go):
    GET    /api/scenarios                            List demo scenarios
    POST   /api/scenarios/load                       Run a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: command processing (single writer per contributor)
  - ReadModel: projected tables, eventually consistent
  - Calculators: year tables for rounding and previews

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the service or the read model
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON {code, message} with:
  - 400: Refused command, invalid input
  - 404: Unknown contributor, nothing computed
  - 409: Already registered
  - 500: Log or database failure

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/income"
	"github.com/warp/contribution-engine/logger"
	"github.com/warp/contribution-engine/readside"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Commands is what the handlers need from the contributor service.
type Commands interface {
	Register(ctx context.Context, cmd contributor.Register) (contributor.Summary, error)
	ApplyIncome(ctx context.Context, cmd contributor.ApplyIncome) (contributor.Summary, error)
	Summary(ctx context.Context, contributorID string) (contributor.Summary, error)
}

// ReadModel is what the handlers need from the projected tables.
type ReadModel interface {
	Contributors(ctx context.Context) ([]readside.ContributorRow, error)
	Contributions(ctx context.Context, contributorID string, year int) ([]readside.ContributionRow, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service     Commands
	ReadModel   ReadModel
	Calculators *calculator.Registry
	logger      *logger.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc Commands, rm ReadModel, calculators *calculator.Registry, lg *logger.Logger) *Handler {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Handler{
		Service:     svc,
		ReadModel:   rm,
		Calculators: calculators,
		logger:      lg.Named("api"),
	}
}

// =============================================================================
// CONTRIBUTOR COMMANDS
// =============================================================================

// Register handles POST /api/contributors.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid JSON body")
		return
	}

	date, err := income.ParseDate(req.RegistrationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "registration_date must be YYYY-MM-DD")
		return
	}
	category, err := income.ParseCategory(req.IncomeType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", err.Error())
		return
	}

	summary, err := h.Service.Register(r.Context(), contributor.Register{
		ContributorID:     req.ContributorID,
		RegistrationDate:  date,
		PriorYearlyIncome: req.PreviousYearlyIncome,
		Category:          category,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSummaryDTO(summary, h.Calculators.For(summary.Year), false))
}

// ApplyIncome handles POST /api/contributors/{id}/incomes.
func (h *Handler) ApplyIncome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ApplyIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid JSON body")
		return
	}

	start, err := income.ParseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "start must be YYYY-MM-DD")
		return
	}
	end, err := income.ParseDate(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "end must be YYYY-MM-DD")
		return
	}
	category, err := income.ParseCategory(req.IncomeType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", err.Error())
		return
	}

	summary, err := h.Service.ApplyIncome(r.Context(), contributor.ApplyIncome{
		ContributorID: id,
		Income:        income.New(req.Income, category, start, end),
		ScaleToEnd:    req.ScaleToEnd,
		DryRun:        req.DryRun,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryDTO(summary, h.Calculators.For(summary.Year), req.DryRun))
}

// GetSummary handles GET /api/contributors/{id}.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary, h.Calculators.For(summary.Year), false))
}

// =============================================================================
// READ MODEL
// =============================================================================

// ListContributors handles GET /api/contributors.
func (h *Handler) ListContributors(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ReadModel.Contributors(r.Context())
	if err != nil {
		h.logger.Error("list contributors", "error", err)
		writeError(w, http.StatusInternalServerError, "E_INTERNAL", "failed to list contributors")
		return
	}

	dtos := make([]ContributorDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toContributorDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListContributions handles GET /api/contributors/{id}/contributions?year=.
func (h *Handler) ListContributions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "year query parameter is required")
		return
	}

	rows, err := h.ReadModel.Contributions(r.Context(), id, year)
	if err != nil {
		h.logger.Error("list contributions", "contributor_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "E_INTERNAL", "failed to list contributions")
		return
	}

	dtos := make([]ContributionMonthDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toContributionMonthDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CALCULATORS
// =============================================================================

// ListCalculators handles GET /api/calculators.
func (h *Handler) ListCalculators(w http.ResponseWriter, r *http.Request) {
	years := h.Calculators.Years()
	dtos := make([]CalculatorDTO, len(years))
	for i, y := range years {
		c, _ := h.Calculators.Lookup(y)
		dtos[i] = toCalculatorDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Preview handles GET /api/calculators/{year}/preview?income=&monthly=.
// Years without a table of their own use the most recent one.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "year must be a number")
		return
	}
	amount, err := decimal.NewFromString(r.URL.Query().Get("income"))
	if err != nil || amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "income must be a non-negative number")
		return
	}
	monthly, _ := strconv.ParseBool(r.URL.Query().Get("monthly"))

	calc := h.Calculators.For(year)
	var cs calculator.Contributions
	if monthly {
		cs = calc.ComputeFromMonthlyIncome(amount)
	} else {
		cs = calc.ComputeFromYearlyIncome(amount)
	}

	dto := PreviewDTO{Year: calc.Year(), Income: amount, Monthly: monthly}
	totals := make(map[string]decimal.Decimal, len(cs))
	for _, code := range calc.Codes() {
		c := cs[code]
		dto.Contributions = append(dto.Contributions, toContributionDTO(c))
		totals[code] = c.Amount
	}
	dto.Totals = toTotalDTOs(totals, calc)
	writeJSON(w, http.StatusOK, dto)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeCommandError(w http.ResponseWriter, err error) {
	var ce *contributor.CommandError
	if !errors.As(err, &ce) {
		h.logger.Error("command failed", "error", err)
		writeError(w, http.StatusInternalServerError, "E_INTERNAL", "command could not be processed")
		return
	}

	status := http.StatusBadRequest
	switch {
	case contributor.IsConflict(err):
		status = http.StatusConflict
	case contributor.IsNotFound(err):
		status = http.StatusNotFound
	}
	writeError(w, status, ce.Code, ce.Message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
