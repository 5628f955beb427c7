package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	"github.com/flowcomply/compliance-engine/internal/domain/scoring"
	dwqarsvc "github.com/flowcomply/compliance-engine/internal/service/dwqar"
)

const orgHeader = "X-Organization-ID"

// DWQARService is the report workflow consumed by the handlers.
type DWQARService interface {
	Aggregate(ctx context.Context, orgID uuid.UUID, period string) (*dwqar.DWQARReport, error)
	GetAggregates(ctx context.Context, orgID uuid.UUID, period string) ([]dwqar.RuleComplianceAggregate, error)
	Completeness(ctx context.Context, orgID uuid.UUID, period string) (*dwqar.Completeness, error)
	Validate(ctx context.Context, orgID uuid.UUID, period string) (*dwqar.ValidationResult, error)
	Submit(ctx context.Context, orgID uuid.UUID, period, confirmation string) (*dwqar.DWQARReport, error)
	Current(ctx context.Context, orgID uuid.UUID) (*dwqarsvc.CurrentStatus, error)
	History(ctx context.Context, orgID uuid.UUID) ([]*dwqar.DWQARReport, error)
}

// ScoringService is the compliance score workflow consumed by the handlers.
type ScoringService interface {
	Calculate(ctx context.Context, orgID uuid.UUID) (*scoring.ComplianceScoreSnapshot, error)
	Latest(ctx context.Context, orgID uuid.UUID) (*scoring.ComplianceScoreSnapshot, error)
	History(ctx context.Context, orgID uuid.UUID, limit int) ([]*scoring.ComplianceScoreSnapshot, error)
}

// Services holds all the services needed by the REST API
type Services struct {
	DWQAR   DWQARService
	Scoring ScoringService
}

type Handlers struct {
	services Services
	resp     *responder
}

func NewHandlers(services Services, apiVersion string) *Handlers {
	return &Handlers{services: services, resp: newResponder(apiVersion)}
}

// RegisterRoutes mounts every API route on mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/dwqar/aggregation/{period}", h.withOrg(h.aggregate))
	mux.HandleFunc("GET /api/v1/dwqar/aggregation/{period}", h.withOrg(h.getAggregates))
	mux.HandleFunc("GET /api/v1/dwqar/completeness", h.withOrg(h.completeness))
	mux.HandleFunc("POST /api/v1/dwqar/validate", h.withOrg(h.validate))
	mux.HandleFunc("POST /api/v1/dwqar/submit", h.withOrg(h.submit))
	mux.HandleFunc("GET /api/v1/dwqar/current", h.withOrg(h.current))
	mux.HandleFunc("GET /api/v1/dwqar/history", h.withOrg(h.history))

	mux.HandleFunc("POST /api/v1/analytics/compliance-score", h.withOrg(h.calculateScore))
	mux.HandleFunc("GET /api/v1/analytics/compliance-score", h.withOrg(h.latestScore))
	mux.HandleFunc("GET /api/v1/analytics/compliance-score/history", h.withOrg(h.scoreHistory))
}

type orgHandler func(w http.ResponseWriter, r *http.Request, orgID uuid.UUID)

// withOrg resolves the organization from X-Organization-ID.
func (h *Handlers) withOrg(next orgHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(orgHeader)
		if raw == "" {
			h.resp.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput, orgHeader+" header is required"))
			return
		}
		orgID, err := uuid.Parse(raw)
		if err != nil {
			h.resp.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput, orgHeader+" must be a UUID"))
			return
		}
		next(w, r, orgID)
	}
}

// PeriodRequest names a reporting period in a JSON body.
type PeriodRequest struct {
	Period string `json:"period" validate:"required,max=16"`
}

// SubmitRequest records a regulator submission.
type SubmitRequest struct {
	Period             string `json:"period" validate:"required,max=16"`
	ConfirmationNumber string `json:"confirmation_number" validate:"required,min=1,max=128,printascii"`
}

func (h *Handlers) aggregate(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	report, err := h.services.DWQAR.Aggregate(r.Context(), orgID, r.PathValue("period"))
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusOK, report)
}

func (h *Handlers) getAggregates(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	aggs, err := h.services.DWQAR.GetAggregates(r.Context(), orgID, r.PathValue("period"))
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusOK, map[string]interface{}{
		"period":     r.PathValue("period"),
		"aggregates": aggs,
		"summary":    dwqar.Summarize(aggs),
	})
}

func (h *Handlers) completeness(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	period := r.URL.Query().Get("period")
	if period == "" {
		h.resp.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput, "period query parameter is required"))
		return
	}
	c, err := h.services.DWQAR.Completeness(r.Context(), orgID, period)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusOK, c)
}

func (h *Handlers) validate(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	var req PeriodRequest
	if err := h.resp.decode(w, r, &req); err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	result, err := h.services.DWQAR.Validate(r.Context(), orgID, req.Period)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusOK, result)
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	var req SubmitRequest
	if err := h.resp.decode(w, r, &req); err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	report, err := h.services.DWQAR.Submit(r.Context(), orgID, req.Period, req.ConfirmationNumber)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusOK, report)
}

func (h *Handlers) current(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	status, err := h.services.DWQAR.Current(r.Context(), orgID)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusOK, status)
}

func (h *Handlers) history(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	reports, err := h.services.DWQAR.History(r.Context(), orgID)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusOK, reports)
}

func (h *Handlers) calculateScore(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	snap, err := h.services.Scoring.Calculate(r.Context(), orgID)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusCreated, snap)
}

func (h *Handlers) latestScore(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	snap, err := h.services.Scoring.Latest(r.Context(), orgID)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusOK, snap)
}

func (h *Handlers) scoreHistory(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			h.resp.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	snaps, err := h.services.Scoring.History(r.Context(), orgID, limit)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	h.resp.writeSuccess(w, r, http.StatusOK, snaps)
}
