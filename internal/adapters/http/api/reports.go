// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/streetfix/streetfix/internal/adapters/identity"
	service "github.com/streetfix/streetfix/internal/app"
	"github.com/streetfix/streetfix/internal/domain/model"
	"github.com/streetfix/streetfix/pkg/metrics"
)

// ReportsHandler handles report listing, submission, and per-report actions.
type ReportsHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps Dependencies, maxLimit int) *ReportsHandler {
	return &ReportsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleReports handles GET /reports?sort=votes-high|votes-low and
// POST /reports.
func (h *ReportsHandler) HandleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleSubmit(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ReportsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_reports"
	order, err := model.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	records, err := h.deps.Reports(r.Context(), order)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if len(records) > h.maxLimit {
		records = records[:h.maxLimit]
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ReportsHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_report"
	user, err := identity.FromRequest(r)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	var sub service.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rec, err := h.deps.SubmitReport(r.Context(), user, sub)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Report: rec})
}

// HandleReportSubtree routes /reports/{id} and /reports/{id}/<action>.
func (h *ReportsHandler) HandleReportSubtree(w http.ResponseWriter, r *http.Request) {
	const op = "api.report"
	rest := strings.TrimPrefix(r.URL.Path, "/reports/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		h.handleGet(w, r, id)
	case "upvote":
		h.handleUpvote(w, r, id)
	case "status":
		h.handlePropose(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *ReportsHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.get_report"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rec, err := h.deps.Report(r.Context(), id)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpvote toggles the caller's vote on POST and reads the caller's
// vote state on GET.
func (h *ReportsHandler) handleUpvote(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.upvote"
	user, err := identity.FromRequest(r)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}

	switch r.Method {
	case http.MethodPost:
		res, err := h.deps.ToggleUpvote(r.Context(), user, id)
		if err != nil {
			metrics.RecordUpvoteToggleError()
			writeDomainError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, upvoteResponse{
			ReportID: id,
			Upvoted:  res.NowUpvoted,
			Count:    res.Count,
		})
	case http.MethodGet:
		upvoted, err := h.deps.HasUpvoted(r.Context(), user, id)
		if err != nil {
			writeDomainError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"upvoted": upvoted})
	default:
		http.NotFound(w, r)
	}
}

// statusRequest carries a proposed lifecycle change.
type statusRequest struct {
	Status string `json:"status"`
}

func (h *ReportsHandler) handlePropose(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.propose_status"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	user, err := identity.FromRequest(r)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	requested, err := model.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	p, err := h.deps.ProposeStatusChange(r.Context(), user, id, requested)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, proposalResponse{
		ReportID:  p.ReportID,
		Requested: string(p.Requested),
		Pending:   true,
	})
}
