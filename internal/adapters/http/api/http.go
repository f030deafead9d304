// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/streetfix/streetfix/internal/adapters/identity"
	"github.com/streetfix/streetfix/internal/adapters/store"
	service "github.com/streetfix/streetfix/internal/app"
	"github.com/streetfix/streetfix/internal/domain/ledger"
	"github.com/streetfix/streetfix/internal/domain/location"
	"github.com/streetfix/streetfix/internal/domain/model"
	"github.com/streetfix/streetfix/internal/domain/status"
	"github.com/streetfix/streetfix/internal/domain/view"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmitReport(ctx context.Context, user identity.User, sub service.Submission) (model.ReportRecord, error)
	UploadImage(ctx context.Context, user identity.User, name string, r io.Reader) (string, error)
	ToggleUpvote(ctx context.Context, user identity.User, reportID string) (ledger.ToggleResult, error)
	HasUpvoted(ctx context.Context, user identity.User, reportID string) (bool, error)
	ProposeStatusChange(ctx context.Context, actor identity.User, reportID string, requested model.Status) (status.Proposal, error)
	ConfirmStatusChange(ctx context.Context, actor identity.User) error
	CancelStatusChange(ctx context.Context, actor identity.User)
	Reports(ctx context.Context, order model.SortOrder) ([]model.ReportRecord, error)
	Report(ctx context.Context, id string) (model.ReportRecord, error)
	SubscribeReports(ctx context.Context, order model.SortOrder) (*view.Engine, <-chan []model.ReportRecord, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	reportsHandler *ReportsHandler
	statusHandler  *StatusHandler
	uploadsHandler *UploadsHandler
	feedHandler    *FeedHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int, uploadsDir string) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		reportsHandler: NewReportsHandler(deps, maxLimit),
		statusHandler:  NewStatusHandler(deps),
		uploadsHandler: NewUploadsHandler(deps, uploadsDir),
		feedHandler:    NewFeedHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/reports/status/confirm", MetricsMiddleware(s.statusHandler.HandleConfirm, "status_confirm"))
	mux.HandleFunc("/reports/status/cancel", MetricsMiddleware(s.statusHandler.HandleCancel, "status_cancel"))
	mux.HandleFunc("/reports/", MetricsMiddleware(s.reportsHandler.HandleReportSubtree, "report"))
	mux.HandleFunc("/reports", MetricsMiddleware(s.reportsHandler.HandleReports, "reports"))
	mux.HandleFunc("/uploads", MetricsMiddleware(s.uploadsHandler.HandleUpload, "uploads"))
	mux.Handle("/uploads/", s.uploadsHandler.ServeFiles())
	mux.HandleFunc("/ws/reports", s.feedHandler.HandleFeed)
}

// submitResponse acknowledges a stored report.
type submitResponse struct {
	Report model.ReportRecord `json:"report"`
}

// upvoteResponse mirrors the post-toggle vote state.
type upvoteResponse struct {
	ReportID string `json:"report_id"`
	Upvoted  bool   `json:"upvoted"`
	Count    int64  `json:"count"`
}

// proposalResponse acknowledges a parked status change.
type proposalResponse struct {
	ReportID  string `json:"report_id"`
	Requested string `json:"requested_status"`
	Pending   bool   `json:"pending"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates known sentinel kinds into HTTP responses.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", Wrap(op, err))
	case errors.Is(err, service.ErrUnverifiedEmail), errors.Is(err, status.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden", Wrap(op, err))
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrNoProposal):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, location.ErrOutsideServiceArea):
		writeError(w, http.StatusUnprocessableEntity, "outside_service_area", Wrap(op, err))
	case errors.Is(err, status.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", Wrap(op, err))
	case errors.Is(err, service.ErrInvalidSubmission),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, model.ErrInvalidCoordinate):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
