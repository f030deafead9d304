// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/streetfix/streetfix/internal/adapters/blob"
	"github.com/streetfix/streetfix/internal/adapters/geocode"
	"github.com/streetfix/streetfix/internal/adapters/identity"
	"github.com/streetfix/streetfix/internal/adapters/store"
	"github.com/streetfix/streetfix/internal/domain/geofence"
	"github.com/streetfix/streetfix/internal/domain/ledger"
	"github.com/streetfix/streetfix/internal/domain/location"
	"github.com/streetfix/streetfix/internal/domain/model"
	"github.com/streetfix/streetfix/internal/domain/status"
	"github.com/streetfix/streetfix/internal/domain/view"
	"github.com/streetfix/streetfix/pkg/logger"
	"github.com/streetfix/streetfix/pkg/metrics"
)

const reportsCollection = "reports"

// Submission is the payload accepted by SubmitReport. Image URLs are
// expected to come back from a prior UploadImage call.
type Submission struct {
	Category     string   `json:"category"     validate:"required"`
	Description  string   `json:"description"  validate:"required,min=20,max=1000"`
	LocationText string   `json:"location"     validate:"required,max=200"`
	Latitude     float64  `json:"latitude"     validate:"latitude"`
	Longitude    float64  `json:"longitude"    validate:"longitude"`
	Images       []string `json:"images"       validate:"max=5,dive,uri"`
}

// Service implements the API dependencies for the report tracker.
type Service struct {
	mu sync.RWMutex

	// Core components
	reports  store.Store
	votes    *ledger.Ledger
	machine  *status.Machine
	resolver geocode.Resolver
	uploader blob.Uploader
	validate *validator.Validate

	// Pending two-phase status changes, keyed by acting user id.
	proposals   map[string]status.Proposal
	proposalsMu sync.Mutex

	// Configuration
	storePath         string
	storeInMemory     bool
	fence             geofence.Fence
	policy            location.Policy
	maxListLimit      int
	reconcileInterval time.Duration

	// State
	started bool
	stopCh  chan struct{}
	sweepWG sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStorePath sets the on-disk location of the report store.
func WithStorePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.storePath = path
		}
	}
}

// WithInMemoryStore switches to a non-persistent store backend.
func WithInMemoryStore(inMemory bool) Option {
	return func(s *Service) {
		s.storeInMemory = inMemory
	}
}

// WithFence sets the service-area boundary for submissions.
func WithFence(f geofence.Fence) Option {
	return func(s *Service) {
		if f.Validate() == nil {
			s.fence = f
		}
	}
}

// WithLocationPolicy sets the sampling policy handed to location sessions.
func WithLocationPolicy(p location.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithResolver sets the reverse-geocoding backend.
func WithResolver(r geocode.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithUploader sets the image upload backend.
func WithUploader(u blob.Uploader) Option {
	return func(s *Service) {
		if u != nil {
			s.uploader = u
		}
	}
}

// WithMaxListLimit caps the number of reports returned by listings.
func WithMaxListLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxListLimit = limit
		}
	}
}

// WithReconcileInterval sets the upvote counter repair sweep period.
// Zero disables the sweep.
func WithReconcileInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.reconcileInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storePath:         "data/streetfix",
		fence:             geofence.Default(),
		policy:            location.DefaultPolicy(),
		maxListLimit:      100,
		reconcileInterval: time.Minute,
		proposals:         make(map[string]status.Proposal),
		stopCh:            make(chan struct{}),
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		logger:            nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting report service...")

	storeOpts := []store.Option{store.WithPath(s.storePath)}
	if s.storeInMemory {
		storeOpts = append(storeOpts, store.WithInMemory())
	}
	st, err := store.NewBadgerStore(storeOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	s.reports = st

	s.votes = ledger.New(s.reports,
		ledger.WithReportsCollection(reportsCollection),
		ledger.WithLogger(s.logger),
	)
	s.machine = status.NewMachine()

	s.started = true

	if s.reconcileInterval > 0 {
		s.sweepWG.Add(1)
		go s.reconcileLoop()
	}

	s.logger.Info(ctx, "report service started",
		logger.String("storePath", s.storePath),
		logger.Bool("inMemory", s.storeInMemory),
		logger.Int("maxListLimit", s.maxListLimit),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping report service...")

	// Signal the sweep loop to stop
	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}
	s.sweepWG.Wait()

	if s.reports != nil {
		if err := s.reports.Close(); err != nil {
			s.logger.Error(context.Background(), "store close failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(context.Background(), "report service stopped")
}

// SubmitReport validates and persists a new report for the given user.
// Submissions require a verified email and coordinates inside the
// service area.
func (s *Service) SubmitReport(ctx context.Context, user identity.User, sub Submission) (model.ReportRecord, error) {
	if user.ID == "" {
		return model.ReportRecord{}, identity.ErrUnauthenticated
	}
	if !user.EmailVerified {
		return model.ReportRecord{}, ErrUnverifiedEmail
	}
	if err := s.validate.StructCtx(ctx, sub); err != nil {
		return model.ReportRecord{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	if !model.ValidCoordinate(sub.Latitude, sub.Longitude) {
		return model.ReportRecord{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, model.ErrInvalidCoordinate)
	}
	if !s.fence.Contains(sub.Latitude, sub.Longitude) {
		return model.ReportRecord{}, location.ErrOutsideServiceArea
	}

	rec := model.ReportRecord{
		ID:           uuid.New().String(),
		AuthorID:     user.ID,
		AuthorEmail:  user.Email,
		Category:     sub.Category,
		Description:  sub.Description,
		LocationText: sub.LocationText,
		Latitude:     sub.Latitude,
		Longitude:    sub.Longitude,
		Images:       sub.Images,
		Status:       model.StatusPending,
		UpvoteCount:  0,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return model.ReportRecord{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	if err := s.reports.Set(ctx, reportsCollection, rec.ID, data); err != nil {
		return model.ReportRecord{}, err
	}

	metrics.RecordReportSubmitted()
	s.logger.Info(ctx, "report submitted",
		logger.String("reportID", rec.ID),
		logger.String("category", rec.Category),
	)
	return rec, nil
}

// UploadImage stores an image and returns its serving URL.
func (s *Service) UploadImage(ctx context.Context, user identity.User, name string, r io.Reader) (string, error) {
	if user.ID == "" {
		return "", identity.ErrUnauthenticated
	}
	if s.uploader == nil {
		return "", ErrNoUploader
	}
	return s.uploader.Upload(ctx, name, r)
}

// ToggleUpvote flips the caller's upvote on a report.
func (s *Service) ToggleUpvote(ctx context.Context, user identity.User, reportID string) (ledger.ToggleResult, error) {
	if user.ID == "" {
		return ledger.ToggleResult{}, identity.ErrUnauthenticated
	}
	return s.votes.Toggle(ctx, reportID, user.ID)
}

// HasUpvoted reports whether the caller holds an upvote on a report.
func (s *Service) HasUpvoted(ctx context.Context, user identity.User, reportID string) (bool, error) {
	if user.ID == "" {
		return false, identity.ErrUnauthenticated
	}
	return s.votes.HasUpvoted(ctx, reportID, user.ID)
}

// ProposeStatusChange validates a status change up front and parks it
// pending confirmation. A second proposal from the same actor replaces
// the first.
func (s *Service) ProposeStatusChange(ctx context.Context, actor identity.User, reportID string, requested model.Status) (status.Proposal, error) {
	rec, err := s.Report(ctx, reportID)
	if err != nil {
		return status.Proposal{}, err
	}

	// Fail fast: run the transition check now so an invalid request
	// never reaches the confirmation dialog.
	if _, err := s.machine.Apply(rec, requested, status.ParseRole(actor.Role)); err != nil {
		return status.Proposal{}, err
	}

	p := status.Proposal{ReportID: reportID, Requested: requested}
	s.proposalsMu.Lock()
	s.proposals[actor.ID] = p
	s.proposalsMu.Unlock()
	return p, nil
}

// ConfirmStatusChange applies the actor's pending proposal. Transitions
// to resolved remove the report and purge its vote entries.
func (s *Service) ConfirmStatusChange(ctx context.Context, actor identity.User) error {
	s.proposalsMu.Lock()
	p, ok := s.proposals[actor.ID]
	if ok {
		delete(s.proposals, actor.ID)
	}
	s.proposalsMu.Unlock()
	if !ok {
		return ErrNoProposal
	}

	rec, err := s.Report(ctx, p.ReportID)
	if err != nil {
		return err
	}

	// Re-check against current state: the report may have moved since
	// the proposal was parked.
	commit, err := s.machine.Apply(rec, p.Requested, status.ParseRole(actor.Role))
	if err != nil {
		return err
	}

	if commit.Delete {
		if err := s.reports.Delete(ctx, reportsCollection, p.ReportID); err != nil {
			return err
		}
		if err := s.votes.PurgeReport(ctx, p.ReportID); err != nil {
			s.logger.Warn(ctx, "vote purge failed",
				logger.String("reportID", p.ReportID),
				logger.Error(err),
			)
		}
		metrics.RecordReportResolved()
		s.logger.Info(ctx, "report resolved and removed",
			logger.String("reportID", p.ReportID),
		)
		return nil
	}

	if err := s.reports.Update(ctx, reportsCollection, p.ReportID, map[string]any{
		"status": string(commit.NewStatus),
	}); err != nil {
		return err
	}
	metrics.RecordStatusTransition(string(commit.NewStatus))
	s.logger.Info(ctx, "report status updated",
		logger.String("reportID", p.ReportID),
		logger.String("status", string(commit.NewStatus)),
	)
	return nil
}

// CancelStatusChange drops the actor's pending proposal, if any.
func (s *Service) CancelStatusChange(_ context.Context, actor identity.User) {
	s.proposalsMu.Lock()
	delete(s.proposals, actor.ID)
	s.proposalsMu.Unlock()
}

// Reports returns the current report set in the requested vote order.
func (s *Service) Reports(ctx context.Context, order model.SortOrder) ([]model.ReportRecord, error) {
	docs, err := s.reports.List(ctx, reportsCollection)
	if err != nil {
		return nil, err
	}

	records := make([]model.ReportRecord, 0, len(docs))
	for _, d := range docs {
		var rec model.ReportRecord
		if err := json.Unmarshal(d.Data, &rec); err != nil {
			s.logger.Warn(ctx, "skipping undecodable report",
				logger.String("id", d.ID),
				logger.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}

	view.SortRecords(records, order)
	if len(records) > s.maxListLimit {
		records = records[:s.maxListLimit]
	}
	return records, nil
}

// Report fetches a single report by id.
func (s *Service) Report(ctx context.Context, id string) (model.ReportRecord, error) {
	doc, err := s.reports.Get(ctx, reportsCollection, id)
	if err != nil {
		return model.ReportRecord{}, err
	}
	var rec model.ReportRecord
	if err := json.Unmarshal(doc.Data, &rec); err != nil {
		return model.ReportRecord{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return rec, nil
}

// SubscribeReports creates a live feed of sorted report snapshots.
// Each subscriber gets its own engine; callers must Unsubscribe.
func (s *Service) SubscribeReports(ctx context.Context, order model.SortOrder) (*view.Engine, <-chan []model.ReportRecord, error) {
	eng := view.New(s.reports,
		view.WithCollection(reportsCollection),
		view.WithSortOrder(order),
		view.WithLogger(s.logger),
	)
	ch, err := eng.Subscribe(ctx)
	if err != nil {
		return nil, nil, err
	}
	return eng, ch, nil
}

// NewLocationSession builds an acquisition controller around the given
// position source, wired to the configured fence and geocoder.
func (s *Service) NewLocationSession(src location.Source, onAddress location.AddressFunc) *location.Controller {
	policy := s.policy
	policy.Fence = s.fence
	opts := []location.Option{
		location.WithPolicy(policy),
		location.WithLogger(s.logger),
	}
	if s.resolver != nil {
		opts = append(opts, location.WithResolver(s.resolver))
	}
	if onAddress != nil {
		opts = append(opts, location.WithAddressFunc(onAddress))
	}
	return location.New(src, opts...)
}

// Stats is the operational snapshot served at /stats.
type Stats struct {
	Started          bool `json:"started"`
	InMemory         bool `json:"inMemory"`
	MaxListLimit     int  `json:"maxListLimit"`
	TotalReports     int  `json:"totalReports"`
	PendingProposals int  `json:"pendingProposals"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:      s.started,
		InMemory:     s.storeInMemory,
		MaxListLimit: s.maxListLimit,
	}
	if !s.started {
		return stats
	}

	if docs, err := s.reports.List(context.Background(), reportsCollection); err == nil {
		stats.TotalReports = len(docs)
		metrics.UpdateReportsTracked(len(docs))
	}
	s.proposalsMu.Lock()
	stats.PendingProposals = len(s.proposals)
	s.proposalsMu.Unlock()
	return stats
}

// reconcileLoop periodically repairs upvote counters against ledger
// cardinality until Stop is called.
func (s *Service) reconcileLoop() {
	defer s.sweepWG.Done()

	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.reconcileOnce(context.Background())
		}
	}
}

func (s *Service) reconcileOnce(ctx context.Context) {
	docs, err := s.reports.List(ctx, reportsCollection)
	if err != nil {
		s.logger.Warn(ctx, "reconcile sweep list failed", logger.Error(err))
		return
	}
	for _, d := range docs {
		if _, err := s.votes.Reconcile(ctx, d.ID); err != nil {
			s.logger.Warn(ctx, "reconcile failed",
				logger.String("reportID", d.ID),
				logger.Error(err),
			)
		}
	}
}
