package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/jordanlanch/funnelsync/pkg/customvalues"
	"github.com/jordanlanch/funnelsync/pkg/fieldstore"
	"github.com/jordanlanch/funnelsync/pkg/ledger"
	"github.com/jordanlanch/funnelsync/pkg/logger"
	"github.com/jordanlanch/funnelsync/pkg/mapping"
	"github.com/jordanlanch/funnelsync/pkg/vault"
)

// DefaultLeaseTTL bounds how long a crashed push can block its funnel
const DefaultLeaseTTL = 15 * time.Minute

var (
	// ErrPushInProgress is returned when the funnel already has a push running
	ErrPushInProgress = errors.New("a push is already in progress for this funnel")
	// ErrNoConnection is returned when the funnel has no enabled CRM connection
	ErrNoConnection = fieldstore.ErrNoConnection
)

// FieldSource is the read side of the field store
type FieldSource interface {
	Sections(ctx context.Context, funnelID string) ([]vault.Section, []vault.Issue, error)
	Fields(ctx context.Context, funnelID string) ([]vault.Field, []vault.Issue, error)
	Connection(ctx context.Context, funnelID string) (*fieldstore.Connection, error)
}

// Ledger stores and reads push operations
type Ledger interface {
	OperationStore
	Get(ctx context.Context, id string) (*ledger.Operation, error)
	ListByFunnel(ctx context.Context, funnelID string, limit int) ([]*ledger.Operation, error)
	LatestFinished(ctx context.Context, funnelID string) (*ledger.Operation, error)
}

// Notifier is told about pushes that did not fully succeed
type Notifier interface {
	NotifyPush(ctx context.Context, op *ledger.Operation) error
}

// Recorder receives push metrics
type Recorder interface {
	PushStarted()
	PushEnded()
	RecordPush(op *ledger.Operation)
	RecordLeaseRejected()
}

// PushOptions controls a single push
type PushOptions struct {
	Force        bool
	ApprovedOnly bool
	OnProgress   func(Progress)
}

// PushResult is a finished operation plus the content warnings seen while
// building the desired state
type PushResult struct {
	Operation *ledger.Operation `json:"operation"`
	Summary   ledger.Summary    `json:"summary"`
	Warnings  []mapping.Warning `json:"warnings"`
}

// Preview is the desired state that a push would converge on
type Preview struct {
	FunnelID    string            `json:"funnel_id"`
	ContentHash string            `json:"content_hash"`
	Values      map[string]string `json:"values"`
	Warnings    []mapping.Warning `json:"warnings"`
	Inferred    []string          `json:"inferred"`
	Defaulted   []string          `json:"defaulted"`
}

// ServiceOptions configures a Service
type ServiceOptions struct {
	Logger   logger.Logger
	Locker   Locker
	LeaseTTL time.Duration
	Notifier Notifier
	Recorder Recorder
}

// Service orchestrates pushes: lease, load, map, reconcile, report
type Service struct {
	fields   FieldSource
	ops      Ledger
	engine   *Engine
	locker   Locker
	leaseTTL time.Duration
	notifier Notifier
	recorder Recorder
	logger   logger.Logger
}

// NewService creates a new push service
func NewService(fields FieldSource, ops Ledger, engine *Engine, opts ServiceOptions) *Service {
	s := &Service{
		fields:   fields,
		ops:      ops,
		engine:   engine,
		locker:   opts.Locker,
		leaseTTL: opts.LeaseTTL,
		notifier: opts.Notifier,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
	if s.locker == nil {
		s.locker = NewMemoryLocker()
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = DefaultLeaseTTL
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s
}

// Push converges the CRM on the funnel's current content. The returned result
// carries the operation even when err is non-nil, unless the push never started.
func (s *Service) Push(ctx context.Context, funnelID string, opts PushOptions) (*PushResult, error) {
	token, ok, err := s.locker.TryLock(ctx, funnelID, s.leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire push lease: %w", err)
	}
	if !ok {
		if s.recorder != nil {
			s.recorder.RecordLeaseRejected()
		}
		return nil, ErrPushInProgress
	}
	if s.recorder != nil {
		s.recorder.PushStarted()
		defer s.recorder.PushEnded()
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), funnelID, token); err != nil {
			s.logger.Warn("failed to release push lease", "funnel_id", funnelID, "error", err)
		}
	}()

	op, err := s.engine.Start(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	result := &PushResult{Operation: op, Warnings: []mapping.Warning{}}

	defer func() {
		result.Summary = op.Summary()
		s.finish(ctx, op)
	}()

	in, warnings, err := s.prepare(ctx, funnelID, opts)
	if err != nil {
		err = s.engine.Fail(ctx, op, err)
		s.capture(ctx, op, err)
		return result, err
	}
	result.Warnings = warnings

	if err := s.engine.Run(ctx, op, in); err != nil {
		s.capture(ctx, op, err)
		return result, err
	}
	return result, nil
}

func (s *Service) prepare(ctx context.Context, funnelID string, opts PushOptions) (RunInput, []mapping.Warning, error) {
	conn, err := s.fields.Connection(ctx, funnelID)
	if err != nil {
		return RunInput{}, nil, fmt.Errorf("failed to load CRM connection: %w", err)
	}

	content, warnings, err := s.loadContent(ctx, funnelID, opts.ApprovedOnly)
	if err != nil {
		return RunInput{}, nil, err
	}
	agg := customvalues.Build(content)
	warnings = append(warnings, agg.Warnings...)

	// only a completed latest run can vouch for the remote state
	previous, err := s.ops.LatestFinished(ctx, funnelID)
	if err != nil {
		return RunInput{}, nil, fmt.Errorf("failed to load previous push: %w", err)
	}

	return RunInput{
		Target:     Target{LocationID: conn.LocationID, Token: conn.AccessToken},
		Desired:    agg.Values,
		Previous:   previous,
		Force:      opts.Force,
		OnProgress: opts.OnProgress,
	}, warnings, nil
}

// loadContent reads sections and fields and merges them per section.
// Unreadable sections and unparseable or misshapen fields are reported as
// warnings, never errors.
func (s *Service) loadContent(ctx context.Context, funnelID string, approvedOnly bool) (map[string]map[string]any, []mapping.Warning, error) {
	sections, sectionIssues, err := s.fields.Sections(ctx, funnelID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load sections: %w", err)
	}
	fields, fieldIssues, err := s.fields.Fields(ctx, funnelID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fields: %w", err)
	}
	issues := append(sectionIssues, fieldIssues...)

	warnings := make([]mapping.Warning, 0, len(issues))
	for _, is := range issues {
		warnings = append(warnings, mapping.Warning{
			Section: is.SectionID,
			Key:     is.FieldID,
			Code:    mapping.WarnMalformed,
			Message: is.Message,
		})
	}

	kept := fields[:0:0]
	for _, f := range fields {
		if approvedOnly && !f.IsApproved {
			continue
		}
		if err := vault.CheckShape(f); err != nil {
			warnings = append(warnings, mapping.Warning{
				Section: f.SectionID,
				Key:     f.FieldID,
				Code:    mapping.WarnMalformed,
				Message: err.Error(),
			})
		}
		kept = append(kept, f)
	}

	return vault.MergeAll(sections, kept), warnings, nil
}

// Preview builds the desired state without touching the CRM
func (s *Service) Preview(ctx context.Context, funnelID string, approvedOnly bool) (*Preview, error) {
	content, warnings, err := s.loadContent(ctx, funnelID, approvedOnly)
	if err != nil {
		return nil, err
	}
	agg := customvalues.Build(content)
	return &Preview{
		FunnelID:    funnelID,
		ContentHash: ContentHash(agg.Values),
		Values:      agg.Values,
		Warnings:    append(warnings, agg.Warnings...),
		Inferred:    agg.Inferred,
		Defaulted:   agg.Defaulted,
	}, nil
}

// Validate reports the completeness of the funnel's content
func (s *Service) Validate(ctx context.Context, funnelID string) (*mapping.ValidationReport, error) {
	content, warnings, err := s.loadContent(ctx, funnelID, false)
	if err != nil {
		return nil, err
	}
	report := mapping.Validate(content)
	report.Warnings = append(warnings, report.Warnings...)
	return &report, nil
}

// Operation returns one push operation
func (s *Service) Operation(ctx context.Context, id string) (*ledger.Operation, error) {
	return s.ops.Get(ctx, id)
}

// Operations lists the funnel's most recent push operations
func (s *Service) Operations(ctx context.Context, funnelID string, limit int) ([]*ledger.Operation, error) {
	return s.ops.ListByFunnel(ctx, funnelID, limit)
}

func (s *Service) finish(ctx context.Context, op *ledger.Operation) {
	if s.recorder != nil {
		s.recorder.RecordPush(op)
	}
	if s.notifier == nil || (op.Status != ledger.StatusPartial && op.Status != ledger.StatusFailed) {
		return
	}
	if err := s.notifier.NotifyPush(context.WithoutCancel(ctx), op); err != nil {
		s.logger.Warn("failed to send push notification", "operation_id", op.ID, "error", err)
	}
}

// capture sends a fatal push error to Sentry. Missing connections are a
// configuration state, not an incident.
func (s *Service) capture(ctx context.Context, op *ledger.Operation, err error) {
	if errors.Is(err, ErrNoConnection) || errors.Is(err, context.Canceled) {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("funnel_id", op.FunnelID)
		scope.SetTag("operation_id", op.ID)
		scope.SetContext("push", sentry.Context{
			"completed_items": op.CompletedItems,
			"total_items":     op.TotalItems,
		})
		hub.CaptureException(err)
	})
}
