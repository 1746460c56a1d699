// Package push reconciles a funnel's desired custom values with the CRM.
package push

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jordanlanch/funnelsync/pkg/crm"
	"github.com/jordanlanch/funnelsync/pkg/ledger"
	"github.com/jordanlanch/funnelsync/pkg/logger"
)

const snippetLimit = 200

// CRM is the remote custom-value store
type CRM interface {
	FetchAll(ctx context.Context, locationID, token string) ([]crm.CustomValue, error)
	Create(ctx context.Context, locationID, token, name, value string) (crm.CustomValue, error)
	Update(ctx context.Context, locationID, token, id, name, value string) (crm.CustomValue, error)
}

// OperationStore persists operation records
type OperationStore interface {
	Create(ctx context.Context, op *ledger.Operation) error
	Update(ctx context.Context, op *ledger.Operation) error
}

// Action is the per-key decision
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
	ActionFail   Action = "fail"
)

// Progress is reported after every key
type Progress struct {
	OperationID string `json:"operation_id"`
	Key         string `json:"key"`
	Action      Action `json:"action"`
	Processed   int    `json:"processed"`
	Total       int    `json:"total"`
}

// Target is the CRM location a push writes to
type Target struct {
	LocationID string
	Token      string
}

// RunInput is everything one reconciliation needs. Previous is the latest
// completed operation of the funnel, or nil.
type RunInput struct {
	Target     Target
	Desired    map[string]string
	Previous   *ledger.Operation
	Force      bool
	OnProgress func(Progress)
}

// EngineOptions configures an Engine. Zero values fall back to defaults.
type EngineOptions struct {
	Logger           logger.Logger
	NewPacer         func() Pacer
	ProgressInterval int
	Now              func() time.Time
}

// Engine executes pushes: diff, serialized writes, ledger bookkeeping
type Engine struct {
	crm              CRM
	ops              OperationStore
	logger           logger.Logger
	newPacer         func() Pacer
	progressInterval int
	now              func() time.Time
}

// NewEngine creates a new push engine
func NewEngine(remote CRM, ops OperationStore, opts EngineOptions) *Engine {
	e := &Engine{
		crm:              remote,
		ops:              ops,
		logger:           opts.Logger,
		newPacer:         opts.NewPacer,
		progressInterval: opts.ProgressInterval,
		now:              opts.Now,
	}
	if e.logger == nil {
		e.logger = logger.Nop()
	}
	if e.newPacer == nil {
		e.newPacer = func() Pacer { return NewRatePacer(DefaultWriteInterval) }
	}
	if e.progressInterval <= 0 {
		e.progressInterval = 10
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Start records a new in_progress operation for a funnel
func (e *Engine) Start(ctx context.Context, funnelID string) (*ledger.Operation, error) {
	op := &ledger.Operation{
		ID:        uuid.NewString(),
		FunnelID:  funnelID,
		Status:    ledger.StatusInProgress,
		StartedAt: e.now().UTC(),
	}
	if err := e.ops.Create(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to start push operation: %w", err)
	}
	return op, nil
}

// Push starts an operation and runs it
func (e *Engine) Push(ctx context.Context, funnelID string, in RunInput) (*ledger.Operation, error) {
	op, err := e.Start(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	return op, e.Run(ctx, op, in)
}

// Run reconciles the desired state against the CRM and finalizes op.
//
// Per-key write failures are collected and end in partial. A failed snapshot,
// cancellation or panic ends in failed; the error is returned and a panic is
// re-raised after the operation is recorded.
func (e *Engine) Run(ctx context.Context, op *ledger.Operation, in RunInput) error {
	log := e.logger.With("operation_id", op.ID, "funnel_id", op.FunnelID)

	defer func() {
		if r := recover(); r != nil {
			op.ErrorStack = string(debug.Stack())
			_ = e.Fail(ctx, op, fmt.Errorf("push panicked: %v", r))
			panic(r)
		}
	}()

	keys := sortedKeys(in.Desired)
	op.TotalItems = len(keys)
	op.ContentHash = ContentHash(in.Desired)
	op.Pushed = ledger.Pushed{
		Created: []ledger.KeyChange{},
		Updated: []ledger.KeyChange{},
		Failed:  []ledger.KeyFailure{},
		Skipped: []string{},
	}

	if cacheHit(in.Previous, op.ContentHash, in.Force) {
		op.Cached = true
		op.Pushed.Skipped = keys
		op.SkippedItems = len(keys)
		op.CompletedItems = len(keys)
		op.Finish(ledger.StatusCompleted, e.now())
		log.Info("push content unchanged since last completed push", "previous_operation_id", in.Previous.ID, "keys", len(keys))
		return e.persist(ctx, op)
	}

	remote, err := e.crm.FetchAll(ctx, in.Target.LocationID, in.Target.Token)
	if err != nil {
		return e.Fail(ctx, op, fmt.Errorf("failed to fetch remote custom values: %w", err))
	}
	index := NewRemoteIndex(remote)
	pacer := e.newPacer()

	log.Info("push started", "keys", len(keys), "remote_values", len(remote))

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return e.Fail(ctx, op, fmt.Errorf("push cancelled after %d of %d keys: %w", i, len(keys), err))
		}

		action, called := e.reconcileKey(ctx, op, in.Target, index, key, in.Desired[key], log)

		if called {
			if err := pacer.Pause(ctx); err != nil {
				return e.Fail(ctx, op, fmt.Errorf("push cancelled after %d of %d keys: %w", i+1, len(keys), err))
			}
		}

		if in.OnProgress != nil {
			in.OnProgress(Progress{OperationID: op.ID, Key: key, Action: action, Processed: i + 1, Total: len(keys)})
		}
		if (i+1)%e.progressInterval == 0 && i+1 < len(keys) {
			if err := e.ops.Update(ctx, op); err != nil {
				log.Warn("failed to persist push progress", "error", err)
			}
		}
	}

	status := ledger.StatusCompleted
	if op.FailedItems > 0 {
		status = ledger.StatusPartial
	}
	op.Finish(status, e.now())

	log.Info("push finished",
		"status", op.Status,
		"created", len(op.Pushed.Created),
		"updated", len(op.Pushed.Updated),
		"skipped", op.SkippedItems,
		"failed", op.FailedItems,
		"duration_ms", op.DurationMS,
	)
	return e.persist(ctx, op)
}

// reconcileKey applies one key. called reports whether a remote write was made.
func (e *Engine) reconcileKey(ctx context.Context, op *ledger.Operation, target Target, index *RemoteIndex, key, value string, log logger.Logger) (Action, bool) {
	existing, found := index.Find(key)

	if found && existing.Value == value {
		op.Pushed.Skipped = append(op.Pushed.Skipped, key)
		op.SkippedItems++
		op.CompletedItems++
		return ActionSkip, false
	}

	if found {
		// the remote name is kept so merge tags in templates keep resolving
		updated, err := e.crm.Update(ctx, target.LocationID, target.Token, existing.ID, existing.Name, value)
		if err != nil {
			e.recordFailure(op, key, value, err, log)
			return ActionFail, true
		}
		if updated.ID == "" {
			updated.ID = existing.ID
		}
		updated.Name = existing.Name
		updated.Value = value
		index.Set(updated)
		op.Pushed.Updated = append(op.Pushed.Updated, ledger.KeyChange{Key: key, Before: snippet(existing.Value), After: snippet(value)})
		op.CompletedItems++
		return ActionUpdate, true
	}

	created, err := e.crm.Create(ctx, target.LocationID, target.Token, key, value)
	if err != nil {
		e.recordFailure(op, key, value, err, log)
		return ActionFail, true
	}
	if created.Name == "" {
		created.Name = key
	}
	created.Value = value
	index.Add(created)
	op.Pushed.Created = append(op.Pushed.Created, ledger.KeyChange{Key: key, After: snippet(value)})
	op.CompletedItems++
	return ActionCreate, true
}

func (e *Engine) recordFailure(op *ledger.Operation, key, value string, err error, log logger.Logger) {
	op.Pushed.Failed = append(op.Pushed.Failed, ledger.KeyFailure{Key: key, Value: snippet(value), Error: err.Error()})
	op.FailedItems++
	log.Warn("custom value write failed", "key", key, "error", err)
}

// Fail marks op failed with err and returns err
func (e *Engine) Fail(ctx context.Context, op *ledger.Operation, err error) error {
	op.Error = err.Error()
	op.Finish(ledger.StatusFailed, e.now())
	e.logger.Error("push failed", "operation_id", op.ID, "funnel_id", op.FunnelID, "error", err)

	if perr := e.persist(context.WithoutCancel(ctx), op); perr != nil {
		return errors.Join(err, perr)
	}
	return err
}

func (e *Engine) persist(ctx context.Context, op *ledger.Operation) error {
	if err := e.ops.Update(ctx, op); err != nil {
		return fmt.Errorf("failed to record push operation: %w", err)
	}
	return nil
}

func cacheHit(previous *ledger.Operation, hash string, force bool) bool {
	return !force &&
		previous != nil &&
		previous.Status == ledger.StatusCompleted &&
		previous.ContentHash != "" &&
		previous.ContentHash == hash
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:snippetLimit]) + "…"
}
