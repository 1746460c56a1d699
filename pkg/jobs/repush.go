package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jordanlanch/funnelsync/pkg/ledger"
	"github.com/jordanlanch/funnelsync/pkg/push"
)

// FunnelFinder lists funnels by the status of their latest push
type FunnelFinder interface {
	FunnelsWithLatestStatus(ctx context.Context, status ledger.Status, limit int) ([]string, error)
}

// Pusher runs a push for a funnel
type Pusher interface {
	Push(ctx context.Context, funnelID string, opts push.PushOptions) (*push.PushResult, error)
}

// RepushResult counts what one repush pass did
type RepushResult struct {
	Candidates int `json:"candidates"`
	Completed  int `json:"completed"`
	Partial    int `json:"partial"`
	Failed     int `json:"failed"`
	Busy       int `json:"busy"`
}

// RepushMonitor retries funnels whose latest push ended partial
type RepushMonitor struct {
	finder    FunnelFinder
	pusher    Pusher
	batchSize int
	logger    *log.Logger
}

// NewRepushMonitor creates a new repush monitor
func NewRepushMonitor(finder FunnelFinder, pusher Pusher, batchSize int, logger *log.Logger) *RepushMonitor {
	if logger == nil {
		logger = log.Default()
	}
	if batchSize <= 0 {
		batchSize = 10
	}

	return &RepushMonitor{
		finder:    finder,
		pusher:    pusher,
		batchSize: batchSize,
		logger:    logger,
	}
}

// RepushPartial re-pushes up to batchSize partial funnels, one at a time.
// Keys already written are skipped by the engine, so only failed keys cost writes.
func (m *RepushMonitor) RepushPartial(ctx context.Context) (RepushResult, error) {
	var res RepushResult

	funnels, err := m.finder.FunnelsWithLatestStatus(ctx, ledger.StatusPartial, m.batchSize)
	if err != nil {
		return res, fmt.Errorf("failed to list partial funnels: %w", err)
	}
	res.Candidates = len(funnels)

	var errs []error
	for _, funnelID := range funnels {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		out, err := m.pusher.Push(ctx, funnelID, push.PushOptions{})
		switch {
		case errors.Is(err, push.ErrPushInProgress):
			res.Busy++
			continue
		case err != nil:
			res.Failed++
			m.logger.Printf("❌ Repush of funnel %s failed: %v", funnelID, err)
			errs = append(errs, fmt.Errorf("funnel %s: %w", funnelID, err))
			continue
		}

		switch out.Operation.Status {
		case ledger.StatusCompleted:
			res.Completed++
		case ledger.StatusPartial:
			res.Partial++
		default:
			res.Failed++
		}
	}

	return res, errors.Join(errs...)
}
