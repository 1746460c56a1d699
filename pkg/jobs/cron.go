package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRepushSchedule runs the repush pass every 30 minutes
const DefaultRepushSchedule = "*/30 * * * *"

// CronManager manages scheduled jobs
type CronManager struct {
	cron    *cron.Cron
	monitor *RepushMonitor
	logger  *log.Logger
	timeout time.Duration
}

// NewCronManager creates a new cron manager
func NewCronManager(monitor *RepushMonitor, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:    cron.New(),
		monitor: monitor,
		logger:  logger,
		timeout: 30 * time.Minute,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs(schedule string) error {
	cm.logger.Println("Setting up cron jobs...")

	if schedule == "" {
		schedule = DefaultRepushSchedule
	}

	// Overlapping runs are skipped; the per-funnel lease would reject them anyway
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(cm.runRepush))
	if _, err := cm.cron.AddJob(schedule, job); err != nil {
		return fmt.Errorf("invalid repush schedule %q: %w", schedule, err)
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Printf("  - %s: Re-push funnels whose latest push was partial", schedule)

	return nil
}

func (cm *CronManager) runRepush() {
	cm.logger.Println("🕐 Running partial push retry job...")

	ctx, cancel := context.WithTimeout(context.Background(), cm.timeout)
	defer cancel()

	res, err := cm.monitor.RepushPartial(ctx)
	if err != nil {
		cm.logger.Printf("⚠️ Repush completed with errors: %v", err)
	}
	if res.Candidates == 0 {
		cm.logger.Println("✅ No partial pushes to retry")
		return
	}

	cm.logger.Printf("📊 Repush: %d candidates, %d completed, %d still partial, %d failed, %d busy",
		res.Candidates, res.Completed, res.Partial, res.Failed, res.Busy)
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler and waits for a running job
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	<-cm.cron.Stop().Done()
}

// GetMonitor returns the repush monitor (for manual triggers)
func (cm *CronManager) GetMonitor() *RepushMonitor {
	return cm.monitor
}
