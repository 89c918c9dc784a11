package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartCleanup schedules the retention job: verification codes that can no
// longer be used are deleted once they are older than retention. Accounts
// are never touched. The returned cron is already running, stop it on
// shutdown.
func StartCleanup(schedule string, retention time.Duration, codes *CodeEngine) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() { runCleanup(context.Background(), codes, retention) })
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q, %w", schedule, err)
	}

	zap.L().Debug("Cleanup attached", zap.String("schedule", schedule), zap.Duration("retention", retention))

	c.Start()

	return c, nil
}

func runCleanup(ctx context.Context, codes *CodeEngine, retention time.Duration) {
	n, err := codes.Prune(ctx, codes.now().Add(-retention))
	if err != nil {
		zap.L().Error("Failed to clean up verification codes", zap.Error(err))
		return
	}

	zap.L().Debug("Verification code cleanup finished", zap.Int64("deleted", n))
}
