// Package scheduler runs periodic ledger maintenance.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/finlog/backend/internal/logger"
	"github.com/finlog/backend/internal/services"
)

// Pruner removes expired history records and reports how many went.
type Pruner interface {
	Prune() (int64, error)
}

// Scheduler owns the cron runner for retention pruning.
type Scheduler struct {
	Cron     *cron.Cron
	pruner   Pruner
	notifier services.Notifier
}

// New registers the prune job on spec (standard cron syntax or descriptors
// such as "@daily"). An empty spec schedules nothing.
func New(spec string, pruner Pruner, notifier services.Notifier) (*Scheduler, error) {
	s := &Scheduler{
		Cron:     cron.New(),
		pruner:   pruner,
		notifier: notifier,
	}
	if spec == "" {
		return s, nil
	}
	if _, err := s.Cron.AddFunc(spec, s.RunPrune); err != nil {
		return nil, fmt.Errorf("schedule prune %q: %w", spec, err)
	}
	return s, nil
}

// RunPrune executes one retention pass.
func (s *Scheduler) RunPrune() {
	removed, err := s.pruner.Prune()
	if err != nil {
		logger.Log().WithError(err).Error("history prune failed")
		return
	}
	logger.Log().WithField("removed", removed).Debug("history prune finished")
	if removed > 0 && s.notifier != nil {
		s.notifier.Notify("Finlog: history pruned", fmt.Sprintf("%d history records removed by retention", removed))
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.Cron.Start()
}

// Stop halts the runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
}
