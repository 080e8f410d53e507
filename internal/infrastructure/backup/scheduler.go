package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"
	"a2dpmgr/pkg/backup"

	"go.uber.org/zap"
)

// Scheduler is the StateSnapshotter (C12): periodically writes a JSON
// postmortem dump of Api.Dump for each enabled role. It never feeds
// anything back into live FSM state — there is no restore path (§9B).
type Scheduler struct {
	backupService *backup.BackupService
	api           ports.Api
	sourceEnabled bool
	sinkEnabled   bool
	interval      time.Duration
	retentionDays int
	logger        *zap.SugaredLogger
	stopChan      chan struct{}
}

// Config contains scheduler configuration
type Config struct {
	Interval      time.Duration
	RetentionDays int
	SourceEnabled bool
	SinkEnabled   bool
}

// NewScheduler creates a new state snapshotter.
func NewScheduler(
	backupService *backup.BackupService,
	api ports.Api,
	cfg Config,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		backupService: backupService,
		api:           api,
		sourceEnabled: cfg.SourceEnabled,
		sinkEnabled:   cfg.SinkEnabled,
		interval:      cfg.Interval,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start starts the snapshot scheduler
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run initial snapshot
	s.runSnapshot(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSnapshot(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the snapshot scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// runSnapshot performs one snapshot
func (s *Scheduler) runSnapshot(ctx context.Context) {
	s.logger.Info("starting scheduled snapshot")

	data, err := s.collectData(ctx)
	if err != nil {
		s.logger.Errorw("failed to collect snapshot data", "error", err)
		return
	}

	backupName, err := s.backupService.CreateBackup(ctx, data)
	if err != nil {
		s.logger.Errorw("failed to create snapshot", "error", err)
		return
	}

	s.logger.Infow("snapshot created successfully", "name", backupName)

	if err := s.cleanupOldSnapshots(ctx); err != nil {
		s.logger.Warnw("failed to cleanup old snapshots", "error", err)
	}
}

// collectData dumps every admitted peer for each enabled role.
func (s *Scheduler) collectData(ctx context.Context) (*backup.BackupData, error) {
	data := &backup.BackupData{
		Dumps:    make(map[string]json.RawMessage),
		Metadata: make(map[string]interface{}),
	}

	total := 0
	if s.sourceEnabled {
		dump := s.api.Dump(ctx, domain.RoleSource)
		raw, err := json.Marshal(dump)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal source dump: %w", err)
		}
		data.Dumps["source"] = raw
		total += len(dump)
	}
	if s.sinkEnabled {
		dump := s.api.Dump(ctx, domain.RoleSink)
		raw, err := json.Marshal(dump)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sink dump: %w", err)
		}
		data.Dumps["sink"] = raw
		total += len(dump)
	}

	data.Metadata["peer_count"] = total
	data.Metadata["snapshot_type"] = "scheduled"

	return data, nil
}

// cleanupOldSnapshots removes snapshots older than retention period
func (s *Scheduler) cleanupOldSnapshots(ctx context.Context) error {
	backups, err := s.backupService.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	cutoffTime := time.Now().AddDate(0, 0, -s.retentionDays)

	for _, name := range backups {
		if len(name) < 20 {
			continue
		}

		timestampStr := name[7:22] // "backup-" + "20060102-150405"
		timestamp, err := time.Parse("20060102-150405", timestampStr)
		if err != nil {
			s.logger.Warnw("failed to parse snapshot timestamp", "name", name, "error", err)
			continue
		}

		if timestamp.Before(cutoffTime) {
			if err := s.backupService.DeleteBackup(ctx, name); err != nil {
				s.logger.Warnw("failed to delete old snapshot", "name", name, "error", err)
				continue
			}
			s.logger.Infow("deleted old snapshot", "name", name, "age", time.Since(timestamp))
		}
	}

	return nil
}
