package services

import (
	"os"
	"time"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	lockTokenPurge  = "purge_expired_tokens"
	lockJoinCodes   = "clear_join_codes"
	lockLogCleanup  = "system_log_cleanup"
	revokedKeepDays = 7
)

// MaintenanceService runs periodic cleanup. With several instances sharing a
// database each run is claimed through a scheduler_locks row, so only one
// instance does the work per window.
type MaintenanceService struct {
	db         *gorm.DB
	orgs       *OrganizationService
	logs       *SystemLogService
	cron       *cron.Cron
	instanceID string
	now        func() time.Time
}

func NewMaintenanceService(db *gorm.DB, orgs *OrganizationService) *MaintenanceService {
	host, _ := os.Hostname()
	return &MaintenanceService{
		db:         db,
		orgs:       orgs,
		logs:       NewSystemLogService(db),
		instanceID: host + "-" + uuid.NewString()[:8],
		now:        time.Now,
	}
}

func (s *MaintenanceService) Start() error {
	s.cron = cron.New()

	jobs := []struct {
		schedule string
		name     string
		window   time.Duration
		run      func()
	}{
		{"5 * * * *", lockTokenPurge, time.Hour, s.PurgeExpiredTokens},
		{"*/15 * * * *", lockJoinCodes, 15 * time.Minute, s.ClearExpiredJoinCodes},
		{"30 3 * * *", lockLogCleanup, time.Hour, s.CleanupSystemLogs},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.schedule, func() {
			if !s.acquire(job.name, job.window) {
				return
			}
			job.run()
		}); err != nil {
			return err
		}
		logger.Info().Str("job", job.name).Str("cron", job.schedule).Msg("maintenance job scheduled")
	}

	s.cron.Start()
	return nil
}

func (s *MaintenanceService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// acquire claims the current window of a job, keyed by the window's start.
func (s *MaintenanceService) acquire(name string, window time.Duration) bool {
	now := s.now()
	s.db.Where("expires_at < ?", now).Delete(&models.SchedulerLock{})

	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   now.Truncate(window).UTC().Format(time.RFC3339),
		LockedBy:  s.instanceID,
		LockedAt:  now,
		ExpiresAt: now.Add(2 * window),
	}
	if err := s.db.Create(&lock).Error; err != nil {
		if !isDuplicate(err) {
			logger.Error().Err(err).Str("job", name).Msg("failed to claim maintenance lock")
		}
		return false
	}
	return true
}

// PurgeExpiredTokens drops expired or long-revoked refresh tokens and spent
// reset tokens.
func (s *MaintenanceService) PurgeExpiredTokens() {
	now := s.now()
	refresh := s.db.Where("expires_at < ? OR revoked_at < ?", now, now.AddDate(0, 0, -revokedKeepDays)).
		Delete(&models.RefreshToken{})
	if refresh.Error != nil {
		logger.Error().Err(refresh.Error).Msg("failed to purge refresh tokens")
		return
	}
	reset := s.db.Where("expires_at < ? OR used_at IS NOT NULL", now).Delete(&models.PasswordResetToken{})
	if reset.Error != nil {
		logger.Error().Err(reset.Error).Msg("failed to purge reset tokens")
		return
	}
	logger.Info().Int64("refresh_tokens", refresh.RowsAffected).Int64("reset_tokens", reset.RowsAffected).Msg("expired tokens purged")
}

func (s *MaintenanceService) ClearExpiredJoinCodes() {
	n, err := s.orgs.ClearExpiredCodes()
	if err != nil {
		logger.Error().Err(err).Msg("failed to clear expired join codes")
		return
	}
	if n > 0 {
		logger.Info().Int64("organizations", n).Msg("expired join codes cleared")
	}
}

func (s *MaintenanceService) CleanupSystemLogs() {
	days := s.logs.GetRetentionDays()
	deleted, err := s.logs.CleanupOldLogs(days)
	if err != nil {
		logger.Error().Err(err).Msg("failed to clean up system logs")
		return
	}
	if deleted > 0 {
		LogInfo(AuditEntry{
			Module:  "Maintenance",
			Action:  "Cleanup",
			Message: "removed old system logs",
			Extra:   map[string]interface{}{"deleted": deleted, "retention_days": days},
		})
	}
}
