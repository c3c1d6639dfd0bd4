package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/benovo-app/benovo-api/databases"
	"github.com/benovo-app/benovo-api/models"
)

// Scheduler handles periodic background jobs for campaign lifecycle
type Scheduler struct {
	cron *cron.Cron
	CDB  databases.CampaignDatabase
	IDB  databases.InvitationDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cDB databases.CampaignDatabase, iDB databases.InvitationDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		CDB:  cDB,
		IDB:  iDB,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Complete campaigns past their end date daily at 3 AM UTC
	_, err := s.cron.AddFunc("0 3 * * *", s.completeEndedCampaigns)
	if err != nil {
		zap.S().Errorw("failed to register campaign completion job", "error", err)
	}

	// Sweep long-expired pending invitations weekly on Sunday at 4 AM UTC.
	// Reads already filter them out, this just keeps the collection small.
	_, err = s.cron.AddFunc("0 4 * * 0", s.purgeExpiredInvitations)
	if err != nil {
		zap.S().Errorw("failed to register invitation cleanup job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("campaign scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("campaign scheduler stopped")
}

// completeEndedCampaigns flips active campaigns whose end date has passed to
// completed. Contributions and chat stay readable on completed campaigns.
func (s *Scheduler) completeEndedCampaigns() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	modified, err := s.CDB.UpdateMany(ctx,
		bson.M{
			"status":   models.CampaignStatusActive,
			"end_date": bson.M{"$lt": now},
		},
		bson.M{"$set": bson.M{"status": models.CampaignStatusCompleted, "updated_at": now}},
	)
	if err != nil {
		zap.S().Errorw("failed to complete ended campaigns", "error", err)
		return
	}
	if modified > 0 {
		zap.S().Infow("completed ended campaigns", "count", modified)
	}
}

// purgeExpiredInvitations deletes pending invitations that expired more than
// thirty days ago
func (s *Scheduler) purgeExpiredInvitations() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-models.InvitationTTL)
	deleted, err := s.IDB.DeleteMany(ctx, bson.M{
		"status":     models.InvitationStatusPending,
		"expires_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		zap.S().Errorw("failed to purge expired invitations", "error", err)
		return
	}
	if deleted > 0 {
		zap.S().Infow("purged expired invitations", "count", deleted)
	}
}
