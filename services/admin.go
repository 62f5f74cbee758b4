package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"casefile-progress/models"
	"casefile-progress/store"

	"github.com/google/uuid"
)

// Archiver stores an opaque snapshot and returns where it was written.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type BulkResetInput struct {
	UserIDs       []string // empty means every user
	ResetProgress bool
	Actor         string
}

type BulkResetResult struct {
	Outcome
	UsersReset      int    `json:"users_reset"`
	ArchiveLocation string `json:"archive_location,omitempty"`
}

type resetSnapshot struct {
	TakenAt       time.Time              `json:"taken_at"`
	Actor         string                 `json:"actor,omitempty"`
	ResetProgress bool                   `json:"reset_progress"`
	Records       []*models.UserProgress `json:"records"`
}

// BulkResetAchievements clears stored achievements, and with ResetProgress
// the points and case history too, for the given users. It is an operator
// action and skips every gate.
//
// The records are read and archived first, outside any write transaction,
// so the upload never holds row locks. The reset then applies to exactly the
// archived ids; a failed upload leaves the records untouched.
func (s *ProgressionService) BulkResetAchievements(ctx context.Context, in BulkResetInput) (BulkResetResult, error) {
	var (
		records []*models.UserProgress
		takenAt time.Time
	)
	if _, err := s.transact(ctx, "load reset targets", func(tx store.Tx) error {
		var err error
		records, err = tx.ListProgress(in.UserIDs)
		takenAt = tx.Now()
		return err
	}); err != nil {
		return BulkResetResult{}, err
	}
	if len(records) == 0 {
		return BulkResetResult{Outcome: succeeded("reset 0 users")}, nil
	}

	var result BulkResetResult
	if s.Archiver != nil {
		location, err := s.archiveSnapshot(ctx, in, records, takenAt)
		if err != nil {
			return BulkResetResult{}, s.storageFailure("archive reset snapshot", err)
		}
		result.ArchiveLocation = location
	}

	ids := make([]string, 0, len(records))
	for _, p := range records {
		ids = append(ids, p.ID)
	}
	_, err := s.transact(ctx, "bulk reset achievements", func(tx store.Tx) error {
		targets, err := tx.ListProgress(ids)
		if err != nil {
			return err
		}
		for _, p := range targets {
			p.Achievements = []string{}
			if in.ResetProgress {
				resetProgress(p)
			}
			if err := tx.SaveProgress(p); err != nil {
				return err
			}
		}
		result.UsersReset = len(targets)
		return nil
	})
	if err != nil {
		return BulkResetResult{}, err
	}

	s.logger().Warn("achievements reset",
		"event", "admin_achievements_reset",
		"module", "services/admin",
		"layer", "service",
		"actor", in.Actor,
		"requested", len(in.UserIDs),
		"users_reset", result.UsersReset,
		"reset_progress", in.ResetProgress,
		"archive", result.ArchiveLocation,
	)
	result.Outcome = succeeded(fmt.Sprintf("reset %d users", result.UsersReset))
	return result, nil
}

func (s *ProgressionService) archiveSnapshot(ctx context.Context, in BulkResetInput, records []*models.UserProgress, takenAt time.Time) (string, error) {
	body, err := json.Marshal(resetSnapshot{
		TakenAt:       takenAt,
		Actor:         in.Actor,
		ResetProgress: in.ResetProgress,
		Records:       records,
	})
	if err != nil {
		return "", fmt.Errorf("encode reset snapshot: %w", err)
	}
	key := fmt.Sprintf("snapshots/achievement-reset/%s/%s.json", takenAt.Format("2006/01/02"), uuid.NewString())
	return s.Archiver.Archive(ctx, key, body, "application/json")
}

// resetProgress is the only place TotalPoints goes down. Streak, hints and
// referral state are kept.
func resetProgress(p *models.UserProgress) {
	p.TotalPoints = 0
	p.CompletedCases = []string{}
	p.Evidence = []models.Evidence{}
	longestLogin := p.Statistics.LongestLoginStreak
	p.Statistics = models.Statistics{LongestLoginStreak: longestLogin}
	p.RecomputeLevel()
}
