package shopsync

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
)

func TestResolveExistingClaim(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    models.IdempotencyStatus
		updatedAt time.Time
		want      claimAction
	}{
		{
			name:      "succeeded key is skipped",
			status:    models.IdempotencyStatusSucceeded,
			updatedAt: now.Add(-time.Hour),
			want:      claimSkip,
		},
		{
			name:      "fresh started key waits for redelivery",
			status:    models.IdempotencyStatusStarted,
			updatedAt: now.Add(-time.Minute),
			want:      claimWait,
		},
		{
			name:      "started key from a crashed worker is reclaimed",
			status:    models.IdempotencyStatusStarted,
			updatedAt: now.Add(-6 * time.Minute),
			want:      claimReclaim,
		},
		{
			name:      "started key exactly at the stale boundary is reclaimed",
			status:    models.IdempotencyStatusStarted,
			updatedAt: now.Add(-staleClaimAge),
			want:      claimReclaim,
		},
		{
			name:      "failed key is reclaimed",
			status:    models.IdempotencyStatusFailed,
			updatedAt: now.Add(-time.Second),
			want:      claimReclaim,
		},
		{
			name:      "unknown status is reclaimed",
			status:    models.IdempotencyStatus("LEGACY"),
			updatedAt: now,
			want:      claimReclaim,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveExistingClaim(tt.status, tt.updatedAt, now)
			if got != tt.want {
				t.Errorf("resolveExistingClaim(%s, age %v) = %d, want %d",
					tt.status, now.Sub(tt.updatedAt), got, tt.want)
			}
		})
	}
}
