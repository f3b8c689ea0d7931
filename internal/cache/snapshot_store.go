package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RateSnapshot persists one provider response against a shipment, so a
// re-calculation within its TTL window reuses the same fetched rate instead
// of calling the remote API again. Grounded on the original's
// app/models/rate_snapshot.py and app/repositories/rate_snapshot_repo.py.
type RateSnapshot struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ShipmentID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_rate_snapshot_lookup"`
	Provider        string         `gorm:"size:32;not null;index:idx_rate_snapshot_lookup"`
	RequestKey      map[string]any `gorm:"serializer:json;not null"`
	ResponsePayload map[string]any `gorm:"serializer:json;not null"`
	FetchedAt       time.Time      `gorm:"not null;autoCreateTime"`
	TTLSeconds      int            `gorm:"not null"`
}

func (RateSnapshot) TableName() string { return "rate_snapshots" }

// SnapshotStore is the durable, per-shipment rate-snapshot tier.
type SnapshotStore struct {
	db *gorm.DB
}

// NewSnapshotStore wraps an existing *gorm.DB.
func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// requestKeyEqual compares two request-key maps field by field; used instead
// of a JSONB equality filter so callers can pass plain Go maps.
func requestKeyEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if av, ok := v.(string); ok {
			if bv2, ok := bv.(string); !ok || av != bv2 {
				return false
			}
			continue
		}
		if v != bv {
			return false
		}
	}
	return true
}

// GetValid returns the most recent non-expired snapshot for
// (shipmentID, provider, requestKey), mirroring
// RateSnapshotRepository.get_valid_snapshot's fetch-then-TTL-check logic.
func (s *SnapshotStore) GetValid(ctx context.Context, shipmentID uuid.UUID, provider string, requestKey map[string]any) (*RateSnapshot, error) {
	var candidates []RateSnapshot
	err := s.db.WithContext(ctx).
		Where("shipment_id = ? AND provider = ?", shipmentID, provider).
		Order("fetched_at DESC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, snap := range candidates {
		if !requestKeyEqual(snap.RequestKey, requestKey) {
			continue
		}
		expiresAt := snap.FetchedAt.Add(time.Duration(snap.TTLSeconds) * time.Second)
		if expiresAt.Before(now) {
			continue
		}
		s := snap
		return &s, nil
	}
	return nil, nil
}

// Create persists a freshly-fetched provider response against a shipment.
func (s *SnapshotStore) Create(ctx context.Context, snap *RateSnapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(snap).Error
}
