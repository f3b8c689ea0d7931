package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShipmentRepository is the read/write gateway onto shipments and their
// items/costs, grounded on the original's app/repositories/shipment_repo.py.
type ShipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository wraps an existing *gorm.DB.
func NewShipmentRepository(db *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

// Create persists a new shipment.
func (r *ShipmentRepository) Create(ctx context.Context, shipment *Shipment) error {
	if shipment.ID == uuid.Nil {
		shipment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(shipment).Error
}

// Get fetches a shipment owned by userID, eager-loading its items and costs.
func (r *ShipmentRepository) Get(ctx context.Context, shipmentID, userID uuid.UUID) (*Shipment, error) {
	var shipment Shipment
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Costs").
		Where("id = ? AND user_id = ?", shipmentID, userID).
		Take(&shipment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

// List returns every shipment owned by userID.
func (r *ShipmentRepository) List(ctx context.Context, userID uuid.UUID) ([]Shipment, error) {
	var shipments []Shipment
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&shipments).Error
	return shipments, err
}

// Update persists changes to an existing shipment.
func (r *ShipmentRepository) Update(ctx context.Context, shipment *Shipment) error {
	return r.db.WithContext(ctx).Save(shipment).Error
}

// Delete removes a shipment.
func (r *ShipmentRepository) Delete(ctx context.Context, shipment *Shipment) error {
	return r.db.WithContext(ctx).Delete(shipment).Error
}

// UpsertCosts creates or replaces a shipment's cost row.
func (r *ShipmentRepository) UpsertCosts(ctx context.Context, costs *ShipmentCosts) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shipment_id"}},
		UpdateAll: true,
	}).Create(costs).Error
}

// AddItem appends a goods line to a shipment.
func (r *ShipmentRepository) AddItem(ctx context.Context, item *ShipmentItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItem persists changes to an existing goods line.
func (r *ShipmentRepository) UpdateItem(ctx context.Context, item *ShipmentItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteItem removes a goods line.
func (r *ShipmentRepository) DeleteItem(ctx context.Context, item *ShipmentItem) error {
	return r.db.WithContext(ctx).Delete(item).Error
}

// UpsertCalculation creates or replaces the persisted calculation outcome
// for a shipment.
func (r *ShipmentRepository) UpsertCalculation(ctx context.Context, calc *Calculation) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shipment_id"}},
		UpdateAll: true,
	}).Create(calc).Error
}
