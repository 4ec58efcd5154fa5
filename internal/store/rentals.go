package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ps-rental-backend/internal/model"
)

// CreateRental inserts a rental and mints its public access key in one
// transaction. The key derivation needs the generated rental id, so the row
// is first created with a throwaway unique placeholder; if the derived key
// is already taken the caller-supplied minting function is asked again with
// a salted retry via the returned collision marker.
func (s *gormStore) CreateRental(ctx context.Context, r *model.Rental, mintKey func(rentalID int64) string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r.PublicAccessKey = "PENDING-" + uuid.NewString()
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("create rental: %w", err)
		}

		key := mintKey(r.ID)
		var count int64
		if err := tx.Model(&model.Rental{}).Where("public_access_key = ?", key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			// Collision: ask again, the minting function salts on the
			// second call.
			key = mintKey(r.ID)
		}

		r.PublicAccessKey = key
		return tx.Model(r).Update("public_access_key", key).Error
	})
}

func (s *gormStore) GetRental(ctx context.Context, id int64) (*model.Rental, error) {
	var r model.Rental
	if err := s.db.WithContext(ctx).Preload("AddOns").First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *gormStore) GetRentalByAccessKey(ctx context.Context, key string) (*model.Rental, error) {
	var r model.Rental
	if err := s.db.WithContext(ctx).Preload("AddOns").First(&r, "public_access_key = ?", key).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *gormStore) ListRentals(ctx context.Context, statuses ...string) ([]model.Rental, error) {
	q := s.db.WithContext(ctx).Preload("AddOns").Order("id DESC")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var rentals []model.Rental
	if err := q.Find(&rentals).Error; err != nil {
		return nil, err
	}
	return rentals, nil
}

// TransitionRental applies a state transition conditioned on the current
// status. A zero-row update means the rental is gone, already past the
// expected state, or was moved concurrently; either way the caller's
// transition is stale and must not be applied.
func (s *gormStore) TransitionRental(ctx context.Context, id int64, fromStatus string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&model.Rental{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("transition rental %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// AppendAddOns attaches purchased line items and bumps the cost aggregates
// with atomic increments. Concurrent batches for the same rental both land;
// neither clobbers the other's sum. Rentals that already completed reject
// the batch.
func (s *gormStore) AppendAddOns(ctx context.Context, rentalID int64, items []model.AddOn) error {
	if len(items) == 0 {
		return nil
	}

	var sum float64
	for i := range items {
		items[i].RentalID = rentalID
		items[i].LineTotal = items[i].Price * float64(items[i].Quantity)
		sum += items[i].LineTotal
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Rental{}).
			Where("id = ? AND status <> ?", rentalID, model.RentalCompleted).
			Updates(map[string]any{
				"add_ons_cost": gorm.Expr("add_ons_cost + ?", sum),
				"grand_total":  gorm.Expr("grand_total + ?", sum),
			})
		if res.Error != nil {
			return fmt.Errorf("increment add-on cost: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleTransition
		}
		return tx.Create(&items).Error
	})
}
