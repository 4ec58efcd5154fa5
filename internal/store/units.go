package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ps-rental-backend/internal/model"
)

func (s *gormStore) CreateTVUnit(ctx context.Context, u *model.TVUnit) error {
	if u.Status == "" {
		u.Status = model.UnitAvailable
	}
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *gormStore) GetTVUnit(ctx context.Context, id int64) (*model.TVUnit, error) {
	var u model.TVUnit
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *gormStore) GetTVUnitByAddress(ctx context.Context, ip string) (*model.TVUnit, error) {
	var u model.TVUnit
	if err := s.db.WithContext(ctx).First(&u, "ip_address = ?", ip).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *gormStore) ListTVUnits(ctx context.Context) ([]model.TVUnit, error) {
	var units []model.TVUnit
	if err := s.db.WithContext(ctx).Order("id").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (s *gormStore) ListUnitsInUse(ctx context.Context) ([]model.TVUnit, error) {
	var units []model.TVUnit
	if err := s.db.WithContext(ctx).Where("status = ?", model.UnitInUse).Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (s *gormStore) UpdateTVUnit(ctx context.Context, id int64, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&model.TVUnit{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AcquireTVUnit claims an available unit as a single conditional update.
// Two concurrent claims on the same unit resolve in the database: exactly
// one matches the available row. The occupying rental's id is stamped with
// UpdateTVUnit once that row exists.
func (s *gormStore) AcquireTVUnit(ctx context.Context, unitID int64, countdownMs int64) error {
	res := s.db.WithContext(ctx).Model(&model.TVUnit{}).
		Where("id = ? AND status = ?", unitID, model.UnitAvailable).
		Updates(map[string]any{
			"status":            model.UnitInUse,
			"current_rental_id": gorm.Expr("NULL"),
			"countdown_ms":      countdownMs,
		})
	if res.Error != nil {
		return fmt.Errorf("acquire unit %d: %w", unitID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnitNotAvailable
	}
	return nil
}

// ReleaseTVUnit frees a unit after its rental ends. Releasing an already
// free unit is a no-op, which keeps sync idempotent.
func (s *gormStore) ReleaseTVUnit(ctx context.Context, unitID int64) error {
	return s.db.WithContext(ctx).Model(&model.TVUnit{}).
		Where("id = ?", unitID).
		Updates(map[string]any{
			"status":            model.UnitAvailable,
			"current_rental_id": gorm.Expr("NULL"),
			"countdown_ms":      0,
		}).Error
}

// UpdateUnitLiveness applies a batch of bridge status reports, stamping each
// matched unit's last_checked. Reports for unknown addresses are ignored.
// Returns the number of units updated.
func (s *gormStore) UpdateUnitLiveness(ctx context.Context, now time.Time, reports []LivenessReport) (int64, error) {
	var updated int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rep := range reports {
			res := tx.Model(&model.TVUnit{}).
				Where("ip_address = ?", rep.Address).
				Updates(map[string]any{
					"is_online":    rep.IsOnline,
					"is_reachable": rep.IsReachable,
					"last_checked": now,
				})
			if res.Error != nil {
				return fmt.Errorf("liveness update for %s: %w", rep.Address, res.Error)
			}
			updated += res.RowsAffected
		}
		return nil
	})
	return updated, err
}
