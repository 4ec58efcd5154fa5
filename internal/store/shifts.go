package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"ps-rental-backend/internal/model"
)

// OpenShift opens a new cashier shift. The unique index on the active flag
// is the serialization point: a second open collides in the database rather
// than in an application-level check.
func (s *gormStore) OpenShift(ctx context.Context, sh *model.Shift) error {
	active := true
	sh.Status = model.ShiftActive
	sh.Active = &active
	if sh.StartTime.IsZero() {
		sh.StartTime = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(sh).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrShiftAlreadyOpen
		}
		return fmt.Errorf("open shift: %w", err)
	}
	return nil
}

// CloseShift completes a shift and rolls up the paid payments attached to it.
func (s *gormStore) CloseShift(ctx context.Context, shiftID int64, now time.Time) (*model.Shift, error) {
	var closed model.Shift
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		type agg struct {
			Count   int64
			Revenue float64
		}
		var a agg
		if err := tx.Model(&model.Payment{}).
			Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as revenue").
			Where("shift_id = ? AND status = ?", shiftID, model.PaymentPaid).
			Scan(&a).Error; err != nil {
			return fmt.Errorf("aggregate shift payments: %w", err)
		}

		res := tx.Model(&model.Shift{}).
			Where("id = ? AND status = ?", shiftID, model.ShiftActive).
			Updates(map[string]any{
				"status":            model.ShiftCompleted,
				"active":            gorm.Expr("NULL"),
				"end_time":          now,
				"transaction_count": a.Count,
				"total_revenue":     a.Revenue,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.First(&closed, shiftID).Error
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

func (s *gormStore) GetActiveShift(ctx context.Context) (*model.Shift, error) {
	var sh model.Shift
	if err := s.db.WithContext(ctx).First(&sh, "status = ?", model.ShiftActive).Error; err != nil {
		return nil, notFound(err)
	}
	return &sh, nil
}

// isUniqueViolation matches duplicate-key errors across the postgres and
// sqlite drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
