package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"ps-rental-backend/internal/model"
)

func (s *gormStore) CreatePayment(ctx context.Context, p *model.Payment) error {
	if p.Status == "" {
		p.Status = model.PaymentPending
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = model.MethodCash
	}
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *gormStore) GetPaymentByRental(ctx context.Context, rentalID int64) (*model.Payment, error) {
	var p model.Payment
	if err := s.db.WithContext(ctx).First(&p, "rental_id = ?", rentalID).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// SetPaymentAmountByRental synchronizes the bill amount after a recomputed
// cost (pause, finish). Amount tracking is eventual by design.
func (s *gormStore) SetPaymentAmountByRental(ctx context.Context, rentalID int64, amount float64) error {
	res := s.db.WithContext(ctx).Model(&model.Payment{}).
		Where("rental_id = ?", rentalID).
		Update("amount", amount)
	if res.Error != nil {
		return fmt.Errorf("set payment amount for rental %d: %w", rentalID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementPaymentAmountByRental mirrors the rental's add-on increment so
// concurrent batches cannot lose updates on the payment side either.
func (s *gormStore) IncrementPaymentAmountByRental(ctx context.Context, rentalID int64, delta float64) error {
	res := s.db.WithContext(ctx).Model(&model.Payment{}).
		Where("rental_id = ?", rentalID).
		Update("amount", gorm.Expr("amount + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("increment payment amount for rental %d: %w", rentalID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) UpdatePayment(ctx context.Context, id int64, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&model.Payment{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) ListPaymentsByShift(ctx context.Context, shiftID int64) ([]model.Payment, error) {
	var payments []model.Payment
	if err := s.db.WithContext(ctx).Where("shift_id = ?", shiftID).Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
