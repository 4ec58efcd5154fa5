package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ps-rental-backend/internal/model"
)

func (s *gormStore) CreateLicense(ctx context.Context, l *model.License) error {
	if l.Key == "" {
		l.Key = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = model.LicenseActive
	}
	return s.db.WithContext(ctx).Create(l).Error
}

func (s *gormStore) GetLicenseByKey(ctx context.Context, key string) (*model.License, error) {
	var l model.License
	if err := s.db.WithContext(ctx).First(&l, "key = ?", key).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *gormStore) ListLicenses(ctx context.Context) ([]model.License, error) {
	var licenses []model.License
	if err := s.db.WithContext(ctx).Order("id").Find(&licenses).Error; err != nil {
		return nil, err
	}
	return licenses, nil
}

func (s *gormStore) ListActiveLicenses(ctx context.Context, now time.Time) ([]model.License, error) {
	var licenses []model.License
	if err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at > ?", model.LicenseActive, now).
		Find(&licenses).Error; err != nil {
		return nil, err
	}
	return licenses, nil
}

func (s *gormStore) RevokeLicense(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&model.License{}).
		Where("id = ?", id).
		Update("status", model.LicenseRevoked)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) TouchLicense(ctx context.Context, id int64, now time.Time) error {
	return s.db.WithContext(ctx).Model(&model.License{}).
		Where("id = ?", id).
		Update("last_used_at", now).Error
}
