package store

import (
	"context"

	"ps-rental-backend/internal/model"
)

func (s *gormStore) CreateMenuItem(ctx context.Context, m *model.MenuItem) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *gormStore) ListMenuItems(ctx context.Context) ([]model.MenuItem, error) {
	var items []model.MenuItem
	if err := s.db.WithContext(ctx).Order("category, name").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetMenuItems loads the requested items keyed by id; missing ids are simply
// absent from the map.
func (s *gormStore) GetMenuItems(ctx context.Context, ids []int64) (map[int64]model.MenuItem, error) {
	var items []model.MenuItem
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]model.MenuItem, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func (s *gormStore) UpdateMenuItem(ctx context.Context, id int64, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&model.MenuItem{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
