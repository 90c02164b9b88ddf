package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docchat/internal/model"
)

type InconsistencyRepository struct {
	db *gorm.DB
}

func NewInconsistencyRepository(db *gorm.DB) *InconsistencyRepository {
	return &InconsistencyRepository{db: db}
}

// Create inserts the report. A redelivered event with a known EventID is a no-op.
func (r *InconsistencyRepository) Create(report *model.InconsistencyReport) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(report).Error; err != nil {
		return fmt.Errorf("create inconsistency report failed: %w", err)
	}
	return nil
}

func (r *InconsistencyRepository) ListRecent(limit int) ([]model.InconsistencyReport, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}

	var reports []model.InconsistencyReport
	if err := r.db.Order("occurred_at DESC").Limit(limit).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("list inconsistency reports failed: %w", err)
	}
	return reports, nil
}

func (r *InconsistencyRepository) ListByDocument(document string) ([]model.InconsistencyReport, error) {
	var reports []model.InconsistencyReport
	if err := r.db.Where("document = ?", document).Order("occurred_at DESC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("list inconsistency reports failed: %w", err)
	}
	return reports, nil
}
