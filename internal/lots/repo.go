package lots

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
)

// Repository exposes read-only access to lots. The alerting core never
// mutates a lot; measurement recording owns those writes.
type Repository interface {
	Active(ctx context.Context) ([]models.Lot, error)
	ActiveByFarm(ctx context.Context, farmID uuid.UUID) ([]models.Lot, error)
	ByID(ctx context.Context, id uuid.UUID) (*models.Lot, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a lots repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Active(ctx context.Context) ([]models.Lot, error) {
	var lots []models.Lot
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *repositoryImpl) ActiveByFarm(ctx context.Context, farmID uuid.UUID) ([]models.Lot, error) {
	var lots []models.Lot
	err := r.db.WithContext(ctx).
		Where("farm_id = ? AND active = ?", farmID, true).
		Order("created_at ASC").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *repositoryImpl) ByID(ctx context.Context, id uuid.UUID) (*models.Lot, error) {
	var lot models.Lot
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&lot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &lot, nil
}
