package benchmark

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
)

// Repository looks up reference curves. A breed with no configured curve
// resolves to (nil, nil); the comparator treats that as "no data".
type Repository interface {
	FindCurve(ctx context.Context, kind enums.BirdKind, breed string) (*models.ReferenceCurve, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a benchmark repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) FindCurve(ctx context.Context, kind enums.BirdKind, breed string) (*models.ReferenceCurve, error) {
	normalized := strings.ToLower(strings.TrimSpace(breed))
	if normalized == "" {
		return nil, nil
	}

	var curve models.ReferenceCurve
	err := r.db.WithContext(ctx).
		Preload("Points").
		Where("kind = ? AND lower(breed) = ?", kind, normalized).
		Order("version DESC").
		First(&curve).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &curve, nil
}
