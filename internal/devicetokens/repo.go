package devicetokens

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
)

// Repository resolves push tokens for users. A user with no registered
// device resolves to an empty token, which the caller treats as "skip push".
type Repository interface {
	Resolve(ctx context.Context, userID uuid.UUID) (string, error)
	Register(ctx context.Context, token *models.DeviceToken) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a device token repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Resolve(ctx context.Context, userID uuid.UUID) (string, error) {
	var row models.DeviceToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return row.Token, nil
}

func (r *repositoryImpl) Register(ctx context.Context, token *models.DeviceToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(token).Error
}
