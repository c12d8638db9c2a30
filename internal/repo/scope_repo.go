package repo

import (
	"context"
	"errors"

	"marketplace-core/internal/model"
	"marketplace-core/pkg/errno"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScopeRepo reads blockchain marketplaces, the unit a reconciliation pass runs on
type ScopeRepo struct {
	db *gorm.DB
}

func NewScopeRepo(db *gorm.DB) *ScopeRepo {
	return &ScopeRepo{db: db}
}

// GetScope loads the scope with its network
func (r *ScopeRepo) GetScope(ctx context.Context, id uuid.UUID) (*model.BlockchainMarketplace, error) {
	var scope model.BlockchainMarketplace
	err := r.db.WithContext(ctx).Preload("Network").First(&scope, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errno.ErrScopeNotFound
	}
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return &scope, nil
}

func (r *ScopeRepo) ListScopes(ctx context.Context) ([]model.BlockchainMarketplace, error) {
	var scopes []model.BlockchainMarketplace
	if err := r.db.WithContext(ctx).Preload("Network").Order("created_at ASC").Find(&scopes).Error; err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return scopes, nil
}
