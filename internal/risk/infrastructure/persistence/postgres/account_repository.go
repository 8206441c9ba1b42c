package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/aetheris/internal/risk/domain"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建并返回一个新的 AccountRepository 实例。
func NewAccountRepository(db *gorm.DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) FindByID(ctx context.Context, accountID string) (*domain.AccountRef, error) {
	var model AccountModel
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toAccountRef(&model), nil
}

func (r *accountRepository) ListByUser(ctx context.Context, userID string) ([]*domain.AccountRef, error) {
	var models []*AccountModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("account_id").Find(&models).Error
	if err != nil {
		return nil, err
	}

	refs := make([]*domain.AccountRef, 0, len(models))
	for _, model := range models {
		refs = append(refs, toAccountRef(model))
	}
	return refs, nil
}

func toAccountRef(model *AccountModel) *domain.AccountRef {
	return &domain.AccountRef{
		ID:         model.AccountID,
		UserID:     model.UserID,
		BrokerName: model.BrokerName,
	}
}
