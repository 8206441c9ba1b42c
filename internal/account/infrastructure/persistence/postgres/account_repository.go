// Package postgres 账户上下文的 GORM 持久化适配器
package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/aetheris/internal/account/domain"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建并返回一个新的 AccountRepository 实例。
func NewAccountRepository(db *gorm.DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Save(ctx context.Context, account *domain.Account) error {
	if account == nil {
		return nil
	}
	db := r.db.WithContext(ctx)

	var existing domain.Account
	err := db.Where("account_id = ?", account.AccountID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(account).Error
	}
	if err != nil {
		return err
	}

	account.ID = existing.ID
	account.CreatedAt = existing.CreatedAt
	return db.Save(account).Error
}

func (r *accountRepository) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("account_id").Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) Delete(ctx context.Context, accountID string) error {
	return r.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&domain.Account{}).Error
}
