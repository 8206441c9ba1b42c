// 包 account 上下文的用例逻辑：账户开立、余额同步、自营商规则绑定、日切
package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/aetheris/internal/account/domain"
	"github.com/wyfcoding/aetheris/pkg/logger"
)

// CreateAccountCommand 开户请求
type CreateAccountCommand struct {
	BrokerName     string `json:"broker_name"`
	Currency       string `json:"currency,omitempty"`
	InitialBalance string `json:"initial_balance"`

	// 可选：开户即绑定自营商规则
	PropFirmName               string  `json:"prop_firm_name,omitempty"`
	MaxDailyLossPercent        float64 `json:"max_daily_loss_percent,omitempty"`
	MaxTrailingDrawdownPercent float64 `json:"max_trailing_drawdown_percent,omitempty"`
}

// BindPropFirmCommand 绑定自营商规则请求
type BindPropFirmCommand struct {
	FirmName                   string  `json:"firm_name"`
	MaxDailyLossPercent        float64 `json:"max_daily_loss_percent"`
	MaxTrailingDrawdownPercent float64 `json:"max_trailing_drawdown_percent"`
}

// AccountApplicationService 账户应用服务
type AccountApplicationService struct {
	repo domain.AccountRepository
}

// NewAccountApplicationService 创建账户应用服务
func NewAccountApplicationService(repo domain.AccountRepository) *AccountApplicationService {
	return &AccountApplicationService{repo: repo}
}

// CreateAccount 开立账户。初始余额同时作为最高余额与当日起始余额
func (s *AccountApplicationService) CreateAccount(ctx context.Context, userID string, cmd CreateAccountCommand) (*domain.Account, error) {
	if userID == "" {
		return nil, domain.ErrInvalidAccount
	}

	balance := decimal.Zero
	if cmd.InitialBalance != "" {
		parsed, err := decimal.NewFromString(cmd.InitialBalance)
		if err != nil {
			return nil, fmt.Errorf("invalid initial_balance: %w", domain.ErrInvalidBalance)
		}
		balance = parsed
	}

	currency := cmd.Currency
	if currency == "" {
		currency = "USD"
	}

	account := &domain.Account{
		AccountID:         uuid.NewString(),
		UserID:            userID,
		BrokerName:        cmd.BrokerName,
		Currency:          currency,
		Balance:           balance,
		MaxBalance:        balance,
		BalanceStartOfDay: balance,
	}
	if cmd.PropFirmName != "" {
		if err := account.BindPropFirm(cmd.PropFirmName, cmd.MaxDailyLossPercent, cmd.MaxTrailingDrawdownPercent); err != nil {
			return nil, err
		}
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, account); err != nil {
		logger.Error(ctx, "failed to save account", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	logger.Info(ctx, "account created",
		"account_id", account.AccountID,
		"user_id", userID,
		"broker", account.BrokerName,
	)
	return account, nil
}

// GetAccount 获取账户。归属他人的账户表现为不存在
func (s *AccountApplicationService) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil || account.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

// ListAccounts 列出用户全部账户
func (s *AccountApplicationService) ListAccounts(ctx context.Context, userID string) ([]*domain.Account, error) {
	accounts, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// UpdateBalance 同步账户余额，最高余额只升不降
func (s *AccountApplicationService) UpdateBalance(ctx context.Context, userID, accountID, balance string) (*domain.Account, error) {
	account, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("invalid balance: %w", domain.ErrInvalidBalance)
	}
	if err := account.ApplyBalance(parsed); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, account); err != nil {
		logger.Error(ctx, "failed to update balance", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return account, nil
}

// BindPropFirm 绑定自营商规则
func (s *AccountApplicationService) BindPropFirm(ctx context.Context, userID, accountID string, cmd BindPropFirmCommand) (*domain.Account, error) {
	account, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	if err := account.BindPropFirm(cmd.FirmName, cmd.MaxDailyLossPercent, cmd.MaxTrailingDrawdownPercent); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to bind prop firm: %w", err)
	}
	return account, nil
}

// ResetDay 日切：把用户全部账户的当日起始余额重置为当前余额
func (s *AccountApplicationService) ResetDay(ctx context.Context, userID string) (int, error) {
	accounts, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	reset := 0
	for _, account := range accounts {
		account.ResetStartOfDay()
		if err := s.repo.Save(ctx, account); err != nil {
			logger.Error(ctx, "failed to reset account day", "account_id", account.AccountID, "error", err)
			return reset, fmt.Errorf("failed to reset account day: %w", err)
		}
		reset++
	}

	logger.Info(ctx, "daily baselines reset", "user_id", userID, "count", reset)
	return reset, nil
}

// DeleteAccount 删除账户
func (s *AccountApplicationService) DeleteAccount(ctx context.Context, userID, accountID string) error {
	if _, err := s.GetAccount(ctx, userID, accountID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}
