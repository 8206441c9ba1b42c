// 包 domain 交易账户的领域模型
package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidAccount  = errors.New("invalid account")
	ErrInvalidBalance  = errors.New("invalid balance")
	ErrInvalidPropFirm = errors.New("invalid prop firm rule")
	ErrNotFound        = errors.New("account not found")
)

// Account 交易账户实体
// 一个用户可以在多家券商/自营商持有多个账户
type Account struct {
	gorm.Model
	// 账户 ID (业务主键)，全局唯一
	AccountID string `gorm:"column:account_id;type:varchar(36);uniqueIndex;not null" json:"account_id"`
	// 用户 ID，账户归属
	UserID string `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	// 券商名称
	BrokerName string `gorm:"column:broker_name;type:varchar(100);not null" json:"broker_name"`
	// 账户币种，余额一律以本币记，不做换汇
	Currency string `gorm:"column:currency;type:varchar(10);default:'USD';not null" json:"currency"`
	// 当前余额
	Balance decimal.Decimal `gorm:"column:balance;type:decimal(20,8);default:0;not null" json:"balance"`
	// 历史最高余额，只升不降，跟踪回撤的基准
	MaxBalance decimal.Decimal `gorm:"column:max_balance;type:decimal(20,8);default:0;not null" json:"max_balance"`
	// 当日起始余额，日亏损的基准
	BalanceStartOfDay decimal.Decimal `gorm:"column:balance_start_of_day;type:decimal(20,8);default:0;not null" json:"balance_start_of_day"`

	// 自营商规则，未绑定时为空
	PropFirmName               *string  `gorm:"column:prop_firm_name;type:varchar(100)" json:"prop_firm_name,omitempty"`
	MaxDailyLossPercent        *float64 `gorm:"column:max_daily_loss_percent;type:decimal(5,2)" json:"max_daily_loss_percent,omitempty"`
	MaxTrailingDrawdownPercent *float64 `gorm:"column:max_trailing_drawdown_percent;type:decimal(5,2)" json:"max_trailing_drawdown_percent,omitempty"`
}

// TableName 指定表名
func (Account) TableName() string { return "accounts" }

// Validate 校验账户基本字段
func (a *Account) Validate() error {
	if strings.TrimSpace(a.AccountID) == "" || strings.TrimSpace(a.UserID) == "" {
		return ErrInvalidAccount
	}
	if strings.TrimSpace(a.BrokerName) == "" {
		return ErrInvalidAccount
	}
	if a.Balance.IsNegative() || a.MaxBalance.IsNegative() || a.BalanceStartOfDay.IsNegative() {
		return ErrInvalidBalance
	}
	return nil
}

// ApplyBalance 更新当前余额并棘轮式抬升历史最高余额
func (a *Account) ApplyBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrInvalidBalance
	}
	a.Balance = balance
	if balance.GreaterThan(a.MaxBalance) {
		a.MaxBalance = balance
	}
	return nil
}

// ResetStartOfDay 把当日起始余额重置为当前余额，日切任务用
func (a *Account) ResetStartOfDay() {
	a.BalanceStartOfDay = a.Balance
}

// BindPropFirm 绑定自营商规则
func (a *Account) BindPropFirm(firmName string, maxDailyLoss, maxTrailingDD float64) error {
	if strings.TrimSpace(firmName) == "" {
		return ErrInvalidPropFirm
	}
	if maxDailyLoss <= 0 || maxDailyLoss > 100 || maxTrailingDD <= 0 || maxTrailingDD > 100 {
		return ErrInvalidPropFirm
	}
	if maxTrailingDD < maxDailyLoss {
		return ErrInvalidPropFirm
	}
	a.PropFirmName = &firmName
	a.MaxDailyLossPercent = &maxDailyLoss
	a.MaxTrailingDrawdownPercent = &maxTrailingDD
	return nil
}

// UnbindPropFirm 解绑自营商规则
func (a *Account) UnbindPropFirm() {
	a.PropFirmName = nil
	a.MaxDailyLossPercent = nil
	a.MaxTrailingDrawdownPercent = nil
}

// AccountRepository 账户仓储接口
type AccountRepository interface {
	// Save 保存或更新账户
	Save(ctx context.Context, account *Account) error
	// Get 根据账户 ID 获取账户，不存在返回 (nil, nil)
	Get(ctx context.Context, accountID string) (*Account, error)
	// GetByUser 根据用户 ID 获取账户列表
	GetByUser(ctx context.Context, userID string) ([]*Account, error)
	// Delete 删除账户
	Delete(ctx context.Context, accountID string) error
}
