// Package postgres 风险上下文的 GORM 持久化适配器
package postgres

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountModel 交易账户表映射。
// 回撤不落库，读出时从余额按需重算。
type AccountModel struct {
	gorm.Model
	AccountID         string          `gorm:"column:account_id;type:varchar(36);uniqueIndex;not null"`
	UserID            string          `gorm:"column:user_id;type:varchar(36);index;not null"`
	BrokerName        string          `gorm:"column:broker_name;type:varchar(100);not null"`
	Balance           decimal.Decimal `gorm:"column:balance;type:decimal(20,8);not null"`
	MaxBalance        decimal.Decimal `gorm:"column:max_balance;type:decimal(20,8);not null"`
	BalanceStartOfDay decimal.Decimal `gorm:"column:balance_start_of_day;type:decimal(20,8);not null"`

	// 自营商规则，未绑定时为空
	PropFirmName               *string  `gorm:"column:prop_firm_name;type:varchar(100)"`
	MaxDailyLossPercent        *float64 `gorm:"column:max_daily_loss_percent;type:decimal(5,2)"`
	MaxTrailingDrawdownPercent *float64 `gorm:"column:max_trailing_drawdown_percent;type:decimal(5,2)"`
}

func (AccountModel) TableName() string { return "accounts" }

// RiskSnapshotModel 风险快照表映射，日终留痕用
type RiskSnapshotModel struct {
	gorm.Model
	AccountID         string          `gorm:"column:account_id;type:varchar(36);index;not null"`
	CurrentDrawdown   float64         `gorm:"column:current_drawdown;type:decimal(5,2);not null"`
	MaxDrawdown       float64         `gorm:"column:max_drawdown;type:decimal(5,2);not null"`
	BalanceCurrent    decimal.Decimal `gorm:"column:balance_current;type:decimal(20,8);not null"`
	BalanceStartOfDay decimal.Decimal `gorm:"column:balance_start_of_day;type:decimal(20,8);not null"`
	InDangerZone      bool            `gorm:"column:in_danger_zone;type:boolean;not null"`
	Violated          bool            `gorm:"column:violated;type:boolean;not null"`
}

func (RiskSnapshotModel) TableName() string { return "risk_snapshots" }
