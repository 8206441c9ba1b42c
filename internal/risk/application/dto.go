package application

import "github.com/wyfcoding/aetheris/internal/risk/domain"

// AggregateRiskCommand 合并风险请求
type AggregateRiskCommand struct {
	UserID     string   `json:"user_id"`
	AccountIDs []string `json:"account_ids"`
}

// UpdateRiskStateCommand 更新单账户风险状态请求。
// 指针字段为 nil 表示不更新该字段；余额用字符串承载 decimal。
type UpdateRiskStateCommand struct {
	UserID            string   `json:"user_id"`
	AccountID         string   `json:"account_id"`
	CurrentDrawdown   *float64 `json:"current_drawdown,omitempty"`
	MaxDrawdown       *float64 `json:"max_drawdown,omitempty"`
	BalanceCurrent    *string  `json:"balance_current,omitempty"`
	BalanceStartOfDay *string  `json:"balance_start_of_day,omitempty"`
}

// PropFirmThresholdDTO 账户绑定的自营商阈值
type PropFirmThresholdDTO struct {
	FirmName                   string  `json:"firm_name"`
	MaxDailyLossPercent        float64 `json:"max_daily_loss_percent"`
	MaxTrailingDrawdownPercent float64 `json:"max_trailing_drawdown_percent"`
}

// AccountRiskSummary 单账户风险摘要
type AccountRiskSummary struct {
	AccountID        string                `json:"account_id"`
	BrokerName       string                `json:"broker_name"`
	CurrentDrawdown  float64               `json:"current_drawdown"`
	MaxDrawdown      float64               `json:"max_drawdown"`
	DailyLossPercent float64               `json:"daily_loss_percent"`
	BalanceCurrent   string                `json:"balance_current"`
	Threshold        *PropFirmThresholdDTO `json:"threshold,omitempty"`
	// Validation 逐规则的校验明细，违规与预警各带阈值/当前值/接近度
	Validation   domain.ValidationResult `json:"validation"`
	Severity     string                  `json:"severity"`
	InDangerZone bool                    `json:"in_danger_zone"`
	Violated     bool                    `json:"violated"`
}

// ConsolidatedRisk 用户维度的合并风险视图
type ConsolidatedRisk struct {
	UserID string `json:"user_id"`
	// WeightedDrawdown 按当前余额加权的回撤，保留两位小数
	WeightedDrawdown     float64              `json:"weighted_drawdown"`
	TotalBalance         string               `json:"total_balance"`
	AccountsEvaluated    int                  `json:"accounts_evaluated"`
	AccountsInDangerZone int                  `json:"accounts_in_danger_zone"`
	AccountsViolated     int                  `json:"accounts_violated"`
	AccountsSkipped      int                  `json:"accounts_skipped"`
	Accounts             []AccountRiskSummary `json:"accounts"`
	// EvaluatedAt RFC3339 UTC
	EvaluatedAt string `json:"evaluated_at"`
}
