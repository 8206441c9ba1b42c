package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RuleName 风控规则名
type RuleName string

const (
	// RuleMaxDailyLoss 日内最大亏损（MDL），以当日起始余额为基准
	RuleMaxDailyLoss RuleName = "MDL"
	// RuleTrailingDrawdown 跟踪回撤，以历史峰值余额为基准
	RuleTrailingDrawdown RuleName = "TRAILING_DD"
)

// PropFirmThreshold 自营交易公司（prop firm）为账户设定的回撤阈值对，不可变值对象。
// 不变量：跟踪回撤阈值 >= 日亏损阈值。
type PropFirmThreshold struct {
	firmName            string
	maxDailyLoss        DrawdownPercentage
	maxTrailingDrawdown DrawdownPercentage
}

// NewPropFirmThreshold 创建阈值对。
// firmName 不能为空；两个子百分比各自校验；违反跨字段不变量返回 ErrInvalidThreshold。
func NewPropFirmThreshold(firmName string, maxDailyLossPercent, maxTrailingDDPercent float64) (*PropFirmThreshold, error) {
	if strings.TrimSpace(firmName) == "" {
		return nil, fmt.Errorf("%w: firm name cannot be empty", ErrInvalidThreshold)
	}

	mdl, err := NewDrawdownPercentage(maxDailyLossPercent)
	if err != nil {
		return nil, err
	}
	trailing, err := NewDrawdownPercentage(maxTrailingDDPercent)
	if err != nil {
		return nil, err
	}

	if trailing.Value() < mdl.Value() {
		return nil, fmt.Errorf("%w: trailing drawdown must be >= daily loss threshold", ErrInvalidThreshold)
	}

	return &PropFirmThreshold{
		firmName:            firmName,
		maxDailyLoss:        mdl,
		maxTrailingDrawdown: trailing,
	}, nil
}

// FirmName 公司名
func (t *PropFirmThreshold) FirmName() string {
	return t.firmName
}

// MaxDailyLossPercent 日亏损阈值
func (t *PropFirmThreshold) MaxDailyLossPercent() DrawdownPercentage {
	return t.maxDailyLoss
}

// MaxTrailingDrawdownPercent 跟踪回撤阈值
func (t *PropFirmThreshold) MaxTrailingDrawdownPercent() DrawdownPercentage {
	return t.maxTrailingDrawdown
}

// IsDailyLossViolated 当前回撤是否击穿日亏损阈值（打平即违规）
func (t *PropFirmThreshold) IsDailyLossViolated(current DrawdownPercentage) bool {
	return current.IsAtOrAbove(t.maxDailyLoss)
}

// IsTrailingDDViolated 当前回撤是否击穿跟踪回撤阈值（打平即违规）
func (t *PropFirmThreshold) IsTrailingDDViolated(current DrawdownPercentage) bool {
	return current.IsAtOrAbove(t.maxTrailingDrawdown)
}

// IsViolated 任一规则被击穿即为违规
func (t *PropFirmThreshold) IsViolated(dailyLoss, trailingDD DrawdownPercentage) bool {
	return t.IsDailyLossViolated(dailyLoss) || t.IsTrailingDDViolated(trailingDD)
}

// DailyLossProximityPercent 距日亏损阈值的接近度
func (t *PropFirmThreshold) DailyLossProximityPercent(current DrawdownPercentage) float64 {
	return current.ProximityPercent(t.maxDailyLoss)
}

// TrailingDDProximityPercent 距跟踪回撤阈值的接近度
func (t *PropFirmThreshold) TrailingDDProximityPercent(current DrawdownPercentage) float64 {
	return current.ProximityPercent(t.maxTrailingDrawdown)
}

// StrictestThreshold 返回数值更小（约束更紧）的一条规则，相等时取日亏损，供展示层使用
func (t *PropFirmThreshold) StrictestThreshold() (RuleName, float64) {
	if t.maxDailyLoss.Value() <= t.maxTrailingDrawdown.Value() {
		return RuleMaxDailyLoss, t.maxDailyLoss.Value()
	}
	return RuleTrailingDrawdown, t.maxTrailingDrawdown.Value()
}

// Equal 全字段相等即相等，无外部标识
func (t *PropFirmThreshold) Equal(other *PropFirmThreshold) bool {
	if other == nil {
		return false
	}
	return t.firmName == other.firmName &&
		t.maxDailyLoss == other.maxDailyLoss &&
		t.maxTrailingDrawdown == other.maxTrailingDrawdown
}

func (t *PropFirmThreshold) String() string {
	return fmt.Sprintf("PropFirmThreshold(%s: MDL=%s, TrailingDD=%s)",
		t.firmName, t.maxDailyLoss.Formatted(), t.maxTrailingDrawdown.Formatted())
}

// MarshalJSON 以朴素字段序列化，字段私有故不能依赖默认反射
func (t *PropFirmThreshold) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FirmName                   string  `json:"firm_name"`
		MaxDailyLossPercent        float64 `json:"max_daily_loss_percent"`
		MaxTrailingDrawdownPercent float64 `json:"max_trailing_drawdown_percent"`
	}{
		FirmName:                   t.firmName,
		MaxDailyLossPercent:        t.maxDailyLoss.Value(),
		MaxTrailingDrawdownPercent: t.maxTrailingDrawdown.Value(),
	})
}
