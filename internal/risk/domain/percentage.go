// 包 domain 风险服务的领域模型：值对象、聚合根、领域事件、领域服务与仓储接口
package domain

import (
	"fmt"
	"math"
)

// DrawdownPercentage 回撤百分比值对象，取值范围 [0,100]，不可变。
// 零值即 0% 回撤，可直接使用。
type DrawdownPercentage struct {
	value float64
}

// NewDrawdownPercentage 创建回撤百分比。
// 非有限数或超出 [0,100] 返回 ErrInvalidValue。
func NewDrawdownPercentage(value float64) (DrawdownPercentage, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return DrawdownPercentage{}, fmt.Errorf("%w: value must be a finite number", ErrInvalidValue)
	}
	if value < 0 || value > 100 {
		return DrawdownPercentage{}, fmt.Errorf("%w: value must be between 0 and 100, got %v", ErrInvalidValue, value)
	}
	return DrawdownPercentage{value: value}, nil
}

// ZeroDrawdown 零回撤（无亏损）
func ZeroDrawdown() DrawdownPercentage {
	return DrawdownPercentage{}
}

// clampedDrawdown 将派生计算结果截断到 [0,100] 后构造，仅供包内派生值使用
func clampedDrawdown(value float64) DrawdownPercentage {
	return DrawdownPercentage{value: math.Max(0, math.Min(value, 100))}
}

// Value 百分比数值
func (d DrawdownPercentage) Value() float64 {
	return d.value
}

// IsAbove 是否严格超过阈值。阈值同样是合法百分比，越界阈值在构造期即被拒绝。
func (d DrawdownPercentage) IsAbove(threshold DrawdownPercentage) bool {
	return d.value > threshold.value
}

// IsAtOrAbove 是否达到或超过阈值。违规判定用这一条：恰好打到阈值即算违规。
func (d DrawdownPercentage) IsAtOrAbove(threshold DrawdownPercentage) bool {
	return d.value >= threshold.value
}

// DistanceTo 与阈值的带符号距离（value - threshold）
func (d DrawdownPercentage) DistanceTo(threshold DrawdownPercentage) float64 {
	return d.value - threshold.value
}

// ProximityPercent 距阈值的接近度：(value / threshold) × 100。
// 阈值为 0 时返回 0，这是刻意的策略选择而非数值巧合，避免调用方除零崩溃。
func (d DrawdownPercentage) ProximityPercent(threshold DrawdownPercentage) float64 {
	if threshold.value == 0 {
		return 0
	}
	return d.value / threshold.value * 100
}

// Formatted 两位小数的百分比字符串，如 "12.34%"
func (d DrawdownPercentage) Formatted() string {
	return fmt.Sprintf("%.2f%%", d.value)
}

func (d DrawdownPercentage) String() string {
	return d.Formatted()
}
