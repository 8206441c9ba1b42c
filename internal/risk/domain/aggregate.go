package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// 危险区 / 临界 的接近度边界（占阈值的百分比）
const (
	dangerZoneProximity = 80
	criticalProximity   = 90
)

// RiskState 聚合的全量状态快照，用于构造与序列化。
// 余额为账户本币金额，本核心不做任何币种换算。
type RiskState struct {
	CurrentDrawdown   float64            `json:"current_drawdown"`
	MaxDrawdown       float64            `json:"max_drawdown"`
	Threshold         *PropFirmThreshold `json:"threshold"`
	BalanceStartOfDay decimal.Decimal    `json:"balance_start_of_day"`
	BalanceCurrent    decimal.Decimal    `json:"balance_current"`
}

// StateChange UpdateState 的部分更新：nil 字段表示不改动
type StateChange struct {
	CurrentDrawdown   *float64
	MaxDrawdown       *float64
	BalanceCurrent    *decimal.Decimal
	BalanceStartOfDay *decimal.Decimal
}

// RiskAggregate 风险聚合根，以 accountID 为键（外部分配，这里从不生成）。
// 持有单个账户的回撤状态，检测阈值跨越并在真正的状态边沿上发出领域事件。
//
// 聚合按请求从持久化余额重算、用后即弃，不做事件溯源。
// 不提供并发安全：边沿检测依赖对两个基线布尔量的读后写，
// 同一实例不得交给多个 UpdateState 调用方并发使用。
type RiskAggregate struct {
	accountID         string
	currentDrawdown   DrawdownPercentage
	maxDrawdown       DrawdownPercentage
	threshold         *PropFirmThreshold
	balanceStartOfDay decimal.Decimal
	balanceCurrent    decimal.Decimal

	uncommittedEvents []DomainEvent

	// 上一次计算的状态基线。构造时静默建立（不发事件），
	// 之后每次 UpdateState 结束都会刷新，保证事件只在 false→true 边沿发出。
	previousWasInDangerZone bool
	previousWasViolated     bool
}

// NewRiskAggregate 从调用方提供的账户状态快照构造聚合。
// 百分比经 NewDrawdownPercentage 校验，余额不允许为负。
// 构造期观察到的危险/违规只作为初始基线，不产生事件。
func NewRiskAggregate(accountID string, state RiskState) (*RiskAggregate, error) {
	current, err := NewDrawdownPercentage(state.CurrentDrawdown)
	if err != nil {
		return nil, fmt.Errorf("current drawdown: %w", err)
	}
	maxDD, err := NewDrawdownPercentage(state.MaxDrawdown)
	if err != nil {
		return nil, fmt.Errorf("max drawdown: %w", err)
	}
	if state.BalanceStartOfDay.IsNegative() || state.BalanceCurrent.IsNegative() {
		return nil, fmt.Errorf("%w: balances cannot be negative", ErrInvalidValue)
	}

	a := &RiskAggregate{
		accountID:         accountID,
		currentDrawdown:   current,
		maxDrawdown:       maxDD,
		threshold:         state.Threshold,
		balanceStartOfDay: state.BalanceStartOfDay,
		balanceCurrent:    state.BalanceCurrent,
	}
	a.previousWasInDangerZone = a.computeInDangerZone()
	a.previousWasViolated = a.computeViolated()
	return a, nil
}

// AccountID 账户 ID
func (a *RiskAggregate) AccountID() string {
	return a.accountID
}

// CurrentDrawdown 当前回撤
func (a *RiskAggregate) CurrentDrawdown() DrawdownPercentage {
	return a.currentDrawdown
}

// MaxDrawdown 历史最大回撤
func (a *RiskAggregate) MaxDrawdown() DrawdownPercentage {
	return a.maxDrawdown
}

// Threshold 配置的阈值对，未配置时为 nil（此时聚合恒为 OK）
func (a *RiskAggregate) Threshold() *PropFirmThreshold {
	return a.threshold
}

// BalanceCurrent 当前余额
func (a *RiskAggregate) BalanceCurrent() decimal.Decimal {
	return a.balanceCurrent
}

// BalanceStartOfDay 当日起始余额
func (a *RiskAggregate) BalanceStartOfDay() decimal.Decimal {
	return a.balanceStartOfDay
}

// DailyLossPercent 当日亏损占起始余额的百分比，截断到 [0,100]。
// 起始余额为 0 时返回 0（新账户没有起始余额，定义为 0 而非报错）。
func (a *RiskAggregate) DailyLossPercent() DrawdownPercentage {
	if a.balanceStartOfDay.IsZero() {
		return ZeroDrawdown()
	}
	loss := a.balanceStartOfDay.Sub(a.balanceCurrent).
		Div(a.balanceStartOfDay).
		Mul(decimal.NewFromInt(100))
	return clampedDrawdown(loss.InexactFloat64())
}

// IsInDangerZone 任一规则的接近度达到阈值的 80% 即处于危险区；未配置阈值时恒为 false
func (a *RiskAggregate) IsInDangerZone() bool {
	return a.computeInDangerZone()
}

// IsCritical 任一规则的接近度达到阈值的 90%
func (a *RiskAggregate) IsCritical() bool {
	if a.threshold == nil {
		return false
	}
	return a.threshold.DailyLossProximityPercent(a.currentDrawdown) >= criticalProximity ||
		a.threshold.TrailingDDProximityPercent(a.maxDrawdown) >= criticalProximity
}

// IsViolated 任一阈值被击穿（打平即违规，接近度 >= 100）
func (a *RiskAggregate) IsViolated() bool {
	return a.computeViolated()
}

func (a *RiskAggregate) computeInDangerZone() bool {
	if a.threshold == nil {
		return false
	}
	return a.threshold.DailyLossProximityPercent(a.currentDrawdown) >= dangerZoneProximity ||
		a.threshold.TrailingDDProximityPercent(a.maxDrawdown) >= dangerZoneProximity
}

func (a *RiskAggregate) computeViolated() bool {
	if a.threshold == nil {
		return false
	}
	return a.threshold.IsViolated(a.currentDrawdown, a.maxDrawdown)
}

// UpdateState 应用部分状态更新，然后做一次边沿检测。
// 整调用原子：所有给出的字段先全部校验，任何一个非法则聚合完全不变、
// 不做边沿检测、返回 ErrInvalidValue。
func (a *RiskAggregate) UpdateState(change StateChange) error {
	var (
		current     = a.currentDrawdown
		maxDD       = a.maxDrawdown
		balCurrent  = a.balanceCurrent
		balStartDay = a.balanceStartOfDay
		err         error
	)

	if change.CurrentDrawdown != nil {
		if current, err = NewDrawdownPercentage(*change.CurrentDrawdown); err != nil {
			return fmt.Errorf("current drawdown: %w", err)
		}
	}
	if change.MaxDrawdown != nil {
		if maxDD, err = NewDrawdownPercentage(*change.MaxDrawdown); err != nil {
			return fmt.Errorf("max drawdown: %w", err)
		}
	}
	if change.BalanceCurrent != nil {
		if change.BalanceCurrent.IsNegative() {
			return fmt.Errorf("%w: balance cannot be negative", ErrInvalidValue)
		}
		balCurrent = *change.BalanceCurrent
	}
	if change.BalanceStartOfDay != nil {
		if change.BalanceStartOfDay.IsNegative() {
			return fmt.Errorf("%w: balance cannot be negative", ErrInvalidValue)
		}
		balStartDay = *change.BalanceStartOfDay
	}

	a.currentDrawdown = current
	a.maxDrawdown = maxDD
	a.balanceCurrent = balCurrent
	a.balanceStartOfDay = balStartDay

	a.detectStateTransitions()
	return nil
}

// detectStateTransitions 边沿触发的状态机：只在 false→true 跨越时发事件。
// true→true 的持续状态与 true→false 的恢复都不发（恢复只能通过 getter 观察）。
// 无论是否发事件，基线都会刷新为本次计算结果。
func (a *RiskAggregate) detectStateTransitions() {
	nowInDangerZone := a.computeInDangerZone()
	nowViolated := a.computeViolated()

	if nowInDangerZone && !a.previousWasInDangerZone {
		severity := SeverityWarning
		if a.IsCritical() {
			severity = SeverityCritical
		}
		a.emitDangerZoneEvent(severity)
	}

	if nowViolated && !a.previousWasViolated {
		a.emitViolationEvents()
	}

	a.previousWasInDangerZone = nowInDangerZone
	a.previousWasViolated = nowViolated
}

// emitDangerZoneEvent 以此刻接近度更高的规则为准发出进入危险区事件，持平时取 MDL
func (a *RiskAggregate) emitDangerZoneEvent(severity Severity) {
	if a.threshold == nil {
		return
	}

	proximityMDL := a.threshold.DailyLossProximityPercent(a.currentDrawdown)
	proximityTrailing := a.threshold.TrailingDDProximityPercent(a.maxDrawdown)

	event := RiskDangerZoneEntered{
		Meta:      newEventMeta(),
		AccountID: a.accountID,
		Severity:  severity,
		FirmName:  a.threshold.FirmName(),
	}
	if proximityMDL >= proximityTrailing {
		event.RuleName = RuleMaxDailyLoss
		event.CurrentValue = a.currentDrawdown.Value()
		event.ThresholdValue = a.threshold.MaxDailyLossPercent().Value()
		event.ProximityPercent = proximityMDL
	} else {
		event.RuleName = RuleTrailingDrawdown
		event.CurrentValue = a.maxDrawdown.Value()
		event.ThresholdValue = a.threshold.MaxTrailingDrawdownPercent().Value()
		event.ProximityPercent = proximityTrailing
	}

	a.uncommittedEvents = append(a.uncommittedEvents, event)
}

// emitViolationEvents 每条被击穿的规则各发一条事件，同时跨越时最多两条
func (a *RiskAggregate) emitViolationEvents() {
	if a.threshold == nil {
		return
	}

	if a.threshold.IsDailyLossViolated(a.currentDrawdown) {
		a.uncommittedEvents = append(a.uncommittedEvents, PropFirmRuleViolated{
			Meta:           newEventMeta(),
			AccountID:      a.accountID,
			RuleName:       RuleMaxDailyLoss,
			CurrentValue:   a.currentDrawdown.Value(),
			ThresholdValue: a.threshold.MaxDailyLossPercent().Value(),
			FirmName:       a.threshold.FirmName(),
		})
	}

	if a.threshold.IsTrailingDDViolated(a.maxDrawdown) {
		a.uncommittedEvents = append(a.uncommittedEvents, PropFirmRuleViolated{
			Meta:           newEventMeta(),
			AccountID:      a.accountID,
			RuleName:       RuleTrailingDrawdown,
			CurrentValue:   a.maxDrawdown.Value(),
			ThresholdValue: a.threshold.MaxTrailingDrawdownPercent().Value(),
			FirmName:       a.threshold.FirmName(),
		})
	}
}

// UncommittedEvents 自上次 Clear 以来累积的未提交事件
func (a *RiskAggregate) UncommittedEvents() []DomainEvent {
	return a.uncommittedEvents
}

// ClearUncommittedEvents 清空事件队列，应在事件持久化/发布之后调用一次
func (a *RiskAggregate) ClearUncommittedEvents() {
	a.uncommittedEvents = nil
}

// Snapshot 全量状态快照，供传输与持久化
func (a *RiskAggregate) Snapshot() RiskState {
	return RiskState{
		CurrentDrawdown:   a.currentDrawdown.Value(),
		MaxDrawdown:       a.maxDrawdown.Value(),
		Threshold:         a.threshold,
		BalanceStartOfDay: a.balanceStartOfDay,
		BalanceCurrent:    a.balanceCurrent,
	}
}
