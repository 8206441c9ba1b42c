package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testThreshold(t *testing.T) *PropFirmThreshold {
	t.Helper()
	threshold, err := NewPropFirmThreshold("FTMO", 5, 10)
	require.NoError(t, err)
	return threshold
}

func testAggregate(t *testing.T, currentDrawdown float64) *RiskAggregate {
	t.Helper()
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		CurrentDrawdown:   currentDrawdown,
		MaxDrawdown:       currentDrawdown,
		Threshold:         testThreshold(t),
		BalanceStartOfDay: decimal.NewFromInt(10000),
		BalanceCurrent:    decimal.NewFromInt(9500),
	})
	require.NoError(t, err)
	return aggregate
}

func floatPtr(v float64) *float64 { return &v }

func decimalPtr(v decimal.Decimal) *decimal.Decimal { return &v }

func TestNewRiskAggregateValidation(t *testing.T) {
	_, err := NewRiskAggregate("acc-001", RiskState{CurrentDrawdown: 101})
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = NewRiskAggregate("acc-001", RiskState{MaxDrawdown: -1})
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = NewRiskAggregate("acc-001", RiskState{
		BalanceCurrent: decimal.NewFromInt(-1),
	})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestDailyLossPercent(t *testing.T) {
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		BalanceStartOfDay: decimal.NewFromInt(10000),
		BalanceCurrent:    decimal.NewFromInt(9500),
	})
	require.NoError(t, err)
	assert.InDelta(t, 5, aggregate.DailyLossPercent().Value(), 1e-9)
}

func TestDailyLossPercentZeroStartBalance(t *testing.T) {
	// 全新账户没有起始余额：定义为 0 而不是报错
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		BalanceCurrent: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, aggregate.DailyLossPercent().Value())
}

func TestDailyLossPercentClamped(t *testing.T) {
	// 当日盈利时亏损为负，截断到 0
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		BalanceStartOfDay: decimal.NewFromInt(10000),
		BalanceCurrent:    decimal.NewFromInt(12000),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, aggregate.DailyLossPercent().Value())
}

func TestStatusWithoutThreshold(t *testing.T) {
	// 未配置阈值的账户无论回撤多大都是 OK
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		CurrentDrawdown: 99,
		MaxDrawdown:     99,
	})
	require.NoError(t, err)

	assert.False(t, aggregate.IsInDangerZone())
	assert.False(t, aggregate.IsCritical())
	assert.False(t, aggregate.IsViolated())
}

func TestDangerZoneBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		drawdown   float64
		inDanger   bool
		isCritical bool
		violated   bool
	}{
		{"below danger at 79%", 3.95, false, false, false},
		{"danger at 80%", 4.0, true, false, false},
		{"danger above 80%", 4.05, true, false, false},
		{"critical at 90%", 4.5, true, true, false},
		{"critical above 90%", 4.55, true, true, false},
		{"at threshold violated", 5.0, true, true, true},
		{"above threshold violated", 5.1, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aggregate, err := NewRiskAggregate("acc-001", RiskState{
				CurrentDrawdown: tt.drawdown,
				Threshold:       testThreshold(t),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.inDanger, aggregate.IsInDangerZone())
			assert.Equal(t, tt.isCritical, aggregate.IsCritical())
			assert.Equal(t, tt.violated, aggregate.IsViolated())
		})
	}
}

func TestDangerZoneViaTrailingDD(t *testing.T) {
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		CurrentDrawdown: 1,
		MaxDrawdown:     8.5, // 85% of the 10% trailing threshold
		Threshold:       testThreshold(t),
	})
	require.NoError(t, err)
	assert.True(t, aggregate.IsInDangerZone())
}

func TestNoEventsAtConstruction(t *testing.T) {
	// 构造时观察到的危险/违规只是初始基线，不产生事件
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		CurrentDrawdown: 6,
		MaxDrawdown:     11,
		Threshold:       testThreshold(t),
	})
	require.NoError(t, err)
	assert.Empty(t, aggregate.UncommittedEvents())
}

func TestDangerZoneEntryEmitsWarning(t *testing.T) {
	aggregate := testAggregate(t, 3.0)

	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(4.0)}))

	events := aggregate.UncommittedEvents()
	require.Len(t, events, 1)
	event, ok := events[0].(RiskDangerZoneEntered)
	require.True(t, ok)
	assert.Equal(t, RuleMaxDailyLoss, event.RuleName)
	assert.Equal(t, SeverityWarning, event.Severity)
	assert.Equal(t, "acc-001", event.AccountID)
	assert.Equal(t, "FTMO", event.FirmName)
	assert.GreaterOrEqual(t, event.ProximityPercent, 80.0)
	assert.NotEmpty(t, event.Meta.CorrelationID)
	assert.False(t, event.Meta.OccurredOn.IsZero())
}

func TestDirectJumpToCriticalSkipsWarning(t *testing.T) {
	// 边沿检测只看更新后的终态：3.0 → 4.5 直接产生 CRITICAL，一条事件
	aggregate := testAggregate(t, 3.0)

	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(4.5)}))

	events := aggregate.UncommittedEvents()
	require.Len(t, events, 1)
	event, ok := events[0].(RiskDangerZoneEntered)
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, event.Severity)
}

func TestSustainedDangerDoesNotRefire(t *testing.T) {
	aggregate := testAggregate(t, 3.0)
	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(4.2)}))
	require.Len(t, aggregate.UncommittedEvents(), 1)
	aggregate.ClearUncommittedEvents()

	// true→true 不再发事件
	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(4.3)}))
	assert.Empty(t, aggregate.UncommittedEvents())
}

func TestSustainedViolationDoesNotRefire(t *testing.T) {
	aggregate := testAggregate(t, 3.0)
	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(5.1)}))
	aggregate.ClearUncommittedEvents()

	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(5.5)}))
	assert.Empty(t, aggregate.UncommittedEvents())
}

func TestRecoveryEmitsNothing(t *testing.T) {
	aggregate := testAggregate(t, 3.0)
	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(4.2)}))
	aggregate.ClearUncommittedEvents()

	// true→false 的恢复只能通过 getter 观察
	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(1.0)}))
	assert.Empty(t, aggregate.UncommittedEvents())
	assert.False(t, aggregate.IsInDangerZone())

	// 再次跨越是新的边沿，重新发事件
	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(4.2)}))
	assert.Len(t, aggregate.UncommittedEvents(), 1)
}

func TestViolationEmitsPerRule(t *testing.T) {
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		CurrentDrawdown: 1,
		MaxDrawdown:     1,
		Threshold:       testThreshold(t),
	})
	require.NoError(t, err)

	// 两条规则同时跨越：一条危险区事件 + 两条违规事件
	require.NoError(t, aggregate.UpdateState(StateChange{
		CurrentDrawdown: floatPtr(6),
		MaxDrawdown:     floatPtr(11),
	}))

	var violations []PropFirmRuleViolated
	var dangers []RiskDangerZoneEntered
	for _, event := range aggregate.UncommittedEvents() {
		switch e := event.(type) {
		case PropFirmRuleViolated:
			violations = append(violations, e)
		case RiskDangerZoneEntered:
			dangers = append(dangers, e)
		}
	}

	require.Len(t, violations, 2)
	assert.Equal(t, RuleMaxDailyLoss, violations[0].RuleName)
	assert.Equal(t, RuleTrailingDrawdown, violations[1].RuleName)
	require.Len(t, dangers, 1)
}

func TestViolationSingleRule(t *testing.T) {
	aggregate := testAggregate(t, 1.0)

	require.NoError(t, aggregate.UpdateState(StateChange{CurrentDrawdown: floatPtr(5.5)}))

	var violations []PropFirmRuleViolated
	for _, event := range aggregate.UncommittedEvents() {
		if e, ok := event.(PropFirmRuleViolated); ok {
			violations = append(violations, e)
		}
	}
	require.Len(t, violations, 1)
	assert.Equal(t, RuleMaxDailyLoss, violations[0].RuleName)
	assert.Equal(t, 5.5, violations[0].CurrentValue)
	assert.Equal(t, 5.0, violations[0].ThresholdValue)
}

func TestUpdateStateWholeCallAtomicity(t *testing.T) {
	aggregate := testAggregate(t, 3.0)

	// 后一个字段非法时整个调用不落地，先校验通过的字段也不生效
	err := aggregate.UpdateState(StateChange{
		CurrentDrawdown: floatPtr(4.5),
		MaxDrawdown:     floatPtr(150),
	})
	require.ErrorIs(t, err, ErrInvalidValue)

	assert.Equal(t, 3.0, aggregate.CurrentDrawdown().Value())
	assert.Equal(t, 3.0, aggregate.MaxDrawdown().Value())
	assert.Empty(t, aggregate.UncommittedEvents())
}

func TestUpdateStateBalances(t *testing.T) {
	aggregate := testAggregate(t, 1.0)

	require.NoError(t, aggregate.UpdateState(StateChange{
		BalanceCurrent:    decimalPtr(decimal.NewFromInt(9000)),
		BalanceStartOfDay: decimalPtr(decimal.NewFromInt(10000)),
	}))
	assert.InDelta(t, 10, aggregate.DailyLossPercent().Value(), 1e-9)

	err := aggregate.UpdateState(StateChange{
		BalanceCurrent: decimalPtr(decimal.NewFromInt(-5)),
	})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestSnapshotRoundTrip(t *testing.T) {
	aggregate := testAggregate(t, 3.0)
	snapshot := aggregate.Snapshot()

	assert.Equal(t, 3.0, snapshot.CurrentDrawdown)
	assert.True(t, snapshot.BalanceStartOfDay.Equal(decimal.NewFromInt(10000)))
	require.NotNil(t, snapshot.Threshold)
	assert.Equal(t, "FTMO", snapshot.Threshold.FirmName())

	rebuilt, err := NewRiskAggregate(aggregate.AccountID(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, aggregate.CurrentDrawdown(), rebuilt.CurrentDrawdown())
}

func TestSnapshotJSONCarriesThreshold(t *testing.T) {
	raw, err := json.Marshal(testAggregate(t, 3.0).Snapshot())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	threshold, ok := decoded["threshold"].(map[string]any)
	require.True(t, ok, "阈值以朴素字段出现在全量序列化里")
	assert.Equal(t, "FTMO", threshold["firm_name"])
	assert.Equal(t, 5.0, threshold["max_daily_loss_percent"])
	assert.Equal(t, 10.0, threshold["max_trailing_drawdown_percent"])
}

func TestSnapshotJSONNullThreshold(t *testing.T) {
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		CurrentDrawdown:   3.0,
		MaxDrawdown:       3.0,
		BalanceStartOfDay: decimal.NewFromInt(10000),
		BalanceCurrent:    decimal.NewFromInt(9700),
	})
	require.NoError(t, err)

	raw, err := json.Marshal(aggregate.Snapshot())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	value, present := decoded["threshold"]
	assert.True(t, present)
	assert.Nil(t, value)
}
