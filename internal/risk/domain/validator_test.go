package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validatorAggregate(t *testing.T, currentDD, maxDD float64, threshold *PropFirmThreshold) *RiskAggregate {
	t.Helper()
	aggregate, err := NewRiskAggregate("acc-001", RiskState{
		CurrentDrawdown: currentDD,
		MaxDrawdown:     maxDD,
		Threshold:       threshold,
	})
	require.NoError(t, err)
	return aggregate
}

func TestValidateWithoutThreshold(t *testing.T) {
	validator := PropFirmRuleValidator{}
	aggregate := validatorAggregate(t, 99, 99, nil)

	result := validator.Validate(aggregate)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Warnings)
	assert.NotNil(t, result.Violations, "序列化为 JSON 数组而不是 null")
	assert.NotNil(t, result.Warnings)
}

func TestValidateSafeZone(t *testing.T) {
	validator := PropFirmRuleValidator{}
	aggregate := validatorAggregate(t, 2, 3, testThreshold(t))

	result := validator.Validate(aggregate)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, SeverityOK, validator.OverallSeverity(result))
}

func TestValidateWarningZone(t *testing.T) {
	validator := PropFirmRuleValidator{}
	aggregate := validatorAggregate(t, 4.0, 1, testThreshold(t))

	result := validator.Validate(aggregate)
	assert.True(t, result.IsValid, "警告不影响有效性")
	assert.Empty(t, result.Violations)
	require.Len(t, result.Warnings, 1)

	warning := result.Warnings[0]
	assert.Equal(t, RuleMaxDailyLoss, warning.Rule)
	assert.Equal(t, SeverityWarning, warning.Severity)
	assert.GreaterOrEqual(t, warning.ProximityPercent, 80.0)
	assert.Less(t, warning.ProximityPercent, 90.0)
	assert.Equal(t, SeverityWarning, validator.OverallSeverity(result))
}

func TestValidateCriticalZone(t *testing.T) {
	validator := PropFirmRuleValidator{}
	aggregate := validatorAggregate(t, 4.6, 1, testThreshold(t))

	result := validator.Validate(aggregate)
	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, SeverityCritical, result.Warnings[0].Severity)
	assert.Equal(t, SeverityCritical, validator.OverallSeverity(result))
}

func TestValidateTrailingDDWarning(t *testing.T) {
	validator := PropFirmRuleValidator{}
	aggregate := validatorAggregate(t, 1, 8.5, testThreshold(t))

	result := validator.Validate(aggregate)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, RuleTrailingDrawdown, result.Warnings[0].Rule)
}

func TestValidateViolation(t *testing.T) {
	validator := PropFirmRuleValidator{}
	aggregate := validatorAggregate(t, 5.5, 1, testThreshold(t))

	result := validator.Validate(aggregate)
	assert.False(t, result.IsValid)
	require.Len(t, result.Violations, 1)

	violation := result.Violations[0]
	assert.Equal(t, RuleMaxDailyLoss, violation.Rule)
	assert.Equal(t, SeverityViolated, violation.Severity)
	assert.Equal(t, 5.5, violation.Current)
	assert.Equal(t, 5.0, violation.Threshold)
	assert.Greater(t, violation.Percentage, 100.0)

	// 违规的规则不再追加警告
	assert.Empty(t, result.Warnings)
	assert.Equal(t, SeverityViolated, validator.OverallSeverity(result))
}

func TestValidateAtThresholdViolation(t *testing.T) {
	validator := PropFirmRuleValidator{}
	// 恰好打到阈值即违规，不是警告
	aggregate := validatorAggregate(t, 5.0, 1, testThreshold(t))

	result := validator.Validate(aggregate)
	assert.False(t, result.IsValid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, 100.0, result.Violations[0].Percentage)
	assert.Empty(t, result.Warnings)
}

func TestValidateBothRulesViolated(t *testing.T) {
	validator := PropFirmRuleValidator{}
	aggregate := validatorAggregate(t, 6, 11, testThreshold(t))

	result := validator.Validate(aggregate)
	assert.False(t, result.IsValid)
	assert.Len(t, result.Violations, 2)
}

func TestValidateMixedViolationAndWarning(t *testing.T) {
	validator := PropFirmRuleValidator{}
	// MDL 违规，跟踪回撤在警告区
	aggregate := validatorAggregate(t, 5.5, 8.5, testThreshold(t))

	result := validator.Validate(aggregate)
	assert.False(t, result.IsValid)
	require.Len(t, result.Violations, 1)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, SeverityViolated, validator.OverallSeverity(result))
}

func TestFormat(t *testing.T) {
	validator := PropFirmRuleValidator{}

	clean := validator.Validate(validatorAggregate(t, 1, 1, testThreshold(t)))
	assert.Equal(t, "Status: OK", validator.Format(clean))

	dirty := validator.Validate(validatorAggregate(t, 5.5, 8.5, testThreshold(t)))
	formatted := validator.Format(dirty)
	assert.Contains(t, formatted, "VIOLATIONS (1):")
	assert.Contains(t, formatted, "WARNINGS (1):")
	assert.Contains(t, formatted, "MDL")
	assert.Contains(t, formatted, "TRAILING_DD")
}
