package domain

import (
	"fmt"
	"strings"
)

// RuleViolation 已击穿的规则
type RuleViolation struct {
	Rule       RuleName `json:"rule"`
	Threshold  float64  `json:"threshold"`
	Current    float64  `json:"current"`
	Severity   Severity `json:"severity"` // 恒为 VIOLATED
	Percentage float64  `json:"percentage"`
}

// RuleWarning 接近阈值但尚未击穿的规则
type RuleWarning struct {
	Rule             RuleName `json:"rule"`
	Threshold        float64  `json:"threshold"`
	Current          float64  `json:"current"`
	Severity         Severity `json:"severity"` // WARNING 或 CRITICAL
	ProximityPercent float64  `json:"proximity_percent"`
}

// ValidationResult 一次校验的结构化结果，每次 Validate 新建，不挂在聚合上
type ValidationResult struct {
	IsValid    bool            `json:"is_valid"`
	Violations []RuleViolation `json:"violations"`
	Warnings   []RuleWarning   `json:"warnings"`
}

// PropFirmRuleValidator 无状态领域服务：把聚合的当前风险归类到严重等级区间
type PropFirmRuleValidator struct{}

// Validate 逐条校验 MDL（对 current drawdown）与跟踪回撤（对 max drawdown）。
// 未配置阈值的聚合恒为有效。警告不影响 IsValid，只有违规才使其为 false。
func (v PropFirmRuleValidator) Validate(aggregate *RiskAggregate) ValidationResult {
	result := ValidationResult{
		IsValid:    true,
		Violations: []RuleViolation{},
		Warnings:   []RuleWarning{},
	}

	threshold := aggregate.Threshold()
	if threshold == nil {
		return result
	}

	v.validateRule(&result, RuleMaxDailyLoss, aggregate.CurrentDrawdown(), threshold.MaxDailyLossPercent())
	v.validateRule(&result, RuleTrailingDrawdown, aggregate.MaxDrawdown(), threshold.MaxTrailingDrawdownPercent())

	result.IsValid = len(result.Violations) == 0
	return result
}

// validateRule 单条规则：VIOLATED(>=100) > CRITICAL(>=90) > WARNING(>=80)，违规时不再追加警告
func (v PropFirmRuleValidator) validateRule(result *ValidationResult, rule RuleName, current, threshold DrawdownPercentage) {
	proximity := current.ProximityPercent(threshold)

	if current.IsAtOrAbove(threshold) {
		result.Violations = append(result.Violations, RuleViolation{
			Rule:       rule,
			Threshold:  threshold.Value(),
			Current:    current.Value(),
			Severity:   SeverityViolated,
			Percentage: proximity,
		})
		return
	}

	if proximity >= dangerZoneProximity {
		severity := SeverityWarning
		if proximity >= criticalProximity {
			severity = SeverityCritical
		}
		result.Warnings = append(result.Warnings, RuleWarning{
			Rule:             rule,
			Threshold:        threshold.Value(),
			Current:          current.Value(),
			Severity:         severity,
			ProximityPercent: proximity,
		})
	}
}

// OverallSeverity 结果中的最高严重等级：VIOLATED > CRITICAL > WARNING > OK
func (v PropFirmRuleValidator) OverallSeverity(result ValidationResult) Severity {
	if len(result.Violations) > 0 {
		return SeverityViolated
	}

	overall := SeverityOK
	for _, w := range result.Warnings {
		if w.Severity == SeverityCritical {
			return SeverityCritical
		}
		overall = SeverityWarning
	}
	return overall
}

// Format 供日志使用的多行摘要，两个列表均为空时输出 "Status: OK"
func (v PropFirmRuleValidator) Format(result ValidationResult) string {
	if len(result.Violations) == 0 && len(result.Warnings) == 0 {
		return "Status: OK"
	}

	var lines []string
	if len(result.Violations) > 0 {
		lines = append(lines, fmt.Sprintf("VIOLATIONS (%d):", len(result.Violations)))
		for _, violation := range result.Violations {
			lines = append(lines, fmt.Sprintf("  - %s: %.2f%% (threshold: %.2f%%)",
				violation.Rule, violation.Current, violation.Threshold))
		}
	}
	if len(result.Warnings) > 0 {
		lines = append(lines, fmt.Sprintf("WARNINGS (%d):", len(result.Warnings)))
		for _, warning := range result.Warnings {
			lines = append(lines, fmt.Sprintf("  - %s [%s]: %.2f%% (%.0f%% of threshold)",
				warning.Rule, warning.Severity, warning.Current, warning.ProximityPercent))
		}
	}
	return strings.Join(lines, "\n")
}
