package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity 风险严重等级
type Severity string

const (
	SeverityOK       Severity = "OK"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
	SeverityViolated Severity = "VIOLATED"
)

// DomainEvent 领域事件公共接口
type DomainEvent interface {
	EventName() string
	EventMeta() EventMeta
}

// EventMeta 事件公共元数据：发生时间与关联 ID
type EventMeta struct {
	OccurredOn    time.Time `json:"occurred_on"`
	CorrelationID string    `json:"correlation_id"`
}

func newEventMeta() EventMeta {
	return EventMeta{
		OccurredOn:    time.Now().UTC(),
		CorrelationID: uuid.NewString(),
	}
}

// PropFirmRuleViolated 阈值被击穿事件（接近度达到 100%，打平即违规），每条被击穿的规则各发一条
type PropFirmRuleViolated struct {
	Meta           EventMeta `json:"meta"`
	AccountID      string    `json:"account_id"`
	RuleName       RuleName  `json:"rule_name"`
	CurrentValue   float64   `json:"current_value"`
	ThresholdValue float64   `json:"threshold_value"`
	FirmName       string    `json:"firm_name"`
}

// EventName 事件名
func (PropFirmRuleViolated) EventName() string { return "PropFirmRuleViolated" }

// EventMeta 事件元数据
func (e PropFirmRuleViolated) EventMeta() EventMeta { return e.Meta }

// RiskDangerZoneEntered 进入危险区事件（接近度达到阈值的 80%），只在 false→true 边沿发出
type RiskDangerZoneEntered struct {
	Meta             EventMeta `json:"meta"`
	AccountID        string    `json:"account_id"`
	RuleName         RuleName  `json:"rule_name"`
	CurrentValue     float64   `json:"current_value"`
	ThresholdValue   float64   `json:"threshold_value"`
	ProximityPercent float64   `json:"proximity_percent"`
	Severity         Severity  `json:"severity"`
	FirmName         string    `json:"firm_name"`
}

// EventName 事件名
func (RiskDangerZoneEntered) EventName() string { return "RiskDangerZoneEntered" }

// EventMeta 事件元数据
func (e RiskDangerZoneEntered) EventMeta() EventMeta { return e.Meta }
