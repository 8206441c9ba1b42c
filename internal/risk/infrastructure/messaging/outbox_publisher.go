// Package messaging 风险领域事件的 Outbox 发布与 Kafka 转发
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wyfcoding/aetheris/internal/risk/domain"
	"github.com/wyfcoding/aetheris/pkg/logger"
	"github.com/wyfcoding/aetheris/pkg/mq"
	"github.com/wyfcoding/aetheris/pkg/utils"
)

const (
	statusPending = "pending"
	statusSent    = "sent"

	// RiskEventsTopic 风险事件统一投递到这个主题
	RiskEventsTopic = "risk.events"

	maxSendAttempts    = 3
	initialSendBackoff = 100 * time.Millisecond
	maxSendBackoff     = time.Second
)

// OutboxMessage 事件出站表映射
type OutboxMessage struct {
	ID        string    `gorm:"type:uuid;primary_key"`
	EventID   string    `gorm:"type:uuid;index"`
	EventType string    `gorm:"type:varchar(100);index"`
	AccountID string    `gorm:"type:varchar(36);index"`
	Payload   string    `gorm:"type:text"`
	Status    string    `gorm:"type:varchar(20);index;default:'pending'"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "risk_outbox_messages"
}

// OutboxEventPublisher 实现 EventPublisher 接口，使用 Outbox 模式。
// Publish 只落库，真正的投递由 ProcessOutboxMessages 异步完成。
type OutboxEventPublisher struct {
	db       *gorm.DB
	producer *mq.KafkaProducer
}

// NewOutboxEventPublisher 创建新的 OutboxEventPublisher 实例
func NewOutboxEventPublisher(db *gorm.DB, producer *mq.KafkaProducer) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: db, producer: producer}
}

// Publish 将一批领域事件写入出站表，单事务保证全部成功或全部失败
func (p *OutboxEventPublisher) Publish(ctx context.Context, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]OutboxMessage, 0, len(events))
	now := time.Now()
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		messages = append(messages, OutboxMessage{
			ID:        uuid.NewString(),
			EventID:   event.EventMeta().CorrelationID,
			EventType: event.EventName(),
			AccountID: accountIDOf(event),
			Payload:   string(payload),
			Status:    statusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	return p.db.WithContext(ctx).Create(&messages).Error
}

// ProcessOutboxMessages 批量转发待投递的消息到 Kafka
func (p *OutboxEventPublisher) ProcessOutboxMessages(ctx context.Context, batchSize int) error {
	var messages []OutboxMessage
	if err := p.db.WithContext(ctx).
		Where("status = ?", statusPending).
		Order("created_at").
		Limit(batchSize).
		Find(&messages).Error; err != nil {
		return err
	}

	for _, message := range messages {
		err := utils.RetryWithBackoff(maxSendAttempts, initialSendBackoff, maxSendBackoff, func() error {
			return p.producer.SendMessage(ctx, RiskEventsTopic, message.AccountID, json.RawMessage(message.Payload))
		})
		if err != nil {
			logger.Error(ctx, "failed to relay outbox message",
				"message_id", message.ID,
				"event_type", message.EventType,
				"error", err,
			)
			return err
		}
		if err := p.db.WithContext(ctx).Model(&message).Update("status", statusSent).Error; err != nil {
			return err
		}
	}

	return nil
}

// CleanupProcessedMessages 清理已投递的消息
func (p *OutboxEventPublisher) CleanupProcessedMessages(ctx context.Context, before time.Time) error {
	return p.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", statusSent, before).
		Delete(&OutboxMessage{}).Error
}

// StartRelay 周期性转发出站消息，直到 ctx 取消
func (p *OutboxEventPublisher) StartRelay(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ProcessOutboxMessages(ctx, batchSize); err != nil {
				logger.Error(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

func accountIDOf(event domain.DomainEvent) string {
	switch e := event.(type) {
	case domain.PropFirmRuleViolated:
		return e.AccountID
	case domain.RiskDangerZoneEntered:
		return e.AccountID
	default:
		return ""
	}
}
