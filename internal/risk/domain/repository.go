package domain

import "context"

// AccountRef 账户元数据，用于鉴权与展示。
type AccountRef struct {
	ID         string
	UserID     string
	BrokerName string
}

// AccountRepository 账户元数据仓储接口。
// FindByID 对不存在的账户返回 (nil, nil) 而不是错误；
// 返回 error 只用于仓储层本身的故障（连接等）。
type AccountRepository interface {
	FindByID(ctx context.Context, accountID string) (*AccountRef, error)
	// ListByUser 返回某用户的全部账户
	ListByUser(ctx context.Context, userID string) ([]*AccountRef, error)
}

// RiskRepository 风险聚合仓储接口。
type RiskRepository interface {
	// FindByAccount 查询单个账户的风险聚合，不存在返回 (nil, nil)
	FindByAccount(ctx context.Context, accountID string) (*RiskAggregate, error)
	// FindByAccounts 批量查询，实现必须用单条查询（IN 子句）取数，严禁逐账户查询
	FindByAccounts(ctx context.Context, accountIDs []string) ([]*RiskAggregate, error)
	// Save 持久化聚合快照。风险总是从账户余额按需重算时允许实现为空操作
	Save(ctx context.Context, aggregate *RiskAggregate) error
}

// EventPublisher 领域事件发布出口。调用方负责在变更后及时 drain 聚合的事件并发布。
type EventPublisher interface {
	Publish(ctx context.Context, events []DomainEvent) error
}
