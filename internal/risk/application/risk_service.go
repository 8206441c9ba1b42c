// 包 风险上下文的用例逻辑：合并风险评估、风险状态更新、每日快照
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/aetheris/internal/risk/domain"
	"github.com/wyfcoding/aetheris/pkg/logger"
	"github.com/wyfcoding/aetheris/pkg/metrics"
)

// RiskApplicationService 风险应用服务。
// 鉴权、批量取数、加权合并都在这一层编排，领域规则全部下沉到 domain。
type RiskApplicationService struct {
	accountRepo domain.AccountRepository
	riskRepo    domain.RiskRepository
	publisher   domain.EventPublisher
	validator   domain.PropFirmRuleValidator
	collector   metrics.MetricsCollector
}

// NewRiskApplicationService 创建风险应用服务
func NewRiskApplicationService(
	accountRepo domain.AccountRepository,
	riskRepo domain.RiskRepository,
	publisher domain.EventPublisher,
) *RiskApplicationService {
	return &RiskApplicationService{
		accountRepo: accountRepo,
		riskRepo:    riskRepo,
		publisher:   publisher,
	}
}

// WithMetrics 挂载业务指标收集器，collector 为 nil 时不采集
func (s *RiskApplicationService) WithMetrics(collector metrics.MetricsCollector) *RiskApplicationService {
	s.collector = collector
	return s
}

// AggregateAccountRisk 合并一个用户多个账户的风险视图。
// 用例流程：
// 1. 逐个校验账户归属（账户不存在与归属他人一律返回 ErrUnauthorized，不泄露存在性）
// 2. 单条 IN 查询批量加载风险聚合
// 3. 缺少风险状态的账户记 warn 后跳过
// 4. 按当前余额加权合并回撤，保留两位小数
func (s *RiskApplicationService) AggregateAccountRisk(ctx context.Context, cmd AggregateRiskCommand) (*ConsolidatedRisk, error) {
	if cmd.UserID == "" {
		return nil, fmt.Errorf("user_id is required: %w", domain.ErrInvalidValue)
	}
	if len(cmd.AccountIDs) == 0 {
		return nil, fmt.Errorf("account_ids is required: %w", domain.ErrInvalidValue)
	}
	defer logger.LogDuration(ctx, "risk aggregation completed", "user_id", cmd.UserID, "accounts", len(cmd.AccountIDs))()

	refs, err := s.authorizeAccounts(ctx, cmd.UserID, cmd.AccountIDs)
	if err != nil {
		return nil, err
	}

	aggregates, err := s.riskRepo.FindByAccounts(ctx, cmd.AccountIDs)
	if err != nil {
		logger.Error(ctx, "failed to load risk aggregates",
			"user_id", cmd.UserID,
			"accounts", len(cmd.AccountIDs),
			"error", err,
		)
		return nil, fmt.Errorf("failed to load risk aggregates: %w", err)
	}

	byAccount := make(map[string]*domain.RiskAggregate, len(aggregates))
	for _, aggregate := range aggregates {
		byAccount[aggregate.AccountID()] = aggregate
	}

	result := &ConsolidatedRisk{
		UserID:      cmd.UserID,
		Accounts:    make([]AccountRiskSummary, 0, len(cmd.AccountIDs)),
		EvaluatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	totalBalance := decimal.Zero
	weightedSum := decimal.Zero

	for _, accountID := range cmd.AccountIDs {
		aggregate, ok := byAccount[accountID]
		if !ok {
			logger.Warn(ctx, "account has no risk state, skipping",
				"user_id", cmd.UserID,
				"account_id", accountID,
			)
			result.AccountsSkipped++
			continue
		}

		summary := s.summarize(refs[accountID], aggregate)
		result.Accounts = append(result.Accounts, summary)
		result.AccountsEvaluated++
		if summary.Violated {
			result.AccountsViolated++
		} else if summary.InDangerZone {
			result.AccountsInDangerZone++
		}

		balance := aggregate.BalanceCurrent()
		totalBalance = totalBalance.Add(balance)
		weightedSum = weightedSum.Add(balance.Mul(decimal.NewFromFloat(summary.CurrentDrawdown)))
	}

	result.TotalBalance = totalBalance.String()
	if totalBalance.IsPositive() {
		result.WeightedDrawdown = weightedSum.Div(totalBalance).Round(2).InexactFloat64()
	}

	if s.collector != nil {
		s.collector.RecordRiskEvaluation()
		s.collector.UpdateAccountsInDangerZone(int64(result.AccountsInDangerZone))
	}

	return result, nil
}

// UpdateRiskState 更新单个账户的风险状态并发布由此产生的领域事件。
// 事件先发布、快照后落库：发布失败整个用例失败，事件保留在聚合上。
func (s *RiskApplicationService) UpdateRiskState(ctx context.Context, cmd UpdateRiskStateCommand) (*AccountRiskSummary, error) {
	if cmd.UserID == "" || cmd.AccountID == "" {
		return nil, fmt.Errorf("user_id and account_id are required: %w", domain.ErrInvalidValue)
	}

	refs, err := s.authorizeAccounts(ctx, cmd.UserID, []string{cmd.AccountID})
	if err != nil {
		return nil, err
	}

	aggregate, err := s.riskRepo.FindByAccount(ctx, cmd.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk aggregate: %w", err)
	}
	if aggregate == nil {
		return nil, domain.ErrAccountNotFound
	}

	change, err := buildStateChange(cmd)
	if err != nil {
		return nil, err
	}

	if err := aggregate.UpdateState(change); err != nil {
		return nil, err
	}

	if events := aggregate.UncommittedEvents(); len(events) > 0 {
		if err := s.publisher.Publish(ctx, events); err != nil {
			logger.Error(ctx, "failed to publish risk events",
				"account_id", cmd.AccountID,
				"events", len(events),
				"error", err,
			)
			return nil, fmt.Errorf("failed to publish risk events: %w", err)
		}
		if s.collector != nil {
			for _, event := range events {
				switch event.(type) {
				case domain.PropFirmRuleViolated:
					s.collector.RecordRuleViolation()
				case domain.RiskDangerZoneEntered:
					s.collector.RecordDangerZoneEntry()
				}
			}
		}
		aggregate.ClearUncommittedEvents()
	}

	if err := s.riskRepo.Save(ctx, aggregate); err != nil {
		logger.Error(ctx, "failed to save risk aggregate",
			"account_id", cmd.AccountID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to save risk aggregate: %w", err)
	}

	summary := s.summarize(refs[cmd.AccountID], aggregate)
	return &summary, nil
}

// RecordDailySnapshots 为用户全部账户落一份风险快照，给日终任务用
func (s *RiskApplicationService) RecordDailySnapshots(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user_id is required: %w", domain.ErrInvalidValue)
	}

	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return 0, nil
	}

	accountIDs := make([]string, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.ID)
	}

	aggregates, err := s.riskRepo.FindByAccounts(ctx, accountIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to load risk aggregates: %w", err)
	}

	saved := 0
	for _, aggregate := range aggregates {
		if err := s.riskRepo.Save(ctx, aggregate); err != nil {
			logger.Error(ctx, "failed to save daily snapshot",
				"account_id", aggregate.AccountID(),
				"error", err,
			)
			return saved, fmt.Errorf("failed to save daily snapshot: %w", err)
		}
		saved++
	}

	logger.Info(ctx, "daily risk snapshots recorded", "user_id", userID, "count", saved)
	return saved, nil
}

// authorizeAccounts 逐个校验账户归属，全部通过才返回。
// 不存在的账户与归属他人的账户都折叠成 ErrUnauthorized。
func (s *RiskApplicationService) authorizeAccounts(ctx context.Context, userID string, accountIDs []string) (map[string]*domain.AccountRef, error) {
	refs := make(map[string]*domain.AccountRef, len(accountIDs))
	for _, accountID := range accountIDs {
		ref, err := s.accountRepo.FindByID(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
		}
		if ref == nil || ref.UserID != userID {
			logger.Warn(ctx, "account access denied",
				"user_id", userID,
				"account_id", accountID,
			)
			return nil, domain.ErrUnauthorized
		}
		refs[accountID] = ref
	}
	return refs, nil
}

func (s *RiskApplicationService) summarize(ref *domain.AccountRef, aggregate *domain.RiskAggregate) AccountRiskSummary {
	validation := s.validator.Validate(aggregate)

	summary := AccountRiskSummary{
		AccountID:        aggregate.AccountID(),
		CurrentDrawdown:  aggregate.CurrentDrawdown().Value(),
		MaxDrawdown:      aggregate.MaxDrawdown().Value(),
		DailyLossPercent: aggregate.DailyLossPercent().Value(),
		BalanceCurrent:   aggregate.BalanceCurrent().String(),
		Validation:       validation,
		Severity:         string(s.validator.OverallSeverity(validation)),
		InDangerZone:     aggregate.IsInDangerZone(),
		Violated:         aggregate.IsViolated(),
	}
	if ref != nil {
		summary.BrokerName = ref.BrokerName
	}
	if threshold := aggregate.Threshold(); threshold != nil {
		summary.Threshold = &PropFirmThresholdDTO{
			FirmName:                   threshold.FirmName(),
			MaxDailyLossPercent:        threshold.MaxDailyLossPercent().Value(),
			MaxTrailingDrawdownPercent: threshold.MaxTrailingDrawdownPercent().Value(),
		}
	}
	return summary
}

func buildStateChange(cmd UpdateRiskStateCommand) (domain.StateChange, error) {
	change := domain.StateChange{
		CurrentDrawdown: cmd.CurrentDrawdown,
		MaxDrawdown:     cmd.MaxDrawdown,
	}

	if cmd.BalanceCurrent != nil {
		balance, err := decimal.NewFromString(*cmd.BalanceCurrent)
		if err != nil {
			return domain.StateChange{}, fmt.Errorf("invalid balance_current: %w", domain.ErrInvalidValue)
		}
		change.BalanceCurrent = &balance
	}
	if cmd.BalanceStartOfDay != nil {
		balance, err := decimal.NewFromString(*cmd.BalanceStartOfDay)
		if err != nil {
			return domain.StateChange{}, fmt.Errorf("invalid balance_start_of_day: %w", domain.ErrInvalidValue)
		}
		change.BalanceStartOfDay = &balance
	}

	return change, nil
}
