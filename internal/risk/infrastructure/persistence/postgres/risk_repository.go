package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/aetheris/internal/risk/domain"
)

// 自营商规则只配置了一部分时，缺失字段的保守默认值
const (
	defaultMaxDailyLossPercent        = 5.0
	defaultMaxTrailingDrawdownPercent = 10.0
	defaultFirmName                   = "Unknown"
)

var oneHundred = decimal.NewFromInt(100)

type riskRepository struct {
	db *gorm.DB
}

// NewRiskRepository 创建并返回一个新的 RiskRepository 实例。
func NewRiskRepository(db *gorm.DB) domain.RiskRepository {
	return &riskRepository{db: db}
}

func (r *riskRepository) FindByAccount(ctx context.Context, accountID string) (*domain.RiskAggregate, error) {
	var model AccountModel
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toAggregate(&model)
}

func (r *riskRepository) FindByAccounts(ctx context.Context, accountIDs []string) ([]*domain.RiskAggregate, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	var models []*AccountModel
	err := r.db.WithContext(ctx).Where("account_id IN ?", accountIDs).Find(&models).Error
	if err != nil {
		return nil, err
	}

	aggregates := make([]*domain.RiskAggregate, 0, len(models))
	for _, model := range models {
		aggregate, err := toAggregate(model)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, aggregate)
	}
	return aggregates, nil
}

// Save 追加一条风险快照。账户余额本身归账户上下文管，这里只留痕。
func (r *riskRepository) Save(ctx context.Context, aggregate *domain.RiskAggregate) error {
	if aggregate == nil {
		return nil
	}

	state := aggregate.Snapshot()
	model := &RiskSnapshotModel{
		AccountID:         aggregate.AccountID(),
		CurrentDrawdown:   state.CurrentDrawdown,
		MaxDrawdown:       state.MaxDrawdown,
		BalanceCurrent:    state.BalanceCurrent,
		BalanceStartOfDay: state.BalanceStartOfDay,
		InDangerZone:      aggregate.IsInDangerZone(),
		Violated:          aggregate.IsViolated(),
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// toAggregate 从账户行重建风险聚合，回撤按余额现算
func toAggregate(model *AccountModel) (*domain.RiskAggregate, error) {
	threshold, err := thresholdFromModel(model)
	if err != nil {
		return nil, fmt.Errorf("account %s has invalid prop firm config: %w", model.AccountID, err)
	}

	aggregate, err := domain.NewRiskAggregate(model.AccountID, domain.RiskState{
		CurrentDrawdown:   drawdownPercent(model.BalanceStartOfDay, model.Balance),
		MaxDrawdown:       drawdownPercent(model.MaxBalance, model.Balance),
		Threshold:         threshold,
		BalanceStartOfDay: model.BalanceStartOfDay,
		BalanceCurrent:    model.Balance,
	})
	if err != nil {
		return nil, fmt.Errorf("account %s has invalid risk state: %w", model.AccountID, err)
	}
	return aggregate, nil
}

// thresholdFromModel 未绑定自营商规则的账户没有阈值，返回 nil；
// 只配置了一部分时保留已有字段，缺失字段取默认值
func thresholdFromModel(model *AccountModel) (*domain.PropFirmThreshold, error) {
	if model.PropFirmName == nil && model.MaxDailyLossPercent == nil && model.MaxTrailingDrawdownPercent == nil {
		return nil, nil
	}

	firmName := defaultFirmName
	if model.PropFirmName != nil {
		firmName = *model.PropFirmName
	} else if model.BrokerName != "" {
		firmName = model.BrokerName
	}

	dailyLoss := defaultMaxDailyLossPercent
	if model.MaxDailyLossPercent != nil {
		dailyLoss = *model.MaxDailyLossPercent
	}
	trailing := defaultMaxTrailingDrawdownPercent
	if model.MaxTrailingDrawdownPercent != nil {
		trailing = *model.MaxTrailingDrawdownPercent
	}

	return domain.NewPropFirmThreshold(firmName, dailyLoss, trailing)
}

// drawdownPercent (reference - current) / reference * 100，截断到 [0, 100]
func drawdownPercent(reference, current decimal.Decimal) float64 {
	if !reference.IsPositive() {
		return 0
	}

	percent := reference.Sub(current).Div(reference).Mul(oneHundred)
	if percent.IsNegative() {
		return 0
	}
	if percent.GreaterThan(oneHundred) {
		return 100
	}
	return percent.InexactFloat64()
}
