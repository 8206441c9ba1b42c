package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/aetheris/internal/risk/application"
	"github.com/wyfcoding/aetheris/internal/risk/domain"
	"github.com/wyfcoding/aetheris/pkg/middleware"
)

type stubAccountRepo struct {
	refs map[string]*domain.AccountRef
}

func (s *stubAccountRepo) FindByID(_ context.Context, accountID string) (*domain.AccountRef, error) {
	return s.refs[accountID], nil
}

func (s *stubAccountRepo) ListByUser(_ context.Context, userID string) ([]*domain.AccountRef, error) {
	var refs []*domain.AccountRef
	for _, ref := range s.refs {
		if ref.UserID == userID {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

type stubRiskRepo struct {
	aggregates map[string]*domain.RiskAggregate
}

func (s *stubRiskRepo) FindByAccount(_ context.Context, accountID string) (*domain.RiskAggregate, error) {
	return s.aggregates[accountID], nil
}

func (s *stubRiskRepo) FindByAccounts(_ context.Context, accountIDs []string) ([]*domain.RiskAggregate, error) {
	var result []*domain.RiskAggregate
	for _, id := range accountIDs {
		if aggregate, ok := s.aggregates[id]; ok {
			result = append(result, aggregate)
		}
	}
	return result, nil
}

func (s *stubRiskRepo) Save(_ context.Context, _ *domain.RiskAggregate) error { return nil }

type stubPublisher struct{}

func (stubPublisher) Publish(_ context.Context, _ []domain.DomainEvent) error { return nil }

func testRouter(t *testing.T, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	threshold, err := domain.NewPropFirmThreshold("FTMO", 5, 10)
	require.NoError(t, err)
	aggregate, err := domain.NewRiskAggregate("acc-001", domain.RiskState{
		CurrentDrawdown:   3,
		MaxDrawdown:       3,
		Threshold:         threshold,
		BalanceStartOfDay: decimal.NewFromInt(10000),
		BalanceCurrent:    decimal.NewFromInt(9700),
	})
	require.NoError(t, err)

	service := application.NewRiskApplicationService(
		&stubAccountRepo{refs: map[string]*domain.AccountRef{
			"acc-001":   {ID: "acc-001", UserID: "user-1", BrokerName: "FTMO"},
			"acc-other": {ID: "acc-other", UserID: "user-2", BrokerName: "FTMO"},
		}},
		&stubRiskRepo{aggregates: map[string]*domain.RiskAggregate{"acc-001": aggregate}},
		stubPublisher{},
	)

	router := gin.New()
	if userID != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.UserIDKey, userID)
			c.Next()
		})
	}
	NewRiskHandler(service, nil).RegisterRoutes(&router.RouterGroup)
	return router
}

func TestAggregateRiskEndpoint(t *testing.T) {
	router := testRouter(t, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/risk/aggregated?account_ids=acc-001", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data application.ConsolidatedRisk `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "user-1", body.Data.UserID)
	assert.Equal(t, 1, body.Data.AccountsEvaluated)
	require.Len(t, body.Data.Accounts, 1)
	assert.Equal(t, "acc-001", body.Data.Accounts[0].AccountID)
}

func TestAggregateRiskRequiresAuth(t *testing.T) {
	router := testRouter(t, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/risk/aggregated?account_ids=acc-001", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAggregateRiskMissingAccountIDs(t *testing.T) {
	router := testRouter(t, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/risk/aggregated", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAggregateRiskForbiddenForForeignAccount(t *testing.T) {
	router := testRouter(t, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/risk/aggregated?account_ids=acc-001,acc-other", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateRiskStateEndpoint(t *testing.T) {
	router := testRouter(t, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/risk/accounts/acc-001/state",
		strings.NewReader(`{"current_drawdown": 4.0}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data application.AccountRiskSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 4.0, body.Data.CurrentDrawdown)
	assert.True(t, body.Data.InDangerZone)
}

func TestUpdateRiskStateRejectsInvalidDrawdown(t *testing.T) {
	router := testRouter(t, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/risk/accounts/acc-001/state",
		strings.NewReader(`{"current_drawdown": 150}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateRiskStateUnknownAccount(t *testing.T) {
	router := testRouter(t, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/risk/accounts/acc-unknown/state",
		strings.NewReader(`{"current_drawdown": 4.0}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// 归属校验在取数之前：不存在的账户表现为 403 而不是 404
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecordSnapshotsEndpoint(t *testing.T) {
	router := testRouter(t, "user-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/risk/snapshots", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data["snapshots"])
}
