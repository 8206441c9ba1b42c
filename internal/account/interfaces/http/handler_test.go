package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/aetheris/internal/account/application"
	"github.com/wyfcoding/aetheris/internal/account/domain"
	"github.com/wyfcoding/aetheris/pkg/middleware"
)

type memoryRepo struct {
	accounts map[string]*domain.Account
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[string]*domain.Account)}
}

func (r *memoryRepo) Save(_ context.Context, account *domain.Account) error {
	stored := *account
	r.accounts[account.AccountID] = &stored
	return nil
}

func (r *memoryRepo) Get(_ context.Context, accountID string) (*domain.Account, error) {
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (r *memoryRepo) GetByUser(_ context.Context, userID string) ([]*domain.Account, error) {
	var result []*domain.Account
	for _, account := range r.accounts {
		if account.UserID == userID {
			copied := *account
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountID < result[j].AccountID })
	return result, nil
}

func (r *memoryRepo) Delete(_ context.Context, accountID string) error {
	delete(r.accounts, accountID)
	return nil
}

func testRouter(t *testing.T, repo domain.AccountRepository, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.UserIDKey, userID)
		}
		c.Next()
	})

	service := application.NewAccountApplicationService(repo)
	NewAccountHandler(service).RegisterRoutes(&router.RouterGroup)
	return router
}

func seedAccount(t *testing.T, repo domain.AccountRepository, accountID, userID string, balance float64) {
	t.Helper()
	b := decimal.NewFromFloat(balance)
	err := repo.Save(context.Background(), &domain.Account{
		AccountID:         accountID,
		UserID:            userID,
		BrokerName:        "FTMO",
		Balance:           b,
		MaxBalance:        b,
		BalanceStartOfDay: b,
	})
	require.NoError(t, err)
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestCreateAccountEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	router := testRouter(t, repo, "user-1")

	w := doJSON(router, http.MethodPost, "/accounts", gin.H{
		"broker_name":     "IC Markets",
		"initial_balance": "10000",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	data := dataField(t, w)
	assert.Equal(t, "IC Markets", data["broker_name"])
	assert.NotEmpty(t, data["account_id"])
	assert.Len(t, repo.accounts, 1)
}

func TestCreateAccountRequiresAuth(t *testing.T) {
	router := testRouter(t, newMemoryRepo(), "")

	w := doJSON(router, http.MethodPost, "/accounts", gin.H{"broker_name": "FTMO"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAccountInvalidBody(t *testing.T) {
	router := testRouter(t, newMemoryRepo(), "user-1")

	// 缺少券商名称，领域校验拒绝
	w := doJSON(router, http.MethodPost, "/accounts", gin.H{"initial_balance": "10000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAccountEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "acc-001", "user-1", 10000)
	router := testRouter(t, repo, "user-1")

	w := doJSON(router, http.MethodGet, "/accounts/acc-001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acc-001", dataField(t, w)["account_id"])
}

func TestGetForeignAccountIsNotFound(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "acc-001", "user-2", 10000)
	router := testRouter(t, repo, "user-1")

	// 他人账户与不存在的账户返回一致，不泄露存在性
	w := doJSON(router, http.MethodGet, "/accounts/acc-001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAccountsEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "acc-002", "user-1", 5000)
	seedAccount(t, repo, "acc-001", "user-1", 10000)
	seedAccount(t, repo, "acc-003", "user-2", 8000)
	router := testRouter(t, repo, "user-1")

	w := doJSON(router, http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "acc-001", envelope.Data[0]["account_id"])
}

func TestUpdateBalanceEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "acc-001", "user-1", 10000)
	router := testRouter(t, repo, "user-1")

	w := doJSON(router, http.MethodPut, "/accounts/acc-001/balance", gin.H{"balance": "12000"})
	require.Equal(t, http.StatusOK, w.Code)

	stored := repo.accounts["acc-001"]
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(12000)))
	assert.True(t, stored.MaxBalance.Equal(decimal.NewFromInt(12000)))
}

func TestUpdateBalanceRejectsGarbage(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "acc-001", "user-1", 10000)
	router := testRouter(t, repo, "user-1")

	w := doJSON(router, http.MethodPut, "/accounts/acc-001/balance", gin.H{"balance": "not-a-number"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBindPropFirmEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "acc-001", "user-1", 10000)
	router := testRouter(t, repo, "user-1")

	w := doJSON(router, http.MethodPut, "/accounts/acc-001/prop-firm", gin.H{
		"firm_name":                     "FTMO",
		"max_daily_loss_percent":        5,
		"max_trailing_drawdown_percent": 10,
	})
	require.Equal(t, http.StatusOK, w.Code)

	stored := repo.accounts["acc-001"]
	require.NotNil(t, stored.PropFirmName)
	assert.Equal(t, "FTMO", *stored.PropFirmName)
}

func TestBindPropFirmInvalidRule(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "acc-001", "user-1", 10000)
	router := testRouter(t, repo, "user-1")

	// 追踪回撤上限不能低于日亏损上限
	w := doJSON(router, http.MethodPut, "/accounts/acc-001/prop-firm", gin.H{
		"firm_name":                     "FTMO",
		"max_daily_loss_percent":        10,
		"max_trailing_drawdown_percent": 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetDayEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "acc-001", "user-1", 10000)
	seedAccount(t, repo, "acc-002", "user-1", 5000)
	repo.accounts["acc-001"].Balance = decimal.NewFromInt(9000)
	router := testRouter(t, repo, "user-1")

	w := doJSON(router, http.MethodPost, "/accounts/reset-day", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), dataField(t, w)["reset"])
	assert.True(t, repo.accounts["acc-001"].BalanceStartOfDay.Equal(decimal.NewFromInt(9000)))
}

func TestDeleteAccountEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "acc-001", "user-1", 10000)
	router := testRouter(t, repo, "user-1")

	w := doJSON(router, http.MethodDelete, "/accounts/acc-001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, repo.accounts)
}
