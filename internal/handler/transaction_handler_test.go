package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace-core/internal/model"
	"marketplace-core/internal/repo"
	"marketplace-core/internal/service"
	"marketplace-core/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code int             `json:"code"`
	Name string          `json:"name"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type fakeEnqueuer struct {
	scopes []uuid.UUID
}

func (f *fakeEnqueuer) EnqueueReconcile(_ context.Context, scopeID uuid.UUID) error {
	f.scopes = append(f.scopes, scopeID)
	return nil
}

type testAPI struct {
	router   *gin.Engine
	fx       *testutil.Fixture
	enqueuer *fakeEnqueuer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, testutil.ChainID)
	enqueuer := &fakeEnqueuer{}

	txs := NewTransactionHandler(service.NewTransactionService(repo.NewAggregateRepo(db)))
	scopes := NewScopeHandler(repo.NewScopeRepo(db), enqueuer)

	r := gin.New()
	api := r.Group("/api/v1")
	txs.Register(api.Group("/marketplaces"), model.KindMarketplace)
	txs.Register(api.Group("/orders"), model.KindOrder)
	txs.Register(api.Group("/payouts"), model.KindPayout)
	scopes.Register(api.Group("/scopes"))

	return &testAPI{router: r, fx: fx, enqueuer: enqueuer}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestAttachAndPollStatus(t *testing.T) {
	a := newTestAPI(t)
	id := a.fx.Marketplace.ID.String()
	owner := a.fx.Seller.ID.String()

	code, env := a.do(t, http.MethodPost, "/api/v1/marketplaces/"+id+"/transactions",
		gin.H{"owner_id": owner, "hash": "0xABC"})
	require.Equal(t, http.StatusCreated, code, env.Msg)
	assert.Zero(t, env.Code)

	var row model.ChainTransaction
	require.NoError(t, json.Unmarshal(env.Data, &row))
	assert.Equal(t, "0xabc", row.Hash)

	code, env = a.do(t, http.MethodGet, "/api/v1/marketplaces/"+id+"/status?owner_id="+owner, nil)
	require.Equal(t, http.StatusOK, code)
	var view service.StatusView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.EqualValues(t, "pending_awaiting_confirmation", view.State)
	assert.Equal(t, "0xabc", view.OutstandingHash)
}

func TestAttachErrors(t *testing.T) {
	a := newTestAPI(t)
	orderPath := "/api/v1/orders/" + a.fx.Order.ID.String() + "/transactions"
	buyer := a.fx.Buyer.ID.String()

	tests := []struct {
		name   string
		path   string
		body   gin.H
		status int
		errNm  string
	}{
		{"bad path id", "/api/v1/orders/not-a-uuid/transactions", gin.H{"owner_id": buyer, "hash": "0x1"}, http.StatusBadRequest, "InvalidID"},
		{"missing owner id", orderPath, gin.H{"hash": "0x1"}, http.StatusBadRequest, "InvalidRequest"},
		{"bad hash", orderPath, gin.H{"owner_id": buyer, "hash": "xyz"}, http.StatusBadRequest, "InvalidTransactionHash"},
		{"unknown buyer", orderPath, gin.H{"owner_id": uuid.NewString(), "hash": "0x1"}, http.StatusNotFound, "BuyerNotFound"},
		{"foreign order", "/api/v1/orders/" + uuid.NewString() + "/transactions", gin.H{"owner_id": buyer, "hash": "0x1"}, http.StatusNotFound, "OrderNotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := a.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.errNm, env.Name)
			assert.NotZero(t, env.Code)
		})
	}
}

func TestAttachConflict(t *testing.T) {
	a := newTestAPI(t)
	path := "/api/v1/payouts/" + a.fx.Payout.ID.String() + "/transactions"
	owner := a.fx.Seller.ID.String()

	code, _ := a.do(t, http.MethodPost, path, gin.H{"owner_id": owner, "hash": "0x1"})
	require.Equal(t, http.StatusCreated, code)

	code, env := a.do(t, http.MethodPost, path, gin.H{"owner_id": owner, "hash": "0x2"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "HasPendingTransaction", env.Name)
}

func TestCancelDraft(t *testing.T) {
	a := newTestAPI(t)
	id := a.fx.Order.ID.String()

	code, env := a.do(t, http.MethodPost, "/api/v1/orders/"+id+"/cancel", gin.H{"owner_id": a.fx.Buyer.ID.String()})
	require.Equal(t, http.StatusOK, code, env.Msg)
	var view service.StatusView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.EqualValues(t, "cancelled", view.State)
	assert.NotNil(t, view.CancelledAt)

	code, env = a.do(t, http.MethodPost, "/api/v1/orders/"+id+"/cancel", gin.H{"owner_id": a.fx.Buyer.ID.String()})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "AlreadyCancelled", env.Name)
}

func TestRefundRoutes(t *testing.T) {
	a := newTestAPI(t)

	code, env := a.do(t, http.MethodPost, "/api/v1/orders/"+a.fx.Order.ID.String()+"/refund", gin.H{"owner_id": a.fx.Buyer.ID.String()})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "NotConfirmed", env.Name)

	// only orders get a refund route
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/"+a.fx.Payout.ID.String()+"/refund", nil)
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusRequiresOwner(t *testing.T) {
	a := newTestAPI(t)
	code, env := a.do(t, http.MethodGet, "/api/v1/payouts/"+a.fx.Payout.ID.String()+"/status", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidRequest", env.Name)
}

func TestScopeReconcile(t *testing.T) {
	a := newTestAPI(t)

	code, _ := a.do(t, http.MethodPost, "/api/v1/scopes/"+a.fx.Scope.ID.String()+"/reconcile", nil)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, []uuid.UUID{a.fx.Scope.ID}, a.enqueuer.scopes)

	code, env := a.do(t, http.MethodPost, "/api/v1/scopes/"+uuid.NewString()+"/reconcile", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "BlockchainMarketplaceNotFound", env.Name)
	assert.Len(t, a.enqueuer.scopes, 1)

	code, env = a.do(t, http.MethodGet, "/api/v1/scopes", nil)
	require.Equal(t, http.StatusOK, code)
	var scopes []model.BlockchainMarketplace
	require.NoError(t, json.Unmarshal(env.Data, &scopes))
	assert.Len(t, scopes, 1)
}
