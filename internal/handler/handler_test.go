package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/handler"
	"mls-delivery/internal/repository/memory"
	"mls-delivery/internal/services"
)

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	keyPackageService := services.NewKeyPackageService(store.KeyPackages(), store.Clients())
	groupService := services.NewGroupService(store.Groups(), store.Clients())

	keyPackages := handler.NewKeyPackageHandler(keyPackageService)
	groups := handler.NewGroupHandler(groupService)

	r := gin.New()
	r.POST("/v1/key-packages", keyPackages.Publish)
	r.POST("/v1/key-packages/:id/reserve", keyPackages.Reserve)
	r.POST("/v1/groups/:id/epoch", groups.AdvanceEpoch)
	return r, store
}

func seedClient(t *testing.T, store *memory.Store) domain.Client {
	t.Helper()
	ctx := context.Background()
	users := services.NewUserService(store.Users())
	clients := services.NewClientService(store.Clients(), store.Users())
	user, err := users.Create(ctx, "alice")
	require.NoError(t, err)
	client, err := clients.Register(ctx, user.ID, "alice-identity", "laptop")
	require.NoError(t, err)
	return client
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestReserveKeyPackageEndpoint(t *testing.T) {
	r, store := newTestRouter(t)
	client := seedClient(t, store)

	w, env := doJSON(t, r, http.MethodPost, "/v1/key-packages", gin.H{
		"client_id": client.ID.String(),
		"data":      base64.StdEncoding.EncodeToString([]byte("kp-data")),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, env.Success)

	var kp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &kp))

	path := fmt.Sprintf("/v1/key-packages/%s/reserve", kp.ID)

	w, env = doJSON(t, r, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reserved struct {
		Data string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reserved))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("kp-data")), reserved.Data)

	// Second reservation loses.
	w, env = doJSON(t, r, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", env.Code)
}

func TestReserveKeyPackageNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/v1/key-packages/1e8f7a54-0b86-4df5-b10f-8e1c1a2f9d11/reserve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestAdvanceEpochEndpointConflictCode(t *testing.T) {
	r, store := newTestRouter(t)
	client := seedClient(t, store)

	groupService := services.NewGroupService(store.Groups(), store.Clients())
	group, err := groupService.Create(context.Background(), client.ID, []byte("genesis"))
	require.NoError(t, err)

	path := fmt.Sprintf("/v1/groups/%s/epoch", group.ID)
	body := gin.H{
		"expected_epoch": 0,
		"new_state":      base64.StdEncoding.EncodeToString([]byte("state-1")),
	}

	w, env := doJSON(t, r, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Epoch uint64 `json:"epoch"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, uint64(1), resp.Epoch)

	// Same expectation again: the compare-and-set loses.
	w, env = doJSON(t, r, http.MethodPost, path, body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", env.Code)
}
