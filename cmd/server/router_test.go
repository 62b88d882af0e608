package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/internal/config"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/spawnack"
	"github.com/Pizzaface/PizzaPi-sub003/internal/store"
	"github.com/Pizzaface/PizzaPi-sub003/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{AllowedOrigins: []string{"https://app.test"}}
	jwtManager, err := auth.NewJWTManager("test-secret")
	require.NoError(t, err)
	keys, err := auth.NewAPIKeyProvider(nil)
	require.NoError(t, err)
	authn := auth.NewAuthenticator(jwtManager, keys)

	st := store.NewMemoryStore(time.Now)
	dir := directory.New(st, directory.Options{})
	sio := websocket.NewSocketIOServer(dir, authn, auth.NewOriginPolicy(cfg.AllowedOrigins), spawnack.NewCoordinator(), websocket.Options{})
	t.Cleanup(func() { _ = sio.Close() })

	r := newRouter(cfg, authn, dir, st, sio)

	do := func(req *http.Request) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, do(httptest.NewRequest(http.MethodGet, "/api/health", nil)))
	require.Equal(t, http.StatusUnauthorized, do(httptest.NewRequest(http.MethodGet, "/api/sessions", nil)))

	token, err := jwtManager.CreateToken("u1", "Ada", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, do(req))

	req = httptest.NewRequest(http.MethodGet, "/socket.io/?EIO=4&transport=polling", nil)
	req.Header.Set("Origin", "https://evil.test")
	require.Equal(t, http.StatusForbidden, do(req))
}
