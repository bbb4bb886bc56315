package di

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/project"
	"qdesign-backend/infrastructure/config"
	"qdesign-backend/infrastructure/persistence/badger"
	"qdesign-backend/infrastructure/persistence/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "di-secret"
	cfg.Observability.TracingEnabled = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestInitializeContainerWithDefaults(t *testing.T) {
	cfg := testConfig(t)

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	assert.NotNil(t, c.Logger)
	assert.NotNil(t, c.Metrics)
	assert.NotNil(t, c.Hub)
	assert.NotNil(t, c.Services.Projects)
	assert.NotNil(t, c.Services.Pool)
	assert.Nil(t, c.Services.Retrieval, "retrieval is off without a base URL")
	assert.IsType(t, &memory.ProjectStore{}, c.Store)
	require.NoError(t, c.Ready(context.Background()))

	srv := httptest.NewServer(c.Router.Setup())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInitializeContainerRejectsMissingSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = ""

	_, _, err := InitializeContainer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestProvideLogLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogLevel = "debug"
	level, err := ProvideLogLevel(cfg)
	require.NoError(t, err)
	assert.Equal(t, "debug", level.String())

	cfg.LogLevel = "chatty"
	_, err = ProvideLogLevel(cfg)
	assert.Error(t, err)
}

func TestProvideProjectStoreBadgerInMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Provider = "badger"
	cfg.Store.InMemory = true

	store, cleanup, err := ProvideProjectStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &badger.ProjectStore{}, store)
}

func TestProvideRealtimeConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Realtime.SendBuffer = 16
	cfg.Realtime.PongWait = 20 * time.Second

	wc := ProvideRealtimeConfig(cfg)
	assert.Equal(t, 16, wc.SendBuffer)
	assert.Equal(t, 20*time.Second, wc.PongWait)
	assert.Positive(t, wc.JoinTimeout)
}

type failingStore struct {
	ports.ProjectStore
	err error
}

func (s failingStore) GetByID(ctx context.Context, id string) (*project.Project, error) {
	return nil, s.err
}

func TestReadinessCheck(t *testing.T) {
	assert.NoError(t, ProvideReadinessCheck(memory.NewProjectStore())(context.Background()))

	down := errors.New("connection refused")
	assert.ErrorIs(t, ProvideReadinessCheck(failingStore{err: down})(context.Background()), down)
}
