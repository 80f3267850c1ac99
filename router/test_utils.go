package router

import (
	"context"
	"testing"
	"time"

	"github.com/lperezmo/sms-helper/internal/config"
	"github.com/lperezmo/sms-helper/internal/handlers"
	"github.com/lperezmo/sms-helper/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) HandleTurn(ctx context.Context, turn *models.Turn) models.Reply {
	args := m.Called(ctx, turn)
	return args.Get(0).(models.Reply)
}

type MockTurnLister struct {
	mock.Mock
}

func (m *MockTurnLister) List(ctx context.Context, limit, offset int) ([]*models.TurnRecord, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TurnRecord), args.Error(1)
}

type MockAdmin struct {
	mock.Mock
}

func (m *MockAdmin) Authenticate(username, password, totpCode string) error {
	args := m.Called(username, password, totpCode)
	return args.Error(0)
}

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) Validate(url string, params map[string]string, signature string) bool {
	args := m.Called(url, params, signature)
	return args.Bool(0)
}

type testRouter struct {
	*Router
	cfg       *config.Config
	assistant *MockAssistant
	turns     *MockTurnLister
	admin     *MockAdmin
	validator *MockValidator
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.JWT.Secret = "router-test-secret"
	cfg.JWT.TokenExpiry = time.Hour
	cfg.Admin.PasswordHash = "$2a$10$routertesthash"
	return cfg
}

func setupTestRouter(t *testing.T, cfg *config.Config) *testRouter {
	t.Helper()
	tr := &testRouter{
		cfg:       cfg,
		assistant: new(MockAssistant),
		turns:     new(MockTurnLister),
		admin:     new(MockAdmin),
		validator: new(MockValidator),
	}

	r, err := NewRouter(cfg, Handlers{
		SMS:       handlers.NewSMSHandler(tr.assistant),
		Turns:     handlers.NewTurnHandler(tr.turns),
		Auth:      handlers.NewAuthHandler(cfg, tr.admin),
		Signature: tr.validator,
	}, "test")
	require.NoError(t, err)
	tr.Router = r
	return tr
}
