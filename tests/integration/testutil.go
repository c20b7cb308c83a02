//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cupid-copilot/backend/internal/analysis"
	"github.com/cupid-copilot/backend/internal/api"
	"github.com/cupid-copilot/backend/internal/conversation"
	"github.com/cupid-copilot/backend/internal/llm"
	"github.com/cupid-copilot/backend/internal/push"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Store       *conversation.Store
	Server      *httptest.Server
	ExpoServer  *httptest.Server
	ExpoCalls   *int
}

var testEnv *TestEnv

// stubInvoker stands in for Gemini so the frames route can run without an
// upstream model.
type stubInvoker struct{}

func (stubInvoker) Analyze(_ context.Context, _ llm.InvokeRequest) (llm.InvokeResult, error) {
	return llm.InvokeResult{Text: "looks fine, keep the momentum"}, nil
}

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "copilot_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/copilot_test?sslmode=disable", pgHost, pgPort.Port())

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Fake Expo endpoint: acknowledges every message with an ok ticket.
	expoCalls := 0
	expoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expoCalls++
		var batch []map[string]any
		json.NewDecoder(r.Body).Decode(&batch)
		tickets := make([]map[string]any, len(batch))
		for i := range tickets {
			tickets[i] = map[string]any{"status": "ok"}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": tickets})
	}))
	t.Cleanup(expoServer.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := conversation.NewStore(redisClient)
	conversationHandler := conversation.NewHandler(store, logger)

	tokenRepo := push.NewRepository(pool)
	expoClient := push.NewExpoClient(expoServer.URL, logger)
	pushSvc := push.NewService(tokenRepo, expoClient, store, logger)
	pushHandler := push.NewHandler(pushSvc, logger)

	analysisSvc := analysis.NewService(store, stubInvoker{}, pushSvc, logger)
	analysisHandler := analysis.NewHandler(analysisSvc, logger)

	router := api.NewRouter(pool, redisClient, api.RouterConfig{}, api.HandlerSet{
		AnalyzeFrame:        analysisHandler.AnalyzeFrame,
		RegisterToken:       pushHandler.RegisterToken,
		ListTokens:          pushHandler.ListTokens,
		SendNotification:    pushHandler.SendNotification,
		DeviceNotifications: pushHandler.DeviceNotifications,
		ListConversations:   conversationHandler.ListConversations,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Store:       store,
		Server:      server,
		ExpoServer:  expoServer,
		ExpoCalls:   &expoCalls,
	}
	return testEnv
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return result
}
