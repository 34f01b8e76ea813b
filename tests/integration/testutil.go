//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lingora-app/lingora/internal/api"
	"github.com/lingora-app/lingora/internal/audit"
	"github.com/lingora-app/lingora/internal/auth"
	"github.com/lingora-app/lingora/internal/billing"
	"github.com/lingora-app/lingora/internal/config"
	"github.com/lingora-app/lingora/internal/database"
	"github.com/lingora-app/lingora/internal/gate"
	"github.com/lingora-app/lingora/internal/quota"
	"github.com/lingora-app/lingora/internal/ratelimit"
	"github.com/lingora-app/lingora/internal/store"
)

const testServiceSecret = "integration-test-secret-32-chars!"

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "lingora_test",
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

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
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

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/lingora_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	if err := database.RunMigrations(dsn, getMigrationsPath()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Setup services
	quotaCfg := config.QuotaConfig{
		FreeDailyLimit:        5,
		BonusDailyCap:         5,
		WindowTTL:             24 * time.Hour,
		StoreTimeout:          250 * time.Millisecond,
		UnavailableRetryAfter: 5 * time.Second,
	}

	st := store.NewRedisStore(redisClient, quotaCfg.StoreTimeout)
	manager := quota.NewManager(st, quotaCfg)
	ledger := quota.NewBonusLedger(st, quotaCfg)
	limiter := ratelimit.NewLimiter(st,
		ratelimit.Window{Size: time.Minute, Limit: 10},
		ratelimit.Window{Size: time.Hour, Limit: 100},
	)
	oracle := &billing.StaticOracle{
		Overrides: map[string]quota.Tier{"premium-user": quota.TierPremium},
	}
	auditRepo := audit.NewRepository(pool)

	facade := gate.NewFacade(manager, ledger, limiter, oracle, nil, auditRepo, quotaCfg)
	handler := gate.NewHandler(facade)

	router := api.NewRouter(redisClient, pool, nil, api.RouterConfig{}, api.HandlerSet{
		GetQuota:       handler.GetQuota,
		Consume:        handler.Consume,
		GrantBonus:     handler.GrantBonus,
		RateCheck:      handler.RateCheck,
		ListViolations: handler.ListViolations,

		AuthMiddleware: auth.ServiceAuth(testServiceSecret),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
	}

	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

// ServiceToken signs a short-lived HS256 token the way internal callers do.
func ServiceToken(t *testing.T) string {
	t.Helper()
	claims := auth.ServiceClaims{
		Service: "integration-test",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testServiceSecret))
	if err != nil {
		t.Fatalf("signing service token: %v", err)
	}
	return token
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}

func ResponseData(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	result := ParseResponse(t, resp)
	data, ok := result["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", result)
	}
	return data
}
