//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
)

func TestAuthRequired(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "GET", "/api/v1/quota/u1", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = DoRequest(t, env, "GET", "/api/v1/quota/u1", nil, "not-a-jwt")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", resp.StatusCode)
	}
}

func TestQuotaLifecycle(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t)
	userID := "lifecycle-user"

	// Fresh user sees the full allowance
	resp := DoRequest(t, env, "GET", "/api/v1/quota/"+userID, nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quota read: status %d", resp.StatusCode)
	}
	data := ResponseData(t, resp)
	if data["remaining"].(float64) != 5 {
		t.Fatalf("expected 5 remaining, got %v", data["remaining"])
	}

	// Spend the whole allowance
	for want := 4.0; want >= 0; want-- {
		resp = DoRequest(t, env, "POST", "/api/v1/quota/"+userID+"/consume", nil, token)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("consume: status %d", resp.StatusCode)
		}
		data = ResponseData(t, resp)
		if data["remaining"].(float64) != want {
			t.Fatalf("expected %v remaining, got %v", want, data["remaining"])
		}
	}

	// Sixth message is rejected with a reset hint
	resp = DoRequest(t, env, "POST", "/api/v1/quota/"+userID+"/consume", nil, token)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 429")
	}
	resp.Body.Close()

	// Rewarded-ad bonus restores messages
	resp = DoRequest(t, env, "POST", "/api/v1/quota/"+userID+"/bonus", map[string]int{"amount": 5}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bonus: status %d", resp.StatusCode)
	}
	data = ResponseData(t, resp)
	if data["new_remaining"].(float64) != 5 {
		t.Fatalf("expected 5 remaining after bonus, got %v", data["new_remaining"])
	}

	// Bonus cap prevents a second full grant
	resp = DoRequest(t, env, "POST", "/api/v1/quota/"+userID+"/bonus", map[string]int{"amount": 1}, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 over cap, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPremiumUnlimited(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t)

	for i := 0; i < 20; i++ {
		resp := DoRequest(t, env, "POST", "/api/v1/quota/premium-user/consume", nil, token)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("premium consume %d: status %d", i, resp.StatusCode)
		}
		data := ResponseData(t, resp)
		if data["unlimited"] != true {
			t.Fatalf("expected unlimited, got %v", data)
		}
	}
}

func TestRateLimitCheck(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t)
	body := map[string]string{"identity": "rl-user", "route": "chat"}

	for i := 0; i < 10; i++ {
		resp := DoRequest(t, env, "POST", "/api/v1/ratelimit/check", body, token)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("check %d: status %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := DoRequest(t, env, "POST", "/api/v1/ratelimit/check", body, token)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on 11th check, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 429")
	}
	resp.Body.Close()

	// Rate limiting spent no quota
	resp = DoRequest(t, env, "GET", "/api/v1/quota/rl-user", nil, token)
	data := ResponseData(t, resp)
	if data["remaining"].(float64) != 5 {
		t.Fatalf("rate limit should not spend quota, remaining %v", data["remaining"])
	}
}

func TestViolationsRecorded(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t)
	userID := "violator"

	for i := 0; i < 5; i++ {
		resp := DoRequest(t, env, "POST", "/api/v1/quota/"+userID+"/consume", nil, token)
		resp.Body.Close()
	}
	resp := DoRequest(t, env, "POST", "/api/v1/quota/"+userID+"/consume", nil, token)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The violation lands in Postgres
	var count int
	err := env.Pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM quota_violations WHERE user_id = $1 AND kind = 'quota_exceeded'`,
		userID).Scan(&count)
	if err != nil {
		t.Fatalf("counting violations: %v", err)
	}
	if count < 1 {
		t.Fatal("violation not recorded")
	}

	// And is visible through the API
	resp = DoRequest(t, env, "GET", "/api/v1/quota/"+userID+"/violations", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("violations read: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	list, ok := result["data"].([]any)
	if !ok || len(list) == 0 {
		t.Fatalf("expected at least one violation, got %v", result)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := SetupTestEnv(t)

	resp, err := http.Get(env.Server.URL + "/health/live")
	if err != nil {
		t.Fatalf("liveness: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("liveness: status %d", resp.StatusCode)
	}

	resp, err = http.Get(env.Server.URL + "/health/ready")
	if err != nil {
		t.Fatalf("readiness: %v", err)
	}
	health := ResponseData(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readiness: status %d, body %v", resp.StatusCode, health)
	}
	if health["redis"] != "healthy" || health["database"] != "healthy" {
		t.Fatalf("unexpected health: %v", health)
	}
}
