package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"konsult.org/internal/auth"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	csrf    string
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	repo := auth.NewMemoryRepository()
	issuer, err := auth.NewTokenIssuer("test-access-secret", "test-refresh-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	svc := auth.NewService(repo, issuer)

	api := New(ReadyProbe{}, "test", "development", svc)
	api.SetRateLimit(1000, 1000)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &apiClient{
		baseURL: srv.URL,
		client:  &http.Client{Jar: jar},
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodGet, path, nil, headers)
}

// fetchCSRF primes the cookie jar and remembers the mirrored token.
func (c *apiClient) fetchCSRF() {
	c.t.Helper()
	resp := c.get("/v1/auth/csrf-token", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("csrf-token: expected 200, got %d", resp.StatusCode)
	}
	c.csrf = resp.Header.Get("X-CSRF-Token")
	if c.csrf == "" {
		c.t.Fatal("expected X-CSRF-Token mirror header")
	}
}

func (c *apiClient) csrfHeaders(extra map[string]string) map[string]string {
	headers := map[string]string{"x-csrf-token": c.csrf}
	for k, v := range extra {
		headers[k] = v
	}
	return headers
}

type envelopeBody struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func readEnvelope(t *testing.T, resp *http.Response) (envelopeBody, string) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env envelopeBody
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, raw)
	}
	return env, string(raw)
}

type sessionData struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func registerAlice(t *testing.T, c *apiClient) sessionData {
	t.Helper()
	resp := c.post("/v1/auth/register", map[string]string{
		"email":     "alice@example.com",
		"password":  "correct horse",
		"firstName": "Alice",
		"lastName":  "Doe",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	env, raw := readEnvelope(t, resp)
	if !env.Success {
		t.Fatalf("register: expected success envelope: %s", raw)
	}
	if strings.Contains(strings.ToLower(raw), "password") {
		t.Fatalf("register response leaks password material: %s", raw)
	}
	var data sessionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if data.AccessToken == "" || data.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	return data
}

func TestRegisterLoginRefreshRotation(t *testing.T) {
	c := newTestAPI(t)
	registerAlice(t, c)

	resp := c.post("/v1/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "correct horse",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	env, _ := readEnvelope(t, resp)
	var session sessionData
	if err := json.Unmarshal(env.Data, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	c.fetchCSRF()

	// First refresh succeeds and rotates.
	resp = c.post("/v1/auth/refresh", map[string]string{
		"refreshToken": session.RefreshToken,
	}, c.csrfHeaders(nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first refresh: expected 200, got %d", resp.StatusCode)
	}
	env, _ = readEnvelope(t, resp)
	var pair struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(env.Data, &pair); err != nil {
		t.Fatalf("decode pair: %v", err)
	}
	if pair.RefreshToken == session.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// Second refresh with the original token is rejected.
	resp = c.post("/v1/auth/refresh", map[string]string{
		"refreshToken": session.RefreshToken,
	}, c.csrfHeaders(nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reused refresh: expected 401, got %d", resp.StatusCode)
	}
	env, _ = readEnvelope(t, resp)
	if env.Success || env.Error == "" {
		t.Fatalf("expected error envelope, got %+v", env)
	}
}

func TestRefreshMissingToken(t *testing.T) {
	c := newTestAPI(t)
	c.fetchCSRF()

	resp := c.post("/v1/auth/refresh", map[string]string{}, c.csrfHeaders(nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for absent token, got %d", resp.StatusCode)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	c := newTestAPI(t)
	registerAlice(t, c)

	resp := c.post("/v1/auth/register", map[string]string{
		"email":    "alice@example.com",
		"password": "another pass",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	env, _ := readEnvelope(t, resp)
	if env.Success || env.Error == "" {
		t.Fatalf("expected error envelope, got %+v", env)
	}
}

func TestLoginFailuresIdentical(t *testing.T) {
	c := newTestAPI(t)
	registerAlice(t, c)

	wrongPassword := c.post("/v1/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	}, nil)
	unknownEmail := c.post("/v1/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	}, nil)

	if wrongPassword.StatusCode != http.StatusUnauthorized || unknownEmail.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPassword.StatusCode, unknownEmail.StatusCode)
	}
	_, rawWrong := readEnvelope(t, wrongPassword)
	_, rawUnknown := readEnvelope(t, unknownEmail)
	if rawWrong != rawUnknown {
		t.Fatalf("failure shapes differ:\n%s\n%s", rawWrong, rawUnknown)
	}
}

func TestProfileStripsPasswordHash(t *testing.T) {
	c := newTestAPI(t)
	session := registerAlice(t, c)

	resp := c.get("/v1/auth/profile", map[string]string{
		"Authorization": "Bearer " + session.AccessToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", resp.StatusCode)
	}
	env, raw := readEnvelope(t, resp)
	if strings.Contains(strings.ToLower(raw), "password") {
		t.Fatalf("profile response leaks password material: %s", raw)
	}
	var data struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if data.User.Email != "alice@example.com" {
		t.Fatalf("unexpected profile email: %s", data.User.Email)
	}
}

func TestProfileRequiresAuthentication(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/auth/profile", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	c := newTestAPI(t)
	session := registerAlice(t, c)
	c.fetchCSRF()

	resp := c.post("/v1/auth/logout", nil, c.csrfHeaders(map[string]string{
		"Authorization": "Bearer " + session.AccessToken,
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/v1/auth/refresh", map[string]string{
		"refreshToken": session.RefreshToken,
	}, c.csrfHeaders(nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Logout twice is not an error.
	resp = c.post("/v1/auth/logout", nil, c.csrfHeaders(map[string]string{
		"Authorization": "Bearer " + session.AccessToken,
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second logout: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
