package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/shipdesk/internal/domain/model"
	"github.com/bigkaa/shipdesk/internal/domain/rbac"
)

const (
	testSecret = "test-secret-test-secret-test-secret"
	testIssuer = "shipdesk-test"
	// testKeyID — идентификатор RSA ключа внешнего IdP.
	testKeyID = "test-key-idp"
)

// mockResolver — мок PrincipalResolver.
type mockResolver struct {
	resolveFn func(ctx context.Context, username string) ([]string, error)
}

func (m *mockResolver) ResolveRoles(ctx context.Context, username string) ([]string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, username)
	}
	return nil, nil
}

// rolesByUser — резолвер по фиксированной таблице.
func rolesByUser(table map[string][]string) *mockResolver {
	return &mockResolver{resolveFn: func(_ context.Context, username string) ([]string, error) {
		return table[username], nil
	}}
}

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newLocalAuth(t *testing.T, issuer *TokenIssuer, resolver PrincipalResolver) *JWTAuth {
	t.Helper()
	auth, err := NewJWTAuth(context.Background(), JWTAuthOptions{
		Issuer:   issuer,
		Resolver: resolver,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewJWTAuth: %v", err)
	}
	return auth
}

func testUser(username string) *model.User {
	return &model.User{
		ID:        "0b3f6c1e-8f55-4d1b-9c1a-2f3e4d5c6b7a",
		Username:  username,
		FirstName: "Ivan",
		LastName:  "Petrov",
	}
}

func issueToken(t *testing.T, issuer *TokenIssuer, username string) string {
	t.Helper()
	token, _, err := issuer.Issue(testUser(username))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

// serve прогоняет запрос через JWTAuth и gate, возвращает ответ и принципала.
func serve(auth *JWTAuth, gate func(http.Handler) http.Handler, authHeader string) (*httptest.ResponseRecorder, *rbac.Principal) {
	var got *rbac.Principal
	handler := auth.Middleware()(gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/contacts", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, got
}

func passThrough(next http.Handler) http.Handler { return next }

func assertUnauthorized(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, хотели 401", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	if body["success"] != false || body["error"] != "Unauthorized" {
		t.Errorf("body = %v", body)
	}
}

func TestTokenIssuer_Claims(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, testIssuer, time.Hour)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	token, expiresAt, err := issuer.Issue(testUser("admin@example.com"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("expiresAt = %v", expiresAt)
	}

	claims := &localClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if parsed.Header["kid"] != issuer.KeyID() || parsed.Header["alg"] != "HS256" {
		t.Errorf("header = %v", parsed.Header)
	}
	if claims.Subject != "0b3f6c1e-8f55-4d1b-9c1a-2f3e4d5c6b7a" ||
		claims.Username != "admin@example.com" ||
		claims.Name != "Ivan Petrov" ||
		claims.Issuer != testIssuer {
		t.Errorf("claims = %+v", claims)
	}
	if claims.IssuedAt.Unix() != fixed.Unix() {
		t.Errorf("iat = %v", claims.IssuedAt)
	}
}

func TestTokenIssuer_KeyIDDependsOnSecret(t *testing.T) {
	a := NewTokenIssuer(testSecret, testIssuer, time.Hour)
	b := NewTokenIssuer(testSecret+"-rotated", testIssuer, time.Hour)
	if a.KeyID() == b.KeyID() {
		t.Error("разные секреты дали одинаковый kid")
	}
	if a.KeyID() != NewTokenIssuer(testSecret, "other", time.Minute).KeyID() {
		t.Error("kid зависит не только от секрета")
	}
}

func TestJWTAuth_LocalToken(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, testIssuer, time.Hour)
	auth := newLocalAuth(t, issuer, rolesByUser(map[string][]string{
		"admin@example.com": {"user", "admin"},
		"user@example.com":  {"user"},
	}))

	tests := []struct {
		name     string
		username string
		gate     func(http.Handler) http.Handler
		wantCode int
	}{
		{"администратор проходит RequireAdmin", "admin@example.com", RequireAdmin, http.StatusOK},
		{"пользователь не проходит RequireAdmin", "user@example.com", RequireAdmin, http.StatusUnauthorized},
		{"пользователь проходит RequireAuth", "user@example.com", RequireAuth, http.StatusOK},
		{"отключённый пользователь не проходит RequireAuth", "disabled@example.com", RequireAuth, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, principal := serve(auth, tt.gate, "Bearer "+issueToken(t, issuer, tt.username))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, хотели %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && principal.Username != tt.username {
				t.Errorf("Username = %q", principal.Username)
			}
			if tt.wantCode == http.StatusUnauthorized {
				assertUnauthorized(t, rec)
			}
		})
	}
}

func TestJWTAuth_PrincipalFields(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, testIssuer, time.Hour)
	auth := newLocalAuth(t, issuer, rolesByUser(map[string][]string{
		"admin@example.com": {"ADMIN", "user", "superuser"},
	}))

	rec, p := serve(auth, passThrough, "Bearer "+issueToken(t, issuer, "admin@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if p.Subject != "0b3f6c1e-8f55-4d1b-9c1a-2f3e4d5c6b7a" || p.Name != "Ivan Petrov" {
		t.Errorf("principal = %+v", p)
	}
	if !p.HasRole(rbac.RoleAdmin) || slices.Contains(p.Roles, "superuser") {
		t.Errorf("Roles = %v", p.Roles)
	}
}

func TestJWTAuth_Rejections(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, testIssuer, time.Hour)
	auth := newLocalAuth(t, issuer, rolesByUser(map[string][]string{
		"admin@example.com": {"admin"},
	}))

	expired := NewTokenIssuer(testSecret, testIssuer, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	foreignIssuer := NewTokenIssuer(testSecret, "someone-else", time.Hour)
	otherSecret := NewTokenIssuer(testSecret+"-other", testIssuer, time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{"нет заголовка", ""},
		{"не Bearer", "Basic dXNlcjpwYXNz"},
		{"пустой токен", "Bearer "},
		{"мусор вместо токена", "Bearer not-a-jwt"},
		{"просроченный токен", "Bearer " + issueToken(t, expired, "admin@example.com")},
		{"чужой issuer", "Bearer " + issueToken(t, foreignIssuer, "admin@example.com")},
		{"другой секрет", "Bearer " + issueToken(t, otherSecret, "admin@example.com")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serve(auth, passThrough, tt.header)
			assertUnauthorized(t, rec)
		})
	}
}

func TestJWTAuth_ResolverError(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, testIssuer, time.Hour)
	auth := newLocalAuth(t, issuer, &mockResolver{
		resolveFn: func(context.Context, string) ([]string, error) {
			return nil, errors.New("connection refused")
		},
	})

	rec, _ := serve(auth, passThrough, "Bearer "+issueToken(t, issuer, "admin@example.com"))
	assertUnauthorized(t, rec)
}

func TestJWTAuth_TamperedSignature(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, testIssuer, time.Hour)
	auth := newLocalAuth(t, issuer, rolesByUser(map[string][]string{"admin@example.com": {"admin"}}))

	token := issueToken(t, issuer, "admin@example.com")
	tampered := token[:len(token)-2] + "xx"
	if tampered == token {
		tampered = token[:len(token)-2] + "yy"
	}

	rec, _ := serve(auth, passThrough, "Bearer "+tampered)
	assertUnauthorized(t, rec)
}

// --- Внешний IdP (RS256 через JWKS) ---

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func newExternalAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("keyfunc.NewJWKSetJSON: %v", err)
	}
	return NewJWTAuthWithKeyfunc(kf, []string{"HS256", "RS256"}, testIssuer, nil,
		[]string{"shipdesk-admins"}, testLogger())
}

func externalToken(t *testing.T, key *rsa.PrivateKey, groups []string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":                "idp-user-1",
		"iss":                "https://idp.example.com/realms/marine",
		"preferred_username": "agent@example.com",
		"name":               "Port Agent",
		"groups":             groups,
		"iat":                time.Now().Unix(),
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("подпись RS256: %v", err)
	}
	return signed
}

func TestJWTAuth_ExternalGroups(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	auth := newExternalAuth(t, key)

	tests := []struct {
		name     string
		groups   []string
		wantCode int
	}{
		{"группа администраторов", []string{"staff", "shipdesk-admins"}, http.StatusOK},
		{"без группы администраторов", []string{"staff"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, p := serve(auth, RequireAdmin, "Bearer "+externalToken(t, key, tt.groups))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, хотели %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && p.Username != "agent@example.com" {
				t.Errorf("Username = %q", p.Username)
			}
		})
	}
}

func TestRequireAdmin_NoPrincipal(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("handler вызван без принципала")
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/contacts/1", nil))
	assertUnauthorized(t, rec)
}

func TestPrincipalFromContext(t *testing.T) {
	if PrincipalFromContext(context.Background()) != nil {
		t.Error("пустой контекст вернул принципала")
	}
	p := &rbac.Principal{Subject: "u1"}
	if got := PrincipalFromContext(WithPrincipal(context.Background(), p)); got != p {
		t.Errorf("PrincipalFromContext = %v", got)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer abc", "abc", false},
		{"Bearer", "", true},
		{"Token abc", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := bearerToken(tt.header)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("bearerToken(%q) = %q, %v", tt.header, got, err)
		}
	}
}
