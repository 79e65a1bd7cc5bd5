package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Clark-Hu/dsmovie/internal/domain"
	"github.com/Clark-Hu/dsmovie/internal/repository"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func newIssuer() JWTIssuer     { return JWTIssuer{Secret: testSecret, TTL: time.Hour} }
func newVerifier() JWTVerifier { return JWTVerifier{Secret: testSecret} }

var alex = domain.User{ID: 1, Username: "alex@gmail.com", Roles: []string{domain.RoleClient}}

func mustIssue(t *testing.T, user domain.User, now time.Time) string {
	t.Helper()
	tok, err := newIssuer().Issue(user, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok.AccessToken
}

// ─── JWT tests ──────────────────────────────────────────────────────────────

func TestIssueAndParse(t *testing.T) {
	now := time.Now().UTC()
	tok, err := newIssuer().Issue(alex, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want %v", tok.ExpiresAt, now.Add(time.Hour))
	}

	claims, err := newVerifier().Parse(tok.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != alex.Username {
		t.Fatalf("subject = %q, want %q", claims.Subject, alex.Username)
	}
	if len(claims.Authorities) != 1 || claims.Authorities[0] != domain.RoleClient {
		t.Fatalf("authorities = %v", claims.Authorities)
	}
	if claims.ID == "" {
		t.Fatal("expected token id")
	}
}

func TestIssue_MissingSecret(t *testing.T) {
	if _, err := (JWTIssuer{TTL: time.Hour}).Issue(alex, time.Now()); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestParse_Rejects(t *testing.T) {
	expired := mustIssue(t, alex, time.Now().Add(-2*time.Hour))
	valid := mustIssue(t, alex, time.Now())
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alex@gmail.com"}})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"expired":    expired,
		"tampered":   tampered,
		"malformed":  "not.a.valid.token",
		"unsigned":   unsigned,
		"no subject": mustIssue(t, domain.User{}, time.Now()),
		"empty":      "",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := newVerifier().Parse(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}

	if _, err := (JWTVerifier{Secret: []byte("wrong-secret")}).Parse(valid); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

// ─── Password and login tests ───────────────────────────────────────────────

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "123456" {
		t.Fatal("hash equals plaintext")
	}
	if err := VerifyPassword(hash, "123456"); err != nil {
		t.Fatalf("verify correct password: %v", err)
	}
	if err := VerifyPassword(hash, "654321"); err == nil {
		t.Fatal("expected mismatch for wrong password")
	}
}

type stubUsers map[string]domain.User

func (s stubUsers) GetByUsername(_ context.Context, username string) (domain.User, error) {
	if username == "broken" {
		return domain.User{}, errors.New("db down")
	}
	u, ok := s[username]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func TestAuthenticator_Login(t *testing.T) {
	hash, err := HashPassword("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := alex
	user.Password = hash
	a := NewAuthenticator(stubUsers{user.Username: user}, newIssuer())

	tok, err := a.Login(context.Background(), user.Username, "123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := newVerifier().Parse(tok.AccessToken); err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}

	if _, err := a.Login(context.Background(), user.Username, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := a.Login(context.Background(), "nobody@gmail.com", "123456"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}
	if _, err := a.Login(context.Background(), "broken", "123456"); err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("store failure err = %v, want non-credential error", err)
	}
}

// ─── Middleware tests ───────────────────────────────────────────────────────

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireUser(t *testing.T) {
	valid := mustIssue(t, alex, time.Now())
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Principal
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireUser(newVerifier())(next).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && got.Username != alex.Username {
				t.Fatalf("principal = %+v", got)
			}
			if tt.want != http.StatusOK && !strings.Contains(rec.Body.String(), `"UNAUTHORIZED"`) {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{name: "no principal", want: http.StatusUnauthorized},
		{name: "client on admin route", principal: &Principal{Username: "a", Roles: []string{domain.RoleClient}}, want: http.StatusForbidden},
		{name: "no roles", principal: &Principal{Username: "a"}, want: http.StatusForbidden},
		{name: "admin", principal: &Principal{Username: "a", Roles: []string{domain.RoleAdmin}}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/movies/1", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), *tt.principal))
			}
			rec := httptest.NewRecorder()
			RequireRole(domain.RoleAdmin)(okHandler()).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireRole_AnyOf(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/scores", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{Username: "a", Roles: []string{domain.RoleClient}}))
	rec := httptest.NewRecorder()
	RequireRole(domain.RoleAdmin, domain.RoleClient)(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
