package user

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/config"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, username, role string, secret string) string {
	t.Helper()
	claims := identityClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func performRequest(t *testing.T, authHeader string) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	var seenUsername, seenRole string

	router := gin.New()
	router.GET("/probe", RequireIdentity(), func(c *gin.Context) {
		seenUsername, seenRole = IdentityFromContext(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w, seenUsername, seenRole
}

func TestRequireIdentity_ValidToken(t *testing.T) {
	setupTestDB(t)
	config.Cfg = &config.Config{
		Auth: config.AuthConfig{JWTSecret: testSecret},
		Game: config.GameConfig{StartingCoins: 200},
	}

	token := signTestToken(t, "alice", "user", testSecret)
	w, username, role := performRequest(t, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	if username != "alice" || role != "user" {
		t.Fatalf("unexpected identity: %s/%s", username, role)
	}

	// 首次出现的用户应获得初始余额
	coins, err := GetBalance("alice")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if coins != 200 {
		t.Fatalf("expected starting coins 200, got %d", coins)
	}
}

func TestRequireIdentity_MissingToken(t *testing.T) {
	setupTestDB(t)
	config.Cfg = &config.Config{Auth: config.AuthConfig{JWTSecret: testSecret}}

	w, _, _ := performRequest(t, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireIdentity_WrongSecret(t *testing.T) {
	setupTestDB(t)
	config.Cfg = &config.Config{Auth: config.AuthConfig{JWTSecret: testSecret}}

	token := signTestToken(t, "alice", "user", "other-secret")
	w, _, _ := performRequest(t, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", w.Code)
	}
}

func TestRequireIdentity_ExpiredToken(t *testing.T) {
	setupTestDB(t)
	config.Cfg = &config.Config{Auth: config.AuthConfig{JWTSecret: testSecret}}

	claims := identityClaims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	w, _, _ := performRequest(t, "Bearer "+tokenStr)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", w.Code)
	}
}

func TestCanActFor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	c.Set(UsernameKey, "alice")
	c.Set(RoleKey, "user")
	if !CanActFor(c, "alice") {
		t.Fatalf("user should act for self")
	}
	if CanActFor(c, "bob") {
		t.Fatalf("plain user must not act for others")
	}

	c.Set(RoleKey, "admin")
	if !CanActFor(c, "bob") {
		t.Fatalf("admin should act for anyone")
	}
}
