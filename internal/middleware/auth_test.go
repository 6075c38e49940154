package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-change-me"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func setupAuthRouter(cfg *AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(cfg))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	return router
}

func TestAuth(t *testing.T) {
	cfg := &AuthConfig{Secret: testSecret, Issuer: "booking-engine"}

	tests := []struct {
		name           string
		authorization  string
		expectedStatus int
	}{
		{
			name: "valid token",
			authorization: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-1",
				"iss": "booking-engine",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing header",
			authorization:  "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed header",
			authorization:  "Token abc",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "garbage token",
			authorization:  "Bearer not.a.token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong signing secret",
			authorization: "Bearer " + signToken(t, "other-secret", jwt.MapClaims{
				"sub": "user-1",
				"iss": "booking-engine",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			authorization: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-1",
				"iss": "booking-engine",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			authorization: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-1",
				"iss": "someone-else",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "no subject",
			authorization: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"iss": "booking-engine",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	router := setupAuthRouter(cfg)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestAuth_SubjectReachesHandler(t *testing.T) {
	cfg := &AuthConfig{Secret: testSecret}
	router := setupAuthRouter(cfg)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"user_id":"user-42"}` {
		t.Errorf("unexpected body: %s", body)
	}
}
