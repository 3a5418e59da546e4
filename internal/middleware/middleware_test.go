// internal/middleware/middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/javajoker/retail-backend/internal/config"
	"github.com/javajoker/retail-backend/internal/i18n"
	"github.com/javajoker/retail-backend/internal/models"
	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := i18n.Initialize("../i18n/locales", "en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestResolveLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"ru-RU,ru;q=0.9,en;q=0.8", "ru"},
		{"de-DE,de;q=0.9,en;q=0.8", "en"},
		{"fr, RU_ru", "ru"},
		{" ,;q=0.1", "en"},
		{"-,ru", "ru"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveLanguage(tt.header, "en"))
		})
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPerMinute_ZeroDisablesLimit(t *testing.T) {
	rl := PerMinute(0, 0)
	defer rl.Stop()
	rl.Stop()

	limiter := rl.getVisitor("10.0.0.1")
	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow())
	}
}

type staticChecker map[services.Capability]bool

func (s staticChecker) Can(_ models.UserRole, capability services.Capability) bool {
	return s[capability]
}

func TestAuthRequired(t *testing.T) {
	router := gin.New()
	router.GET("/me", AuthRequired(), func(c *gin.Context) {
		id, _ := utils.GetUserIDFromContext(c)
		role, _ := utils.GetUserRoleFromContext(c)
		c.String(http.StatusOK, id+" "+role)
	})

	userID := uuid.New()
	token, err := utils.GenerateJWT(userID, "buyer@example.com", "buyer", time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateJWT(userID, "buyer@example.com", "buyer", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, userID.String()+" buyer", w.Body.String())
			}
		})
	}
}

func TestRequireCapability(t *testing.T) {
	checker := staticChecker{services.CapPlaceOrder: true}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Role"); role != "" {
			c.Set("user_role", role)
		}
		c.Next()
	})
	router.POST("/submit", RequireCapability(checker, services.CapPlaceOrder), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.POST("/ingest", RequireCapability(checker, services.CapIngestPriceList), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(path, role string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if role != "" {
			req.Header.Set("X-Role", role)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, do("/submit", "buyer"))
	assert.Equal(t, http.StatusForbidden, do("/submit", ""))
	assert.Equal(t, http.StatusForbidden, do("/ingest", "shop"))
}

func TestExtractResource(t *testing.T) {
	id := uuid.New()

	assert.Equal(t, "basket", extractResourceType("/v1/basket/submit"))
	assert.Equal(t, "partner", extractResourceType("/v1/partner/update"))
	assert.Equal(t, "health", extractResourceType("/health"))

	assert.Equal(t, id.String(), extractResourceID("/v1/partner/orders/"+id.String()+"/state"))
	assert.Empty(t, extractResourceID("/v1/basket"))
}

func TestRedactSecrets(t *testing.T) {
	body := map[string]interface{}{
		"email":    "buyer@example.com",
		"Password": "TestPass123!",
		"nested": map[string]interface{}{
			"access_token": "abc",
			"city":         "Moscow",
		},
		"items": []interface{}{
			map[string]interface{}{"key": "k", "quantity": float64(2)},
		},
	}

	redactSecrets(body)

	assert.Equal(t, "buyer@example.com", body["email"])
	assert.Equal(t, redactedValue, body["Password"])
	nested := body["nested"].(map[string]interface{})
	assert.Equal(t, redactedValue, nested["access_token"])
	assert.Equal(t, "Moscow", nested["city"])
	item := body["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, redactedValue, item["key"])
	assert.Equal(t, float64(2), item["quantity"])

	assert.NotPanics(t, func() { redactSecrets(nil) })
}

func TestCORS(t *testing.T) {
	do := func(cfg config.CORSConfig, origin string) *httptest.ResponseRecorder {
		r := gin.New()
		r.Use(CORS(cfg))
		r.GET("/v1/shops", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/v1/shops", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(config.CORSConfig{AllowedOrigins: []string{"*"}}, "https://anywhere.test")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	restricted := config.CORSConfig{AllowedOrigins: []string{"https://shop.test"}}

	w = do(restricted, "https://shop.test")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://shop.test", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(restricted, "https://evil.test")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	assert.True(t, allowsAnyOrigin(nil))
}
