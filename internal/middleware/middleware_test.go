package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/fingerprint"
	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/service"
	"go.uber.org/zap"
)

// stubAuth 只接受 good-token
type stubAuth struct {
	service.AuthService
}

func (stubAuth) ValidateToken(_ context.Context, token string) (*service.TokenClaims, error) {
	if token != "good-token" {
		return nil, apperrors.New(apperrors.ErrTokenInvalid)
	}
	return &service.TokenClaims{UserID: 7, Username: "alice", SessionID: "s1"}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware(stubAuth{})
	router := gin.New()
	router.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		id, _ := GetUserID(c)
		name, _ := GetUsername(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "name": name, "token": GetToken(c)})
	})

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"Bearer令牌", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good-token") }, http.StatusOK},
		{"X-Access-Token", func(r *http.Request) { r.Header.Set("X-Access-Token", "good-token") }, http.StatusOK},
		{"Cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: "good-token"}) }, http.StatusOK},
		{"Query参数", func(r *http.Request) { r.URL.RawQuery = "token=good-token" }, http.StatusOK},
		{"缺少令牌", func(r *http.Request) {}, http.StatusUnauthorized},
		{"无效令牌", func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") }, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"name":"alice"`)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	m := NewAuthMiddleware(stubAuth{})
	router := gin.New()
	router.GET("/maybe", m.OptionalAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth": IsAuthenticated(c)})
	})

	for token, want := range map[string]string{"good-token": `{"auth":true}`, "bad": `{"auth":false}`, "": `{"auth":false}`} {
		req := httptest.NewRequest(http.MethodGet, "/maybe", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, want, w.Body.String())
	}
}

func TestDeviceIdentity(t *testing.T) {
	var got service.DeviceIdentity
	router := gin.New()
	router.GET("/device", DeviceIdentity(DeviceOptions{}, zap.NewNop()), func(c *gin.Context) {
		got, _ = GetDeviceIdentity(c)
		c.Status(http.StatusNoContent)
	})

	t.Run("使用客户端指纹与会话头", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/device", nil)
		req.Header.Set(HeaderFingerprint, "  fp-123  ")
		req.Header.Set(HeaderPlatform, "android")
		req.Header.Set("X-Guest-Session", "sess-1")
		router.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "fp-123", got.Fingerprint)
		assert.False(t, got.Fallback)
		assert.Equal(t, "android", got.Platform)
		assert.Equal(t, "sess-1", got.GuestSessionID)
	})

	t.Run("缺少指纹时兜底", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/device", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone)")
		req.Header.Set("Accept-Language", "en-US")
		req.AddCookie(&http.Cookie{Name: "guest_session", Value: "from-cookie"})
		router.ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, got.Fallback)
		assert.Equal(t, fingerprint.Fallback("10.1.2.3", "Mozilla/5.0 (iPhone)", "en-US"), got.Fingerprint)
		assert.Equal(t, models.PlatformIOS, got.Platform)
		assert.Equal(t, "from-cookie", got.GuestSessionID)
	})

	t.Run("未知平台按UA推断", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/device", nil)
		req.Header.Set(HeaderFingerprint, "fp-desktop")
		req.Header.Set(HeaderPlatform, "desktop")
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, models.PlatformWeb, got.Platform)

		req = httptest.NewRequest(http.MethodGet, "/device", nil)
		req.Header.Set(HeaderFingerprint, "fp-tablet")
		req.Header.Set(HeaderPlatform, "Windows")
		req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 13)")
		router.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, models.PlatformAndroid, got.Platform)
	})

	t.Run("平台头大小写规范化", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/device", nil)
		req.Header.Set(HeaderFingerprint, "fp-ios")
		req.Header.Set(HeaderPlatform, " IOS ")
		router.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, models.PlatformIOS, got.Platform)
	})
}

func TestRecoveryAndRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(), Recovery())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
	assert.Contains(t, w.Body.String(), `"code":1000`)
}
