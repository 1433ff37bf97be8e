package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/wfunc/redvelvet/internal/models"
	"github.com/wfunc/redvelvet/internal/service"
)

// mailbox 收集验证链接
type mailbox struct {
	mu    sync.Mutex
	links []string
}

func (m *mailbox) SendVerification(_ context.Context, _, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func (m *mailbox) lastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.links) == 0 {
		return ""
	}
	u, err := url.Parse(m.links[len(m.links)-1])
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}

func (suite *RouterTestSuite) TestEmailVerification() {
	suite.register("verify_me")
	token := suite.mail.lastToken()
	suite.Require().NotEmpty(token)

	w := suite.do(http.MethodGet, "/api/v1/auth/verify-email?token=wrong", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/auth/resend-verification", map[string]string{"email": "verify_me@example.com"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	fresh := suite.mail.lastToken()
	suite.NotEqual(token, fresh)

	w = suite.do(http.MethodGet, "/api/v1/auth/verify-email?token="+url.QueryEscape(fresh), nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Contains(w.Body.String(), `"is_verified":true`)

	w = suite.do(http.MethodPost, "/api/v1/auth/resend-verification", map[string]string{"email": "verify_me@example.com"})
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/auth/resend-verification", map[string]string{})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *RouterTestSuite) TestProfileAndPassword() {
	auth := suite.register("profiled")
	bearer := []string{"Authorization", "Bearer " + auth.AccessToken}

	w := suite.do(http.MethodPatch, "/api/v1/user/profile", map[string]string{"nickname": "小红", "bio": "hello"}, bearer...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var profile service.UserProfile
	suite.decode(w, &profile)
	suite.Equal("小红", profile.User.Nickname)
	suite.Equal("hello", profile.User.Bio)

	w = suite.do(http.MethodPatch, "/api/v1/user/profile", map[string]string{"avatar": "javascript:alert(1)"}, bearer...)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPatch, "/api/v1/user/profile", map[string]string{"nickname": "x"})
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/user/password",
		map[string]string{"current_password": "wrong-one", "new_password": "another123"}, bearer...)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/user/password",
		map[string]string{"current_password": "secret123", "new_password": "another123"}, bearer...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var changed service.AuthResponse
	suite.decode(w, &changed)
	suite.NotEmpty(changed.AccessToken)

	w = suite.do(http.MethodGet, "/api/v1/auth/profile", nil, bearer...)
	suite.Equal(http.StatusUnauthorized, w.Code, "旧令牌失效")

	w = suite.do(http.MethodGet, "/api/v1/auth/profile", nil, "Authorization", "Bearer "+changed.AccessToken)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"account": "profiled", "password": "another123"})
	suite.Equal(http.StatusOK, w.Code, w.Body.String())
}

func (suite *RouterTestSuite) TestCompanionSettingsEndpoints() {
	fp := []string{"X-Device-Fingerprint", "fp-http-settings"}

	w := suite.do(http.MethodGet, "/api/v1/companions/1/settings", nil, fp...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var settings models.CompanionSettings
	suite.decode(w, &settings)
	suite.Equal(models.DefaultRelationshipType, settings.RelationshipType)
	suite.Equal(models.DefaultMemoryRetention, settings.MemoryRetention)

	w = suite.do(http.MethodPost, "/api/v1/companions/1/settings", map[string]interface{}{
		"relationship_type":  "friend",
		"interest_topics":    []string{"music"},
		"memory_retention":   5,
		"personality_traits": map[string]int{"shy": 30},
	}, fp...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.decode(w, &settings)
	suite.NotZero(settings.ID)
	suite.Equal("friend", settings.RelationshipType)

	w = suite.do(http.MethodPatch, "/api/v1/companions/1/settings", map[string]interface{}{"conversation_style": "witty"}, fp...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.decode(w, &settings)
	suite.Equal("witty", settings.ConversationStyle)
	suite.Equal("friend", settings.RelationshipType)
	suite.Equal(5, settings.MemoryRetention)

	w = suite.do(http.MethodPatch, "/api/v1/companions/1/settings", map[string]interface{}{"emotional_response_level": 150}, fp...)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/companions/999/settings", nil, fp...)
	suite.Equal(http.StatusNotFound, w.Code)

	// 登录后是另一份设置
	auth := suite.register("settings_user")
	w = suite.do(http.MethodGet, "/api/v1/companions/1/settings", nil, append(fp, "Authorization", "Bearer "+auth.AccessToken)...)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.decode(w, &settings)
	suite.Equal(models.OwnerUser, settings.OwnerType)
	suite.Equal(models.DefaultRelationshipType, settings.RelationshipType)
}

func (suite *RouterTestSuite) TestMemoriesAndHeatmap() {
	fp := []string{"X-Device-Fingerprint", "fp-http-memories"}

	for _, content := range []string{"one", "two"} {
		w := suite.do(http.MethodPost, "/api/v1/guest/chat/1", map[string]string{"content": content}, fp...)
		suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}

	w := suite.do(http.MethodGet, "/api/v1/companions/1/memories", nil, fp...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var memories service.MemoryList
	suite.decode(w, &memories)
	suite.Len(memories.Items, 4)

	w = suite.do(http.MethodPost, "/api/v1/interactions", map[string]interface{}{
		"companion_id": 1, "date": "2026-02-01", "hour": 22, "message_count": 6,
	}, fp...)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = suite.do(http.MethodPost, "/api/v1/interactions", map[string]interface{}{"companion_id": 1, "hour": 30}, fp...)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/companions/1/interactions/heatmap?start_date=2026-02-01&end_date=2026-02-02", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var heatmap map[string][]int64
	suite.decode(w, &heatmap)
	suite.Len(heatmap, 2)
	suite.Equal(int64(6), heatmap["2026-02-01"][22])
	suite.Len(heatmap["2026-02-02"], 24)

	w = suite.do(http.MethodGet, "/api/v1/companions/1/interactions/heatmap?start_date=2026-02-05&end_date=2026-02-01", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodDelete, "/api/v1/companions/1/memories", nil, fp...)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"deleted":4`)
}

func (suite *RouterTestSuite) TestLedgerEndpoints() {
	fp := []string{"X-Device-Fingerprint", "fp-http-ledger"}

	w := suite.do(http.MethodPost, "/api/v1/guest/purchase-diamonds",
		map[string]interface{}{"payment_id": "pay-http-ledger", "package_type": "small", "amount": 5.99}, fp...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var result service.PurchaseResult
	suite.decode(w, &result)
	suite.Require().NotEmpty(result.OrderNo)

	w = suite.do(http.MethodGet, "/api/v1/diamonds/transactions/"+result.OrderNo, nil, fp...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Contains(w.Body.String(), `"amount":1000`)

	w = suite.do(http.MethodGet, "/api/v1/diamonds/transactions/"+result.OrderNo, nil, "X-Device-Fingerprint", "fp-http-stranger")
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/diamonds/stats?days=7", nil, fp...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var stats service.LedgerStats
	suite.decode(w, &stats)
	suite.Equal(7, stats.Days)
	suite.Equal(int64(1025), stats.TotalIn)
	suite.Equal(int64(1025), stats.Balance)

	w = suite.do(http.MethodGet, "/api/v1/diamonds/stats?days=0x", nil, fp...)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/diamonds/payments", nil, fp...)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var payments service.PaymentPage
	suite.decode(w, &payments)
	suite.Equal(int64(1), payments.Total)
}

func (suite *RouterTestSuite) TestPublicConfig() {
	w := suite.do(http.MethodGet, "/api/v1/config/public", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var values map[string]interface{}
	suite.decode(w, &values)
	suite.Equal("1.0.0", values["system.version"])
	suite.NotContains(values, "chat.history_limit")
}
