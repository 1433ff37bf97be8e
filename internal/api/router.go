package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/redvelvet/internal/config"
	"github.com/wfunc/redvelvet/internal/database"
	"github.com/wfunc/redvelvet/internal/middleware"
	"github.com/wfunc/redvelvet/internal/service"
	ws "github.com/wfunc/redvelvet/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine   *gin.Engine
	db       *gorm.DB
	services *service.Services
	hub      *ws.Hub
	cfg      *config.Config
	log      *zap.Logger

	authMiddleware *middleware.AuthMiddleware
	deviceIdentity gin.HandlerFunc
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, services *service.Services, hub *ws.Hub, cfg *config.Config, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	r := &Router{
		engine:         engine,
		db:             db,
		services:       services,
		hub:            hub,
		cfg:            cfg,
		log:            log,
		authMiddleware: middleware.NewAuthMiddleware(services.Auth),
		deviceIdentity: middleware.DeviceIdentity(middleware.DeviceOptions{
			SessionHeader: cfg.Guest.SessionHeader,
			SessionCookie: cfg.Guest.SessionCookie,
		}, log),
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	base := &handler{
		services: r.services,
		session: SessionOptions{
			Header:       r.cfg.Guest.SessionHeader,
			Cookie:       r.cfg.Guest.SessionCookie,
			CookieMaxAge: r.cfg.Guest.CookieMaxAge,
		},
		log: r.log,
	}
	authHandler := &AuthHandler{handler: base}
	guestHandler := &GuestHandler{handler: base}
	mobileHandler := &MobileHandler{handler: base, now: time.Now}
	diamondHandler := &DiamondHandler{handler: base}
	companionHandler := &CompanionHandler{handler: base}
	userHandler := &UserHandler{handler: base}
	wsHandler := newWebSocketHandler(base, r.hub, r.cfg.WebSocket)

	requireAuth := r.authMiddleware.RequireAuth()
	optionalAuth := r.authMiddleware.OptionalAuth()

	r.engine.GET("/health", r.healthCheck)
	registerDocsRoutes(r.engine)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", r.healthCheck)

		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", requireAuth, authHandler.Logout)
			auth.GET("/profile", requireAuth, authHandler.GetProfile)
			auth.GET("/verify-email", authHandler.VerifyEmail)
			auth.POST("/resend-verification", authHandler.ResendVerification)
		}

		guest := v1.Group("/guest", r.deviceIdentity)
		{
			guest.GET("/session", guestHandler.Session)
			guest.POST("/refresh", guestHandler.Refresh)
			guest.PATCH("/preferences", guestHandler.UpdatePreferences)
			guest.GET("/diamonds", guestHandler.Diamonds)
			guest.POST("/diamonds/use", guestHandler.UseDiamonds)
			guest.GET("/can-access/:companionId", guestHandler.CanAccess)
			guest.POST("/purchase-diamonds", guestHandler.PurchaseDiamonds)
			guest.POST("/generate-image", guestHandler.GenerateImage)
			guest.GET("/chat/:companionId", guestHandler.ChatHistory)
			guest.POST("/chat/:companionId", guestHandler.SendMessage)
			guest.DELETE("/chat", guestHandler.ClearChat)
		}

		mobile := v1.Group("/mobile", r.deviceIdentity)
		{
			mobile.GET("/device-session", mobileHandler.DeviceSession)
			mobile.GET("/diamonds", mobileHandler.Diamonds)
			mobile.POST("/diamonds/deduct", mobileHandler.Deduct)
			mobile.POST("/chat/save", mobileHandler.SaveChat)
			mobile.GET("/chat/history/:companionId", mobileHandler.ChatHistory)
			mobile.DELETE("/chat/clear", mobileHandler.ClearChat)
		}

		diamonds := v1.Group("/diamonds", optionalAuth, r.deviceIdentity)
		{
			diamonds.GET("/balance", diamondHandler.Balance)
			diamonds.GET("/packages", diamondHandler.Packages)
			diamonds.GET("/history", diamondHandler.History)
			diamonds.GET("/stats", diamondHandler.Stats)
			diamonds.GET("/payments", diamondHandler.Payments)
			diamonds.GET("/transactions/:orderNo", diamondHandler.Transaction)
		}

		v1.GET("/companions", companionHandler.List)
		v1.GET("/companions/:id", companionHandler.Get)
		v1.GET("/companions/:id/interactions/heatmap", companionHandler.Heatmap)
		v1.GET("/premium/plans", userHandler.Plans)
		v1.GET("/config/public", base.publicConfig)

		// 访客与注册用户共用，按身份隔离
		personal := v1.Group("", optionalAuth, r.deviceIdentity)
		{
			personal.GET("/companions/:id/settings", companionHandler.GetSettings)
			personal.POST("/companions/:id/settings", companionHandler.SaveSettings)
			personal.PATCH("/companions/:id/settings", companionHandler.PatchSettings)
			personal.GET("/companions/:id/memories", companionHandler.Memories)
			personal.DELETE("/companions/:id/memories", companionHandler.ClearMemories)
			personal.POST("/interactions", companionHandler.RecordInteraction)
		}

		// 注册用户
		registered := v1.Group("", requireAuth)
		{
			registered.POST("/purchase-diamonds", userHandler.PurchaseDiamonds)
			registered.POST("/upgrade-to-premium", userHandler.UpgradePremium)
			registered.POST("/generate-image", userHandler.GenerateImage)
			registered.GET("/user/preferences", userHandler.GetPreferences)
			registered.PATCH("/user/preferences", userHandler.UpdatePreferences)
			registered.PATCH("/user/profile", authHandler.UpdateProfile)
			registered.POST("/user/password", authHandler.ChangePassword)
			registered.GET("/companions/:id/chat", userHandler.ChatHistory)
			registered.POST("/companions/:id/chat", userHandler.SendMessage)
			registered.DELETE("/companions/:id/chat", userHandler.ClearChat)
			registered.POST("/premium/upgrade", userHandler.UpgradePremium)
			registered.GET("/premium/status", userHandler.PremiumStatus)
			registered.POST("/premium/renew", userHandler.RenewPremium)
		}

		wsPath := r.cfg.WebSocket.Path
		if wsPath == "" {
			wsPath = "/ws/balance"
		}
		v1.GET(wsPath, optionalAuth, r.deviceIdentity, wsHandler.Balance)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := database.Ping(ctx, r.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库不可用",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"message":      "服务运行正常",
		"online_count": r.hub.OnlineCount(),
	})
}

// publicConfig 客户端可读取的系统配置
// @Summary 公开配置
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/config/public [get]
func (h *handler) publicConfig(c *gin.Context) {
	values, err := h.services.PublicConfig(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

// Engine 获取Gin引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
