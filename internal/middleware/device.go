package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/redvelvet/internal/fingerprint"
	"github.com/wfunc/redvelvet/internal/service"
	"go.uber.org/zap"
)

const ctxDevice = "deviceIdentity"

// 设备相关请求头
const (
	HeaderFingerprint = "X-Device-Fingerprint"
	HeaderPlatform    = "X-Platform"
)

// DeviceOptions 访客会话ID的来源
type DeviceOptions struct {
	SessionHeader string
	SessionCookie string
}

// DeviceIdentity 解析设备指纹、平台与访客会话ID。
// 未携带指纹或指纹非法时用连接信息生成兜底指纹
func DeviceIdentity(opts DeviceOptions, log *zap.Logger) gin.HandlerFunc {
	if opts.SessionHeader == "" {
		opts.SessionHeader = "X-Guest-Session"
	}
	if opts.SessionCookie == "" {
		opts.SessionCookie = "guest_session"
	}

	return func(c *gin.Context) {
		userAgent := c.Request.UserAgent()
		identity := service.DeviceIdentity{
			IP:        c.ClientIP(),
			UserAgent: userAgent,
		}

		fp, err := fingerprint.Normalize(c.GetHeader(HeaderFingerprint))
		if err != nil {
			fp = fingerprint.Fallback(identity.IP, userAgent, c.GetHeader("Accept-Language"))
			identity.Fallback = true
			log.Debug("使用兜底设备指纹", zap.String("ip", identity.IP), zap.String("reason", err.Error()))
		}
		identity.Fingerprint = fp

		header := c.GetHeader(HeaderPlatform)
		platform, err := fingerprint.ParsePlatform(header)
		switch {
		case err != nil:
			platform = fingerprint.DetectPlatform(userAgent)
			log.Debug("未知平台，按User-Agent推断", zap.String("platform", header), zap.String("detected", platform))
		case strings.TrimSpace(header) == "":
			platform = fingerprint.DetectPlatform(userAgent)
		}
		identity.Platform = platform

		identity.GuestSessionID = c.GetHeader(opts.SessionHeader)
		if identity.GuestSessionID == "" {
			if cookie, err := c.Cookie(opts.SessionCookie); err == nil {
				identity.GuestSessionID = cookie
			}
		}

		c.Set(ctxDevice, identity)
		c.Next()
	}
}

// GetDeviceIdentity 从上下文获取设备信息
func GetDeviceIdentity(c *gin.Context) (service.DeviceIdentity, bool) {
	if v, exists := c.Get(ctxDevice); exists {
		if identity, ok := v.(service.DeviceIdentity); ok {
			return identity, true
		}
	}
	return service.DeviceIdentity{}, false
}
