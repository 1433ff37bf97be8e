// Package fingerprint 设备指纹的派生、兜底与校验。
//
// 指纹只是限流用的线索，不是身份凭证：不同设备可能得到相同指纹，
// 同一设备换浏览器也会变化。
package fingerprint

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/wfunc/redvelvet/internal/models"
)

const (
	// MaxLength 指纹最大长度，与 device_sessions.device_fingerprint 列宽一致
	MaxLength = 255
	// DerivedLength Derive 输出的长度上限
	DerivedLength = 32
)

var (
	nonAlnum      = regexp.MustCompile(`[^A-Za-z0-9]`)
	androidUA     = regexp.MustCompile(`(?i)Android`)
	iosUA         = regexp.MustCompile(`(?i)iPhone|iPad|iPod`)
	errEmpty      = fmt.Errorf("设备指纹为空")
	errTooLong    = fmt.Errorf("设备指纹长度超过%d", MaxLength)
	errControlChr = fmt.Errorf("设备指纹包含控制字符")
)

// Signals 客户端采集的设备特征
type Signals struct {
	Canvas              string `json:"canvas"`
	Screen              string `json:"screen"` // 宽x高x色深
	Timezone            string `json:"timezone"`
	Language            string `json:"language"`
	WebGL               string `json:"webgl"`
	HardwareConcurrency int    `json:"hardware_concurrency"`
	Platform            string `json:"platform"`
	Runtime             string `json:"runtime"` // capacitor 或 browser
}

// Derive 由设备特征派生指纹。相同输入得到相同输出，但不保证唯一
func Derive(s Signals) string {
	language := s.Language
	if language == "" {
		language = "unknown"
	}
	runtime := s.Runtime
	if runtime == "" {
		runtime = "browser"
	}

	data := strings.Join([]string{
		s.Canvas,
		s.Screen,
		s.Timezone,
		language,
		s.WebGL,
		strconv.Itoa(s.HardwareConcurrency),
		s.Platform,
		runtime,
	}, "|")

	encoded := nonAlnum.ReplaceAllString(base64.StdEncoding.EncodeToString([]byte(data)), "")
	if len(encoded) > DerivedLength {
		encoded = encoded[:DerivedLength]
	}
	return encoded
}

// Fallback 请求未携带指纹时根据连接信息生成兜底指纹。
// 同一出口IP下的同款浏览器会得到相同结果。
func Fallback(ip, userAgent, acceptLanguage string) string {
	raw := ip + "_" + userAgent + "_" + acceptLanguage
	fp := base64.StdEncoding.EncodeToString([]byte(raw))
	if len(fp) > MaxLength {
		fp = fp[:MaxLength]
	}
	return fp
}

// Normalize 校验并规整客户端上报的指纹
func Normalize(raw string) (string, error) {
	fp := strings.TrimSpace(raw)
	if fp == "" {
		return "", errEmpty
	}
	if len(fp) > MaxLength {
		return "", errTooLong
	}
	for _, r := range fp {
		if unicode.IsControl(r) {
			return "", errControlChr
		}
	}
	return fp, nil
}

// ParsePlatform 解析平台标识，空值视为 web
func ParsePlatform(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", models.PlatformWeb:
		return models.PlatformWeb, nil
	case models.PlatformAndroid:
		return models.PlatformAndroid, nil
	case models.PlatformIOS:
		return models.PlatformIOS, nil
	default:
		return "", fmt.Errorf("不支持的平台: %s", s)
	}
}

// DetectPlatform 根据 User-Agent 推断平台
func DetectPlatform(userAgent string) string {
	switch {
	case androidUA.MatchString(userAgent):
		return models.PlatformAndroid
	case iosUA.MatchString(userAgent):
		return models.PlatformIOS
	default:
		return models.PlatformWeb
	}
}

// DeviceID 客户端本地持久化用的设备ID，格式 platform_fingerprint_unixmillis
func DeviceID(platform, fingerprint string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%d", platform, fingerprint, t.UnixMilli())
}
