package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/wfunc/redvelvet/internal/models"
)

var (
	promptUnsafe = regexp.MustCompile(`[^a-zA-Z0-9\s,.\-]`)
	promptSpaces = regexp.MustCompile(`\s+`)
)

// ImageService 生成伴侣图片地址，图片由外部服务按地址渲染
type ImageService struct {
	cfg ImageConfig
	now func() time.Time
}

// NewImageService 创建图片服务
func NewImageService(cfg ImageConfig) *ImageService {
	return &ImageService{cfg: cfg, now: time.Now}
}

// BuildURL 拼接图片地址，同一伴侣使用固定 seed 保持形象一致
func (s *ImageService) BuildURL(prompt string, companion *models.Companion) string {
	enhanced := prompt
	seed := s.now().UnixMilli()

	if companion != nil {
		var b strings.Builder
		b.WriteString(companion.GenderDescription())
		if companion.Personality != "" {
			fmt.Fprintf(&b, ", %s personality", companion.Personality)
		}
		if len(companion.Traits) > 0 {
			traits := companion.Traits
			if len(traits) > 3 {
				traits = traits[:3]
			}
			fmt.Fprintf(&b, ", %s traits", strings.Join(traits, ", "))
		}
		b.WriteString(", consistent character design, detailed facial features, high quality portrait")

		enhanced = fmt.Sprintf("%s, %s, realistic, cinematic lighting, professional quality", b.String(), prompt)
		seed = NameSeed(companion.Name)
	}

	clean := strings.TrimSpace(promptUnsafe.ReplaceAllString(enhanced, ""))
	clean = promptSpaces.ReplaceAllString(clean, "%20")

	return fmt.Sprintf("%s%s?width=%d&height=%d&model=%s&seed=%d",
		s.cfg.BaseURL, clean, s.cfg.Width, s.cfg.Height, s.cfg.Model, seed)
}

// NameSeed 名字的 32 位滚动哈希(h*31+c)取绝对值
func NameSeed(name string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(name)) {
		h = h*31 + int32(c)
	}
	seed := int64(h)
	if seed < 0 {
		seed = -seed
	}
	return seed
}
