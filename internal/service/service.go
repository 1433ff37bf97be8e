package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/redvelvet/internal/config"
	"github.com/wfunc/redvelvet/internal/repository"
	"github.com/wfunc/redvelvet/internal/utils"
	"go.uber.org/zap"
)

// Package 钻石套餐
type Package struct {
	ID         string  `json:"id"`
	PriceCents int64   `json:"price_cents"`
	Price      float64 `json:"price"`
	Diamonds   int64   `json:"diamonds"`
}

// Plan 会员套餐
type Plan struct {
	ID         string  `json:"id"`
	Months     int     `json:"months"`
	PriceCents int64   `json:"price_cents"`
	Price      float64 `json:"price"`
}

// EconomyConfig 钻石经济参数，支持热更新
type EconomyConfig struct {
	WelcomeBonus      int64
	RegistrationBonus int64
	MessageCost       int64
	ImageCost         int64
	Packages          map[string]Package
	Plans             map[string]Plan
	DefaultGender     string
	FemaleSlots       int
	MaleSlots         int
}

// ImageConfig 图片地址生成参数
type ImageConfig struct {
	BaseURL string
	Width   int
	Height  int
	Model   string
}

// VerificationConfig 邮箱验证参数
type VerificationConfig struct {
	AppURL string
	TTL    time.Duration
}

// Config 服务配置
type Config struct {
	JWTSecret             string
	AccessTokenExpiry     time.Duration
	RefreshTokenExpiry    time.Duration
	ChatHistoryLimit      int
	GuestSessionRetention time.Duration
	Economy               EconomyConfig
	Image                 ImageConfig
	Verification          VerificationConfig
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		JWTSecret:          "redvelvet-dev-secret",
		AccessTokenExpiry:  24 * time.Hour,
		RefreshTokenExpiry:    7 * 24 * time.Hour,
		ChatHistoryLimit:      200,
		GuestSessionRetention: 30 * 24 * time.Hour,
		Economy: EconomyConfig{
			WelcomeBonus:      25,
			RegistrationBonus: 30,
			MessageCost:       1,
			ImageCost:         5,
			Packages: map[string]Package{
				"small": newPackage("small", 599, 1000),
				"large": newPackage("large", 1499, 5000),
			},
			Plans: map[string]Plan{
				"monthly": newPlan("monthly", 1, 1499),
				"yearly":  newPlan("yearly", 12, 14999),
			},
			DefaultGender: "both",
			FemaleSlots:   3,
			MaleSlots:     2,
		},
		Image: ImageConfig{
			BaseURL: "https://image.pollinations.ai/prompt/",
			Width:   512,
			Height:  512,
			Model:   "flux",
		},
		Verification: VerificationConfig{
			AppURL: "http://localhost:8080",
			TTL:    24 * time.Hour,
		},
	}
}

// FromAppConfig 由全局配置生成服务配置
func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	c.JWTSecret = cfg.Security.JWT.Secret
	if cfg.Security.JWT.ExpireHours > 0 {
		c.AccessTokenExpiry = time.Duration(cfg.Security.JWT.ExpireHours) * time.Hour
	}
	if cfg.Security.JWT.RefreshHours > 0 {
		c.RefreshTokenExpiry = time.Duration(cfg.Security.JWT.RefreshHours) * time.Hour
	}
	c.Economy = EconomyFromAppConfig(cfg)
	c.Image = ImageConfig{
		BaseURL: cfg.Image.BaseURL,
		Width:   cfg.Image.Width,
		Height:  cfg.Image.Height,
		Model:   cfg.Image.Model,
	}
	if cfg.Mail.AppURL != "" {
		c.Verification.AppURL = cfg.Mail.AppURL
	}
	if cfg.Mail.VerificationTTL > 0 {
		c.Verification.TTL = cfg.Mail.VerificationTTL
	}
	if cfg.System.GuestSessionRetention > 0 {
		c.GuestSessionRetention = cfg.System.GuestSessionRetention
	}
	return c
}

// MailerFromAppConfig 配置了 SMTP 时发真实邮件，否则只记录日志
func MailerFromAppConfig(cfg *config.Config, log *zap.Logger) Mailer {
	if cfg.Mail.SMTPHost == "" {
		return NewLogMailer(log)
	}
	return NewSMTPMailer(SMTPConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
}

// EconomyFromAppConfig 提取经济参数，配置热更新时也走这里
func EconomyFromAppConfig(cfg *config.Config) EconomyConfig {
	e := EconomyConfig{
		WelcomeBonus:      cfg.Diamond.WelcomeBonus,
		RegistrationBonus: cfg.Diamond.RegistrationBonus,
		MessageCost:       cfg.Diamond.MessageCost,
		ImageCost:         cfg.Diamond.ImageCost,
		Packages:          make(map[string]Package, len(cfg.Diamond.Packages)),
		Plans:             make(map[string]Plan, len(cfg.Premium.Plans)),
		DefaultGender:     cfg.Guest.DefaultGender,
		FemaleSlots:       cfg.Guest.FemaleSlots,
		MaleSlots:         cfg.Guest.MaleSlots,
	}
	for id, p := range cfg.Diamond.Packages {
		e.Packages[id] = newPackage(id, p.Price, p.Diamonds)
	}
	for id, p := range cfg.Premium.Plans {
		e.Plans[id] = newPlan(id, p.Months, p.Price)
	}
	return e
}

func newPackage(id string, cents, diamonds int64) Package {
	return Package{ID: id, PriceCents: cents, Price: float64(cents) / 100, Diamonds: diamonds}
}

func newPlan(id string, months int, cents int64) Plan {
	return Plan{ID: id, Months: months, PriceCents: cents, Price: float64(cents) / 100}
}

// settings 运行期经济参数，配置重载时整体替换
type settings struct {
	mu      sync.RWMutex
	economy EconomyConfig
}

func (s *settings) get() EconomyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.economy
}

func (s *settings) set(e EconomyConfig) {
	s.mu.Lock()
	s.economy = e
	s.mu.Unlock()
}

func (e EconomyConfig) sortedPackages() []Package {
	list := make([]Package, 0, len(e.Packages))
	for _, p := range e.Packages {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].PriceCents != list[j].PriceCents {
			return list[i].PriceCents < list[j].PriceCents
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Services 服务集合
type Services struct {
	Guest       GuestService
	Diamond     DiamondService
	Purchase    PurchaseService
	Premium     PremiumService
	Auth        AuthService
	User        UserService
	Companion   CompanionService
	Chat        ChatService
	Settings    CompanionSettingsService
	Interaction InteractionService
	Image       *ImageService
	Maintenance *Maintenance

	settings  *settings
	overrides *repository.ConfigHelper
	log       *zap.Logger
}

// Option 服务集合可选项
type Option func(*options)

type options struct {
	notifier  BalanceNotifier
	responder Responder
	mailer    Mailer
}

// WithNotifier 设置余额推送
func WithNotifier(n BalanceNotifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithMailer 设置验证邮件发送方式
func WithMailer(m Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithResponder 设置聊天回复生成器
func WithResponder(r Responder) Option {
	return func(o *options) { o.responder = r }
}

// NewServices 创建服务集合
func NewServices(repos *repository.Manager, cfg *Config, log *zap.Logger, opts ...Option) *Services {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = NopNotifier{}
	}
	if o.responder == nil {
		o.responder = NewCannedResponder(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if o.mailer == nil {
		o.mailer = NewLogMailer(log.Named("mail"))
	}

	st := &settings{economy: cfg.Economy}
	jwtManager := utils.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	overrides := repository.NewConfigHelper(repos.SystemConfig())

	diamond := NewDiamondService(repos, st, overrides, o.notifier, log.Named("diamond"))
	companion := NewCompanionService(repos, st, log.Named("companion"))
	image := NewImageService(cfg.Image)

	return &Services{
		Guest:       NewGuestService(repos, st, overrides, companion, o.notifier, log.Named("guest")),
		Diamond:     diamond,
		Purchase:    NewPurchaseService(repos, st, o.notifier, log.Named("purchase")),
		Premium:     NewPremiumService(repos, st, log.Named("premium")),
		Auth:        NewAuthService(repos, st, overrides, jwtManager, o.mailer, cfg.Verification, log.Named("auth")),
		User:        NewUserService(repos, log.Named("user")),
		Companion:   companion,
		Chat:        NewChatService(repos, diamond, image, o.responder, overrides, cfg.ChatHistoryLimit, log.Named("chat")),
		Settings:    NewCompanionSettingsService(repos, log.Named("settings")),
		Interaction: NewInteractionService(repos, log.Named("interaction")),
		Image:       image,
		Maintenance: NewMaintenance(repos, cfg.GuestSessionRetention, log.Named("maintenance")),
		settings:    st,
		overrides:   overrides,
		log:         log,
	}
}

// PublicConfig 系统配置表中标记为公开的配置
func (s *Services) PublicConfig(ctx context.Context) (map[string]interface{}, error) {
	values, err := s.overrides.PublicValues(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return values, nil
}

// ApplyEconomy 替换运行期经济参数
func (s *Services) ApplyEconomy(e EconomyConfig) {
	s.settings.set(e)
	s.log.Info("经济参数已更新",
		zap.Int64("welcome_bonus", e.WelcomeBonus),
		zap.Int64("registration_bonus", e.RegistrationBonus),
		zap.Int64("message_cost", e.MessageCost),
		zap.Int64("image_cost", e.ImageCost),
	)
}
