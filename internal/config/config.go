package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
	Diamond   DiamondConfig   `mapstructure:"diamond"`
	Premium   PremiumConfig   `mapstructure:"premium"`
	Guest     GuestConfig     `mapstructure:"guest"`
	Image     ImageConfig     `mapstructure:"image"`
	Mail      MailConfig      `mapstructure:"mail"`
	System    SystemConfig    `mapstructure:"system"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path              string        `mapstructure:"path"`
	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

// DiamondConfig 钻石经济配置
type DiamondConfig struct {
	WelcomeBonus      int64                    `mapstructure:"welcome_bonus"`
	RegistrationBonus int64                    `mapstructure:"registration_bonus"`
	MessageCost       int64                    `mapstructure:"message_cost"`
	ImageCost         int64                    `mapstructure:"image_cost"`
	Packages          map[string]PackageConfig `mapstructure:"packages"`
}

// PackageConfig 钻石套餐，价格单位为分
type PackageConfig struct {
	Price    int64 `mapstructure:"price"`
	Diamonds int64 `mapstructure:"diamonds"`
}

// PremiumConfig 会员配置
type PremiumConfig struct {
	Plans map[string]PlanConfig `mapstructure:"plans"`
}

// PlanConfig 会员套餐，价格单位为分
type PlanConfig struct {
	Months int   `mapstructure:"months"`
	Price  int64 `mapstructure:"price"`
}

// GuestConfig 访客配置
type GuestConfig struct {
	DefaultGender string `mapstructure:"default_gender"`
	FemaleSlots   int    `mapstructure:"female_slots"`
	MaleSlots     int    `mapstructure:"male_slots"`
	SessionCookie string `mapstructure:"session_cookie"`
	SessionHeader string `mapstructure:"session_header"`
	CookieMaxAge  int    `mapstructure:"cookie_max_age"`
}

// ImageConfig 图片生成配置
type ImageConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
	Model   string `mapstructure:"model"`
}

// MailConfig 验证邮件配置，SMTPHost 为空时只记录日志不发信
type MailConfig struct {
	SMTPHost        string        `mapstructure:"smtp_host"`
	SMTPPort        int           `mapstructure:"smtp_port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	From            string        `mapstructure:"from"`
	AppURL          string        `mapstructure:"app_url"`
	VerificationTTL time.Duration `mapstructure:"verification_ttl"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	Timezone              string        `mapstructure:"timezone"`
	MaxProcs              int           `mapstructure:"max_procs"`
	CleanupInterval       time.Duration `mapstructure:"cleanup_interval"`
	GuestSessionRetention time.Duration `mapstructure:"guest_session_retention"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		var c *Config
		v, c, err = load(configPath)
		if err != nil {
			return
		}
		cfg = c
	})

	return err
}

// Load 读取配置但不替换全局实例
func Load(configPath string) (*Config, error) {
	_, c, err := load(configPath)
	return c, err
}

func load(configPath string) (*viper.Viper, *Config, error) {
	vp := viper.New()

	// 设置配置文件路径
	if configPath != "" {
		vp.SetConfigFile(configPath)
	} else {
		vp.SetConfigName("config")
		vp.SetConfigType("yaml")
		vp.AddConfigPath("./config")
		vp.AddConfigPath(".")
	}

	// 设置环境变量前缀
	vp.SetEnvPrefix("REDVELVET")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	if err := vp.ReadInConfig(); err != nil {
		// 如果配置文件不存在，使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, err
		}
	}

	c := &Config{}
	if err := vp.Unmarshal(c); err != nil {
		return nil, nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	return vp, c, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/redvelvet.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// WebSocket默认配置
	v.SetDefault("websocket.path", "/ws/balance")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.enable_compression", false)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "redvelvet.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("security.jwt.secret", "redvelvet-dev-secret")
	v.SetDefault("security.jwt.expire_hours", 24)
	v.SetDefault("security.jwt.refresh_hours", 168)

	// 钻石经济
	v.SetDefault("diamond.welcome_bonus", 25)
	v.SetDefault("diamond.registration_bonus", 30)
	v.SetDefault("diamond.message_cost", 1)
	v.SetDefault("diamond.image_cost", 5)
	v.SetDefault("diamond.packages", map[string]interface{}{
		"small": map[string]interface{}{"price": 599, "diamonds": 1000},
		"large": map[string]interface{}{"price": 1499, "diamonds": 5000},
	})

	v.SetDefault("premium.plans", map[string]interface{}{
		"monthly": map[string]interface{}{"months": 1, "price": 1499},
		"yearly":  map[string]interface{}{"months": 12, "price": 14999},
	})

	v.SetDefault("guest.default_gender", "both")
	v.SetDefault("guest.female_slots", 3)
	v.SetDefault("guest.male_slots", 2)
	v.SetDefault("guest.session_cookie", "guest_session")
	v.SetDefault("guest.session_header", "X-Guest-Session")
	v.SetDefault("guest.cookie_max_age", 30*24*3600)

	v.SetDefault("image.base_url", "https://image.pollinations.ai/prompt/")
	v.SetDefault("image.width", 512)
	v.SetDefault("image.height", 512)
	v.SetDefault("image.model", "flux")

	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.from", "RedVelvet <noreply@redvelvet.ai>")
	v.SetDefault("mail.app_url", "http://localhost:8080")
	v.SetDefault("mail.verification_ttl", "24h")

	v.SetDefault("system.timezone", "UTC")
	v.SetDefault("system.cleanup_interval", "1h")
	v.SetDefault("system.guest_session_retention", "720h")
}

// Validate 校验经济相关配置
func (c *Config) Validate() error {
	if c.Diamond.MessageCost <= 0 || c.Diamond.ImageCost <= 0 {
		return fmt.Errorf("钻石消耗必须为正数: message=%d image=%d", c.Diamond.MessageCost, c.Diamond.ImageCost)
	}
	if c.Diamond.WelcomeBonus < 0 || c.Diamond.RegistrationBonus < 0 {
		return fmt.Errorf("赠送钻石不能为负数")
	}
	for name, pkg := range c.Diamond.Packages {
		if pkg.Price <= 0 || pkg.Diamonds <= 0 {
			return fmt.Errorf("钻石套餐 %s 配置无效", name)
		}
	}
	for name, plan := range c.Premium.Plans {
		if plan.Months <= 0 || plan.Price <= 0 {
			return fmt.Errorf("会员套餐 %s 配置无效", name)
		}
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化，回调在锁外执行
func Watch(callback func(*Config)) {
	if v == nil {
		return
	}
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载被拒绝: %v\n", err)
			return
		}

		mu.Lock()
		cfg = newCfg
		mu.Unlock()

		if callback != nil {
			callback(newCfg)
		}

		fmt.Printf("配置已重新加载: %s\n", e.Name)
	})
}
