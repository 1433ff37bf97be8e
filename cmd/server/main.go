package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/redvelvet/internal/api"
	"github.com/wfunc/redvelvet/internal/config"
	"github.com/wfunc/redvelvet/internal/database"
	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/logger"
	"github.com/wfunc/redvelvet/internal/repository"
	"github.com/wfunc/redvelvet/internal/service"
	ws "github.com/wfunc/redvelvet/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	services   *service.Services
	hub        *ws.Hub
	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
		setConfig   = flag.String("set-config", "", "写入系统配置后退出，格式 key=value")
		unsetConfig = flag.String("unset-config", "", "删除系统配置后退出")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	setupSystem(&cfg.System)

	if *setConfig != "" || *unsetConfig != "" {
		if err := editSystemConfig(cfg, *setConfig, *unsetConfig); err != nil {
			logger.Error("修改系统配置失败", zap.Error(err))
			os.Exit(1)
		}
		logger.Cleanup()
		os.Exit(0)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 初始化数据库、服务与推送中心，并开始监听
func (s *Server) Start() error {
	s.logger.Info("正在启动 RedVelvet 服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initDatabase(); err != nil {
		return err
	}

	s.hub = ws.NewHub(ws.Options{
		PingInterval:   s.cfg.WebSocket.PingInterval,
		PongTimeout:    s.cfg.WebSocket.PongTimeout,
		WriteTimeout:   s.cfg.WebSocket.WriteTimeout,
		MaxMessageSize: s.cfg.WebSocket.MaxMessageSize,
	}, logger.GetModuleLogger("websocket"))

	repos := repository.NewManager(database.GetDB())
	s.services = service.NewServices(repos, service.FromAppConfig(s.cfg), logger.GetModuleLogger("service"),
		service.WithNotifier(s.hub),
		service.WithMailer(service.MailerFromAppConfig(s.cfg, logger.GetModuleLogger("mail"))),
	)
	s.hub.SetBalanceReader(s.services.Diamond)
	go s.hub.Run(s.ctx)
	go s.services.Maintenance.Run(s.ctx, s.cfg.System.CleanupInterval)

	gin.SetMode(ginMode(s.cfg.Server.Mode))
	router := api.NewRouter(database.GetDB(), s.services, s.hub, s.cfg, logger.GetModuleLogger("api"))

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router.Engine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", addr),
		zap.String("websocket", "/api/v1"+s.cfg.WebSocket.Path),
	)
	return nil
}

// initDatabase 连接数据库并迁移
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	if err := database.Init(&s.cfg.Database); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}
	if !database.IsConnected() {
		return apperrors.New(apperrors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成", zap.String("driver", s.cfg.Database.Driver))
	return nil
}

// editSystemConfig 命令行修改系统配置表，运行中的实例在下一轮清理时刷新缓存
func editSystemConfig(cfg *config.Config, set, unset string) error {
	if err := database.Init(&cfg.Database); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	defer database.Close()
	if err := database.AutoMigrate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "数据库迁移失败")
	}

	configs := repository.NewManager(database.GetDB()).SystemConfig()
	ctx := context.Background()
	if set != "" {
		key, raw, ok := strings.Cut(set, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return apperrors.Newf(apperrors.ErrInvalidParam, "配置格式应为 key=value: %s", set)
		}
		if err := configs.Set(ctx, key, repository.ParseConfigValue(raw), ""); err != nil {
			return err
		}
		logger.Info("系统配置已写入", zap.String("key", key), zap.String("value", raw))
	}
	if unset != "" {
		if err := configs.Delete(ctx, unset); err != nil {
			return err
		}
		logger.Info("系统配置已删除", zap.String("key", unset))
	}
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭：先停止接收请求，再关闭推送连接与数据库
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("关闭超时，强制退出", zap.Error(err))
			shutdownErr = apperrors.Wrap(err, apperrors.ErrTimeout, "关闭超时")
		}
	}

	s.cancel()

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
	logger.Cleanup()
	return shutdownErr
}

// reloadConfig 热更新经济参数与日志级别，监听地址与数据库不变
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.services.ApplyEconomy(service.EconomyFromAppConfig(newCfg))
	if newCfg.Log.Level != s.cfg.Log.Level {
		logger.SetLevel(newCfg.Log.Level)
		s.logger.Info("日志级别已更新", zap.String("level", logger.Level()))
	}
	s.cfg = newCfg
	s.logger.Info("配置重新加载完成")
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
}

// ginMode 运行模式映射到 gin 的模式
func ginMode(mode string) string {
	switch mode {
	case "production", "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("RedVelvet 服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("RedVelvet 服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  redvelvet-server [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  REDVELVET_SERVER_PORT       监听端口")
	fmt.Println("  REDVELVET_DATABASE_DSN      数据库连接串")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  redvelvet-server -config=/path/to/config.yaml")
	fmt.Println("  redvelvet-server -version")
	fmt.Println("  redvelvet-server -set-config diamond.message_cost=2")
	fmt.Println("  redvelvet-server -unset-config diamond.message_cost")
}
