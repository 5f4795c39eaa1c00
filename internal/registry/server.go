package registry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hewenyu/medml-registry/internal/config"
	"github.com/hewenyu/medml-registry/internal/health"
	"github.com/hewenyu/medml-registry/internal/metrics"
	"github.com/hewenyu/medml-registry/internal/registry/handler"
	"github.com/hewenyu/medml-registry/internal/registry/service"
	"github.com/hewenyu/medml-registry/internal/store/catalog"
)

// Server 表示注册中心HTTP服务
type Server struct {
	e           *echo.Echo
	host        string
	port        int
	handler     *handler.RegistryHandler
	logger      config.Logger
	shutdownCtx context.Context
	cancel      context.CancelFunc
}

// NewServer 创建注册中心HTTP服务，目录存储由调用方注入
func NewServer(store catalog.Catalog, cfg *config.Config, logger config.Logger) *Server {
	// 创建Echo实例
	e := echo.New()
	e.HideBanner = true

	// 添加中间件
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	if cfg.Server.RateLimit > 0 {
		e.Use(middleware.RateLimiter(
			middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	}

	// 创建指标集合与健康检查器
	m := metrics.NewMetrics()
	checker := health.NewHTTPChecker(cfg.Health.ProbeTimeout, logger)

	// 创建注册中心服务
	registryService := service.NewRegistryService(
		store,
		checker,
		m,
		logger,
		cfg.Registry.Name,
		cfg.Registry.Version,
	)

	// 创建处理器并注册路由
	registryHandler := handler.NewRegistryHandler(registryService, m, cfg, logger)
	registryHandler.RegisterRoutes(e)

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		e:           e,
		host:        cfg.Server.Host,
		port:        cfg.Server.Port,
		handler:     registryHandler,
		logger:      logger,
		shutdownCtx: ctx,
		cancel:      cancel,
	}
}

// Start 启动服务
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("注册中心API服务启动", zap.String("addr", addr))

	// 以非阻塞方式启动服务
	go func() {
		if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
			s.logger.Error("注册中心API服务启动失败", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown 关闭服务
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.logger.Info("注册中心API服务关闭中")
	return s.e.Shutdown(ctx)
}
