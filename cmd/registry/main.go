package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hewenyu/medml-registry/internal/config"
	"github.com/hewenyu/medml-registry/internal/dns"
	"github.com/hewenyu/medml-registry/internal/registry"
	"github.com/hewenyu/medml-registry/internal/store/catalog"
	"github.com/hewenyu/medml-registry/internal/store/etcd"
)

var (
	configFile string
)

func init() {
	flag.StringVar(&configFile, "config", "", "配置文件路径")
}

func main() {
	flag.Parse()

	// 从配置文件加载配置
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Medical ML Service Registry Starting...",
		zap.String("version", cfg.Registry.Version),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Int("http_port", cfg.Server.Port),
		zap.Bool("dns_enabled", cfg.DNS.Enabled),
	)

	// 创建上下文，用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设置信号处理，以便优雅关闭
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// 根据配置选择目录存储后端
	var store catalog.Catalog
	switch cfg.Store.Backend {
	case config.StoreBackendEtcd:
		etcdClient, err := etcd.NewClient(&cfg.Store.Etcd)
		if err != nil {
			logger.Fatal("初始化etcd客户端失败", zap.Error(err))
		}
		defer func() {
			if err := etcdClient.Close(); err != nil {
				logger.Error("关闭etcd客户端失败", zap.Error(err))
			}
		}()
		store = catalog.NewEtcdCatalog(etcdClient, cfg.Store.Etcd.Prefix)
		logger.Info("使用etcd存储后端",
			zap.Strings("endpoints", cfg.Store.Etcd.Endpoints),
			zap.String("prefix", cfg.Store.Etcd.Prefix))
	case config.StoreBackendMemory:
		store = catalog.NewMemoryCatalog()
		logger.Info("使用内存存储后端")
	default:
		logger.Fatal("未知的存储后端", zap.String("backend", cfg.Store.Backend))
	}

	// 启动注册中心HTTP服务
	registryServer := registry.NewServer(store, cfg, logger)
	if err := registryServer.Start(); err != nil {
		logger.Fatal("启动注册中心HTTP服务失败", zap.Error(err))
	}

	// 按需启动DNS发现服务
	var dnsServer dns.Service
	if cfg.DNS.Enabled {
		dnsCfg := dns.DefaultConfig()
		dnsCfg.DNSAddr = fmt.Sprintf("%s:%d", cfg.DNS.ListenAddress, cfg.DNS.Port)
		dnsCfg.Domain = cfg.DNS.Domain
		dnsCfg.TTL = cfg.DNS.TTL
		dnsCfg.UpstreamDNS = cfg.DNS.UpstreamDNS
		dnsCfg.EnableUDP = cfg.DNS.Protocol == "udp" || cfg.DNS.Protocol == "both"
		dnsCfg.EnableTCP = cfg.DNS.Protocol == "tcp" || cfg.DNS.Protocol == "both"
		dnsCfg.Catalog = store

		dnsServer = dns.NewServer(dnsCfg, logger)
		if err := dnsServer.Start(ctx); err != nil {
			logger.Fatal("启动DNS发现服务失败", zap.Error(err))
		}
	}

	logger.Info("服务已启动",
		zap.String("http_addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.Bool("dns_enabled", cfg.DNS.Enabled),
	)

	// 等待终止信号
	sig := <-signalChan
	logger.Info("接收到信号，准备关闭服务", zap.String("signal", sig.String()))

	cancel()

	// 设置关闭超时，等待各服务退出
	const shutdownTimeout = 5 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := registryServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("关闭注册中心HTTP服务失败", zap.Error(err))
		}
	}()

	if dnsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dnsServer.Stop(); err != nil {
				logger.Error("关闭DNS发现服务失败", zap.Error(err))
			}
		}()
	}

	wg.Wait()
	logger.Info("服务已关闭")
}
