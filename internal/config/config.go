package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 存储后端类型
const (
	StoreBackendMemory = "memory"
	StoreBackendEtcd   = "etcd"
)

// Config 应用程序配置结构
type Config struct {
	// 注册中心自身标识
	Registry struct {
		Name        string `mapstructure:"name"`
		Version     string `mapstructure:"version"`
		Description string `mapstructure:"description"`
	} `mapstructure:"registry"`

	// HTTP服务配置
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
		// RateLimit 为每客户端每秒允许的请求数，0表示不限流
		RateLimit float64 `mapstructure:"rate_limit"`
	} `mapstructure:"server"`

	// 目录存储配置
	Store struct {
		Backend string     `mapstructure:"backend"` // "memory" 或 "etcd"
		Etcd    EtcdConfig `mapstructure:"etcd"`
	} `mapstructure:"store"`

	// 健康检查配置
	Health struct {
		ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	} `mapstructure:"health"`

	// DNS发现服务配置
	DNS struct {
		Enabled       bool     `mapstructure:"enabled"`
		ListenAddress string   `mapstructure:"listen_address"`
		Port          int      `mapstructure:"port"`
		Domain        string   `mapstructure:"domain"`
		TTL           uint32   `mapstructure:"ttl"`
		Protocol      string   `mapstructure:"protocol"` // "udp", "tcp", 或 "both"
		UpstreamDNS   []string `mapstructure:"upstream_dns"`
	} `mapstructure:"dns"`

	// 日志配置
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
}

// EtcdConfig 表示etcd存储后端配置
type EtcdConfig struct {
	Endpoints      []string      `mapstructure:"endpoints"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Prefix         string        `mapstructure:"prefix"`
}

// LoadConfig 从文件和环境变量加载配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果指定了配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 设置配置文件名和路径
		v.SetConfigName("config")               // 配置文件名（无扩展名）
		v.AddConfigPath(".")                    // 当前目录
		v.AddConfigPath("./configs")            // configs目录
		v.AddConfigPath("$HOME/.medml-registry") // 用户目录
		v.AddConfigPath("/etc/medml-registry")   // 系统目录
	}

	// 配置文件格式
	v.SetConfigType("yaml")

	// 尝试从配置文件加载
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，仅记录警告；其他错误则返回
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件错误: %w", err)
		}
	}

	// 绑定环境变量
	v.SetEnvPrefix("MEDML_REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 从环境变量覆盖
	bindEnvVariables(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置错误: %w", err)
	}

	// 进行配置验证
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 注册中心标识默认配置
	v.SetDefault("registry.name", "Medical ML Service Registry")
	v.SetDefault("registry.version", "1.0.0")
	v.SetDefault("registry.description", "Central registry for medical ML prediction services")

	// HTTP服务默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.rate_limit", 50)

	// 存储默认配置
	v.SetDefault("store.backend", StoreBackendMemory)
	v.SetDefault("store.etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("store.etcd.username", "")
	v.SetDefault("store.etcd.password", "")
	v.SetDefault("store.etcd.dial_timeout", 5*time.Second)
	v.SetDefault("store.etcd.request_timeout", 5*time.Second)
	v.SetDefault("store.etcd.prefix", "/medml")

	// 健康检查默认配置
	v.SetDefault("health.probe_timeout", 5*time.Second)

	// DNS发现服务默认配置
	v.SetDefault("dns.enabled", false)
	v.SetDefault("dns.listen_address", "0.0.0.0")
	v.SetDefault("dns.port", 5353)
	v.SetDefault("dns.domain", "registry.local")
	v.SetDefault("dns.ttl", 30)
	v.SetDefault("dns.protocol", "both")
	v.SetDefault("dns.upstream_dns", []string{"8.8.8.8:53", "8.8.4.4:53"})

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)
}

// bindEnvVariables 绑定特定的环境变量
func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "MEDML_REGISTRY_SERVER_PORT")
	v.BindEnv("store.backend", "MEDML_REGISTRY_STORE_BACKEND")
	v.BindEnv("store.etcd.endpoints", "MEDML_REGISTRY_ETCD_ENDPOINTS")
	v.BindEnv("dns.port", "MEDML_REGISTRY_DNS_PORT")
	v.BindEnv("log.level", "MEDML_REGISTRY_LOG_LEVEL")
}

// validateConfig 验证配置有效性
func validateConfig(config *Config) error {
	// HTTP服务配置验证
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("HTTP服务端口配置无效: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("限流配置不能为负数: %f", config.Server.RateLimit)
	}

	// 存储配置验证
	switch config.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendEtcd:
		if len(config.Store.Etcd.Endpoints) == 0 {
			return fmt.Errorf("etcd端点不能为空")
		}
	default:
		return fmt.Errorf("未知的存储后端: %s", config.Store.Backend)
	}

	// 健康检查配置验证
	if config.Health.ProbeTimeout <= 0 {
		return fmt.Errorf("健康检查超时时间必须大于0")
	}

	// DNS配置验证
	if config.DNS.Enabled {
		if config.DNS.Port <= 0 || config.DNS.Port > 65535 {
			return fmt.Errorf("DNS端口配置无效: %d", config.DNS.Port)
		}
		if config.DNS.Domain == "" {
			return fmt.Errorf("DNS域名后缀不能为空")
		}
		switch config.DNS.Protocol {
		case "udp", "tcp", "both":
		default:
			return fmt.Errorf("未知的DNS协议: %s", config.DNS.Protocol)
		}
	}

	return nil
}
