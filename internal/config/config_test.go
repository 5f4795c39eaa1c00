package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// 从默认位置加载配置
	config, err := LoadConfig("")
	require.NoError(t, err, "无法加载默认配置")
	require.NotNil(t, config, "配置不应为nil")

	// 验证默认值
	assert.Equal(t, 9000, config.Server.Port, "HTTP服务端口应为9000")
	assert.Equal(t, StoreBackendMemory, config.Store.Backend, "默认存储后端应为memory")
	assert.Equal(t, 5*time.Second, config.Health.ProbeTimeout, "默认探测超时应为5秒")
	assert.Equal(t, "registry.local", config.DNS.Domain, "DNS域名后缀应为registry.local")
	assert.Equal(t, []string{"8.8.8.8:53", "8.8.4.4:53"}, config.DNS.UpstreamDNS, "上游DNS应为默认值")
	assert.False(t, config.DNS.Enabled, "DNS服务默认应关闭")
	assert.Equal(t, "Medical ML Service Registry", config.Registry.Name, "注册中心名称应为默认值")
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	// 设置环境变量
	os.Setenv("MEDML_REGISTRY_SERVER_PORT", "19000")
	os.Setenv("MEDML_REGISTRY_STORE_BACKEND", "etcd")
	defer func() {
		os.Unsetenv("MEDML_REGISTRY_SERVER_PORT")
		os.Unsetenv("MEDML_REGISTRY_STORE_BACKEND")
	}()

	// 加载配置
	config, err := LoadConfig("")
	require.NoError(t, err, "无法加载配置")
	require.NotNil(t, config, "配置不应为nil")

	// 验证环境变量覆盖
	assert.Equal(t, 19000, config.Server.Port, "环境变量应正确覆盖HTTP服务端口")
	assert.Equal(t, StoreBackendEtcd, config.Store.Backend, "环境变量应正确覆盖存储后端")

	// 确认其他值不受影响
	assert.Equal(t, 5353, config.DNS.Port, "DNS端口不应被环境变量影响")
}

func TestLoadConfigWithMissingFile(t *testing.T) {
	// 尝试从不存在的文件加载配置
	config, err := LoadConfig("non_existent_file.yaml")

	// 应该返回错误
	assert.Error(t, err, "从不存在的文件加载配置应该失败")

	// 不应该返回配置对象
	assert.Nil(t, config, "加载不存在的配置文件应该返回nil配置")
}

func TestLoadConfigFromFile(t *testing.T) {
	// 写入一个临时配置文件
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9100
store:
  backend: memory
health:
  probe_timeout: 2s
dns:
  enabled: true
  port: 15353
  domain: test.local
`)
	require.NoError(t, os.WriteFile(path, content, 0o644), "写入临时配置文件失败")

	config, err := LoadConfig(path)
	require.NoError(t, err, "从文件加载配置失败")

	assert.Equal(t, 9100, config.Server.Port, "端口应来自配置文件")
	assert.Equal(t, 2*time.Second, config.Health.ProbeTimeout, "探测超时应来自配置文件")
	assert.True(t, config.DNS.Enabled, "DNS开关应来自配置文件")
	assert.Equal(t, "test.local", config.DNS.Domain, "DNS域名应来自配置文件")
}

func TestValidateConfig(t *testing.T) {
	// 未知存储后端应被拒绝
	t.Run("UnknownBackend", func(t *testing.T) {
		config, err := LoadConfig("")
		require.NoError(t, err)

		config.Store.Backend = "redis"
		assert.Error(t, validateConfig(config), "未知存储后端应校验失败")
	})

	// etcd后端要求端点非空
	t.Run("EtcdWithoutEndpoints", func(t *testing.T) {
		config, err := LoadConfig("")
		require.NoError(t, err)

		config.Store.Backend = StoreBackendEtcd
		config.Store.Etcd.Endpoints = nil
		assert.Error(t, validateConfig(config), "etcd后端缺少端点应校验失败")
	})

	// 探测超时必须为正
	t.Run("NonPositiveProbeTimeout", func(t *testing.T) {
		config, err := LoadConfig("")
		require.NoError(t, err)

		config.Health.ProbeTimeout = 0
		assert.Error(t, validateConfig(config), "探测超时为0应校验失败")
	})

	// 启用DNS后域名不能为空
	t.Run("DNSWithoutDomain", func(t *testing.T) {
		config, err := LoadConfig("")
		require.NoError(t, err)

		config.DNS.Enabled = true
		config.DNS.Domain = ""
		assert.Error(t, validateConfig(config), "启用DNS时域名为空应校验失败")
	})
}
