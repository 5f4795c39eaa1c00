package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// Config SDK客户端配置
type Config struct {
	// 注册中心地址，格式为 "host:port"
	ServerAddr string `json:"server_addr"`
	// 是否使用HTTPS访问注册中心
	Secure bool `json:"secure"`

	// 服务唯一标识，为空时自动生成
	ServiceID string `json:"service_id"`
	// 服务名称
	ServiceName string `json:"service_name"`
	// 服务版本
	Version string `json:"version"`
	// 服务描述
	Description string `json:"description"`
	// 服务对外基础地址
	BaseURL string `json:"base_url"`
	// 服务端口
	Port int `json:"port"`
	// 端点路径映射，必须包含health端点
	Endpoints map[string]string `json:"endpoints"`
	// 输入schema文档，注册中心原样保存
	InputSchema map[string]interface{} `json:"input_schema"`
	// 输出schema文档，注册中心原样保存
	OutputSchema map[string]interface{} `json:"output_schema"`
	// 标签列表
	Tags []string `json:"tags"`
	// 能力描述
	Capabilities map[string]interface{} `json:"capabilities"`

	// 心跳间隔
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	// 操作超时时间
	Timeout time.Duration `json:"timeout"`
	// 请求失败的重试次数
	RetryCount int `json:"retry_count"`
}

// Client SDK客户端
type Client struct {
	config     *Config
	httpClient *http.Client

	mu         sync.Mutex
	registered bool
	stopChan   chan struct{}
}

// Response API响应结构
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ServiceRecord 服务记录，与注册中心的记录结构一致
type ServiceRecord struct {
	ServiceID     string                 `json:"service_id"`
	ServiceName   string                 `json:"service_name"`
	Version       string                 `json:"version,omitempty"`
	Description   string                 `json:"description,omitempty"`
	BaseURL       string                 `json:"base_url"`
	Port          int                    `json:"port,omitempty"`
	Endpoints     map[string]string      `json:"endpoints"`
	InputSchema   map[string]interface{} `json:"input_schema,omitempty"`
	OutputSchema  map[string]interface{} `json:"output_schema,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
	Capabilities  map[string]interface{} `json:"capabilities,omitempty"`
	RegisteredAt  time.Time              `json:"registered_at"`
	LastHeartbeat *time.Time             `json:"last_heartbeat"`
}

// NewClient 创建SDK客户端
func NewClient(config *Config) (*Client, error) {
	// 验证必填配置
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("注册中心地址不能为空")
	}
	if config.ServiceName == "" {
		return nil, fmt.Errorf("服务名称不能为空")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("服务基础地址不能为空")
	}

	// 设置默认值
	if config.ServiceID == "" {
		config.ServiceID = uuid.New().String()
	}
	if config.Endpoints == nil {
		config.Endpoints = map[string]string{}
	}
	if config.Endpoints["health"] == "" {
		config.Endpoints["health"] = "/health"
	}
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}

	// 创建带重试的HTTP客户端
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = config.RetryCount
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = config.Timeout
	retryClient.Logger = nil

	return &Client{
		config:     config,
		httpClient: retryClient.StandardClient(),
	}, nil
}

// 构建API地址
func (c *Client) buildURL(path string) string {
	protocol := "http"
	if c.config.Secure {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s%s", protocol, c.config.ServerAddr, path)
}

// 发送HTTP请求并解析响应信封
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	// 准备请求体
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	// 创建请求
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// 发送请求
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	// 读取响应体
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	// 解析响应
	var apiResp Response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w, 响应内容: %s", err, string(respBody))
	}

	// 检查HTTP状态码
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiResp, fmt.Errorf("API请求失败: %s (状态码: %d)", apiResp.Message, resp.StatusCode)
	}

	return &apiResp, nil
}
