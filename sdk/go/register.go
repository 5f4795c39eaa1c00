package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RemovalResult 注销响应数据
type RemovalResult struct {
	ServiceID string `json:"service_id"`
	Removed   bool   `json:"removed"`
}

// buildRecord 从配置构建服务记录
func (c *Client) buildRecord() *ServiceRecord {
	return &ServiceRecord{
		ServiceID:    c.config.ServiceID,
		ServiceName:  c.config.ServiceName,
		Version:      c.config.Version,
		Description:  c.config.Description,
		BaseURL:      c.config.BaseURL,
		Port:         c.config.Port,
		Endpoints:    c.config.Endpoints,
		InputSchema:  c.config.InputSchema,
		OutputSchema: c.config.OutputSchema,
		Tags:         c.config.Tags,
		Capabilities: c.config.Capabilities,
	}
}

// Register 向注册中心注册本服务，返回存储后的记录。
// 同一service_id重复注册会整体替换已有记录
func (c *Client) Register(ctx context.Context) (*ServiceRecord, error) {
	// 发送注册请求
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/services/register", c.buildRecord())
	if err != nil {
		return nil, fmt.Errorf("服务注册失败: %w", err)
	}

	// 解析响应
	var stored ServiceRecord
	if err := json.Unmarshal(resp.Data, &stored); err != nil {
		return nil, fmt.Errorf("解析注册响应失败: %w", err)
	}

	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()

	return &stored, nil
}

// Deregister 注销本服务，返回注册中心是否删除了记录
func (c *Client) Deregister(ctx context.Context) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodDelete,
		fmt.Sprintf("/api/v1/services/%s", c.config.ServiceID), nil)
	if err != nil {
		return false, fmt.Errorf("服务注销失败: %w", err)
	}

	var result RemovalResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return false, fmt.Errorf("解析注销响应失败: %w", err)
	}

	c.mu.Lock()
	c.registered = false
	c.mu.Unlock()

	return result.Removed, nil
}

// ServiceID 获取本服务的唯一标识
func (c *Client) ServiceID() string {
	return c.config.ServiceID
}

// IsRegistered 检查服务是否已注册
func (c *Client) IsRegistered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}
