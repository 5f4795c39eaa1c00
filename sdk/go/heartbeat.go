package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HeartbeatResult 心跳响应数据
type HeartbeatResult struct {
	ServiceID     string    `json:"service_id"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// SendHeartbeat 发送一次心跳
func (c *Client) SendHeartbeat(ctx context.Context) (*HeartbeatResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/services/%s/heartbeat", c.config.ServiceID), nil)
	if err != nil {
		return nil, fmt.Errorf("发送心跳失败: %w", err)
	}

	var result HeartbeatResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("解析心跳响应失败: %w", err)
	}
	return &result, nil
}

// StartHeartbeat 启动周期性心跳任务
func (c *Client) StartHeartbeat() {
	// 停止已有心跳任务
	c.StopHeartbeat()

	c.mu.Lock()
	stop := make(chan struct{})
	c.stopChan = stop
	c.mu.Unlock()

	// 启动心跳协程
	go func() {
		ticker := time.NewTicker(c.config.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
				_, _ = c.SendHeartbeat(ctx)
				cancel()
			case <-stop:
				return
			}
		}
	}()
}

// StopHeartbeat 停止心跳任务，重复调用是安全的
func (c *Client) StopHeartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopChan != nil {
		close(c.stopChan)
		c.stopChan = nil
	}
}

// Close 关闭客户端：停止心跳，已注册时尽力注销
func (c *Client) Close(ctx context.Context) error {
	c.StopHeartbeat()

	if c.IsRegistered() {
		if _, err := c.Deregister(ctx); err != nil {
			return fmt.Errorf("注销服务失败: %w", err)
		}
	}

	return nil
}
