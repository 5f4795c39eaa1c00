package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hewenyu/medml-registry/internal/config"
	"github.com/hewenyu/medml-registry/internal/core/model"
)

// maxProbeBodySize 限制探测响应体的读取大小
const maxProbeBodySize = 1 << 20

// Checker 健康检查器接口，探测结果只作为数据返回，从不作为错误抛出
type Checker interface {
	// CheckOne 探测单个服务的健康端点
	CheckOne(ctx context.Context, record *model.ServiceRecord) *model.ServiceHealth
	// CheckAll 并发探测所有服务，结果顺序与输入一致且完整
	CheckAll(ctx context.Context, records []*model.ServiceRecord) []*model.ServiceHealth
}

// httpChecker 基于HTTP GET探测的健康检查器实现
type httpChecker struct {
	client  *http.Client
	timeout time.Duration
	logger  config.Logger
}

// NewHTTPChecker 创建HTTP健康检查器，timeout为单次探测的超时时间
func NewHTTPChecker(timeout time.Duration, logger config.Logger) Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpChecker{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// probeURL 拼接服务的健康检查地址
func probeURL(record *model.ServiceRecord) string {
	base := strings.TrimRight(record.BaseURL, "/")
	path := record.HealthEndpoint()
	if path == "" {
		path = "/health"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// CheckOne 探测单个服务：
// 2xx且响应体status为healthy或ok时判定healthy，
// 其他可达响应判定unhealthy，连接失败或超时判定unreachable
func (c *httpChecker) CheckOne(ctx context.Context, record *model.ServiceRecord) *model.ServiceHealth {
	result := &model.ServiceHealth{
		ServiceID:     record.ServiceID,
		ServiceName:   record.ServiceName,
		BaseURL:       record.BaseURL,
		LastHeartbeat: record.LastHeartbeat,
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, probeURL(record), nil)
	if err != nil {
		result.Status = model.HealthStatusUnreachable
		result.Error = fmt.Sprintf("构造探测请求失败: %v", err)
		return result
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	result.LatencyMillis = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = model.HealthStatusUnreachable
		result.Error = err.Error()
		c.logger.Debug("服务探测失败",
			zap.String("service_id", record.ServiceID),
			zap.Error(err))
		return result
	}
	defer resp.Body.Close()

	result.HTTPStatus = resp.StatusCode
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBodySize))
	if err != nil {
		result.Status = model.HealthStatusUnreachable
		result.Error = fmt.Sprintf("读取探测响应失败: %v", err)
		return result
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var payload struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			switch strings.ToLower(payload.Status) {
			case "healthy", "ok":
				result.Status = model.HealthStatusHealthy
				return result
			}
		}
	}

	result.Status = model.HealthStatusUnhealthy
	return result
}

// CheckAll 并发探测所有服务，单个服务的失败不影响其他结果
func (c *httpChecker) CheckAll(ctx context.Context, records []*model.ServiceRecord) []*model.ServiceHealth {
	results := make([]*model.ServiceHealth, len(records))
	if len(records) == 0 {
		return results
	}

	var wg sync.WaitGroup
	for i, record := range records {
		wg.Add(1)
		go func(idx int, rec *model.ServiceRecord) {
			defer wg.Done()
			results[idx] = c.CheckOne(ctx, rec)
		}(i, record)
	}
	wg.Wait()

	return results
}
