package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hewenyu/medml-registry/internal/config"
	"github.com/hewenyu/medml-registry/internal/core/model"
	"github.com/hewenyu/medml-registry/internal/health"
	"github.com/hewenyu/medml-registry/internal/metrics"
	"github.com/hewenyu/medml-registry/internal/store/catalog"
)

// RegistryService 提供服务注册中心的业务逻辑
type RegistryService interface {
	// Register 校验并注册（或整体替换）服务记录，返回存储后的记录
	Register(ctx context.Context, record *model.ServiceRecord) (*model.ServiceRecord, error)

	// Unregister 注销服务，removed标记记录此前是否存在
	Unregister(ctx context.Context, serviceID string) (*model.ServiceRemovalResponse, error)

	// GetService 获取单个服务记录
	GetService(ctx context.Context, serviceID string) (*model.ServiceRecord, error)

	// ListServices 获取所有服务记录快照
	ListServices(ctx context.Context) (*model.ServiceListResponse, error)

	// SearchByTags 按逗号分隔的标签检索服务，任一标签命中即返回
	SearchByTags(ctx context.Context, tagsParam string) (*model.ServiceListResponse, error)

	// Heartbeat 刷新服务心跳时间
	Heartbeat(ctx context.Context, serviceID string) (*model.ServiceHeartbeatResponse, error)

	// AggregateHealth 并发探测所有已注册服务并返回聚合报告
	AggregateHealth(ctx context.Context) (*model.AggregateHealthReport, error)

	// SelfHealth 返回注册中心自身的健康信息，不探测下游服务
	SelfHealth(ctx context.Context) (*model.RegistryHealth, error)
}

// registryService 实现 RegistryService 接口
type registryService struct {
	store   catalog.Catalog
	checker health.Checker
	metrics *metrics.Metrics
	logger  config.Logger

	name      string
	version   string
	startTime time.Time

	// 最近一次聚合检查的健康服务数，供自身健康报告使用
	mu               sync.RWMutex
	lastHealthyCount int
}

// NewRegistryService 创建注册中心服务
func NewRegistryService(store catalog.Catalog, checker health.Checker, m *metrics.Metrics, logger config.Logger, name, version string) RegistryService {
	return &registryService{
		store:     store,
		checker:   checker,
		metrics:   m,
		logger:    logger,
		name:      name,
		version:   version,
		startTime: time.Now(),
	}
}

// validateRecord 校验注册请求的必填字段
func validateRecord(record *model.ServiceRecord) error {
	if record == nil {
		return model.NewInvalidArgumentError("请求体不能为空")
	}
	if strings.TrimSpace(record.ServiceID) == "" {
		return model.NewInvalidArgumentError("service_id不能为空")
	}
	if strings.TrimSpace(record.ServiceName) == "" {
		return model.NewInvalidArgumentError("service_name不能为空")
	}
	if strings.TrimSpace(record.BaseURL) == "" {
		return model.NewInvalidArgumentError("base_url不能为空")
	}

	u, err := url.Parse(record.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return model.NewInvalidArgumentError(fmt.Sprintf("base_url必须是合法的绝对URL: %s", record.BaseURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.NewInvalidArgumentError(fmt.Sprintf("base_url协议必须是http或https: %s", u.Scheme))
	}

	if record.Endpoints == nil || strings.TrimSpace(record.Endpoints["health"]) == "" {
		return model.NewInvalidArgumentError("endpoints必须包含health端点")
	}

	return nil
}

// parseTags 解析逗号分隔的标签参数，去除空白并丢弃空项
func parseTags(tagsParam string) []string {
	parts := strings.Split(tagsParam, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Register 校验并注册服务
func (s *registryService) Register(ctx context.Context, record *model.ServiceRecord) (*model.ServiceRecord, error) {
	if err := validateRecord(record); err != nil {
		s.metrics.RecordRegistration("invalid")
		return nil, err
	}

	stored, err := s.store.Put(ctx, record)
	if err != nil {
		s.metrics.RecordRegistration("error")
		return nil, fmt.Errorf("注册服务失败: %w", err)
	}

	s.metrics.RecordRegistration("success")
	s.refreshServiceGauge(ctx)
	s.logger.Info("服务注册成功",
		zap.String("service_id", stored.ServiceID),
		zap.String("service_name", stored.ServiceName),
		zap.String("base_url", stored.BaseURL))

	return stored, nil
}

// Unregister 注销服务
func (s *registryService) Unregister(ctx context.Context, serviceID string) (*model.ServiceRemovalResponse, error) {
	removed, err := s.store.Remove(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("注销服务失败: %w", err)
	}

	s.metrics.RecordDeregistration()
	s.refreshServiceGauge(ctx)
	if removed {
		s.logger.Info("服务注销成功", zap.String("service_id", serviceID))
	} else {
		s.logger.Debug("注销的服务不存在", zap.String("service_id", serviceID))
	}

	return &model.ServiceRemovalResponse{
		ServiceID: serviceID,
		Removed:   removed,
	}, nil
}

// GetService 获取单个服务记录
func (s *registryService) GetService(ctx context.Context, serviceID string) (*model.ServiceRecord, error) {
	record, err := s.store.Get(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("获取服务失败: %w", err)
	}
	return record, nil
}

// ListServices 获取所有服务记录
func (s *registryService) ListServices(ctx context.Context) (*model.ServiceListResponse, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取服务列表失败: %w", err)
	}
	return &model.ServiceListResponse{
		Count:    len(records),
		Services: records,
	}, nil
}

// SearchByTags 按标签检索服务，空查询返回空结果
func (s *registryService) SearchByTags(ctx context.Context, tagsParam string) (*model.ServiceListResponse, error) {
	tags := parseTags(tagsParam)

	records, err := s.store.FindByTags(ctx, tags)
	if err != nil {
		return nil, fmt.Errorf("按标签检索服务失败: %w", err)
	}
	return &model.ServiceListResponse{
		Count:    len(records),
		Services: records,
	}, nil
}

// Heartbeat 刷新服务心跳
func (s *registryService) Heartbeat(ctx context.Context, serviceID string) (*model.ServiceHeartbeatResponse, error) {
	record, err := s.store.UpdateHeartbeat(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("更新服务心跳失败: %w", err)
	}

	s.metrics.RecordHeartbeat()

	return &model.ServiceHeartbeatResponse{
		ServiceID:     record.ServiceID,
		LastHeartbeat: *record.LastHeartbeat,
	}, nil
}

// AggregateHealth 并发探测所有服务并聚合结果，
// 单个服务探测失败只体现在该服务的结果项中
func (s *registryService) AggregateHealth(ctx context.Context) (*model.AggregateHealthReport, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取服务列表失败: %w", err)
	}

	results := s.checker.CheckAll(ctx, records)

	report := &model.AggregateHealthReport{
		Status:             model.HealthStatusHealthy,
		Timestamp:          time.Now(),
		RegisteredServices: len(records),
		Services:           make(map[string]*model.ServiceHealth, len(results)),
	}

	for _, result := range results {
		report.Services[result.ServiceID] = result
		switch result.Status {
		case model.HealthStatusHealthy:
			report.HealthyServices++
		case model.HealthStatusUnhealthy:
			report.UnhealthyServices++
		case model.HealthStatusUnreachable:
			report.UnreachableServices++
		}
		s.metrics.RecordHealthCheck(string(result.Status),
			time.Duration(result.LatencyMillis)*time.Millisecond)
	}

	s.mu.Lock()
	s.lastHealthyCount = report.HealthyServices
	s.mu.Unlock()

	s.logger.Debug("聚合健康检查完成",
		zap.Int("registered", report.RegisteredServices),
		zap.Int("healthy", report.HealthyServices),
		zap.Int("unhealthy", report.UnhealthyServices),
		zap.Int("unreachable", report.UnreachableServices))

	return report, nil
}

// SelfHealth 返回注册中心自身健康信息
func (s *registryService) SelfHealth(ctx context.Context) (*model.RegistryHealth, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计服务数量失败: %w", err)
	}

	s.mu.RLock()
	healthyCount := s.lastHealthyCount
	s.mu.RUnlock()

	return &model.RegistryHealth{
		Status:             model.HealthStatusHealthy,
		Service:            s.name,
		Version:            s.version,
		RegisteredServices: count,
		HealthyServices:    healthyCount,
		UptimeSeconds:      int64(time.Since(s.startTime).Seconds()),
		Timestamp:          time.Now(),
	}, nil
}

// refreshServiceGauge 更新注册服务数指标，统计失败不影响主流程
func (s *registryService) refreshServiceGauge(ctx context.Context) {
	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Warn("统计服务数量失败", zap.Error(err))
		return
	}
	s.metrics.SetRegisteredServices(count)
}
