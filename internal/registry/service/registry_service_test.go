package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/hewenyu/medml-registry/internal/core/model"
	"github.com/hewenyu/medml-registry/internal/metrics"
	"github.com/hewenyu/medml-registry/internal/store/catalog"
)

// mockLogger 测试用静默日志器
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, fields ...zapcore.Field) {}
func (m *mockLogger) Info(msg string, fields ...zapcore.Field)  {}
func (m *mockLogger) Warn(msg string, fields ...zapcore.Field)  {}
func (m *mockLogger) Error(msg string, fields ...zapcore.Field) {}
func (m *mockLogger) Fatal(msg string, fields ...zapcore.Field) {}

// stubChecker 返回预设探测结果的检查器
type stubChecker struct {
	status map[string]model.HealthStatus
}

func (s *stubChecker) CheckOne(ctx context.Context, record *model.ServiceRecord) *model.ServiceHealth {
	status, ok := s.status[record.ServiceID]
	if !ok {
		status = model.HealthStatusHealthy
	}
	result := &model.ServiceHealth{
		ServiceID:     record.ServiceID,
		ServiceName:   record.ServiceName,
		BaseURL:       record.BaseURL,
		Status:        status,
		LatencyMillis: 1,
		LastHeartbeat: record.LastHeartbeat,
	}
	if status == model.HealthStatusUnreachable {
		result.Error = "connection refused"
	} else {
		result.HTTPStatus = 200
	}
	return result
}

func (s *stubChecker) CheckAll(ctx context.Context, records []*model.ServiceRecord) []*model.ServiceHealth {
	results := make([]*model.ServiceHealth, len(records))
	for i, record := range records {
		results[i] = s.CheckOne(ctx, record)
	}
	return results
}

func newTestService(checker *stubChecker) RegistryService {
	if checker == nil {
		checker = &stubChecker{}
	}
	return NewRegistryService(
		catalog.NewMemoryCatalog(),
		checker,
		metrics.NewMetrics(),
		&mockLogger{},
		"Medical ML Service Registry",
		"1.0.0",
	)
}

func validRecord(id string, tags ...string) *model.ServiceRecord {
	return &model.ServiceRecord{
		ServiceID:   id,
		ServiceName: "预测服务-" + id,
		Version:     "1.0.0",
		BaseURL:     "http://localhost:8000",
		Port:        8000,
		Endpoints:   map[string]string{"health": "/health", "predict": "/api/v1/predict"},
		Tags:        tags,
	}
}

func TestRegister(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	stored, err := svc.Register(ctx, validRecord("breast_cancer", "cancer"))
	require.NoError(t, err)
	require.NotNil(t, stored)

	// 返回的是存储后的记录，带注册时间
	assert.Equal(t, "breast_cancer", stored.ServiceID)
	assert.False(t, stored.RegisteredAt.IsZero())
	assert.Nil(t, stored.LastHeartbeat)

	got, err := svc.GetService(ctx, "breast_cancer")
	require.NoError(t, err)
	assert.Equal(t, stored.ServiceID, got.ServiceID)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(r *model.ServiceRecord)
	}{
		{"缺少service_id", func(r *model.ServiceRecord) { r.ServiceID = "" }},
		{"service_id仅空白", func(r *model.ServiceRecord) { r.ServiceID = "   " }},
		{"缺少service_name", func(r *model.ServiceRecord) { r.ServiceName = "" }},
		{"缺少base_url", func(r *model.ServiceRecord) { r.BaseURL = "" }},
		{"base_url缺少协议", func(r *model.ServiceRecord) { r.BaseURL = "localhost:8000" }},
		{"base_url不是绝对URL", func(r *model.ServiceRecord) { r.BaseURL = "/relative/path" }},
		{"base_url协议不支持", func(r *model.ServiceRecord) { r.BaseURL = "ftp://example.com" }},
		{"缺少endpoints", func(r *model.ServiceRecord) { r.Endpoints = nil }},
		{"endpoints缺少health", func(r *model.ServiceRecord) { r.Endpoints = map[string]string{"predict": "/predict"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := validRecord("svc")
			tt.mutate(record)

			_, err := svc.Register(ctx, record)
			require.Error(t, err)

			var regErr *model.RegistryError
			require.True(t, errors.As(err, &regErr), "校验失败应返回RegistryError")
			assert.Equal(t, model.ErrInvalidArgument, regErr.Code)
		})
	}

	// 校验失败不应产生部分写入
	resp, err := svc.ListServices(ctx)
	require.NoError(t, err)
	assert.Zero(t, resp.Count, "校验失败的注册不应留下记录")
}

func TestRegisterReplacesExisting(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	first := validRecord("svc", "old")
	first.Description = "第一版"
	_, err := svc.Register(ctx, first)
	require.NoError(t, err)

	second := validRecord("svc", "new")
	second.Version = "2.0.0"
	_, err = svc.Register(ctx, second)
	require.NoError(t, err)

	got, err := svc.GetService(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", got.Version)
	assert.Empty(t, got.Description, "重新注册应整体替换记录")
	assert.Equal(t, []string{"new"}, got.Tags)

	resp, err := svc.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count, "同ID重复注册不应产生新记录")
}

func TestUnregister(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRecord("svc"))
	require.NoError(t, err)

	resp, err := svc.Unregister(ctx, "svc")
	require.NoError(t, err)
	assert.True(t, resp.Removed)
	assert.Equal(t, "svc", resp.ServiceID)

	// 重复注销安全且可区分
	resp, err = svc.Unregister(ctx, "svc")
	require.NoError(t, err)
	assert.False(t, resp.Removed)

	_, err = svc.GetService(ctx, "svc")
	require.Error(t, err)
	var regErr *model.RegistryError
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, model.ErrNotFound, regErr.Code)
}

func TestSearchByTags(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRecord("svc-a", "cancer", "classification"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, validRecord("svc-b", "cardio"))
	require.NoError(t, err)

	// 单标签
	resp, err := svc.SearchByTags(ctx, "cancer")
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "svc-a", resp.Services[0].ServiceID)

	// 逗号分隔多标签，OR语义，允许空白
	resp, err = svc.SearchByTags(ctx, " cancer , cardio ")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)

	// 空参数返回空结果而非全量
	resp, err = svc.SearchByTags(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, resp.Count)
	assert.Empty(t, resp.Services)

	// 仅逗号和空白同样视为空查询
	resp, err = svc.SearchByTags(ctx, " , ,")
	require.NoError(t, err)
	assert.Zero(t, resp.Count)
}

func TestHeartbeat(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRecord("svc"))
	require.NoError(t, err)

	resp, err := svc.Heartbeat(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, "svc", resp.ServiceID)
	assert.False(t, resp.LastHeartbeat.IsZero())

	// 未注册服务的心跳返回NotFound
	_, err = svc.Heartbeat(ctx, "ghost")
	require.Error(t, err)
	var regErr *model.RegistryError
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, model.ErrNotFound, regErr.Code)
}

func TestAggregateHealth(t *testing.T) {
	checker := &stubChecker{status: map[string]model.HealthStatus{
		"svc-healthy":     model.HealthStatusHealthy,
		"svc-unhealthy":   model.HealthStatusUnhealthy,
		"svc-unreachable": model.HealthStatusUnreachable,
	}}
	svc := newTestService(checker)
	ctx := context.Background()

	for _, id := range []string{"svc-healthy", "svc-unhealthy", "svc-unreachable"} {
		_, err := svc.Register(ctx, validRecord(id))
		require.NoError(t, err)
	}

	report, err := svc.AggregateHealth(ctx)
	require.NoError(t, err, "单个服务不可达不应导致聚合检查失败")

	// 注册中心自身状态始终healthy
	assert.Equal(t, model.HealthStatusHealthy, report.Status)
	assert.Equal(t, 3, report.RegisteredServices)
	assert.Equal(t, 1, report.HealthyServices)
	assert.Equal(t, 1, report.UnhealthyServices)
	assert.Equal(t, 1, report.UnreachableServices)
	assert.False(t, report.Timestamp.IsZero())

	// 每个服务的结果按service_id索引且齐全
	require.Len(t, report.Services, 3)
	assert.Equal(t, model.HealthStatusUnreachable, report.Services["svc-unreachable"].Status)
	assert.NotEmpty(t, report.Services["svc-unreachable"].Error)
	assert.Equal(t, model.HealthStatusHealthy, report.Services["svc-healthy"].Status)
}

func TestAggregateHealthEmpty(t *testing.T) {
	svc := newTestService(nil)

	report, err := svc.AggregateHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatusHealthy, report.Status)
	assert.Zero(t, report.RegisteredServices)
	assert.Empty(t, report.Services)
}

func TestSelfHealth(t *testing.T) {
	checker := &stubChecker{status: map[string]model.HealthStatus{
		"svc-down": model.HealthStatusUnreachable,
	}}
	svc := newTestService(checker)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Register(ctx, validRecord(fmt.Sprintf("svc-%d", i)))
		require.NoError(t, err)
	}
	_, err := svc.Register(ctx, validRecord("svc-down"))
	require.NoError(t, err)

	// 自身健康不探测下游，健康数来自最近一次聚合检查
	info, err := svc.SelfHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatusHealthy, info.Status)
	assert.Equal(t, "Medical ML Service Registry", info.Service)
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, 4, info.RegisteredServices)
	assert.Zero(t, info.HealthyServices, "聚合检查前健康数应为0")
	assert.GreaterOrEqual(t, info.UptimeSeconds, int64(0))

	_, err = svc.AggregateHealth(ctx)
	require.NoError(t, err)

	info, err = svc.SelfHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, info.HealthyServices, "健康数应反映最近一次聚合检查")

	time.Sleep(10 * time.Millisecond)
	info, err = svc.SelfHealth(ctx)
	require.NoError(t, err)
	assert.False(t, info.Timestamp.IsZero())
}
