package model

import (
	"time"
)

// HealthStatus 服务健康状态枚举
type HealthStatus string

const (
	// HealthStatusHealthy 表示服务健康
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusUnhealthy 表示服务可达但状态异常
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	// HealthStatusUnreachable 表示服务无法连接或探测超时
	HealthStatusUnreachable HealthStatus = "unreachable"
)

// ServiceRecord 表示注册中心里的一条预测服务记录
type ServiceRecord struct {
	ServiceID    string                 `json:"service_id"`
	ServiceName  string                 `json:"service_name"`
	Version      string                 `json:"version"`
	Description  string                 `json:"description"`
	BaseURL      string                 `json:"base_url"`
	Port         int                    `json:"port"`
	Endpoints    map[string]string      `json:"endpoints"`
	InputSchema  map[string]interface{} `json:"input_schema,omitempty"`
	OutputSchema map[string]interface{} `json:"output_schema,omitempty"`
	Tags         []string               `json:"tags"`
	Capabilities map[string]interface{} `json:"capabilities,omitempty"`
	RegisteredAt time.Time              `json:"registered_at"`
	// LastHeartbeat 仅由心跳接口写入，注册后初始为null
	LastHeartbeat *time.Time `json:"last_heartbeat"`
}

// HealthEndpoint 返回记录声明的健康检查路径
func (r *ServiceRecord) HealthEndpoint() string {
	if r.Endpoints == nil {
		return ""
	}
	return r.Endpoints["health"]
}

// HasTag 判断记录是否带有指定标签，区分大小写
func (r *ServiceRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone 返回记录的深拷贝，调用方修改返回值不会影响原记录
func (r *ServiceRecord) Clone() *ServiceRecord {
	if r == nil {
		return nil
	}

	clone := *r

	if r.Endpoints != nil {
		clone.Endpoints = make(map[string]string, len(r.Endpoints))
		for k, v := range r.Endpoints {
			clone.Endpoints[k] = v
		}
	}
	if r.Tags != nil {
		clone.Tags = append([]string(nil), r.Tags...)
	}
	clone.InputSchema = cloneJSONObject(r.InputSchema)
	clone.OutputSchema = cloneJSONObject(r.OutputSchema)
	clone.Capabilities = cloneJSONObject(r.Capabilities)
	if r.LastHeartbeat != nil {
		hb := *r.LastHeartbeat
		clone.LastHeartbeat = &hb
	}

	return &clone
}

// cloneJSONObject 深拷贝不透明的JSON对象
func cloneJSONObject(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = cloneJSONValue(v)
	}
	return dst
}

// cloneJSONValue 深拷贝任意JSON值，标量直接返回
func cloneJSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneJSONObject(val)
	case []interface{}:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = cloneJSONValue(item)
		}
		return items
	default:
		return val
	}
}

// ServiceListResponse 表示服务列表响应
type ServiceListResponse struct {
	Count    int              `json:"count"`
	Services []*ServiceRecord `json:"services"`
}

// ServiceRemovalResponse 表示服务注销响应
type ServiceRemovalResponse struct {
	ServiceID string `json:"service_id"`
	Removed   bool   `json:"removed"`
}

// ServiceHeartbeatResponse 表示服务心跳响应
type ServiceHeartbeatResponse struct {
	ServiceID     string    `json:"service_id"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// ServiceHealth 表示单个服务的一次探测结果
type ServiceHealth struct {
	ServiceID   string       `json:"service_id"`
	ServiceName string       `json:"service_name"`
	BaseURL     string       `json:"base_url"`
	Status      HealthStatus `json:"status"`
	// HTTPStatus 为探测收到的HTTP状态码，未收到响应时为0
	HTTPStatus    int        `json:"http_status,omitempty"`
	LatencyMillis int64      `json:"latency_ms"`
	Error         string     `json:"error,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat"`
}

// AggregateHealthReport 表示全量健康检查的聚合报告
type AggregateHealthReport struct {
	Status              HealthStatus              `json:"status"`
	Timestamp           time.Time                 `json:"timestamp"`
	RegisteredServices  int                       `json:"registered_services"`
	HealthyServices     int                       `json:"healthy_services"`
	UnhealthyServices   int                       `json:"unhealthy_services"`
	UnreachableServices int                       `json:"unreachable_services"`
	Services            map[string]*ServiceHealth `json:"services"`
}

// RegistryInfo 表示注册中心的基本信息和路由索引
type RegistryInfo struct {
	Service     string            `json:"service"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
}

// RegistryHealth 表示注册中心自身的健康信息
type RegistryHealth struct {
	Status             HealthStatus `json:"status"`
	Service            string       `json:"service"`
	Version            string       `json:"version"`
	RegisteredServices int          `json:"registered_services"`
	// HealthyServices 为最近一次聚合检查时的健康服务数
	HealthyServices int       `json:"healthy_services"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	Timestamp       time.Time `json:"timestamp"`
}

// ApiResponse 表示通用API响应
type ApiResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
