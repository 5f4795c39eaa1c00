package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hewenyu/medml-registry/internal/config"
	"github.com/hewenyu/medml-registry/internal/core/model"
	"github.com/hewenyu/medml-registry/internal/metrics"
	"github.com/hewenyu/medml-registry/internal/registry/service"
)

// RegistryHandler 处理注册中心的HTTP请求
type RegistryHandler struct {
	service service.RegistryService
	metrics *metrics.Metrics
	info    *model.RegistryInfo
	logger  config.Logger
}

// NewRegistryHandler 创建注册中心处理器
func NewRegistryHandler(svc service.RegistryService, m *metrics.Metrics, cfg *config.Config, logger config.Logger) *RegistryHandler {
	return &RegistryHandler{
		service: svc,
		metrics: m,
		info: &model.RegistryInfo{
			Service:     cfg.Registry.Name,
			Version:     cfg.Registry.Version,
			Description: cfg.Registry.Description,
			Endpoints: map[string]string{
				"register":       "POST /api/v1/services/register",
				"deregister":     "DELETE /api/v1/services/{service_id}",
				"list":           "GET /api/v1/services",
				"get":            "GET /api/v1/services/{service_id}",
				"search_by_tags": "GET /api/v1/services/search/by-tags?tags=a,b",
				"heartbeat":      "POST /api/v1/services/{service_id}/heartbeat",
				"health_all":     "GET /api/v1/health/all",
				"health":         "GET /health",
				"metrics":        "GET /metrics",
			},
		},
		logger: logger,
	}
}

// RegisterRoutes 注册API路由
func (h *RegistryHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.root)
	e.GET("/health", h.selfHealth)
	e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))

	api := e.Group("/api/v1")

	// 服务注册与注销
	api.POST("/services/register", h.registerService)
	api.DELETE("/services/:serviceId", h.deregisterService)

	// 服务查询
	api.GET("/services", h.listServices)
	api.GET("/services/search/by-tags", h.searchByTags)
	api.GET("/services/:serviceId", h.getService)

	// 服务心跳
	api.POST("/services/:serviceId/heartbeat", h.heartbeat)

	// 聚合健康检查
	api.GET("/health/all", h.aggregateHealth)
}

// 返回成功响应
func successResponse(code int, message string, data interface{}) *model.ApiResponse {
	return &model.ApiResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// 返回错误响应
func errorResponse(code int, message string) *model.ApiResponse {
	return &model.ApiResponse{
		Code:    code,
		Message: message,
	}
}

// writeError 将业务错误映射为HTTP状态码
func (h *RegistryHandler) writeError(c echo.Context, err error) error {
	var regErr *model.RegistryError
	if errors.As(err, &regErr) {
		switch regErr.Code {
		case model.ErrInvalidArgument:
			return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, regErr.Message))
		case model.ErrNotFound:
			return c.JSON(http.StatusNotFound, errorResponse(http.StatusNotFound, regErr.Message))
		case model.ErrUnreachable:
			return c.JSON(http.StatusBadGateway, errorResponse(http.StatusBadGateway, regErr.Message))
		}
	}

	h.logger.Error("请求处理失败", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, errorResponse(http.StatusInternalServerError, err.Error()))
}

// root 返回注册中心基本信息
func (h *RegistryHandler) root(c echo.Context) error {
	return c.JSON(http.StatusOK, h.info)
}

// registerService 处理服务注册请求
func (h *RegistryHandler) registerService(c echo.Context) error {
	record := new(model.ServiceRecord)
	if err := c.Bind(record); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}

	stored, err := h.service.Register(c.Request().Context(), record)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, successResponse(http.StatusCreated, "服务注册成功", stored))
}

// deregisterService 处理服务注销请求
func (h *RegistryHandler) deregisterService(c echo.Context) error {
	serviceID := c.Param("serviceId")
	if serviceID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "服务ID不能为空"))
	}

	resp, err := h.service.Unregister(c.Request().Context(), serviceID)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "服务注销成功", resp))
}

// listServices 返回所有服务记录
func (h *RegistryHandler) listServices(c echo.Context) error {
	resp, err := h.service.ListServices(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "查询成功", resp))
}

// getService 返回单个服务记录
func (h *RegistryHandler) getService(c echo.Context) error {
	serviceID := c.Param("serviceId")
	if serviceID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "服务ID不能为空"))
	}

	record, err := h.service.GetService(c.Request().Context(), serviceID)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "查询成功", record))
}

// searchByTags 按标签检索服务
func (h *RegistryHandler) searchByTags(c echo.Context) error {
	resp, err := h.service.SearchByTags(c.Request().Context(), c.QueryParam("tags"))
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "查询成功", resp))
}

// heartbeat 处理服务心跳请求
func (h *RegistryHandler) heartbeat(c echo.Context) error {
	serviceID := c.Param("serviceId")
	if serviceID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "服务ID不能为空"))
	}

	resp, err := h.service.Heartbeat(c.Request().Context(), serviceID)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "心跳更新成功", resp))
}

// aggregateHealth 并发探测所有服务并返回聚合报告
func (h *RegistryHandler) aggregateHealth(c echo.Context) error {
	report, err := h.service.AggregateHealth(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "健康检查完成", report))
}

// selfHealth 返回注册中心自身健康信息，响应体不包裹信封，
// 便于外部探测器直接读取status字段
func (h *RegistryHandler) selfHealth(c echo.Context) error {
	info, err := h.service.SelfHealth(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, &model.RegistryHealth{
			Status: model.HealthStatusUnhealthy,
		})
	}

	return c.JSON(http.StatusOK, info)
}
