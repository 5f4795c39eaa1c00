package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ServiceList 服务列表响应数据
type ServiceList struct {
	Count    int              `json:"count"`
	Services []*ServiceRecord `json:"services"`
}

// GetService 按ID查询单个服务记录
func (c *Client) GetService(ctx context.Context, serviceID string) (*ServiceRecord, error) {
	resp, err := c.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/api/v1/services/%s", url.PathEscape(serviceID)), nil)
	if err != nil {
		return nil, fmt.Errorf("查询服务失败: %w", err)
	}

	var record ServiceRecord
	if err := json.Unmarshal(resp.Data, &record); err != nil {
		return nil, fmt.Errorf("解析服务记录失败: %w", err)
	}
	return &record, nil
}

// ListServices 查询所有服务记录
func (c *Client) ListServices(ctx context.Context) ([]*ServiceRecord, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/services", nil)
	if err != nil {
		return nil, fmt.Errorf("查询服务列表失败: %w", err)
	}

	var list ServiceList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return nil, fmt.Errorf("解析服务列表失败: %w", err)
	}
	return list.Services, nil
}

// SearchByTags 按标签检索服务，任一标签命中即返回
func (c *Client) SearchByTags(ctx context.Context, tags ...string) ([]*ServiceRecord, error) {
	query := url.Values{}
	query.Set("tags", strings.Join(tags, ","))

	resp, err := c.doRequest(ctx, http.MethodGet,
		"/api/v1/services/search/by-tags?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("按标签检索服务失败: %w", err)
	}

	var list ServiceList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return nil, fmt.Errorf("解析检索结果失败: %w", err)
	}
	return list.Services, nil
}
