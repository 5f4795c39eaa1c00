package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hewenyu/medml-registry/internal/core/model"
	"github.com/hewenyu/medml-registry/internal/store/etcd"
)

// EtcdCatalog 基于etcd的服务目录实现，记录以JSON形式持久化
type EtcdCatalog struct {
	client *etcd.Client
	prefix string
}

// NewEtcdCatalog 创建etcd服务目录
func NewEtcdCatalog(client *etcd.Client, prefix string) *EtcdCatalog {
	if prefix == "" {
		prefix = "/medml"
	}
	return &EtcdCatalog{
		client: client,
		prefix: prefix,
	}
}

// serviceKey 构造服务记录的存储键
func (c *EtcdCatalog) serviceKey(serviceID string) string {
	return fmt.Sprintf("%s/services/%s", c.prefix, serviceID)
}

// servicePrefix 所有服务记录的公共前缀
func (c *EtcdCatalog) servicePrefix() string {
	return fmt.Sprintf("%s/services/", c.prefix)
}

// Put 注册或整体替换服务记录
func (c *EtcdCatalog) Put(ctx context.Context, record *model.ServiceRecord) (*model.ServiceRecord, error) {
	if record == nil || record.ServiceID == "" {
		return nil, model.NewInvalidArgumentError("服务ID不能为空")
	}

	stored := record.Clone()
	stored.RegisteredAt = time.Now()
	stored.LastHeartbeat = nil

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, model.NewInternalError(fmt.Sprintf("序列化服务记录失败: %v", err))
	}

	if err := c.client.Put(ctx, c.serviceKey(stored.ServiceID), data); err != nil {
		return nil, model.NewInternalError(fmt.Sprintf("写入服务记录失败: %v", err))
	}

	return stored, nil
}

// Remove 删除服务记录，返回记录是否存在
func (c *EtcdCatalog) Remove(ctx context.Context, serviceID string) (bool, error) {
	deleted, err := c.client.Delete(ctx, c.serviceKey(serviceID))
	if err != nil {
		return false, model.NewInternalError(fmt.Sprintf("删除服务记录失败: %v", err))
	}
	return deleted > 0, nil
}

// Get 获取单个服务记录
func (c *EtcdCatalog) Get(ctx context.Context, serviceID string) (*model.ServiceRecord, error) {
	data, err := c.client.Get(ctx, c.serviceKey(serviceID))
	if err != nil {
		return nil, model.NewInternalError(fmt.Sprintf("读取服务记录失败: %v", err))
	}
	if data == nil {
		return nil, model.NewNotFoundError(fmt.Sprintf("服务未注册: %s", serviceID))
	}

	var record model.ServiceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, model.NewInternalError(fmt.Sprintf("解析服务记录失败: %v", err))
	}
	return &record, nil
}

// List 获取所有服务记录
func (c *EtcdCatalog) List(ctx context.Context) ([]*model.ServiceRecord, error) {
	kvs, err := c.client.GetWithPrefix(ctx, c.servicePrefix())
	if err != nil {
		return nil, model.NewInternalError(fmt.Sprintf("列举服务记录失败: %v", err))
	}

	records := make([]*model.ServiceRecord, 0, len(kvs))
	for key, data := range kvs {
		var record model.ServiceRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, model.NewInternalError(fmt.Sprintf("解析服务记录失败 %s: %v", key, err))
		}
		records = append(records, &record)
	}
	return records, nil
}

// FindByTags 按标签过滤服务，任一标签命中即返回，空查询返回空结果
func (c *EtcdCatalog) FindByTags(ctx context.Context, tags []string) ([]*model.ServiceRecord, error) {
	matched := make([]*model.ServiceRecord, 0)
	if len(tags) == 0 {
		return matched, nil
	}

	records, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		for _, tag := range tags {
			if record.HasTag(tag) {
				matched = append(matched, record)
				break
			}
		}
	}
	return matched, nil
}

// UpdateHeartbeat 刷新服务心跳时间
func (c *EtcdCatalog) UpdateHeartbeat(ctx context.Context, serviceID string) (*model.ServiceRecord, error) {
	record, err := c.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record.LastHeartbeat = &now

	data, err := json.Marshal(record)
	if err != nil {
		return nil, model.NewInternalError(fmt.Sprintf("序列化服务记录失败: %v", err))
	}
	if err := c.client.Put(ctx, c.serviceKey(serviceID), data); err != nil {
		return nil, model.NewInternalError(fmt.Sprintf("写入心跳时间失败: %v", err))
	}
	return record, nil
}

// Count 统计已注册服务数量
func (c *EtcdCatalog) Count(ctx context.Context) (int, error) {
	count, err := c.client.CountWithPrefix(ctx, c.servicePrefix())
	if err != nil {
		return 0, model.NewInternalError(fmt.Sprintf("统计服务数量失败: %v", err))
	}
	return int(count), nil
}
