package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/hewenyu/medml-registry/internal/core/model"
)

// MemoryCatalog 是基于内存的服务目录实现，为默认存储后端
type MemoryCatalog struct {
	services map[string]*model.ServiceRecord
	mu       sync.RWMutex
}

// NewMemoryCatalog 创建新的内存目录
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		services: make(map[string]*model.ServiceRecord),
	}
}

// Put 插入或整体替换记录
// 注册时间由存储层统一盖章，重复注册会刷新；心跳时间随整体替换清零
func (m *MemoryCatalog) Put(ctx context.Context, record *model.ServiceRecord) (*model.ServiceRecord, error) {
	if record == nil || record.ServiceID == "" {
		return nil, model.NewInvalidArgumentError("服务ID不能为空")
	}

	stored := record.Clone()
	stored.RegisteredAt = time.Now()
	stored.LastHeartbeat = nil

	m.mu.Lock()
	m.services[stored.ServiceID] = stored
	m.mu.Unlock()

	return stored.Clone(), nil
}

// Remove 删除记录，返回是否实际删除
func (m *MemoryCatalog) Remove(ctx context.Context, serviceID string) (bool, error) {
	if serviceID == "" {
		return false, model.NewInvalidArgumentError("服务ID不能为空")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[serviceID]; !exists {
		return false, nil
	}

	delete(m.services, serviceID)
	return true, nil
}

// Get 获取单条记录
func (m *MemoryCatalog) Get(ctx context.Context, serviceID string) (*model.ServiceRecord, error) {
	if serviceID == "" {
		return nil, model.NewInvalidArgumentError("服务ID不能为空")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.services[serviceID]
	if !exists {
		return nil, model.NewNotFoundError("服务不存在: " + serviceID)
	}

	return record.Clone(), nil
}

// List 获取所有记录的快照
func (m *MemoryCatalog) List(ctx context.Context) ([]*model.ServiceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*model.ServiceRecord, 0, len(m.services))
	for _, record := range m.services {
		records = append(records, record.Clone())
	}

	return records, nil
}

// FindByTags 获取标签匹配的记录，任一查询标签命中即算匹配
func (m *MemoryCatalog) FindByTags(ctx context.Context, tags []string) ([]*model.ServiceRecord, error) {
	records := make([]*model.ServiceRecord, 0)
	if len(tags) == 0 {
		// 空查询返回空结果而非全量目录
		return records, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, record := range m.services {
		for _, tag := range tags {
			if record.HasTag(tag) {
				records = append(records, record.Clone())
				break
			}
		}
	}

	return records, nil
}

// UpdateHeartbeat 更新记录的心跳时间
func (m *MemoryCatalog) UpdateHeartbeat(ctx context.Context, serviceID string) (*model.ServiceRecord, error) {
	if serviceID == "" {
		return nil, model.NewInvalidArgumentError("服务ID不能为空")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.services[serviceID]
	if !exists {
		return nil, model.NewNotFoundError("服务不存在: " + serviceID)
	}

	now := time.Now()
	record.LastHeartbeat = &now

	return record.Clone(), nil
}

// Count 获取当前注册的记录数量
func (m *MemoryCatalog) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.services), nil
}
