package catalog

import (
	"context"

	"github.com/hewenyu/medml-registry/internal/core/model"
)

// Catalog 表示服务目录的存储接口，所有记录访问都经由它串行化
type Catalog interface {
	// Put 插入或整体替换记录，键为service_id，返回存储后的记录
	Put(ctx context.Context, record *model.ServiceRecord) (*model.ServiceRecord, error)

	// Remove 删除记录，返回是否实际删除了记录；记录不存在不算错误
	Remove(ctx context.Context, serviceID string) (bool, error)

	// Get 获取单条记录，不存在时返回NotFound错误
	Get(ctx context.Context, serviceID string) (*model.ServiceRecord, error)

	// List 获取所有记录的快照
	List(ctx context.Context) ([]*model.ServiceRecord, error)

	// FindByTags 获取标签集合与查询集合有交集的记录；空查询返回空结果
	FindByTags(ctx context.Context, tags []string) ([]*model.ServiceRecord, error)

	// UpdateHeartbeat 更新记录的心跳时间，返回更新后的记录
	UpdateHeartbeat(ctx context.Context, serviceID string) (*model.ServiceRecord, error)

	// Count 获取当前注册的记录数量
	Count(ctx context.Context) (int, error)
}
