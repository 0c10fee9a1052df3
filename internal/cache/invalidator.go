package cache

import (
	"context"

	"go.uber.org/zap"
)

// Invalidator 缓存失效的唯一入口
//
// 所有影响缓存数据的写路径都调用这里的方法。删除失败只记录日志，
// 不返回给调用方，过期时间兜底保证最终一致。
type Invalidator struct {
	cache  Cache
	logger *zap.Logger
}

// NewInvalidator 创建失效器
func NewInvalidator(c Cache, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{cache: c, logger: logger}
}

// Stats 使用户统计失效
func (i *Invalidator) Stats(ctx context.Context, ownerID string) {
	i.delete(ctx, StatsKey(ownerID))
}

// Clients 使联系人列表和首页概览失效
func (i *Invalidator) Clients(ctx context.Context, ownerID string) {
	i.delete(ctx, ClientListKey(ownerID), HomeKey)
}

// Messages 使邮件模板列表失效
func (i *Invalidator) Messages(ctx context.Context, ownerID string) {
	i.delete(ctx, MessageListKey(ownerID))
}

// Mailings 使群发列表和首页概览失效
func (i *Invalidator) Mailings(ctx context.Context, ownerID string) {
	i.delete(ctx, MailingListKey(ownerID), HomeKey)
}

// Owner 使用户相关的全部缓存失效
func (i *Invalidator) Owner(ctx context.Context, ownerID string) {
	i.delete(ctx,
		StatsKey(ownerID),
		ClientListKey(ownerID),
		MessageListKey(ownerID),
		MailingListKey(ownerID),
		HomeKey,
	)
}

func (i *Invalidator) delete(ctx context.Context, keys ...string) {
	if i == nil || i.cache == nil {
		return
	}
	if err := i.cache.Delete(ctx, keys...); err != nil {
		i.logger.Warn("cache invalidation failed",
			zap.Strings("keys", keys),
			zap.Error(err))
	}
}
