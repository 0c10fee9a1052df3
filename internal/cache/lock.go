package cache

import (
	"context"
	"sync"
	"time"
)

// Locker 建议锁，用于独占一次群发发送轮次
//
// ok 为 false 表示锁已被其他持有者占用；release 只在 ok 为 true 时有效。
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// LocalLocker 进程内建议锁
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	now   func() time.Time
	token uint64
	owner map[string]uint64
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]time.Time),
		owner: make(map[string]uint64),
		now:   time.Now,
	}
}

// TryLock 尝试获取锁；超过 ttl 的锁视为已失效
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, ok := l.held[key]; ok && now.Before(expiresAt) {
		return nil, false, nil
	}

	l.token++
	token := l.token
	l.held[key] = now.Add(ttl)
	l.owner[key] = token

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// 锁已过期并被他人取得时不能误删
		if l.owner[key] == token {
			delete(l.held, key)
			delete(l.owner, key)
		}
	}
	return release, true, nil
}
