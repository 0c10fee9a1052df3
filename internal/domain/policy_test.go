package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessPolicy(t *testing.T) {
	owner := &User{ID: "u1", Role: RoleUser, IsActive: true}
	other := &User{ID: "u2", Role: RoleUser, IsActive: true}
	manager := &User{ID: "m1", Role: RoleManager, IsActive: true}
	siteOwner := &User{ID: "o1", Role: RoleOwner, IsActive: true}
	blocked := &User{ID: "u1", Role: RoleUser, IsActive: false}

	own := &Mailing{ID: "ml1", OwnerID: "u1"}
	managersOwn := &Mailing{ID: "ml2", OwnerID: "m1"}

	t.Run("所有者", func(t *testing.T) {
		assert.True(t, CanView(owner, "u1"))
		assert.True(t, CanMutate(owner, "u1"))
		assert.True(t, CanSend(owner, own))
		assert.True(t, CanViewStats(owner))
		assert.False(t, CanDisableMailing(owner))
		assert.False(t, CanManageUsers(owner))
	})

	t.Run("其他普通用户", func(t *testing.T) {
		assert.False(t, CanView(other, "u1"))
		assert.False(t, CanMutate(other, "u1"))
		assert.False(t, CanSend(other, own))
	})

	t.Run("管理员可查看全部但不能编辑", func(t *testing.T) {
		assert.True(t, CanView(manager, "u1"))
		assert.False(t, CanMutate(manager, "u1"))
		// 连自己创建的记录也不能编辑
		assert.False(t, CanMutate(manager, "m1"))
		assert.True(t, CanSend(manager, own))
		assert.True(t, CanSend(manager, managersOwn))
		assert.False(t, CanViewStats(manager))
		assert.True(t, CanDisableMailing(manager))
		assert.True(t, CanManageUsers(manager))
	})

	t.Run("站点所有者拥有全部权限", func(t *testing.T) {
		assert.True(t, CanView(siteOwner, "u1"))
		assert.True(t, CanMutate(siteOwner, "o1"))
		assert.False(t, CanMutate(siteOwner, "u1"))
		assert.True(t, CanSend(siteOwner, own))
		assert.True(t, CanViewStats(siteOwner))
		assert.True(t, CanDisableMailing(siteOwner))
	})

	t.Run("被封禁用户没有任何权限", func(t *testing.T) {
		assert.False(t, CanView(blocked, "u1"))
		assert.False(t, CanMutate(blocked, "u1"))
		assert.False(t, CanSend(blocked, own))
		assert.False(t, CanViewStats(blocked))
		assert.Empty(t, blocked.Capabilities())
	})

	t.Run("空用户", func(t *testing.T) {
		assert.False(t, CanView(nil, "u1"))
		assert.False(t, CanMutate(nil, "u1"))
		assert.False(t, CanSend(nil, own))
		assert.False(t, CanViewStats(nil))
	})
}
