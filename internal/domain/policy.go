package domain

import "sort"

// Capability 表示一项操作权限。
//
// 角色不是层级关系：manager 能查看全部记录并执行少量管理动作，
// 但不具备 owner_write，因此连自己创建的记录也不能编辑，也没有个人统计。
type Capability string

const (
	CapOwnerWrite     Capability = "owner_write"     // 编辑/删除自己拥有的记录
	CapViewStats      Capability = "view_stats"      // 查看个人发送统计
	CapReadAll        Capability = "read_all"        // 查看所有用户的记录
	CapSendAny        Capability = "send_any"        // 触发任意邮件群发的发送
	CapDisableMailing Capability = "disable_mailing" // 停用邮件群发
	CapManageUsers    Capability = "manage_users"    // 查看和封禁用户
)

var roleCapabilities = map[UserRole][]Capability{
	RoleUser:    {CapOwnerWrite, CapViewStats},
	RoleManager: {CapReadAll, CapSendAny, CapDisableMailing, CapManageUsers},
	RoleOwner:   {CapOwnerWrite, CapViewStats, CapReadAll, CapSendAny, CapDisableMailing, CapManageUsers},
}

// CapabilitySet 权限集合
type CapabilitySet map[Capability]struct{}

// Has 判断集合中是否包含指定权限
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List 按名称排序返回集合中的权限
func (s CapabilitySet) List() []Capability {
	list := make([]Capability, 0, len(s))
	for c := range s {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// Capabilities 返回用户当前拥有的权限集合；被封禁的用户没有任何权限
func (u *User) Capabilities() CapabilitySet {
	set := make(CapabilitySet)
	if u == nil || !u.IsActive {
		return set
	}
	for _, c := range roleCapabilities[u.Role] {
		set[c] = struct{}{}
	}
	return set
}

// Can 判断用户是否拥有指定权限
func (u *User) Can(c Capability) bool {
	return u.Capabilities().Has(c)
}

// CanView 判断用户能否查看归属于 ownerID 的记录
func CanView(u *User, ownerID string) bool {
	if u == nil || !u.IsActive {
		return false
	}
	return u.ID == ownerID || u.Can(CapReadAll)
}

// CanMutate 判断用户能否修改或删除归属于 ownerID 的记录
//
// 必须同时满足：是记录所有者，且角色具备 owner_write。
func CanMutate(u *User, ownerID string) bool {
	if u == nil {
		return false
	}
	return u.ID == ownerID && u.Can(CapOwnerWrite)
}

// CanSend 判断用户能否触发邮件群发的发送
func CanSend(u *User, m *Mailing) bool {
	if u == nil || m == nil || !u.IsActive {
		return false
	}
	return u.ID == m.OwnerID || u.Can(CapSendAny)
}

// CanViewStats 判断用户能否查看个人统计
func CanViewStats(u *User) bool {
	return u != nil && u.Can(CapViewStats)
}

// CanDisableMailing 判断用户能否停用邮件群发
func CanDisableMailing(u *User) bool {
	return u != nil && u.Can(CapDisableMailing)
}

// CanManageUsers 判断用户能否管理其他用户
func CanManageUsers(u *User) bool {
	return u != nil && u.Can(CapManageUsers)
}
