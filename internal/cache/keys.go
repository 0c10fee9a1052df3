package cache

// 缓存键只在这里派生，其它包不得自行拼接。

// HomeKey 首页概览
const HomeKey = "home"

// StatsKey 用户的群发统计
func StatsKey(ownerID string) string {
	return "mailing_stats_" + ownerID
}

// ClientListKey 用户的联系人列表
func ClientListKey(userID string) string {
	return "client_list_" + userID
}

// MessageListKey 用户的邮件模板列表
func MessageListKey(userID string) string {
	return "message_list_" + userID
}

// MailingListKey 用户的群发列表
func MailingListKey(userID string) string {
	return "mailing_list_" + userID
}

// SendLockKey 群发发送轮次的占用锁
func SendLockKey(mailingID string) string {
	return "mailing_send_lock_" + mailingID
}
