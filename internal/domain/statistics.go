package domain

import "time"

// MailingStats 单个群发的投递统计
type MailingStats struct {
	ID           string        `json:"id"`
	Status       MailingStatus `json:"status"`
	StartAt      time.Time     `json:"startAt"`
	EndAt        time.Time     `json:"endAt"`
	SuccessCount int64         `json:"successCount"`
	FailCount    int64         `json:"failCount"`
}

// OwnerStats 某个用户名下全部群发的统计
type OwnerStats struct {
	OwnerID      string         `json:"ownerId"`
	Mailings     []MailingStats `json:"mailings"`
	TotalSuccess int64          `json:"totalSuccess"`
	TotalFail    int64          `json:"totalFail"`
}

// HomeSummary 首页概览
type HomeSummary struct {
	TotalMailings    int64 `json:"totalMailings"`
	ActiveMailings   int64 `json:"activeMailings"`
	UniqueRecipients int64 `json:"uniqueRecipients"`
}
