package models

import "time"

// 发件箱消息状态
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// 解析任务相关事件
const (
	EventParseRequested = "resume.parse.requested"
	EventParseRetry     = "resume.parse.retry"
)

// OutboxMessage 与业务数据同一事务写入、由中继异步发布的消息。
// AvailableAt 之前不会被发布，用于解析任务的退避重试。
type OutboxMessage struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement"`
	AggregateID      string     `gorm:"type:varchar(36);not null;index"`
	EventType        string     `gorm:"type:varchar(255);not null"`
	Payload          string     `gorm:"type:json;not null"`
	TargetExchange   string     `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string     `gorm:"type:varchar(255);not null"`
	Status           string     `gorm:"type:varchar(20);default:PENDING;not null;index:idx_outbox_status_available,priority:1"`
	RetryCount       int        `gorm:"default:0"`
	AvailableAt      time.Time  `gorm:"index:idx_outbox_status_available,priority:2"`
	CreatedAt        time.Time
	ProcessedAt      *time.Time
	ErrorMessage     string `gorm:"type:text"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
