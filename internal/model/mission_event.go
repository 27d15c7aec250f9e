package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model MissionEvent
type MissionEvent struct {
	BaseModel

	EventID   string `gorm:"uniqueIndex;size:50;not null" json:"eventId"`
	AttemptID string `gorm:"index:idx_mission_events_attempt_time,priority:1;size:50;not null" json:"attemptId"`
	SessionID string `gorm:"size:64;not null" json:"sessionId"`
	EventType string `gorm:"index;size:50;not null" json:"eventType"`
	// 客户端上报时间，缺省为服务端接收时间；回放按此字段排序
	Timestamp  time.Time         `gorm:"column:occurred_at;index:idx_mission_events_attempt_time,priority:2;not null" json:"timestamp"`
	Data       datatypes.JSONMap `gorm:"not null" json:"data"`
	ReceivedAt time.Time         `gorm:"not null" json:"receivedAt"`
	// 毫秒，从进入管道到落库前
	ProcessingTime int64 `json:"processingTime"`
}

func (MissionEvent) TableName() string {
	return "mission_events"
}

// Payload 按事件类型解析后的数据
func (e *MissionEvent) Payload() Payload {
	return ParsePayload(e.EventType, e.Data)
}
