package model

import (
	"time"
)

// BaseModel 代理主键；业务上通过 attemptId/eventId/reviewId 引用，记录不做软删除
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
