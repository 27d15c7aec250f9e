package model

import (
	"fmt"
	"mission_backend/internal/util"
	"strings"
	"time"
)

type MissionType string

const (
	MissionTypePortfolio  MissionType = "PORTFOLIO"
	MissionTypeVocabulary MissionType = "VOCABULARY"
)

var missionNames = map[MissionType]string{
	MissionTypePortfolio:  "Portfolio Mission",
	MissionTypeVocabulary: "Vocabulary Mission",
}

// MissionTypes 按固定顺序返回所有任务类型
func MissionTypes() []MissionType {
	return []MissionType{MissionTypePortfolio, MissionTypeVocabulary}
}

// ParseMissionType 不区分大小写
func ParseMissionType(s string) (MissionType, error) {
	t := MissionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w %q, allowed values: PORTFOLIO, VOCABULARY", util.ErrUnknownMissionType, s)
	}
	return t, nil
}

func (t MissionType) Valid() bool {
	_, ok := missionNames[t]
	return ok
}

func (t MissionType) DisplayName() string {
	return missionNames[t]
}

type MissionStatus string

const (
	// StatusPending 仅概念上存在，Start 总是直接进入 IN_PROGRESS
	StatusPending    MissionStatus = "PENDING"
	StatusInProgress MissionStatus = "IN_PROGRESS"
	StatusCompleted  MissionStatus = "COMPLETED"
	StatusQuitted    MissionStatus = "QUITTED"
	StatusExpired    MissionStatus = "EXPIRED"
)

func ParseMissionStatus(s string) (MissionStatus, error) {
	st := MissionStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusQuitted, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("%w %q", util.ErrUnknownStatus, s)
}

// IsTerminal 终止状态是吸收态，进入后不再发生状态变化
func (s MissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusQuitted || s == StatusExpired
}

// swagger:model MissionAttempt
type MissionAttempt struct {
	BaseModel

	AttemptID   string      `gorm:"uniqueIndex;size:50;not null" json:"attemptId"`
	SessionID   string      `gorm:"index;size:64;not null" json:"sessionId"`
	MissionType MissionType `gorm:"index;size:20;not null" json:"missionType"`
	MissionName string      `gorm:"size:100;not null" json:"missionName"`
	StartTime   time.Time   `gorm:"index;not null" json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	// 秒，保留 3 位小数；与 EndTime 一起且只在进入终止状态时设置一次
	TotalDuration *float64      `gorm:"type:decimal(10,3)" json:"totalDuration,omitempty"`
	Status        MissionStatus `gorm:"index;size:20;not null" json:"status"`
}

func (MissionAttempt) TableName() string {
	return "mission_attempts"
}

// DurationBetween 计算 start 到 end 的秒数，保留 3 位小数
func DurationBetween(start, end time.Time) float64 {
	return util.Round(float64(end.Sub(start).Milliseconds())/1000.0, 3)
}
