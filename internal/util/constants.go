package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

// 分页
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ID 前缀
const (
	AttemptIDPrefix = "attempt_"
	EventIDPrefix   = "event_"
	ReviewIDPrefix  = "review_"
)
