package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// 有特殊语义的事件类型，其余类型的数据原样保存
const (
	EventMissionCompleted       = "mission_completed"
	EventMissionQuitted         = "mission_quitted"
	EventMissionExpired         = "mission_expired"
	EventMissionRatingSubmitted = "mission_rating_submitted"
	EventPortfolioCreationStep  = "portfolio_creation_step"
	EventPageView               = "page_view"
)

// Payload 事件数据的类型化视图
type Payload interface {
	Kind() string
}

// RatingPayload mission_rating_submitted 的数据，字段缺失时为 nil
type RatingPayload struct {
	Rating      *int
	RatingText  *string
	Feedback    *string
	HasFeedback *bool
}

func (RatingPayload) Kind() string { return EventMissionRatingSubmitted }

// QuitPayload mission_quitted 的数据
type QuitPayload struct {
	Reason string
}

func (QuitPayload) Kind() string { return EventMissionQuitted }

// PortfolioStepPayload portfolio_creation_step 的数据
type PortfolioStepPayload struct {
	Step            *int
	StepName        string
	SelectedLabel   string
	TimeOnStep      *float64
	AdjustmentCount *float64
	NameLength      *float64
	FinalPercentage *float64
}

func (PortfolioStepPayload) Kind() string { return EventPortfolioCreationStep }

type PageViewPayload struct {
	TimelineFields
}

func (PageViewPayload) Kind() string { return EventPageView }

// OpaquePayload 没有特殊语义的事件
type OpaquePayload struct {
	EventType string
	Data      map[string]interface{}
}

func (p OpaquePayload) Kind() string { return p.EventType }

func ParsePayload(eventType string, data map[string]interface{}) Payload {
	switch eventType {
	case EventMissionRatingSubmitted:
		p := RatingPayload{
			RatingText:  optionalString(data, "ratingText"),
			Feedback:    optionalString(data, "feedback"),
			HasFeedback: optionalBool(data, "hasFeedback"),
		}
		if v, ok := looseNumber(data, "rating"); ok {
			r := int(v)
			p.Rating = &r
		}
		return p
	case EventMissionQuitted:
		return QuitPayload{Reason: stringField(data, "reason")}
	case EventPortfolioCreationStep:
		p := PortfolioStepPayload{
			StepName:        stringField(data, "stepName"),
			SelectedLabel:   stringField(data, "selectedLabel"),
			TimeOnStep:      optionalNumber(data, "timeOnStep"),
			AdjustmentCount: optionalNumber(data, "adjustmentCount"),
			NameLength:      optionalNumber(data, "nameLength"),
			FinalPercentage: optionalNumber(data, "finalPercentage"),
		}
		if v, ok := looseNumber(data, "step"); ok {
			s := int(v)
			p.Step = &s
		}
		return p
	case EventPageView:
		return PageViewPayload{TimelineFields: ExtractTimelineFields(data)}
	default:
		return OpaquePayload{EventType: eventType, Data: data}
	}
}

// TimelineFields 回放时展示的通用字段，类型不匹配时视为缺失
type TimelineFields struct {
	Page              *string `json:"page,omitempty"`
	IsMissionRelevant *bool   `json:"isMissionRelevant,omitempty"`
	Duration          *int64  `json:"duration,omitempty"`
	ScrollDepth       *int    `json:"scrollDepth,omitempty"`
	Referrer          *string `json:"referrer,omitempty"`
}

func ExtractTimelineFields(data map[string]interface{}) TimelineFields {
	f := TimelineFields{
		Page:              optionalString(data, "page"),
		IsMissionRelevant: optionalBool(data, "isMissionRelevant"),
		Referrer:          optionalString(data, "referrer"),
	}
	if v, ok := numberField(data, "duration"); ok {
		d := int64(v)
		f.Duration = &d
	}
	if v, ok := numberField(data, "scrollDepth"); ok {
		s := int(v)
		f.ScrollDepth = &s
	}
	return f
}

const previewLimit = 100

// DataPreview 除 page 外的字段按 key 排序拼接为 "key: value"，超过 100 个字符截断并追加 "..."
func DataPreview(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		// 空值不进入预览
		if k == "page" || v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, previewValue(data[k])))
	}
	preview := strings.Join(parts, ", ")

	runes := []rune(preview)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit]) + "..."
	}
	return preview
}

func previewValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return cast.ToString(val)
	}
}

func stringField(data map[string]interface{}, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func optionalString(data map[string]interface{}, key string) *string {
	if s, ok := data[key].(string); ok {
		return &s
	}
	return nil
}

func optionalBool(data map[string]interface{}, key string) *bool {
	if b, ok := data[key].(bool); ok {
		return &b
	}
	return nil
}

// numberField 只接受数值类型
func numberField(data map[string]interface{}, key string) (float64, bool) {
	switch n := data[key].(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f, err := cast.ToFloat64E(n)
		return f, err == nil
	}
	return 0, false
}

// looseNumber 在 numberField 基础上接受数字字符串，如 "3"
func looseNumber(data map[string]interface{}, key string) (float64, bool) {
	if s, ok := data[key].(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := cast.ToFloat64E(s)
		return f, err == nil
	}
	return numberField(data, key)
}

func optionalNumber(data map[string]interface{}, key string) *float64 {
	if v, ok := looseNumber(data, key); ok {
		return &v
	}
	return nil
}
