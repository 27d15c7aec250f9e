package model

import "time"

// QuitRatingText 由放弃原因生成的评价使用的固定标记
const QuitRatingText = "quit"

// swagger:model Review
type Review struct {
	BaseModel

	ReviewID  string `gorm:"uniqueIndex;size:50;not null" json:"reviewId"`
	AttemptID string `gorm:"uniqueIndex;size:50;not null" json:"attemptId"`
	// 1-5；放弃原因生成的评价为 nil
	Rating      *int      `json:"rating"`
	RatingText  string    `gorm:"size:20;not null" json:"ratingText"`
	Feedback    *string   `gorm:"type:text" json:"feedback,omitempty"`
	HasFeedback bool      `gorm:"not null;default:false" json:"hasFeedback"`
	SubmittedAt time.Time `gorm:"index" json:"submittedAt"`
}

func (Review) TableName() string {
	return "reviews"
}

func (r *Review) IsQuitReason() bool {
	return r.Rating == nil && r.RatingText == QuitRatingText
}
