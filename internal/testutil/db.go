package testutil

import (
	"testing"
	"time"

	"mission_backend/internal/model"
	"mission_backend/internal/util"
	"mission_backend/pkg/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB 打开内存 SQLite 并建表，单连接保证所有查询看到同一个库
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// AttemptSeed 未设置的字段使用默认值：VOCABULARY、IN_PROGRESS、当前时间
type AttemptSeed struct {
	AttemptID   string
	SessionID   string
	MissionType model.MissionType
	Status      model.MissionStatus
	StartTime   time.Time
	Duration    *float64
}

func SeedAttempt(tb testing.TB, db *gorm.DB, seed AttemptSeed) *model.MissionAttempt {
	tb.Helper()

	if seed.AttemptID == "" {
		seed.AttemptID = util.NewID(util.AttemptIDPrefix)
	}
	if seed.SessionID == "" {
		seed.SessionID = "session-test"
	}
	if seed.MissionType == "" {
		seed.MissionType = model.MissionTypeVocabulary
	}
	if seed.Status == "" {
		seed.Status = model.StatusInProgress
	}
	if seed.StartTime.IsZero() {
		seed.StartTime = time.Now().UTC()
	}

	attempt := &model.MissionAttempt{
		AttemptID:   seed.AttemptID,
		SessionID:   seed.SessionID,
		MissionType: seed.MissionType,
		MissionName: seed.MissionType.DisplayName(),
		StartTime:   seed.StartTime,
		Status:      seed.Status,
	}
	if seed.Status.IsTerminal() {
		d := 60.0
		if seed.Duration != nil {
			d = *seed.Duration
		}
		end := seed.StartTime.Add(time.Duration(d * float64(time.Second)))
		attempt.EndTime = &end
		attempt.TotalDuration = &d
	}

	if err := db.Create(attempt).Error; err != nil {
		tb.Fatalf("seed attempt: %v", err)
	}
	return attempt
}

func SeedEvent(tb testing.TB, db *gorm.DB, attemptID, eventType string, ts time.Time, data map[string]interface{}) *model.MissionEvent {
	tb.Helper()
	if data == nil {
		data = map[string]interface{}{}
	}
	event := &model.MissionEvent{
		EventID:    util.NewID(util.EventIDPrefix),
		AttemptID:  attemptID,
		SessionID:  "session-test",
		EventType:  eventType,
		Timestamp:  ts,
		Data:       data,
		ReceivedAt: time.Now().UTC(),
	}
	if err := db.Create(event).Error; err != nil {
		tb.Fatalf("seed event: %v", err)
	}
	return event
}

func SeedReview(tb testing.TB, db *gorm.DB, attemptID string, rating *int, feedback string) *model.Review {
	tb.Helper()
	review := &model.Review{
		ReviewID:    util.NewID(util.ReviewIDPrefix),
		AttemptID:   attemptID,
		Rating:      rating,
		RatingText:  "seeded",
		SubmittedAt: time.Now().UTC(),
	}
	if rating == nil {
		review.RatingText = model.QuitRatingText
	}
	if feedback != "" {
		review.Feedback = &feedback
		review.HasFeedback = true
	}
	if err := db.Create(review).Error; err != nil {
		tb.Fatalf("seed review: %v", err)
	}
	return review
}

func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }
