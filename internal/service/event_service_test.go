package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mission_backend/internal/model"
	"mission_backend/internal/testutil"
	"mission_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(attemptID, eventType string, ts time.Time, data map[string]interface{}) EventEnvelope {
	return EventEnvelope{
		EventType: eventType,
		Timestamp: model.EventTime{Time: ts},
		SessionID: "s1",
		AttemptID: attemptID,
		Data:      data,
	}
}

func TestIngestCompleteAndRate(t *testing.T) {
	s := newTestServices(t, testMissionConfig())
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	started, err := s.missions.Start(ctx, "s1", "VOCABULARY", start)
	require.NoError(t, err)

	event, err := s.eventSvc.Ingest(ctx, envelope(started.AttemptID, model.EventMissionCompleted, start.Add(60*time.Second), nil))
	require.NoError(t, err)
	assert.Contains(t, event.EventID, util.EventIDPrefix)
	assert.GreaterOrEqual(t, event.ProcessingTime, int64(0))

	attempt, err := s.missions.Get(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, attempt.Status)
	require.NotNil(t, attempt.TotalDuration)
	assert.Equal(t, 60.0, *attempt.TotalDuration)

	_, err = s.eventSvc.Ingest(ctx, envelope(started.AttemptID, model.EventMissionRatingSubmitted, start.Add(65*time.Second), map[string]interface{}{
		"rating":      5.0,
		"ratingText":  "easy",
		"hasFeedback": false,
	}))
	require.NoError(t, err)

	review, err := s.reviewSvc.Get(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 5, *review.Rating)
	assert.Equal(t, "easy", review.RatingText)
	assert.False(t, review.HasFeedback)

	// 重复的评分事件照常保存，但不会生成第二条评价
	_, err = s.eventSvc.Ingest(ctx, envelope(started.AttemptID, model.EventMissionRatingSubmitted, start.Add(70*time.Second), map[string]interface{}{
		"rating":     1.0,
		"ratingText": "changed my mind",
	}))
	require.NoError(t, err)

	count, err := s.eventSvc.CountByAttempt(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	var reviews int64
	require.NoError(t, s.db.Model(&model.Review{}).Count(&reviews).Error)
	assert.Equal(t, int64(1), reviews)
}

func TestIngestRejectsInvalidEnvelope(t *testing.T) {
	s := newTestServices(t, testMissionConfig())
	ctx := context.Background()
	attempt := testutil.SeedAttempt(t, s.db, testutil.AttemptSeed{})

	cases := map[string]EventEnvelope{
		"missing attemptId": {EventType: "page_view", SessionID: "s1"},
		"missing eventType": {AttemptID: attempt.AttemptID, SessionID: "s1"},
		"missing sessionId": {AttemptID: attempt.AttemptID, EventType: "page_view"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.eventSvc.Ingest(ctx, env)
			assert.ErrorIs(t, err, util.ErrInvalidEvent)
			assert.Equal(t, "INVALID_EVENT", NewEventError(env, err).ErrorCode)
		})
	}

	_, err := s.eventSvc.Ingest(ctx, envelope("attempt_missing", model.EventPageView, time.Now(), nil))
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)

	count, err := s.eventSvc.CountByAttempt(ctx, attempt.AttemptID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestQuitCreatesQuitReview(t *testing.T) {
	s := newTestServices(t, testMissionConfig())
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	attempt := testutil.SeedAttempt(t, s.db, testutil.AttemptSeed{StartTime: start, MissionType: model.MissionTypePortfolio})

	_, err := s.eventSvc.Ingest(ctx, envelope(attempt.AttemptID, model.EventMissionQuitted, start.Add(30*time.Second), map[string]interface{}{
		"reason": "too long",
	}))
	require.NoError(t, err)

	got, err := s.missions.Get(ctx, attempt.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQuitted, got.Status)
	assert.Equal(t, 30.0, *got.TotalDuration)

	review, err := s.reviewSvc.Get(ctx, attempt.AttemptID)
	require.NoError(t, err)
	assert.True(t, review.IsQuitReason())
	assert.Equal(t, "too long", *review.Feedback)
}

func TestIngestQuitWithoutReason(t *testing.T) {
	s := newTestServices(t, testMissionConfig())
	ctx := context.Background()
	attempt := testutil.SeedAttempt(t, s.db, testutil.AttemptSeed{})

	_, err := s.eventSvc.Ingest(ctx, envelope(attempt.AttemptID, model.EventMissionQuitted, time.Now(), nil))
	require.NoError(t, err)

	got, err := s.missions.Get(ctx, attempt.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQuitted, got.Status)

	_, err = s.reviewSvc.Get(ctx, attempt.AttemptID)
	assert.ErrorIs(t, err, util.ErrReviewNotFound)
}

func TestIngestSecondTerminalEventIsStoredButIgnored(t *testing.T) {
	s := newTestServices(t, testMissionConfig())
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	attempt := testutil.SeedAttempt(t, s.db, testutil.AttemptSeed{StartTime: start})

	_, err := s.eventSvc.Ingest(ctx, envelope(attempt.AttemptID, model.EventMissionCompleted, start.Add(60*time.Second), nil))
	require.NoError(t, err)
	_, err = s.eventSvc.Ingest(ctx, envelope(attempt.AttemptID, model.EventMissionExpired, start.Add(120*time.Second), nil))
	require.NoError(t, err)

	got, err := s.missions.Get(ctx, attempt.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 60.0, *got.TotalDuration)

	events, err := s.eventSvc.EventsByAttempt(ctx, attempt.AttemptID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventMissionExpired, events[1].EventType)
}

func TestIngestExtraTerminalEvent(t *testing.T) {
	cfg := testMissionConfig()
	cfg.ExtraTerminalEvents = []string{"session_timeout"}
	s := newTestServices(t, cfg)
	ctx := context.Background()
	attempt := testutil.SeedAttempt(t, s.db, testutil.AttemptSeed{})

	_, err := s.eventSvc.Ingest(ctx, envelope(attempt.AttemptID, "session_timeout", time.Now(), nil))
	require.NoError(t, err)

	got, err := s.missions.Get(ctx, attempt.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)
}

func TestIngestDefaultsTimestampAndData(t *testing.T) {
	s := newTestServices(t, testMissionConfig())
	ctx := context.Background()
	attempt := testutil.SeedAttempt(t, s.db, testutil.AttemptSeed{})

	event, err := s.eventSvc.Ingest(ctx, EventEnvelope{
		EventType: "button_click",
		SessionID: "s1",
		AttemptID: attempt.AttemptID,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), event.Timestamp, 5*time.Second)
	assert.NotNil(t, event.Data)

	events, err := s.eventSvc.EventsByAttempt(ctx, attempt.AttemptID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Data)

	got, err := s.missions.Get(ctx, attempt.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
}

func TestIngestConcurrentBurst(t *testing.T) {
	s := newTestServices(t, testMissionConfig())
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	attempt := testutil.SeedAttempt(t, s.db, testutil.AttemptSeed{StartTime: start})

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eventType := model.EventPageView
			switch i % 10 {
			case 3:
				eventType = model.EventMissionCompleted
			case 7:
				eventType = model.EventMissionRatingSubmitted
			}
			_, err := s.eventSvc.Ingest(ctx, envelope(attempt.AttemptID, eventType, start.Add(time.Duration(i)*time.Second), map[string]interface{}{
				"rating":     4.0,
				"ratingText": fmt.Sprintf("burst-%d", i),
			}))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := s.eventSvc.CountByAttempt(ctx, attempt.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)

	got, err := s.missions.Get(ctx, attempt.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	var reviews int64
	require.NoError(t, s.db.Model(&model.Review{}).Count(&reviews).Error)
	assert.Equal(t, int64(1), reviews)
}

func TestNewEventErrorHidesInternalDetails(t *testing.T) {
	env := envelope("attempt_x", model.EventPageView, time.Now(), nil)
	e := NewEventError(env, errors.New("database is locked"))
	assert.Equal(t, "error", e.Status)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", e.ErrorCode)
	assert.NotContains(t, e.Error, "database")
	assert.Equal(t, "attempt_x", e.AttemptID)
}
