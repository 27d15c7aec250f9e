package util

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, "-"},
		{floatPtr(0), "-"},
		{floatPtr(18), "18s"},
		{floatPtr(18.9), "18s"},
		{floatPtr(120), "2m"},
		{floatPtr(405), "6m 45s"},
		{floatPtr(3725.4), "62m 5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
	assert.Equal(t, "1m 1s", FormatSeconds(61))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "3", FormatNumber(3))
	assert.Equal(t, "12.5", FormatNumber(12.5))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrAttemptNotFound, http.StatusNotFound, "MISSION_NOT_FOUND"},
		{fmt.Errorf("%w: attempt_x", ErrReviewNotFound), http.StatusNotFound, "REVIEW_NOT_FOUND"},
		{fmt.Errorf("%w: missing attemptId", ErrInvalidEvent), http.StatusBadRequest, "INVALID_EVENT"},
		{ErrUnknownMissionType, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{ErrReviewExists, http.StatusConflict, "REVIEW_ALREADY_EXISTS"},
	}
	for _, tt := range tests {
		info := Classify(tt.err)
		assert.Equal(t, tt.status, info.HTTPStatus, tt.code)
		assert.Equal(t, tt.code, info.Code)
	}

	info := Classify(errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, info.HTTPStatus)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", info.Code)
	assert.NotContains(t, info.Message, "10.0.0.1")
}

func TestRound(t *testing.T) {
	assert.Equal(t, 77.78, Round(7.0/9.0*100, 2))
	assert.Equal(t, 60.001, Round(60.0012, 3))
	assert.Equal(t, 3.5, Round(3.5, 2))
}

func TestParsePage(t *testing.T) {
	page, size := ParsePage("", "")
	assert.Equal(t, 0, page)
	assert.Equal(t, DefaultPageSize, size)

	page, size = ParsePage("2", "50")
	assert.Equal(t, 2, page)
	assert.Equal(t, 50, size)

	page, size = ParsePage("-1", "1000")
	assert.Equal(t, 0, page)
	assert.Equal(t, MaxPageSize, size)
}

func TestParseOptionalInt(t *testing.T) {
	v, err := ParseOptionalInt("  ")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseOptionalInt("4")
	require.NoError(t, err)
	assert.Equal(t, 4, *v)

	_, err = ParseOptionalInt("four")
	assert.Error(t, err)
}

func TestNewID(t *testing.T) {
	id := NewID(AttemptIDPrefix)
	assert.True(t, strings.HasPrefix(id, "attempt_"))
	assert.Len(t, id, len("attempt_")+32)
	assert.NotEqual(t, id, NewID(AttemptIDPrefix))
}

func floatPtr(v float64) *float64 { return &v }
