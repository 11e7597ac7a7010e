package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID        uuid.UUID `json:"id"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
	Note      string    `json:"note,omitempty"`
}

func TestDecodeRecord(t *testing.T) {
	id := uuid.New()
	got, err := DecodeRecord[row](Record{
		"id":         id.String(),
		"count":      float64(3),
		"created_at": "2026-10-15T08:30:00.123456+00:00",
		"note":       nil,
		"extra":      "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, time.Date(2026, 10, 15, 8, 30, 0, 123456000, time.UTC), got.CreatedAt.UTC())
	assert.Empty(t, got.Note)
}

func TestDecodeRecordTimestampWithoutZone(t *testing.T) {
	got, err := DecodeRecord[row](Record{"created_at": "2026-10-15T08:30:00.5"})
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, time.Duration(got.CreatedAt.Nanosecond()))
}

func TestDecodeRecordRejectsBadValues(t *testing.T) {
	_, err := DecodeRecord[row](Record{"id": "not-a-uuid"})
	assert.Error(t, err)

	_, err = DecodeRecord[row](Record{"created_at": "yesterday"})
	assert.Error(t, err)
}
