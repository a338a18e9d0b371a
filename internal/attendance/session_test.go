package attendance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	s := NewMemorySessionStore(10 * time.Minute)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, EditSession{ID: "e1", State: StatePendingDateConfirmation, CreatedAt: now}))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(11 * time.Minute)
	got, err = s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEditSessionJSONKeepsChanges(t *testing.T) {
	day := at(2024, 3, 9, 16, 0)
	sess := EditSession{
		ID:              "e1",
		AttendanceID:    "a1",
		State:           StatePendingDateConfirmation,
		Changes:         Changes{AttendanceDate: set(day)},
		Original:        sample(),
		ExpectedVersion: 1,
	}
	data, err := json.Marshal(sess)
	require.NoError(t, err)

	var back EditSession
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{FieldAttendanceDate}, back.Changes.Fields())
	assert.True(t, back.Changes.AttendanceDate.Value.Equal(day))
	assert.Equal(t, "a1", back.AttendanceID)
	assert.Equal(t, 1, back.ExpectedVersion)
}
