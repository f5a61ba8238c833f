package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo_Daily(t *testing.T) {
	ref := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 2 * * *", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 12*time.Hour+30*time.Minute, info.TimeSinceLast)
	assert.Equal(t, 11*time.Hour+30*time.Minute, info.TimeUntilNext)
	assert.Equal(t, "0 2 * * *", info.Expression)
}

func TestGetTriggerInfo_SecondsAndDescriptors(t *testing.T) {
	ref := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("30 0 * * * *", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 15, 0, 30, 0, time.UTC), info.Next)

	info, err = GetTriggerInfo("@daily", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), info.Next)
}

func TestGetTriggerInfo_Invalid(t *testing.T) {
	_, err := GetTriggerInfo("not a cron", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}
