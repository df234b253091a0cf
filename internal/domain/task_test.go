package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidDateKey(t *testing.T) {
	valid := []string{"2024-01-02", "1999-12-31", "2030-06-09"}
	for _, s := range valid {
		assert.True(t, ValidDateKey(s), s)
	}

	invalid := []string{"", "2024-1-2", "2024/01/02", "20240102", "2024-01-02T10:00:00Z", "today"}
	for _, s := range invalid {
		assert.False(t, ValidDateKey(s), s)
	}
}

func TestDateKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	// 02:00 on Jan 3 in UTC+7 is still Jan 2 in UTC.
	ts := time.Date(2024, 1, 3, 2, 0, 0, 0, loc)
	assert.Equal(t, "2024-01-02", DateKey(ts))
}

func TestNewTasksDataDefaults(t *testing.T) {
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	data := NewTasksData(now)

	assert.Equal(t, CurrentVersion, data.Version)
	assert.True(t, data.LastMigration.Equal(now))
	assert.NotNil(t, data.Days)
	assert.Empty(t, data.Days)
}
