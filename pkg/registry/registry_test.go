package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activity(id string) Activity {
	return Activity{ID: id, DisplayName: "Display " + id, Category: "recommendation", TaskType: id, Timeout: "20s"}
}

func TestRegistry_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "activity-registry.json")

	reg, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Empty(t, reg.Activities)

	assert.False(t, reg.Upsert(activity("recommend-movies")))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Save(path, now))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:00:00Z", loaded.LastUpdated)
	require.Len(t, loaded.Activities, 1)
	assert.Equal(t, "recommend-movies", loaded.Activities[0].TaskType)
}

func TestRegistry_UpsertReplaces(t *testing.T) {
	reg := &ActivityRegistry{}
	reg.Upsert(activity("a"))

	updated := activity("a")
	updated.Version = "2.0.0"
	assert.True(t, reg.Upsert(updated))

	require.Len(t, reg.Activities, 1)
	assert.Equal(t, "2.0.0", reg.Find("a").Version)
	assert.Nil(t, reg.Find("missing"))
}

func TestRegistry_Validate(t *testing.T) {
	tests := []struct {
		name       string
		activities []Activity
		wantErr    string
	}{
		{"valid", []Activity{activity("a"), activity("b")}, ""},
		{"empty", nil, "no activities"},
		{"duplicate", []Activity{activity("a"), activity("a")}, "duplicate activity ID"},
		{"missing task type", []Activity{{ID: "a", DisplayName: "A", Category: "c"}}, "TaskType"},
		{"bad timeout", []Activity{func() Activity { a := activity("a"); a.Timeout = "soon"; return a }()}, "invalid timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&ActivityRegistry{Activities: tt.activities}).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
