package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsync/odds-engine/internal/storage"
)

func activeMapping(mappingID, eventID string) storage.ActiveMapping {
	return storage.ActiveMapping{
		Mapping: storage.MarketMapping{ID: mappingID, EventID: eventID, Active: true},
		Event:   storage.Event{ID: eventID, Status: storage.EventStatusActive},
	}
}

func TestFilterByEvent(t *testing.T) {
	active := []storage.ActiveMapping{
		activeMapping("map-1", "evt-1"),
		activeMapping("map-2", "evt-2"),
		activeMapping("map-3", "evt-1"),
	}

	tests := []struct {
		name        string
		eventID     string
		wantIDs     []string
		expectError bool
	}{
		{
			name:    "no-filter-returns-all",
			eventID: "",
			wantIDs: []string{"map-1", "map-2", "map-3"},
		},
		{
			name:    "filter-selects-matching-event",
			eventID: "evt-1",
			wantIDs: []string{"map-1", "map-3"},
		},
		{
			name:        "unknown-event-is-an-error",
			eventID:     "evt-missing",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := filterByEvent(active, tt.eventID)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.eventID)
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(entries))
			for _, e := range entries {
				ids = append(ids, e.Mapping.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFilterByEvent_EmptyInput(t *testing.T) {
	entries, err := filterByEvent(nil, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCommandTree(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["run"], "run command registered")
	assert.True(t, names["backfill"], "backfill command registered")
	assert.True(t, names["deadletter"], "deadletter command registered")

	flag := backfillEnqueueCmd.Flags().Lookup("event")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}
