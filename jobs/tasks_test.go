package jobs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDepreciationRunPayloadMonth(t *testing.T) {
	month, err := DepreciationRunPayload{AsOf: "2024-02"}.Month()
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), month)

	month, err = DepreciationRunPayload{}.Month()
	require.NoError(t, err)
	require.True(t, month.IsZero())

	_, err = DepreciationRunPayload{AsOf: "February"}.Month()
	require.Error(t, err)
}

func TestNewDepreciationRunTask(t *testing.T) {
	task, err := NewDepreciationRunTask(DepreciationRunPayload{TenantID: 3, AsOf: "2024-02", DryRun: true})
	require.NoError(t, err)
	require.Equal(t, TaskDepreciationRun, task.Type())

	var payload DepreciationRunPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(3), payload.TenantID)
	require.True(t, payload.DryRun)
}
