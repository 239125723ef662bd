package models_test

import (
	"testing"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStepResult(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		wantKind models.StepResultKind
		wantErr  bool
	}{
		{
			name:     "valid check_in",
			payload:  map[string]any{"kind": "check_in", "sentiment": "positive", "summary": "spoke with champion"},
			wantKind: models.StepResultCheckIn,
		},
		{
			name:     "valid note",
			payload:  map[string]any{"kind": "note", "body": "renewal deck sent", "author_id": "op-1"},
			wantKind: models.StepResultNote,
		},
		{
			name:     "valid outreach",
			payload:  map[string]any{"kind": "outreach", "channel": "email", "outcome": "replied"},
			wantKind: models.StepResultOutreach,
		},
		{
			name:    "check_in without sentiment",
			payload: map[string]any{"kind": "check_in", "summary": "no verdict"},
			wantErr: true,
		},
		{
			name:    "check_in with invalid sentiment",
			payload: map[string]any{"kind": "check_in", "sentiment": "ecstatic"},
			wantErr: true,
		},
		{
			name:    "note with empty body",
			payload: map[string]any{"kind": "note", "body": ""},
			wantErr: true,
		},
		{
			name:    "outreach with unknown channel",
			payload: map[string]any{"kind": "outreach", "channel": "carrier_pigeon"},
			wantErr: true,
		},
		{
			name:    "missing kind",
			payload: map[string]any{"sentiment": "positive"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := models.ValidateStepResult(tt.payload)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantKind, kind)
			}
		})
	}
}

func TestValidateStepResult_UnknownKind(t *testing.T) {
	_, err := models.ValidateStepResult(map[string]any{"kind": "escalation_memo"})
	require.ErrorIs(t, err, models.ErrUnknownStepKind)
}

func TestAppendStepResult(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	execution := &models.WorkflowExecution{
		ID: "exec-1",
		WorkflowData: map[string]any{
			"playbook": "renewal-standard",
		},
	}

	err := execution.AppendStepResult(map[string]any{
		"kind":      "check_in",
		"sentiment": "neutral",
	}, now)
	require.NoError(t, err)

	err = execution.AppendStepResult(map[string]any{
		"kind":        "note",
		"body":        "pricing concerns raised",
		"recorded_at": "2025-06-10T10:00:00Z",
	}, now)
	require.NoError(t, err)

	// Unknown workflow_data keys survive appends.
	assert.Equal(t, "renewal-standard", execution.WorkflowData["playbook"])

	steps, ok := execution.WorkflowData["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 2)

	first, ok := steps[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "check_in", first["kind"])
	assert.Equal(t, now.Format(time.RFC3339), first["recorded_at"])

	second, ok := steps[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2025-06-10T10:00:00Z", second["recorded_at"])
}

func TestAppendStepResult_RejectsInvalidPayload(t *testing.T) {
	execution := &models.WorkflowExecution{ID: "exec-1"}

	err := execution.AppendStepResult(map[string]any{"kind": "note"}, time.Now().UTC())
	require.Error(t, err)
	assert.Nil(t, execution.WorkflowData["steps"])
}

func TestStepResults_SkipsMalformedEntries(t *testing.T) {
	execution := &models.WorkflowExecution{
		ID: "exec-1",
		WorkflowData: map[string]any{
			"steps": []any{
				map[string]any{"kind": "note", "body": "fine"},
				map[string]any{"kind": "note"},
				"not even a map",
			},
		},
	}

	valid, malformed := execution.StepResults()
	require.Len(t, valid, 1)
	assert.Equal(t, "fine", valid[0]["body"])
	assert.Equal(t, 2, malformed)
}
