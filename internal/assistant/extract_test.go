package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   error
		wantReady bool
		wantDate  string
		wantTime  string
	}{
		{
			name:      "plain json",
			raw:       `{"intentDetected": true, "date": "2026-09-15", "time": "10:00", "service": "coupe homme", "readyToCreate": true}`,
			wantReady: true,
			wantDate:  "2026-09-15",
			wantTime:  "10:00",
		},
		{
			name:      "markdown fenced",
			raw:       "```json\n{\"intentDetected\": true, \"date\": \"2026-09-15\", \"time\": \"10:00\", \"readyToCreate\": true}\n```",
			wantReady: true,
			wantDate:  "2026-09-15",
			wantTime:  "10:00",
		},
		{
			name:      "chatter around the json",
			raw:       "Here is the analysis you asked for:\n{\"intentDetected\": true, \"date\": \"2026-09-15\", \"time\": \"10:00\", \"readyToCreate\": true}\nLet me know if you need more.",
			wantReady: true,
			wantDate:  "2026-09-15",
			wantTime:  "10:00",
		},
		{
			name:    "prose only",
			raw:     "I could not determine the intent.",
			wantErr: ErrNoIntentJSON,
		},
		{
			name:    "fenced garbage",
			raw:     "```json\nnot json at all\n```",
			wantErr: ErrNoIntentJSON,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: ErrNoIntentJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := ParseIntent(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantReady, intent.ReadyToCreate)
			assert.Equal(t, tt.wantDate, intent.Date)
			assert.Equal(t, tt.wantTime, intent.Time)
		})
	}
}

func TestParseIntentDowngradesReadyWithoutDateTime(t *testing.T) {
	intent, err := ParseIntent(`{"intentDetected": true, "date": "", "time": "10:00", "readyToCreate": true}`)
	require.NoError(t, err)
	assert.False(t, intent.ReadyToCreate, "ready must be dropped when the date is missing")
	assert.True(t, intent.Detected, "detected flag survives the downgrade")
}
