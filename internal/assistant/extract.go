package assistant

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoIntentJSON is returned when the model output carries no parseable
// JSON object. Callers treat it as "no appointment intent" and move on.
var ErrNoIntentJSON = errors.New("assistant: no intent JSON in model output")

// AppointmentIntent is the structured judgment the extraction pass returns.
// ReadyToCreate is only honored when date and time survived validation.
type AppointmentIntent struct {
	Detected      bool   `json:"intentDetected"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Service       string `json:"service"`
	CustomerName  string `json:"customerName"`
	ReadyToCreate bool   `json:"readyToCreate"`
}

// ParseIntent extracts an AppointmentIntent from raw model output. Models
// routinely wrap JSON in markdown fences or lead with prose, so the parser
// strips known fencing then falls back to the outermost brace window. Any
// failure parses closed: an error here means no appointment gets created.
func ParseIntent(raw string) (*AppointmentIntent, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, "{") {
		startIdx := strings.Index(content, "{")
		endIdx := strings.LastIndex(content, "}")
		if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
			return nil, ErrNoIntentJSON
		}
		content = content[startIdx : endIdx+1]
	}

	var intent AppointmentIntent
	if err := json.Unmarshal([]byte(content), &intent); err != nil {
		return nil, ErrNoIntentJSON
	}

	intent.Date = strings.TrimSpace(intent.Date)
	intent.Time = strings.TrimSpace(intent.Time)
	intent.Service = strings.TrimSpace(intent.Service)
	intent.CustomerName = strings.TrimSpace(intent.CustomerName)

	// ReadyToCreate without the fields to create with is a model mistake.
	if intent.Date == "" || intent.Time == "" {
		intent.ReadyToCreate = false
	}
	if intent.ReadyToCreate {
		intent.Detected = true
	}
	return &intent, nil
}
