package render

import (
	"encoding/json"
	"time"

	"github.com/example/claim-console/internal/claim"
)

// HealthView is the status indicator shown after a health probe.
type HealthView struct {
	Reachable  bool   `json:"reachable"`
	Label      string `json:"label"`
	StatusCode int    `json:"status_code,omitempty"`
	Payload    string `json:"payload,omitempty"`
	Error      string `json:"error,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	CheckedAt  string `json:"checked_at,omitempty"`
}

func RenderHealth(status claim.HealthStatus) HealthView {
	view := HealthView{
		Reachable:  status.Reachable,
		Label:      "Unreachable",
		StatusCode: status.StatusCode,
		Error:      status.Error,
		LatencyMS:  status.Latency.Milliseconds(),
	}
	if status.Reachable {
		view.Label = "Reachable"
	}
	if !status.CheckedAt.IsZero() {
		view.CheckedAt = status.CheckedAt.UTC().Format(time.RFC3339)
	}
	switch {
	case status.Payload != nil:
		if encoded, err := json.Marshal(status.Payload); err == nil {
			view.Payload = string(encoded)
		}
	case status.Body != "":
		view.Payload = status.Body
	}
	if !view.Reachable && view.Error == "" {
		view.Error = "the claims API could not be reached"
	}
	return view
}
