package render

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/example/claim-console/internal/claim"
)

func mustParse(t *testing.T, body string) *claim.ClaimResult {
	t.Helper()
	result, err := claim.ParseClaimResult([]byte(body))
	if err != nil {
		t.Fatalf("failed to parse %s: %v", body, err)
	}
	return result
}

func groupByKey(t *testing.T, model DisplayModel, key string) Group {
	t.Helper()
	for _, g := range model.Groups {
		if g.Key == key {
			return g
		}
	}
	t.Fatalf("group %q missing from %+v", key, model.Groups)
	return Group{}
}

func fieldValue(g Group, label string) string {
	for _, f := range g.Fields {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}

func TestRenderPartialResult(t *testing.T) {
	body := `{"vehicle":{"make":"Toyota","model":"Camry"},"damage":{"severity":"moderate"}}`
	model := Render(mustParse(t, body), nil)

	if model.Kind != KindResult || model.Error != nil {
		t.Fatalf("unexpected model kind: %+v", model)
	}

	vehicle := groupByKey(t, model, "vehicle")
	if !vehicle.Available || fieldValue(vehicle, "Make") != "Toyota" || fieldValue(vehicle, "Model") != "Camry" {
		t.Fatalf("unexpected vehicle group: %+v", vehicle)
	}
	if len(vehicle.Fields) != 2 {
		t.Fatalf("expected only present fields, got %+v", vehicle.Fields)
	}

	damage := groupByKey(t, model, "damage")
	if !damage.Available || fieldValue(damage, "Severity") != "moderate" {
		t.Fatalf("unexpected damage group: %+v", damage)
	}

	incident := groupByKey(t, model, "incident")
	if incident.Available || incident.Placeholder != NotAvailable {
		t.Fatalf("expected incident to be marked unavailable, got %+v", incident)
	}

	for _, want := range []string{`"make": "Toyota"`, `"severity": "moderate"`} {
		if !strings.Contains(model.RawJSON, want) {
			t.Fatalf("raw json %q does not contain %q", model.RawJSON, want)
		}
	}
}

func TestRenderMarksEveryMissingGroup(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"vehicle":null,"damage":[],"incident":"n/a"}`,
		`{"unexpected":{"deeply":{"nested":[1,2,3]}}}`,
	}
	for _, body := range payloads {
		model := Render(mustParse(t, body), nil)
		if len(model.Groups) != 3 {
			t.Fatalf("expected the three claim groups for %s, got %d", body, len(model.Groups))
		}
		for _, g := range model.Groups {
			if g.Available || g.Placeholder != NotAvailable {
				t.Fatalf("expected %s to be unavailable for %s", g.Key, body)
			}
		}
		if model.RawJSON == "" {
			t.Fatalf("expected raw json for %s", body)
		}
	}
}

func TestRenderNilResultIsTotal(t *testing.T) {
	model := Render(nil, nil)
	if model.Kind != KindResult || len(model.Groups) != 3 || model.RawJSON != "{}" {
		t.Fatalf("unexpected model: %+v", model)
	}
}

func TestRenderExtrasAndDocument(t *testing.T) {
	body := `{
		"damage": {"affected_areas": ["hood", "front bumper"], "repair_shop": "Joe's", "estimated_cost": 2400},
		"document_type": "form",
		"extracted_text": {"raw_text": "CLAIM 42"},
		"error": "JSON parsing failed",
		"error_details": "Expecting value"
	}`
	model := Render(mustParse(t, body), nil)

	damage := groupByKey(t, model, "damage")
	want := []Field{
		{Label: "Estimated cost", Value: "2400"},
		{Label: "Affected areas", Value: "hood, front bumper"},
		{Label: "Repair shop", Value: "Joe's"},
	}
	if !reflect.DeepEqual(damage.Fields, want) {
		t.Fatalf("unexpected damage fields: %+v", damage.Fields)
	}

	document := groupByKey(t, model, "document")
	if fieldValue(document, "Extracted text") != "CLAIM 42" {
		t.Fatalf("unexpected document group: %+v", document)
	}
	if model.Notice == nil || model.Notice.Details != "Expecting value" {
		t.Fatalf("expected pipeline notice, got %+v", model.Notice)
	}
}

func TestRenderNonASCIIExtraLabels(t *testing.T) {
	model := Render(mustParse(t, `{"vehicle": {"make": "VW", "état": "neuf", "ägypten_x": "y"}}`), nil)

	vehicle := groupByKey(t, model, "vehicle")
	for _, f := range vehicle.Fields {
		if !utf8.ValidString(f.Label) {
			t.Fatalf("label %q is not valid UTF-8", f.Label)
		}
	}
	if fieldValue(vehicle, "État") != "neuf" {
		t.Fatalf("expected État label, got %+v", vehicle.Fields)
	}
	if fieldValue(vehicle, "Ägypten x") != "y" {
		t.Fatalf("expected Ägypten x label, got %+v", vehicle.Fields)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	result := mustParse(t, `{"vehicle":{"make":"Kia","extra_a":"1","extra_b":"2","extra_c":"3"},"incident":{"date":"2024-01-02"}}`)

	first := Render(result, nil)
	second := Render(result, nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical models:\n%+v\n%+v", first, second)
	}
}

func TestRenderClaimError(t *testing.T) {
	err := &claim.ClaimError{Category: claim.CategoryTimeout, Message: "the claims API did not answer within 5m0s"}
	model := Render(&claim.ClaimResult{}, err)

	if model.Kind != KindError || len(model.Groups) != 0 || model.RawJSON != "" {
		t.Fatalf("expected a lone error group, got %+v", model)
	}
	if model.Error.Category != claim.CategoryTimeout || model.Error.Title != "Request timed out" {
		t.Fatalf("unexpected error view: %+v", model.Error)
	}
	if model.Error.Hint == "" {
		t.Fatal("expected a hint for timeouts")
	}

	server := Render(nil, claim.NewServerError(500, "agent crashed"))
	if server.Error.StatusCode != 500 || server.Error.Message != "agent crashed" {
		t.Fatalf("unexpected server error view: %+v", server.Error)
	}
}

func TestRenderPlainError(t *testing.T) {
	model := Render(nil, errors.New("something else"))
	if model.Error == nil || model.Error.Message != "something else" || model.Error.Category != "" {
		t.Fatalf("unexpected error view: %+v", model.Error)
	}
}

func TestRenderHealth(t *testing.T) {
	checked := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	view := RenderHealth(claim.HealthStatus{
		Reachable:  true,
		StatusCode: 200,
		Payload:    map[string]any{"status": "ok"},
		Latency:    42 * time.Millisecond,
		CheckedAt:  checked,
	})
	if view.Label != "Reachable" || view.Payload != `{"status":"ok"}` || view.LatencyMS != 42 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.CheckedAt != "2024-05-01T10:00:00Z" {
		t.Fatalf("unexpected checked at: %s", view.CheckedAt)
	}

	down := RenderHealth(claim.HealthStatus{})
	if down.Reachable || down.Label != "Unreachable" || down.Error == "" {
		t.Fatalf("unexpected view: %+v", down)
	}
}
