package claim

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

// The claims API output is not fixed in shape, so every record below is partial:
// an empty string or nil slice means the field was absent.

type VehicleInfo struct {
	Make  string
	Model string
	Color string
	Year  string
	Extra map[string]string
}

type DamageAssessment struct {
	Severity      string
	EstimatedCost string
	AffectedAreas []string
	Extra         map[string]string
}

type IncidentDetails struct {
	Date        string
	Location    string
	Description string
	Extra       map[string]string
}

// DocumentText is the text-extraction section produced by the OCR structuring agent.
type DocumentText struct {
	DocumentType string
	RawText      string
	Confidence   string
	Legibility   string
}

// PipelineError is an error reported inside an otherwise successful response body.
type PipelineError struct {
	Message string
	Details string
}

// ClaimResult is one decoded response of the upload endpoint. Each group is nil when absent.
type ClaimResult struct {
	Vehicle       *VehicleInfo
	Damage        *DamageAssessment
	Incident      *IncidentDetails
	Document      *DocumentText
	PipelineError *PipelineError

	Payload map[string]any
	Raw     []byte
}

var (
	vehicleKeys  = []string{"vehicle", "vehicle_info", "vehicle_information"}
	damageKeys   = []string{"damage", "damage_assessment"}
	incidentKeys = []string{"incident", "incident_details", "incident_info"}
)

// ParseClaimResult decodes a response body. The body must be a single JSON object.
func ParseClaimResult(body []byte) (*ClaimResult, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("response body is null")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}

	return &ClaimResult{
		Vehicle:       parseVehicle(lookupGroup(payload, vehicleKeys...)),
		Damage:        parseDamage(lookupGroup(payload, damageKeys...)),
		Incident:      parseIncident(lookupGroup(payload, incidentKeys...)),
		Document:      parseDocument(payload),
		PipelineError: parsePipelineError(payload),
		Payload:       payload,
		Raw:           append([]byte(nil), body...),
	}, nil
}

func parseVehicle(group map[string]any) *VehicleInfo {
	if group == nil {
		return nil
	}
	f := newFieldReader(group)
	v := &VehicleInfo{
		Make:  f.take("make", "manufacturer", "brand"),
		Model: f.take("model"),
		Color: f.take("color", "colour"),
		Year:  f.take("year", "model_year"),
	}
	v.Extra = f.rest()
	if v.Make == "" && v.Model == "" && v.Color == "" && v.Year == "" && len(v.Extra) == 0 {
		return nil
	}
	return v
}

func parseDamage(group map[string]any) *DamageAssessment {
	if group == nil {
		return nil
	}
	f := newFieldReader(group)
	d := &DamageAssessment{
		Severity:      f.take("severity", "damage_severity"),
		EstimatedCost: f.take("estimated_cost", "estimated_repair_cost", "cost_estimate"),
		AffectedAreas: f.takeList("affected_areas", "damaged_areas", "areas"),
	}
	d.Extra = f.rest()
	if d.Severity == "" && d.EstimatedCost == "" && len(d.AffectedAreas) == 0 && len(d.Extra) == 0 {
		return nil
	}
	return d
}

func parseIncident(group map[string]any) *IncidentDetails {
	if group == nil {
		return nil
	}
	f := newFieldReader(group)
	i := &IncidentDetails{
		Date:        f.take("date", "incident_date"),
		Location:    f.take("location", "incident_location"),
		Description: f.take("description", "incident_description", "summary"),
	}
	i.Extra = f.rest()
	if i.Date == "" && i.Location == "" && i.Description == "" && len(i.Extra) == 0 {
		return nil
	}
	return i
}

func parseDocument(payload map[string]any) *DocumentText {
	d := &DocumentText{
		DocumentType: Text(payload["document_type"]),
		Confidence:   Text(payload["confidence"]),
	}
	switch extracted := payload["extracted_text"].(type) {
	case map[string]any:
		d.RawText = Text(extracted["raw_text"])
	case string:
		d.RawText = strings.TrimSpace(extracted)
	}
	if quality, ok := payload["text_quality"].(map[string]any); ok {
		d.Legibility = Text(quality["overall_legibility"])
	}
	if d.DocumentType == "" && d.RawText == "" && d.Legibility == "" {
		return nil
	}
	return d
}

func parsePipelineError(payload map[string]any) *PipelineError {
	msg := Text(payload["error"])
	if msg == "" {
		return nil
	}
	return &PipelineError{Message: msg, Details: Text(payload["error_details"])}
}

func lookupGroup(payload map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if group, ok := payload[key].(map[string]any); ok {
			return group
		}
	}
	return nil
}

// fieldReader consumes known keys from a group so the remainder can be reported as extras.
type fieldReader struct {
	group map[string]any
	used  map[string]bool
}

func newFieldReader(group map[string]any) *fieldReader {
	return &fieldReader{group: group, used: make(map[string]bool)}
}

func (f *fieldReader) take(keys ...string) string {
	var value string
	for _, key := range keys {
		if _, ok := f.group[key]; !ok {
			continue
		}
		f.used[key] = true
		if value == "" {
			value = Text(f.group[key])
		}
	}
	return value
}

func (f *fieldReader) takeList(keys ...string) []string {
	var values []string
	for _, key := range keys {
		raw, ok := f.group[key]
		if !ok {
			continue
		}
		f.used[key] = true
		if values != nil {
			continue
		}
		switch v := raw.(type) {
		case []any:
			for _, item := range v {
				if s := Text(item); s != "" {
					values = append(values, s)
				}
			}
		default:
			if s := Text(v); s != "" {
				values = []string{s}
			}
		}
	}
	return values
}

func (f *fieldReader) rest() map[string]string {
	var extra map[string]string
	for key, raw := range f.group {
		if f.used[key] {
			continue
		}
		s := Text(raw)
		if s == "" {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[key] = s
	}
	return extra
}

// Text renders a decoded JSON value as display text. Null and empty values become "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "yes"
		}
		return "no"
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := Text(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		if string(encoded) == "{}" {
			return ""
		}
		return string(encoded)
	}
}
