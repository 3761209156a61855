// Package render maps claims API outcomes to display sections. Everything here is pure.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/example/claim-console/internal/claim"
)

// Kind tells which of the two display shapes a model carries.
type Kind string

const (
	KindResult Kind = "result"
	KindError  Kind = "error"
)

// NotAvailable is shown for groups missing from the response.
const NotAvailable = "Not available"

type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Group is one labeled panel of the page.
type Group struct {
	Key         string  `json:"key"`
	Title       string  `json:"title"`
	Available   bool    `json:"available"`
	Fields      []Field `json:"fields,omitempty"`
	Placeholder string  `json:"placeholder,omitempty"`
}

type ErrorView struct {
	Category   claim.ErrorCategory `json:"category,omitempty"`
	Title      string              `json:"title"`
	StatusCode int                 `json:"status_code,omitempty"`
	Message    string              `json:"message"`
	Hint       string              `json:"hint,omitempty"`
}

// Notice carries an error the pipeline reported inside a successful response.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type DisplayModel struct {
	Kind    Kind       `json:"kind"`
	Groups  []Group    `json:"groups,omitempty"`
	Notice  *Notice    `json:"notice,omitempty"`
	RawJSON string     `json:"raw_json,omitempty"`
	Error   *ErrorView `json:"error,omitempty"`
}

// Render builds the display model for one submission outcome. A non-nil err wins over result.
// Any combination of inputs yields a renderable model.
func Render(result *claim.ClaimResult, err error) DisplayModel {
	if err != nil {
		return DisplayModel{Kind: KindError, Error: errorView(err)}
	}
	if result == nil {
		result = &claim.ClaimResult{}
	}

	model := DisplayModel{
		Kind: KindResult,
		Groups: []Group{
			vehicleGroup(result.Vehicle),
			damageGroup(result.Damage),
			incidentGroup(result.Incident),
		},
		RawJSON: rawJSON(result),
	}
	if result.Document != nil {
		model.Groups = append(model.Groups, documentGroup(result.Document))
	}
	if result.PipelineError != nil {
		model.Notice = &Notice{
			Title:   "The claims pipeline reported an error",
			Message: result.PipelineError.Message,
			Details: result.PipelineError.Details,
		}
	}
	return model
}

func vehicleGroup(v *claim.VehicleInfo) Group {
	if v == nil {
		return unavailable("vehicle", "Vehicle information")
	}
	var b groupBuilder
	b.add("Make", v.Make)
	b.add("Model", v.Model)
	b.add("Color", v.Color)
	b.add("Year", v.Year)
	b.addExtra(v.Extra)
	return b.group("vehicle", "Vehicle information")
}

func damageGroup(d *claim.DamageAssessment) Group {
	if d == nil {
		return unavailable("damage", "Damage assessment")
	}
	var b groupBuilder
	b.add("Severity", d.Severity)
	b.add("Estimated cost", d.EstimatedCost)
	b.add("Affected areas", strings.Join(d.AffectedAreas, ", "))
	b.addExtra(d.Extra)
	return b.group("damage", "Damage assessment")
}

func incidentGroup(i *claim.IncidentDetails) Group {
	if i == nil {
		return unavailable("incident", "Incident details")
	}
	var b groupBuilder
	b.add("Date", i.Date)
	b.add("Location", i.Location)
	b.add("Description", i.Description)
	b.addExtra(i.Extra)
	return b.group("incident", "Incident details")
}

func documentGroup(d *claim.DocumentText) Group {
	var b groupBuilder
	b.add("Document type", d.DocumentType)
	b.add("Confidence", d.Confidence)
	b.add("Legibility", d.Legibility)
	b.add("Extracted text", d.RawText)
	return b.group("document", "Extracted document text")
}

func unavailable(key, title string) Group {
	return Group{Key: key, Title: title, Placeholder: NotAvailable}
}

type groupBuilder struct {
	fields []Field
}

func (b *groupBuilder) add(label, value string) {
	if value == "" {
		return
	}
	b.fields = append(b.fields, Field{Label: label, Value: value})
}

func (b *groupBuilder) addExtra(extra map[string]string) {
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.add(humanize(key), extra[key])
	}
}

func (b *groupBuilder) group(key, title string) Group {
	if len(b.fields) == 0 {
		return unavailable(key, title)
	}
	return Group{Key: key, Title: title, Available: true, Fields: b.fields}
}

func humanize(key string) string {
	label := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(key))
	if label == "" {
		return key
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}

func rawJSON(result *claim.ClaimResult) string {
	if len(result.Raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, result.Raw, "", "  "); err == nil {
			return buf.String()
		}
	}
	payload := result.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func errorView(err error) *ErrorView {
	var claimErr *claim.ClaimError
	if !errors.As(err, &claimErr) {
		return &ErrorView{Title: "Error", Message: err.Error()}
	}
	message := claimErr.Message
	if message == "" && claimErr.Err != nil {
		message = claimErr.Err.Error()
	}
	return &ErrorView{
		Category:   claimErr.Category,
		Title:      claimErr.Category.Title(),
		StatusCode: claimErr.StatusCode,
		Message:    message,
		Hint:       hint(claimErr.Category),
	}
}

func hint(category claim.ErrorCategory) string {
	switch category {
	case claim.CategoryConnectivity:
		return "Check the API URL and that the claims service is running."
	case claim.CategoryTimeout:
		return "The claim may still be processing on the server. Submit again later if no result appears."
	case claim.CategoryServerError:
		return "Submit again, or contact the API operators if the error persists."
	case claim.CategoryBadResponse:
		return "The API URL may point at a different service."
	case claim.CategoryInvalidInput:
		return "Choose a JPG, JPEG or PNG image."
	default:
		return ""
	}
}
