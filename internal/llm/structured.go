// ABOUTME: Lenient parsing of structured answers produced by generation models
// ABOUTME: Extracts the outermost JSON object from free text and reads it with gjson
package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// StructuredResponse is the advisory JSON shape requested from the model
type StructuredResponse struct {
	Answer        string
	Confidence    float64
	HasConfidence bool
	UsedCitations []int
}

// ParseStructured reads {answer, confidence, usedCitations} from raw model output.
// The object may be wrapped in prose or code fences. The second return is false
// when no valid JSON object can be found.
func ParseStructured(raw string) (StructuredResponse, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return StructuredResponse{}, false
	}

	body := raw[start : end+1]
	if !gjson.Valid(body) {
		return StructuredResponse{}, false
	}
	result := gjson.Parse(body)
	if !result.IsObject() {
		return StructuredResponse{}, false
	}

	var resp StructuredResponse
	if answer := result.Get("answer"); answer.Type == gjson.String {
		resp.Answer = answer.String()
	}
	if conf := result.Get("confidence"); conf.Type == gjson.Number {
		resp.Confidence = conf.Float()
		resp.HasConfidence = true
	}
	for _, idx := range result.Get("usedCitations").Array() {
		if idx.Type == gjson.Number {
			resp.UsedCitations = append(resp.UsedCitations, int(idx.Int()))
		}
	}
	return resp, true
}
