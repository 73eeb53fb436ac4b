package oracle

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// parseDecision extracts the decision object from model text. Prose or code
// fences around the object are tolerated; a missing or unknown action, or a
// confidence outside [0,1], is ErrMalformedDecision.
func parseDecision(text string) (domain.Decision, error) {
	obj, ok := extractObject(text)
	if !ok {
		return domain.Decision{}, fmt.Errorf("oracle: %w: no json object in response", domain.ErrMalformedDecision)
	}
	doc := gjson.Parse(obj)

	raw := doc.Get("action")
	if raw.Type != gjson.String {
		return domain.Decision{}, fmt.Errorf("oracle: %w: missing action", domain.ErrMalformedDecision)
	}
	action, ok := domain.ParseAction(raw.String())
	if !ok {
		return domain.Decision{}, fmt.Errorf("oracle: %w: unknown action %q", domain.ErrMalformedDecision, raw.String())
	}

	conf := doc.Get("confidence")
	if conf.Type != gjson.Number && conf.Type != gjson.String {
		return domain.Decision{}, fmt.Errorf("oracle: %w: missing confidence", domain.ErrMalformedDecision)
	}
	c := conf.Float()
	if c < 0 || c > 1 {
		return domain.Decision{}, fmt.Errorf("oracle: %w: confidence %v out of range", domain.ErrMalformedDecision, c)
	}

	return domain.Decision{
		Action:     action,
		Confidence: c,
		Reasoning:  doc.Get("reasoning").String(),
	}, nil
}

// extractObject returns the outermost {...} span of text when it is valid
// JSON.
func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	obj := text[start : end+1]
	if !gjson.Valid(obj) {
		return "", false
	}
	return obj, true
}
