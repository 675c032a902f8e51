package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fenceRegex strips a leading/trailing markdown code fence, with or
// without a "json" language tag.
var fenceRegex = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```\\s*$")

// trailingCommaRegex removes a trailing comma that immediately precedes a
// closing brace or bracket, the single most common near-JSON defect.
var trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)

// recoverJSON trims, strips markdown fences, extracts the outermost
// object, sanitizes, and drops any top-level "$schema" key. It returns
// the sanitized JSON text ready for json.Unmarshal.
func recoverJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if m := fenceRegex.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", &JsonValidationError{Raw: raw, Reason: "no JSON object found"}
	}
	text = text[start : end+1]

	text = sanitize(text)
	text = stripSchemaKey(text)

	return text, nil
}

// sanitize applies a small set of permissive repairs for the near-JSON a
// model commonly emits: trailing commas before a closing brace/bracket.
// It does not attempt a full recursive-descent repair; anything more
// broken than this fails json.Unmarshal and surfaces as JsonValidationError.
func sanitize(text string) string {
	return trailingCommaRegex.ReplaceAllString(text, "$1")
}

// stripSchemaKey removes a top-level "$schema" property so it never
// leaks into ReviewResultSchema's (absent) catch-all field. It operates
// by decoding into a generic map, deleting the key, and re-encoding, so
// it tolerates arbitrary key ordering and nesting under other fields.
func stripSchemaKey(text string) string {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		// Leave sanitization to the caller's subsequent Unmarshal, which
		// will surface the same error with more context.
		return text
	}
	if _, ok := generic["$schema"]; !ok {
		return text
	}
	delete(generic, "$schema")
	out, err := json.Marshal(generic)
	if err != nil {
		return text
	}
	return string(out)
}

// Recover runs the full recovery pipeline on a provider's raw text
// response and normalizes the result: confidence scores are clamped into
// [0,1] (nil becomes 0.5), and a blank confidence explanation is
// replaced with a default.
func Recover(raw string) (ReviewResultSchema, error) {
	jsonText, err := recoverJSON(raw)
	if err != nil {
		return ReviewResultSchema{}, err
	}

	var result ReviewResultSchema
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return ReviewResultSchema{}, &JsonValidationError{Raw: raw, Reason: err.Error()}
	}

	normalize(&result)
	return result, nil
}

func normalize(result *ReviewResultSchema) {
	for i := range result.Issues {
		issue := &result.Issues[i]
		score := 0.5
		if issue.ConfidenceScore != nil {
			score = *issue.ConfidenceScore
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		issue.ConfidenceScore = &score

		if strings.TrimSpace(issue.ConfidenceExplanation) == "" {
			issue.ConfidenceExplanation = "No explanation provided"
		}

		issue.SuggestedFix = sanitizeSuggestedFix(issue.SuggestedFix)
	}
}

// suggestedFixAlphabet is the base64 alphabet; bytes outside
// [A-Za-z0-9+/=] cause the field to be dropped entirely.
var suggestedFixAlphabet = regexp.MustCompile(`^[A-Za-z0-9+/=]*$`)

func sanitizeSuggestedFix(encoded string) string {
	if encoded == "" {
		return ""
	}
	if !suggestedFixAlphabet.MatchString(encoded) {
		return ""
	}
	return encoded
}
