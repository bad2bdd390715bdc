package generator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lllllllleong/resumeflow/internal/models"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed resume.schema.json
var resumeSchemaJSON string

var resumeSchema = mustCompileSchema(resumeSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("generator: invalid embedded resume schema: %v", err))
	}
	return schema
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// IsJSONObject reports whether s, ignoring surrounding whitespace, is a
// well-formed JSON object. Used to tell a structured resumeText apart from
// prose.
func IsJSONObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && gjson.Valid(s) && gjson.Parse(s).IsObject()
}

// decodeResume turns raw model output into a validated Resume. The model is
// told to return bare JSON but frequently wraps it in fences or prose, so the
// first JSON object in the text is used.
func decodeResume(raw string) (*models.Resume, error) {
	content := stripFences(raw)
	if content == "" {
		return nil, fmt.Errorf("%w: model returned an empty response", ErrGenerationFailed)
	}

	object, ok := firstJSONObject(content)
	if !ok {
		// Only output without a resume is checked for refusals.
		if isRefusal(content) {
			return nil, fmt.Errorf("%w: model response indicates refusal", ErrGenerationFailed)
		}
		return nil, fmt.Errorf("%w: model response contains no JSON object", ErrGenerationFailed)
	}

	result, err := resumeSchema.Validate(gojsonschema.NewStringLoader(object))
	if err != nil {
		return nil, fmt.Errorf("%w: could not validate model JSON: %v", ErrGenerationFailed, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: schema validation failed: %s", ErrGenerationFailed, strings.Join(msgs, "; "))
	}

	var resume models.Resume
	if err := json.Unmarshal([]byte(object), &resume); err != nil {
		return nil, fmt.Errorf("%w: could not decode model JSON: %v", ErrGenerationFailed, err)
	}
	return &resume, nil
}

func isRefusal(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstJSONObject returns the first balanced, valid JSON object found in s.
func firstJSONObject(s string) (string, bool) {
	if IsJSONObject(s) {
		return s, true
	}
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		end := matchingBrace(s, start)
		if end < 0 {
			continue
		}
		if candidate := s[start : end+1]; gjson.Valid(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// matchingBrace returns the index of the brace closing the one at open,
// skipping braces inside JSON strings, or -1.
func matchingBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
