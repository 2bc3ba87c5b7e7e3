package checker

import (
	"bytes"
	"encoding/json"
	"strings"
)

// TestCase is one (input, expected output) pair a submission must satisfy.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"output"`
}

// ParseTestCases decodes a test specification of the form
//
//	{"tests": [{"input": "...", "output": "..."}, ...]}
//
// Blank input, malformed JSON, or a missing or non-array "tests" field all
// yield no test cases; callers report that as "no test cases found". A
// missing input or output field is read as the empty string.
func ParseTestCases(raw string) []TestCase {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var doc struct {
		Tests json.RawMessage `json:"tests"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(doc.Tests, &items); err != nil {
		return nil
	}

	cases := make([]TestCase, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		// A non-object element still counts as a test with empty fields.
		_ = json.Unmarshal(item, &fields)
		cases = append(cases, TestCase{
			Input:          textValue(fields["input"]),
			ExpectedOutput: textValue(fields["output"]),
		})
	}
	return cases
}

// textValue renders a JSON scalar as text: strings unquoted, numbers and
// booleans as their literal. Null, objects and arrays become "".
func textValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(raw)
	}
}
