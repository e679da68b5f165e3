package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"calibra/internal/domain"
)

var (
	errNotObject    = errors.New("top-level value is not an object")
	errTrailingData = errors.New("unexpected data after top-level object")
	errNoObjectSpan = errors.New("no {...} span in response")
)

// StrictParse decodes text as exactly one JSON object. Surrounding
// whitespace is allowed; anything else around the object is not.
func StrictParse(text string) (domain.ExtractedFields, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return domain.ExtractedFields(obj), nil
}

// OuterObjectSpan returns the text from the first '{' through the last '}'.
func OuterObjectSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return "", false
	}
	return text[start : end+1], true
}

// parse runs the strict attempt and then the outer-brace retry.
func parse(raw string) (domain.ExtractedFields, domain.ParseStage, error) {
	fields, strictErr := StrictParse(raw)
	if strictErr == nil {
		return fields, domain.ParseStageStrict, nil
	}

	span, ok := OuterObjectSpan(raw)
	if !ok {
		return nil, domain.ParseStageFailed, fmt.Errorf("%w: %v", domain.ErrParseFailure, errNoObjectSpan)
	}
	fields, err := StrictParse(span)
	if err != nil {
		return nil, domain.ParseStageFailed, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}
	return fields, domain.ParseStageFallback, nil
}

// compactJSON marshals v without HTML escaping.
func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}
