// Package codec normalizes generated model text into structured records.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

// ErrMalformedOutput matches every error returned by Repair and RepairInto.
var ErrMalformedOutput = domain.ErrMalformedOutput

// fencePattern matches a whole response wrapped in one fenced code block
// with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?[ \t]*```$")

const excerptLen = 120

// MalformedOutputError reports generated text that does not satisfy the
// expected structure.
type MalformedOutputError struct {
	Reason  string
	Excerpt string
	Err     error
}

func (e *MalformedOutputError) Error() string {
	msg := "malformed model output: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Excerpt != "" {
		msg += fmt.Sprintf(" (%q)", e.Excerpt)
	}
	return msg
}

// Unwrap returns the underlying decode error, if any.
func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformedOutput) hold.
func (e *MalformedOutputError) Is(target error) bool {
	return target == domain.ErrMalformedOutput
}

func malformed(reason, text string, err error) *MalformedOutputError {
	return &MalformedOutputError{Reason: reason, Excerpt: clip(text), Err: err}
}

func clip(s string) string {
	if len(s) <= excerptLen {
		return s
	}
	return s[:excerptLen] + "..."
}

// Strip trims whitespace and removes a single fenced-code wrapper.
func Strip(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return s
}

// Object returns the JSON object encoded by raw. A single-element array
// wrapping one object is unwrapped.
func Object(raw string) (json.RawMessage, error) {
	s := Strip(raw)
	if s == "" {
		return nil, malformed("empty response", raw, nil)
	}
	if s[0] != '{' && s[0] != '[' {
		return nil, malformed("response is not a JSON object", s, nil)
	}
	if last := s[len(s)-1]; last != '}' && last != ']' {
		return nil, malformed("response appears truncated", s, nil)
	}

	if s[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, malformed("invalid JSON array", s, err)
		}
		if len(items) != 1 {
			return nil, malformed(fmt.Sprintf("expected one object, got array of %d", len(items)), s, nil)
		}
		item := bytes.TrimSpace(items[0])
		if len(item) == 0 || item[0] != '{' {
			return nil, malformed("array element is not an object", s, nil)
		}
		return item, nil
	}

	if !json.Valid([]byte(s)) {
		var probe map[string]any
		err := json.Unmarshal([]byte(s), &probe)
		return nil, malformed("invalid JSON object", s, err)
	}
	return json.RawMessage(s), nil
}

// Repair returns the generated record as a generic map.
func Repair(raw string) (map[string]any, error) {
	obj, err := Object(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(obj, &out); err != nil {
		return nil, malformed("invalid JSON object", string(obj), err)
	}
	return out, nil
}

// RepairInto decodes the generated record into v.
func RepairInto(raw string, v any) error {
	obj, err := Object(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(obj, v); err != nil {
		return malformed("record does not match expected shape", string(obj), err)
	}
	return nil
}
