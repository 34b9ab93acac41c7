package analyze

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// maxRepairCandidates bounds how many opening braces repair will try.
const maxRepairCandidates = 64

// Parse decodes model output into a TeamSpecification. The text is first
// decoded as-is; if that fails, it gets one repair pass that strips fences and
// surrounding prose. Failure yields a *SpecificationParseError carrying raw
// unmodified.
func Parse(raw string) (*models.TeamSpecification, error) {
	spec, err := decodeStrict(raw)
	if err == nil {
		return spec, nil
	}

	spec, rerr := repair(raw)
	if spec != nil {
		return spec, nil
	}
	if rerr == nil {
		rerr = err
	}
	return nil, &SpecificationParseError{Raw: raw, Err: rerr}
}

// decodeStrict accepts exactly one JSON object. Unknown keys are ignored so
// newer designs still load; wrong types and trailing data are errors.
func decodeStrict(s string) (*models.TeamSpecification, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty response")
	}
	if s[0] != '{' {
		return nil, errors.New("response is not a JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(s))
	var spec models.TeamSpecification
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return &spec, nil
}

// repair strips a markdown code fence and looks for the design object inside
// the remaining text. Each opening brace is tried in order and the first one
// that decodes into a design wins; prose before and after it is ignored, so
// placeholders such as {topic} in the prose are skipped over. A second JSON
// value after the object is an error. It returns nil, nil when the text holds
// nothing object-shaped.
func repair(raw string) (*models.TeamSpecification, error) {
	s := stripFence(raw)

	var firstErr error
	from := 0
	for tries := 0; tries < maxRepairCandidates; tries++ {
		i := strings.IndexByte(s[from:], '{')
		if i == -1 {
			break
		}
		start := from + i
		from = start + 1

		spec, end, err := decodeObject(s[start:])
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("decode JSON: %w", err)
			}
			continue
		}
		// A nested object decodes without error but carries no design.
		if spec.Agents == nil && spec.Tasks == nil {
			continue
		}
		rest := strings.TrimSpace(s[start+end:])
		if rest != "" && (rest[0] == '{' || rest[0] == '[') {
			return nil, errors.New("unexpected data after JSON object")
		}
		return spec, nil
	}
	return nil, firstErr
}

// decodeObject decodes the JSON object at the start of s and reports the
// offset just past it.
func decodeObject(s string) (*models.TeamSpecification, int, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var spec models.TeamSpecification
	if err := dec.Decode(&spec); err != nil {
		return nil, 0, err
	}
	return &spec, int(dec.InputOffset()), nil
}

func stripFence(s string) string {
	open := strings.Index(s, "```")
	if open == -1 {
		return s
	}
	body := s[open+3:]
	// Drop the info string, e.g. ```json
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		body = body[nl+1:]
	}
	if closeIdx := strings.LastIndex(body, "```"); closeIdx != -1 {
		body = body[:closeIdx]
	}
	return body
}

// Marshal renders a design as indented JSON, the same shape Parse accepts.
func Marshal(spec *models.TeamSpecification) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(spec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
