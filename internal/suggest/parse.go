// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package suggest

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/videx-dev/videx/internal/style"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// defaultConfidence fills in for generation output that omits the field;
// ranking overwrites it anyway when style ranking is on.
const defaultConfidence = 0.7

var (
	fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	jsonArrayRe   = regexp.MustCompile(`\[[\s\S]*\]`)
	jsonObjectRe  = regexp.MustCompile(`\{[\s\S]*\}`)
)

type rawCandidate struct {
	Text       string   `json:"text"`
	Label      string   `json:"label"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

func (r rawCandidate) candidate() style.Candidate {
	confidence := defaultConfidence
	if r.Confidence != nil {
		confidence = *r.Confidence
	}
	return style.Candidate{
		Text:       r.Text,
		Label:      r.Label,
		SpanStart:  r.Start,
		SpanEnd:    r.End,
		Confidence: confidence,
		Rationale:  r.Rationale,
		Source:     "ai",
	}
}

// parseCandidates extracts candidate suggestions from free-form generation
// output. It tries, in order: the contents of a fenced code block, the raw
// text, the first bracket-delimited array, the first brace-delimited object.
// A bare object is coerced to a one-element list. Nothing parseable returns
// a coded error; callers treat it as zero suggestions.
func parseCandidates(response string) ([]style.Candidate, error) {
	body := response
	if m := fencedBlockRe.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	body = strings.TrimSpace(body)

	if cands, ok := decodeCandidates(body); ok {
		return cands, nil
	}
	if m := jsonArrayRe.FindString(body); m != "" {
		if cands, ok := decodeCandidates(m); ok {
			return cands, nil
		}
	}
	if m := jsonObjectRe.FindString(body); m != "" {
		if cands, ok := decodeCandidates(m); ok {
			return cands, nil
		}
	}

	return nil, videxerr.Errorf(videxerr.CodeSuggestParseFailure,
		"no JSON array or object found in generation output (%d bytes)", len(response))
}

// decodeCandidates accepts either an array of candidate objects or a single
// candidate object. Array entries that are not objects are skipped.
func decodeCandidates(body string) ([]style.Candidate, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(body), &items); err == nil {
		cands := make([]style.Candidate, 0, len(items))
		for _, item := range items {
			var raw rawCandidate
			if err := json.Unmarshal(item, &raw); err != nil {
				continue
			}
			cands = append(cands, raw.candidate())
		}
		return cands, true
	}

	var raw rawCandidate
	if err := json.Unmarshal([]byte(body), &raw); err == nil {
		return []style.Candidate{raw.candidate()}, true
	}
	return nil, false
}
