// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

// Package stub provides deterministic in-process stand-ins for the external
// embedding and generation services. They back the default configuration
// when no provider API key is set, and the test suite.
package stub

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math/rand"
	"regexp"
	"strings"
	"unicode"

	"github.com/videx-dev/videx/internal/provider"
)

// Compile-time interface checks.
var (
	_ provider.Embedder  = (*Embedder)(nil)
	_ provider.Generator = (*Generator)(nil)
)

// Embedder produces pseudo-random unit vectors seeded by the input text:
// identical strings always embed to identical vectors, which is all the
// retrieval and scoring paths rely on.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a stub embedder with the given dimension.
func NewEmbedder(dimensions int) *Embedder {
	return &Embedder{dimensions: dimensions}
}

func (e *Embedder) Name() string    { return "stub" }
func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}
	return provider.Normalize(vec), nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

var (
	annotateRe = regexp.MustCompile(`Text to annotate:\s*"([^"]+)"`)
	classifyRe = regexp.MustCompile(`Text to classify:\s*"([^"]+)"`)
)

// Generator emits plausible annotation JSON without calling a model. It
// tags capitalized words that do not open a sentence as ORG entities, the
// crudest heuristic that still produces span-consistent output.
type Generator struct{}

// NewGenerator creates a stub generator.
func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Name() string { return "stub" }

func (g *Generator) Complete(_ context.Context, _, userPrompt string) (string, error) {
	if m := classifyRe.FindStringSubmatch(userPrompt); m != nil {
		out, err := json.Marshal(map[string]any{
			"label":      "OTHER",
			"confidence": 0.7,
			"rationale":  "stub classification",
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	m := annotateRe.FindStringSubmatch(userPrompt)
	if m == nil {
		return "[]", nil
	}
	text := m[1]

	type entity struct {
		Text      string `json:"text"`
		Label     string `json:"label"`
		Start     int    `json:"start"`
		End       int    `json:"end"`
		Rationale string `json:"rationale"`
	}

	entities := []entity{}
	pos := 0
	for _, word := range strings.Fields(text) {
		idx := strings.Index(text[pos:], word)
		if idx == -1 {
			continue
		}
		idx += pos
		pos = idx + len(word)

		// Mid-sentence capitalized words only; sentence openers are
		// capitalized for grammar, not because they name anything.
		runes := []rune(word)
		if !unicode.IsUpper(runes[0]) || opensSentence(text, idx) {
			continue
		}

		clean := strings.TrimRight(word, ".,!?;:")
		entities = append(entities, entity{
			Text:      clean,
			Label:     "ORG",
			Start:     idx,
			End:       idx + len(clean),
			Rationale: "capitalized mid-sentence token",
		})
	}

	out, err := json.Marshal(entities)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// opensSentence reports whether the token starting at idx is the first word
// of the text or follows a sentence-ending period.
func opensSentence(text string, idx int) bool {
	for i := idx - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\n', '\t':
			continue
		case '.':
			return true
		default:
			return false
		}
	}
	return true
}
