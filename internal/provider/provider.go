// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package provider

import (
	"context"
	"math"
)

// Embedder is the external embedding function: text in, fixed-dimension
// L2-normalized vector out. Implementations are deterministic for a fixed
// model version.
type Embedder interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch is semantically identical to per-item Embed calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is the external generation service: a system instruction and a
// user instruction in, free text out. The text may carry JSON inside
// markdown fences; parsing is the caller's concern.
type Generator interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options carries model configuration shared by generator implementations.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Normalize scales vec to unit L2 norm in place and returns it. A zero
// vector is returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
