// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package suggest

import (
	"fmt"
	"strings"

	"github.com/videx-dev/videx/internal/store"
)

const nerSystemPrompt = `You are an expert annotation assistant for Named Entity Recognition (NER) tasks.
Your job is to identify and label named entities in text with precision and consistency.

Available labels: %s

For each entity you find, provide:
- The exact text span
- The label type
- Start and end character positions
- A brief rationale explaining why you chose this label

Be consistent with the annotation style shown in the examples.`

const nerUserPrompt = `Analyze the following text and identify all named entities.

%s

Text to annotate:
"%s"

Return a JSON array of entities. Each entity should have:
- "text": the exact entity text
- "label": one of the available labels
- "start": character start position (0-indexed)
- "end": character end position
- "rationale": brief explanation of why this is labeled this way

Example output format:
[
  {"text": "OpenAI", "label": "ORG", "start": 0, "end": 6, "rationale": "Technology company name"}
]

If no entities found, return an empty array: []`

const classificationSystemPrompt = `You are an expert text classification assistant.
Your job is to classify text into appropriate categories with consistency.

Available categories: %s

Provide a classification with confidence score and rationale explaining your choice.
Be consistent with the classification style shown in the examples.`

const classificationUserPrompt = `Classify the following text into the most appropriate category.

%s

Text to classify:
"%s"

Return a JSON object with:
- "label": the chosen category
- "confidence": a score from 0.0 to 1.0
- "rationale": explanation of why you chose this label

Example:
{"label": "POSITIVE", "confidence": 0.85, "rationale": "Strong positive language and sentiment indicators"}`

// annotationBlockInputLimit truncates long document contexts inside a block
// so a handful of exemplars cannot dominate the prompt.
const annotationBlockInputLimit = 200

// buildNERPrompt returns the system and user instructions for an entity
// annotation cycle, with retrieved exemplars rendered as annotation blocks.
func buildNERPrompt(text string, labels []string, exemplars []store.Exemplar) (system, user string) {
	system = fmt.Sprintf(nerSystemPrompt, strings.Join(labels, ", "))
	user = fmt.Sprintf(nerUserPrompt, formatExemplarBlocks(exemplars), text)
	return system, user
}

// buildClassificationPrompt is the classification-task counterpart.
func buildClassificationPrompt(text string, labels []string, exemplars []store.Exemplar) (system, user string) {
	system = fmt.Sprintf(classificationSystemPrompt, strings.Join(labels, ", "))
	user = fmt.Sprintf(classificationUserPrompt, formatExemplarBlocks(exemplars), text)
	return system, user
}

// formatAnnotationBlock renders one exemplar as a structured block: the
// original input, the annotated span with positions, the label, and the
// rationale when one was recorded.
func formatAnnotationBlock(ex store.Exemplar) string {
	input := ex.Context
	if input == "" {
		input = ex.Text
	}
	if len(input) > annotationBlockInputLimit {
		input = input[:annotationBlockInputLimit] + "..."
	}

	lines := []string{
		"---",
		fmt.Sprintf("Input: %q", input),
		fmt.Sprintf("Span: %q (positions %d-%d)", ex.Text, ex.SpanStart, ex.SpanEnd),
		fmt.Sprintf("Label: %s", ex.Label),
	}
	if ex.Rationale != "" {
		lines = append(lines, fmt.Sprintf("Rationale: %s", ex.Rationale))
	}
	lines = append(lines, "---")

	return strings.Join(lines, "\n")
}

// formatExemplarBlocks renders the retrieved exemplars as numbered
// annotation blocks; empty input renders to the empty string.
func formatExemplarBlocks(exemplars []store.Exemplar) string {
	if len(exemplars) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Here are examples of how similar text has been annotated:\n\n")
	for i, ex := range exemplars {
		fmt.Fprintf(&sb, "Example %d:\n%s\n\n", i+1, formatAnnotationBlock(ex))
	}
	sb.WriteString("Follow the same annotation patterns and style shown above.\n")
	return sb.String()
}
