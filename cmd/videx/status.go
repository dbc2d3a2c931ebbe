// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show service status and store statistics",
		Long:  "Check the running service's stats endpoint and display exemplar and style-profile counts.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:8300", "service address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	client := newServiceClient(addr)
	var body struct {
		Retriever struct {
			TotalExemplars int      `json:"total_exemplars"`
			LabelsInIndex  []string `json:"labels_in_index"`
		} `json:"retriever"`
		StyleScorer struct {
			AnnotatorsTracked       []string `json:"annotators_tracked"`
			TotalAnnotationsTracked int      `json:"total_annotations_tracked"`
		} `json:"style_scorer"`
		EmbeddingDimensions int `json:"embedding_dimensions"`
	}
	if err := client.getJSON("/api/v1/stats", &body); err != nil {
		if errors.Is(err, ErrServiceNotRunning) {
			_, _ = fmt.Fprintf(out, "Videx at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Videx at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Videx at %s\n", addr)
	_, _ = fmt.Fprintf(out, "  exemplars:   %d\n", body.Retriever.TotalExemplars)
	_, _ = fmt.Fprintf(out, "  labels:      %s\n", strings.Join(body.Retriever.LabelsInIndex, ", "))
	_, _ = fmt.Fprintf(out, "  annotators:  %d (%d observations)\n",
		len(body.StyleScorer.AnnotatorsTracked), body.StyleScorer.TotalAnnotationsTracked)
	_, _ = fmt.Fprintf(out, "  dimensions:  %d\n", body.EmbeddingDimensions)
	return nil
}
