package main

import (
	"fmt"
	"io"
	"time"

	"github.com/aluiziolira/go-flickfinder/models"
	"github.com/aluiziolira/go-flickfinder/pipeline"
)

func printSummary(w io.Writer, stats models.FetchStats, metrics map[string]interface{}, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Session summary")

	outcomes, _ := metrics["outcomes"].(map[string]int)
	okCount := outcomes[pipeline.StatusOK]
	failed := outcomes[pipeline.StatusError]
	fmt.Fprintf(w, "  Actions:       %d (ok %d, failed %d)\n", okCount+failed, okCount, failed)
	if dropped, ok := metrics["dropped"].(int64); ok && dropped > 0 {
		fmt.Fprintf(w, "  Superseded:    %d\n", dropped)
	}
	if repeats, ok := metrics["repeats"].(int64); ok && repeats > 0 {
		fmt.Fprintf(w, "  Repeats:       %d\n", repeats)
	}

	fmt.Fprintf(w, "  Requests:      %d\n", stats.RequestCount)
	successRate := 0.0
	if stats.RequestCount > 0 {
		successRate = float64(stats.RequestCount-stats.ErrorCount) / float64(stats.RequestCount) * 100
	}
	fmt.Fprintf(w, "  Success rate:  %.2f%%\n", successRate)
	fmt.Fprintf(w, "  Errors:        %d\n", stats.ErrorCount)
	if len(stats.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", stats.ErrorsByType)
	}
	if byType, ok := metrics["errors"].(map[string]int); ok && len(byType) > 0 {
		fmt.Fprintf(w, "  Failures:      %v\n", byType)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	if outputFile != "" {
		fmt.Fprintf(w, "  Output file:   %s\n", outputFile)
	}
	fmt.Fprintln(w, separator)
}
