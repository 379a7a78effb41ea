package experiment

import (
	"fmt"
	"strings"
	"time"
)

// GenerateReport renders a run summary for terminals and logs.
func GenerateReport(report *RunReport) string {
	var b strings.Builder

	class := string(report.Class)
	if class == "" {
		class = "all"
	}

	fmt.Fprintf(&b, `
Experiment Run Report
=====================

Run ID:        %s
Experiment:    %d (%s)
Strategy:      %s
Vector class:  %s
Model:         %s

Tests:              %d
Hallucinations:     %d (%s)
Needs review:       %d
Failed calls:       %d
Total tokens:       %d
Avg response time:  %.1f ms
Duration:           %s
`,
		report.RunID,
		report.ExperimentID, report.Name,
		report.Strategy,
		class,
		report.Model,
		report.Total,
		report.Hallucinations, report.HallucinationRate,
		report.NeedsReview,
		report.Failures,
		report.TotalTokens,
		report.AvgResponseTimeMS,
		report.Duration.Round(time.Millisecond),
	)

	if report.Hallucinations > 0 {
		b.WriteString("\nFlagged prompts:\n")
		for _, t := range report.Tests {
			if !t.IsHallucination {
				continue
			}
			fmt.Fprintf(&b, "- [%s/%s] %s\n", t.HallucinationType, t.Severity, t.Prompt)
		}
	}

	return b.String()
}
