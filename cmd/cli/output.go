package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/yourusername/nicedowns-go/internal/domain"
)

func printSubmission(out io.Writer, sub *domain.Submission) {
	fmt.Fprintf(out, "Submission %s\n", sub.ID)
	fmt.Fprintf(out, "  Input:    %s\n", sub.Input)
	fmt.Fprintf(out, "  Platform: %s\n", sub.Platform.DisplayName())
	fmt.Fprintf(out, "  Status:   %s\n", sub.Status)

	if !sub.IsResolved() {
		if sub.UserMessage != "" {
			fmt.Fprintf(out, "  Error:    %s\n", sub.UserMessage)
		}
		return
	}

	d := sub.Descriptor
	fmt.Fprintf(out, "  Title:    %s\n", d.Title)
	if d.Author != "" {
		fmt.Fprintf(out, "  Author:   %s\n", d.Author)
	}
	fmt.Fprintf(out, "  Provider: %s\n", sub.Provider)
	if d.Degraded {
		fmt.Fprintf(out, "  Note:     %s\n", d.Caveat)
	}

	fmt.Fprintln(out)
	printAssets(out, d.Assets)
}

func printAssets(out io.Writer, assets []domain.AssetVariant) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tTYPE\tQUALITY\tSIZE")
	for i, a := range assets {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, a.ID, a.MediaType, a.Quality, a.EstimatedSize)
	}
	w.Flush()
}

func printAttempt(out io.Writer, attempt *domain.DeliveryAttempt) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tOUTCOME\tDETAIL")
	for _, r := range attempt.Strategies {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Strategy, r.Outcome, truncate(r.Detail, 60))
	}
	w.Flush()

	switch {
	case attempt.State == domain.DeliveryFailed:
		fmt.Fprintf(out, "\nDelivery failed: %s\n", attempt.ErrorMessage)
	case attempt.Outcome == nil:
		fmt.Fprintf(out, "\nDelivery %s\n", attempt.State)
	case attempt.Outcome.IsAutomated():
		fmt.Fprintf(out, "\nSaved %s\n", attempt.Outcome.SavedPath)
		if attempt.Outcome.Caveat != "" {
			fmt.Fprintf(out, "Note: %s\n", attempt.Outcome.Caveat)
		}
	default:
		fmt.Fprintf(out, "\nManual save needed:\n%s\n", attempt.Outcome.Instructions)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
