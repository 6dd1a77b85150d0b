// ABOUTME: Shared helpers for CLI commands
// ABOUTME: Output formatting, truncation, relative times, and flag validation
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harper/bookbuddy/internal/models"
)

// truncate shortens a string to maxLen runes, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// wantJSON reports whether --format asks for JSON
func wantJSON() bool {
	return outputFormat == "json"
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// pageLabel renders "p. 12" or "" when the page is unknown
func pageLabel(page int) string {
	if page <= 0 {
		return ""
	}
	return fmt.Sprintf("p. %d", page)
}

// printAnswer renders an answer with its numbered sources
func printAnswer(w io.Writer, answer *models.Answer) {
	fmt.Fprintf(w, "%s\n", answer.Text)
	if len(answer.Citations) > 0 {
		fmt.Fprintf(w, "\nSources:\n")
		for i, c := range answer.Citations {
			where := []string{fmt.Sprintf("%q", c.DocumentTitle)}
			if p := pageLabel(c.Page); p != "" {
				where = append(where, p)
			}
			if c.Chapter != "" {
				where = append(where, c.Chapter)
			}
			fmt.Fprintf(w, "  [%d] %s\n", i+1, strings.Join(where, ", "))
		}
	}
	if !quiet {
		fmt.Fprintf(w, "\nConfidence: %.0f%%\n", answer.Confidence*100)
	}
}
