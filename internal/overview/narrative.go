package overview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"opsdeck/internal/domain"
)

// promptEntryLimit caps the formatted entries embedded in the generation
// prompt, keeping its size bounded independently of the log fetch cap.
const promptEntryLimit = 50

// systemInstruction fixes the narrative register for the generator.
const systemInstruction = "You summarize recent business activity for a team dashboard. " +
	"Write 2 to 3 plain sentences, at most 400 characters total. " +
	"Lead with the most important fact. Use a brief narrative tone. " +
	"No markup, no lists, no headings."

// buildHighlight produces the narrative string for the response. The empty
// window short-circuits to the quiet message; a generator error, timeout, or
// empty output falls back to the deterministic metric sentences.
func (s *Service) buildHighlight(ctx context.Context, metrics domain.Metrics, resolved resolvedContext, entries []domain.LogEntry, timeframe domain.Timeframe, now time.Time) string {
	if len(entries) == 0 {
		return quietHighlight(timeframe)
	}
	if s.gen == nil {
		return fallbackHighlight(metrics, len(entries))
	}

	genCtx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	text, err := s.gen.Generate(genCtx, systemInstruction, userInstruction(metrics, resolved, entries, timeframe, now))
	if err != nil {
		s.logger.Warn("highlight generation failed, using fallback", "timeframe_days", timeframe.Days(), "err", err)
		return fallbackHighlight(metrics, len(entries))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Warn("highlight generation returned no text, using fallback", "timeframe_days", timeframe.Days())
		return fallbackHighlight(metrics, len(entries))
	}
	return text
}

// userInstruction embeds the serialized metrics and the formatted log window
// into one generation request.
func userInstruction(metrics domain.Metrics, resolved resolvedContext, entries []domain.LogEntry, timeframe domain.Timeframe, now time.Time) string {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		metricsJSON = []byte("{}")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current time: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Window: %s\n", timeframe.Label())
	fmt.Fprintf(&sb, "Counters: %s\n", metricsJSON)
	sb.WriteString("Recent activity, newest first:\n")

	limit := len(entries)
	if limit > promptEntryLimit {
		limit = promptEntryLimit
	}
	for _, entry := range entries[:limit] {
		sb.WriteString(formatEntry(entry, resolved))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// formatEntry renders one log line for the prompt, with the permission-scoped
// scope label appended.
func formatEntry(entry domain.LogEntry, resolved resolvedContext) string {
	line := fmt.Sprintf("- %s %s %s", entry.OccurredAt.UTC().Format("2006-01-02 15:04"), entry.ActorName, entry.Verb)
	if entry.Summary != "" {
		line += ": " + entry.Summary
	}
	return line + " [" + scopeLabel(entry, resolved) + "]"
}

// fallbackHighlight builds the deterministic highlight: one sentence per
// nonzero counter, or a raw update count when every counter is zero. It is a
// pure function of the metrics and the log count.
func fallbackHighlight(metrics domain.Metrics, logCount int) string {
	var sentences []string
	if metrics.TasksDone > 0 {
		sentences = append(sentences, fmt.Sprintf("%s completed.", countNoun(metrics.TasksDone, "task was", "tasks were")))
	}
	if metrics.NewLeads > 0 {
		sentences = append(sentences, fmt.Sprintf("%s came in.", countNoun(metrics.NewLeads, "new lead", "new leads")))
	}
	if metrics.BlockedTasks > 0 {
		sentences = append(sentences, fmt.Sprintf("%s currently blocked.", countNoun(metrics.BlockedTasks, "task is", "tasks are")))
	}
	if len(sentences) == 0 {
		return fmt.Sprintf("%s logged in the period.", countNoun(logCount, "update was", "updates were"))
	}
	return strings.Join(sentences, " ")
}

// quietHighlight is the fixed empty-window message, parameterized only by
// the timeframe label.
func quietHighlight(timeframe domain.Timeframe) string {
	return fmt.Sprintf("No activity was recorded in the %s.", timeframe.Label())
}

// countNoun renders "1 task was" / "3 tasks were" style fragments.
func countNoun(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
