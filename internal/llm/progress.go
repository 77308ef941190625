package llm

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// ProgressEvent represents a single progress update during an analysis.
type ProgressEvent struct {
	Type    string                 `json:"type"`               // "stage", "source", "info", "done", "error"
	Stage   string                 `json:"stage,omitempty"`    // pipeline stage name
	Source  string                 `json:"source,omitempty"`   // nutrition source being tried
	Message string                 `json:"message,omitempty"`  // human-readable message
	ModelMs int                    `json:"model_ms,omitempty"` // model call duration
	Tokens  int                    `json:"tokens,omitempty"`   // total tokens for the call
	Result  *models.AnalysisResult `json:"result,omitempty"`   // final result (for "done" type)
}

// ProgressEmitter receives progress events during an analysis.
type ProgressEmitter interface {
	Emit(event ProgressEvent)
}

// TextEmitter formats progress events as human-readable text for CLI output.
type TextEmitter struct {
	W io.Writer
}

// Emit writes a formatted progress line to the underlying writer.
func (e *TextEmitter) Emit(ev ProgressEvent) {
	switch ev.Type {
	case "stage":
		line := fmt.Sprintf("[%s] %s", ev.Stage, ev.Message)
		if stats := formatStats(ev); stats != "" {
			line += " (" + stats + ")"
		}
		fmt.Fprintln(e.W, line)
	case "source":
		fmt.Fprintf(e.W, "[cascade] trying %s\n", ev.Source)
	case "info":
		fmt.Fprintf(e.W, "  %s\n", ev.Message)
	case "error":
		fmt.Fprintf(e.W, "Error: %s\n", ev.Message)
	}
}

// formatStats renders model-call statistics for a progress line, empty when
// the event carries none.
func formatStats(ev ProgressEvent) string {
	var parts []string
	if ev.ModelMs > 0 {
		parts = append(parts, "model "+formatDuration(ev.ModelMs))
	}
	if ev.Tokens > 0 {
		parts = append(parts, formatNumber(ev.Tokens)+" tok")
	}
	return strings.Join(parts, ", ")
}

// formatDuration renders milliseconds as "500ms" or "3.2s".
func formatDuration(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// formatNumber renders an integer with thousands separators.
func formatNumber(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
