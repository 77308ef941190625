package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// printResult writes the human-readable summary: decoration and caveats to
// stderr, the nutrition numbers to stdout so they survive piping.
func printResult(stderr, stdout io.Writer, r *models.AnalysisResult) {
	fmt.Fprintln(stderr)
	dim := color.New(color.FgHiBlack)
	_, _ = dim.Fprintln(stderr, "  "+strings.Repeat("━", 50))
	printConfidenceBar(stderr, r.Confidence, string(r.DataSource))

	fmt.Fprintln(stderr)

	bold := color.New(color.Bold)
	_, _ = bold.Fprintln(stdout, strings.Join(r.Foods, ", "))
	fmt.Fprintf(stdout, "  Portion:  %.0f g\n", r.PortionGrams)
	fmt.Fprintf(stdout, "  Protein:  %.1f g\n", r.Protein)
	fmt.Fprintf(stdout, "  Calories: %.0f kcal\n", r.Calories)
	if r.Carbs != nil {
		fmt.Fprintf(stdout, "  Carbs:    %.1f g\n", *r.Carbs)
	}
	if r.Fat != nil {
		fmt.Fprintf(stdout, "  Fat:      %.1f g\n", *r.Fat)
	}
	if r.Fiber != nil {
		fmt.Fprintf(stdout, "  Fiber:    %.1f g\n", *r.Fiber)
	}

	if r.Explanation != "" {
		fmt.Fprintln(stdout)
		_, _ = dim.Fprintln(stdout, "  "+r.Explanation)
	}

	if r.RequiresManualReview {
		fmt.Fprintln(stderr)
		yellow := color.New(color.FgYellow)
		_, _ = yellow.Fprintln(stderr, "  Check these values before logging, confidence is low.")
	}

	if r.Model != "" {
		fmt.Fprintln(stdout)
		_, _ = dim.Fprintf(stdout, "  Model: %s | Tokens: %d in / %d out\n",
			r.Model, r.InputTokens, r.OutputTokens)
	}
}

func printConfidenceBar(w io.Writer, confidence float64, source string) {
	const barWidth = 24
	pct := int(confidence*100 + 0.5)
	filled := pct * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}

	var barColor *color.Color
	switch {
	case pct >= 80:
		barColor = color.New(color.FgGreen)
	case pct >= 40:
		barColor = color.New(color.FgYellow)
	default:
		barColor = color.New(color.FgRed)
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(w, "  Confidence: %d%% ", pct)
	_, _ = barColor.Fprint(w, bar)
	dim := color.New(color.FgHiBlack)
	_, _ = dim.Fprintf(w, " (%s)\n", source)
}

// shouldColorize reports whether the writer is an interactive terminal.
func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
