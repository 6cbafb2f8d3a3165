package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"myswing/internal/swing"
)

const timeLayout = "2006-01-02 15:04"

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatLevel(l swing.CompressionLevel) string {
	res := l.Resolution
	if res == "" {
		res = swing.ResolutionOriginal
	}
	s := fmt.Sprintf("quality %.2f, %s", l.Quality, res)
	if l.Aggressive {
		s += ", aggressive"
	}
	return s
}

func validationStatus(r *swing.ValidationResult) string {
	switch {
	case !r.CanProceed:
		return "REJECTED"
	case r.NeedsCompression:
		return "COMPRESS"
	default:
		return "OK"
	}
}

func printValidation(w io.Writer, r *swing.ValidationResult) {
	fmt.Fprintf(w, "Status: %s\n", validationStatus(r))
	if r.Metadata != nil {
		fmt.Fprintf(w, "Size:   %.2fMB\n", r.Metadata.SizeMB)
		fmt.Fprintf(w, "Source: %s\n", r.Metadata.Source)
	}
	if r.NeedsCompression {
		fmt.Fprintf(w, "Plan:   %s (about %.1fMB)\n", formatLevel(r.Plan), swing.EstimateCompressedSize(r.Metadata.SizeMB, r.Plan))
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  [%s] %s: %s\n", issue.Severity, issue.Type, issue.Message)
	}
}

func printWorkflowResult(w io.Writer, r *swing.WorkflowResult) {
	if c := r.Compression; c != nil && c.Method == swing.MethodCompressed {
		fmt.Fprintf(w, "Compressed %.1fMB to %.1fMB (%.1fx)\n", c.OriginalSizeMB, c.CompressedSizeMB, c.CompressionRatio)
	}
	if r.StorageKey != "" {
		fmt.Fprintf(w, "Uploaded %s\n", r.StorageKey)
	}
}

func printAnalysis(w io.Writer, a *swing.Analysis) {
	fmt.Fprintf(w, "Analysis %s\n", a.ID)
	if !a.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  Created: %s\n", a.CreatedAt.Local().Format(timeLayout))
	}
	if a.Club != "" || a.Angle != "" || a.ShotType != "" {
		fmt.Fprintf(w, "  Swing:   %s / %s / %s\n", dash(a.Club), dash(a.Angle), dash(a.ShotType))
	}

	s := a.Scores
	fmt.Fprintf(w, "  Overall: %.0f\n", s.Overall)
	for _, part := range []struct {
		name  string
		score float64
	}{
		{"Setup", s.Setup},
		{"Backswing", s.Backswing},
		{"Impact", s.Impact},
		{"Follow-through", s.FollowThrough},
	} {
		if part.score > 0 {
			fmt.Fprintf(w, "    %-15s %.0f\n", part.name, part.score)
		}
	}

	if len(a.AIResponse) > 0 {
		var out bytes.Buffer
		if err := json.Indent(&out, a.AIResponse, "  ", "  "); err == nil {
			fmt.Fprintf(w, "  Feedback:\n  %s\n", out.String())
		}
	}
}

func printAnalysisTable(w io.Writer, list []*swing.Analysis) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tCLUB\tSHOT\tSCORE")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f\n",
			a.ID,
			a.CreatedAt.Local().Format(timeLayout),
			dash(a.Club),
			dash(a.ShotType),
			a.Scores.Overall,
		)
	}
	tw.Flush()
}

func printProfile(w io.Writer, p *swing.Profile) {
	fmt.Fprintf(w, "Name:     %s\n", dash(p.DisplayName))
	if p.Handicap != nil {
		fmt.Fprintf(w, "Handicap: %.1f\n", *p.Handicap)
	} else {
		fmt.Fprintln(w, "Handicap: -")
	}
	fmt.Fprintf(w, "Hand:     %s\n", dash(p.DominantHand))
}

func printDashboard(w io.Writer, d *swing.Dashboard) {
	if s := d.Stats; s != nil {
		fmt.Fprintf(w, "Analyses: %d   Average: %.0f   Best: %.0f\n", s.TotalAnalyses, s.AverageScore, s.BestScore)
		if s.LastAnalysis != nil {
			fmt.Fprintf(w, "Last swing: %s\n", s.LastAnalysis.Local().Format(timeLayout))
		}
	}
	if len(d.Recent) > 0 {
		fmt.Fprintln(w, "\nRecent:")
		printAnalysisTable(w, d.Recent)
	}
	if wx := d.Weather; wx != nil {
		fmt.Fprintf(w, "\nConditions: %.0f°C, wind %.0f km/h\n", wx.TemperatureC, wx.WindSpeedKmh)
	}
	fmt.Fprintf(w, "\nTip of the day: %s\n", d.Tip)
}
