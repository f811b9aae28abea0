package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/routine"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed, color.Bold)
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func severityColor(s conflict.Severity) *color.Color {
	switch {
	case s >= conflict.SeverityHigh:
		return errorColor
	case s == conflict.SeverityMedium:
		return warnColor
	}
	return okColor
}

func printReport(w io.Writer, r *conflict.Report) {
	headerColor.Fprintln(w, "Conflict analysis")
	if r.Degraded {
		errorColor.Fprintln(w, "  analysis degraded, treat results with caution")
	}
	fmt.Fprintf(w, "  Risk score: %.2f\n", r.OverallRiskScore)
	fmt.Fprintf(w, "  %s\n", r.SafetyAssessment)
	if len(r.Unresolved) > 0 {
		warnColor.Fprintf(w, "  Unresolved products: %s\n", strings.Join(r.Unresolved, ", "))
	}

	if len(r.Conflicts) == 0 {
		okColor.Fprintln(w, "\n  No conflicts found")
	} else {
		headerColor.Fprintln(w, "\nConflicts")
		for _, v := range r.Conflicts {
			severityColor(v.Severity).Fprintf(w, "  [%s] ", strings.ToUpper(v.Severity.String()))
			fmt.Fprintf(w, "%s (confidence %.2f)\n", v.Label(), v.Confidence)
			if v.Description != "" {
				fmt.Fprintf(w, "      %s\n", v.Description)
			}
			if v.SeparationHours > 0 {
				fmt.Fprintf(w, "      separate by %d hours\n", v.SeparationHours)
			}
		}
	}

	if len(r.Recommendations) > 0 {
		headerColor.Fprintln(w, "\nRecommendations")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
}

func printRoutine(w io.Writer, rt *routine.OptimizedRoutine) {
	if rt.Degraded {
		errorColor.Fprintln(w, "Routine optimization degraded")
	}
	printSlot(w, "Morning", rt.Morning, rt.EstimatedMinutesMorning)
	printSlot(w, "Evening", rt.Evening, rt.EstimatedMinutesEvening)

	if len(rt.Warnings) > 0 {
		headerColor.Fprintln(w, "\nWarnings")
		for _, warn := range rt.Warnings {
			warnColor.Fprintf(w, "  ! %s\n", warn)
		}
	}

	if len(rt.IntroductionTimeline) > 0 {
		headerColor.Fprintln(w, "\nIntroduction")
		for _, stage := range rt.IntroductionTimeline {
			fmt.Fprintf(w, "  Week %d: %s\n", stage.Week, strings.Join(stage.Steps, ", "))
		}
	}

	if len(rt.Guidelines) > 0 {
		headerColor.Fprintln(w, "\nGuidelines")
		for _, g := range rt.Guidelines {
			fmt.Fprintf(w, "  - %s\n", g)
		}
	}

	if rt.ExpectedTimeline != "" {
		headerColor.Fprintln(w, "\nExpected results")
		fmt.Fprintf(w, "  %s\n", rt.ExpectedTimeline)
	}
}

func printSlot(w io.Writer, title string, steps []routine.Step, minutes int) {
	headerColor.Fprintf(w, "%s routine (~%d min)\n", title, minutes)
	if len(steps) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	for _, s := range steps {
		fmt.Fprintf(w, "  %d. %s [%s, %s]\n", s.Order, s.ProductName, s.Category, s.Frequency)
		if s.WaitMinutes > 0 {
			fmt.Fprintf(w, "     wait %d min\n", s.WaitMinutes)
		}
	}
}
