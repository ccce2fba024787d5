package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/thebtf/workoutdiary/internal/analytics"
	"github.com/thebtf/workoutdiary/internal/worker/session"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetBorder(false)
	t.SetAutoWrapText(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func formatWeight(v float64) string {
	return humanize.Commaf(v)
}

func renderList(w io.Writer, snap session.ListView) {
	if snap.Err != "" {
		fmt.Fprintf(w, "error: %s\n", snap.Err)
	}
	if len(snap.Items) == 0 {
		fmt.Fprintln(w, "No exercises found.")
		return
	}

	t := newTable(w, "#", "Exercise", "Difficulty", "Muscle groups")
	for i, e := range snap.Items {
		t.Append([]string{
			strconv.Itoa(i + 1),
			e.Name,
			e.Difficulty.Name,
			strings.Join(e.MuscleGroupNames(), ", "),
		})
	}
	t.Render()

	more := ""
	if snap.HasNext {
		more = " ('more' for the next page)"
	}
	fmt.Fprintf(w, "%d exercises%s\n", len(snap.Items), more)
}

func renderChart(w io.Writer, view session.ChartView, now time.Time) {
	if view.Err != "" {
		fmt.Fprintf(w, "error: %s\n", view.Err)
	}
	if len(view.Window.Entries) == 0 {
		fmt.Fprintf(w, "No records for %s.\n", view.Exercise)
		return
	}

	t := newTable(w, "#", "Date", "Total", "Peak", "Change", "Days", "Note")
	for i, e := range view.Window.Entries {
		change, days := "", ""
		if i > 0 {
			change = e.PercentLabel()
			days = strconv.Itoa(e.ElapsedDays)
		}
		t.Append([]string{
			strconv.Itoa(i + 1),
			e.Date.Format(analytics.DateLayout) + " (" + humanize.RelTime(e.Date, now, "ago", "from now") + ")",
			formatWeight(e.AggregateTotal),
			fmt.Sprintf("%s x%d", formatWeight(e.PeakValue), e.PeakCount),
			change,
			days,
			e.Note,
		})
	}
	t.Render()

	older := ""
	if view.HasNext {
		older = ", 'older' for more"
	}
	fmt.Fprintf(w, "%s: offset %d, %d cached%s\n", view.Exercise, view.Window.Offset, view.Cached, older)
}

func renderEntry(w io.Writer, e analytics.Entry, now time.Time) {
	fmt.Fprintf(w, "%s  %s\n", e.Date.Format(analytics.DateLayout), humanize.RelTime(e.Date, now, "ago", "from now"))
	fmt.Fprintf(w, "  total   %s\n", formatWeight(e.AggregateTotal))
	fmt.Fprintf(w, "  peak    %s x%d\n", formatWeight(e.PeakValue), e.PeakCount)
	fmt.Fprintf(w, "  longest %d reps\n", e.MaxRepetitions)
	fmt.Fprintf(w, "  change  %s over %d days\n", e.PercentLabel(), e.ElapsedDays)
	if e.Note != "" {
		fmt.Fprintf(w, "  note    %s\n", e.Note)
	}
}
