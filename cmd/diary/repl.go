package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/thebtf/workoutdiary/internal/backend"
	"github.com/thebtf/workoutdiary/internal/catalog"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/internal/submit"
	"github.com/thebtf/workoutdiary/internal/worker/session"
	"github.com/thebtf/workoutdiary/pkg/models"
)

var commands = []string{
	"search", "filter", "groups", "more", "list",
	"chart", "older", "newer", "select", "add", "close",
	"help", "exit", "quit", "q",
}

// REPL is the interactive command loop.
type REPL struct {
	out      io.Writer
	writer   backend.Writer
	manager  *session.Manager
	catalog  *catalog.Catalog
	liner    *liner.State
	chart    *session.Chart
	mode     string
	pageSize int
	wait     time.Duration
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".workoutdiary", "history")
}

// Run starts the REPL loop.
func (r *REPL) Run(ctx context.Context) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}
	defer r.saveHistory()

	fmt.Fprintf(r.out, "workoutdiary (%s source). Type 'help' for available commands.\n\n", r.mode)
	if _, err := r.manager.List().Load(ctx); err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
	} else {
		r.cmdList()
	}

	for {
		line, err := r.liner.Prompt(r.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nBye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		if done := r.exec(ctx, line); done {
			fmt.Fprintln(r.out, "Bye!")
			return nil
		}
	}
}

func (r *REPL) prompt() string {
	if r.chart != nil {
		return fmt.Sprintf("diary[%s]> ", r.chart.Exercise())
	}
	return "diary> "
}

// exec runs one command line and reports whether the REPL should exit.
func (r *REPL) exec(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch strings.ToLower(cmd) {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		r.printHelp()
	case "search":
		_, group := r.manager.List().Selection()
		err = r.search(ctx, rest, group)
	case "filter":
		text, _ := r.manager.List().Selection()
		err = r.search(ctx, text, rest)
	case "groups":
		fmt.Fprintln(r.out, strings.Join(r.catalog.Options(), "  "))
	case "more":
		_, err = r.manager.List().More(ctx)
		if err == nil {
			r.cmdList()
		}
	case "list", "ls":
		r.cmdList()
	case "chart":
		err = r.openChart(ctx, rest)
	case "older":
		err = r.navigate(ctx, +1)
	case "newer":
		err = r.navigate(ctx, -1)
	case "select":
		err = r.selectEntry(rest)
	case "add":
		err = r.add(ctx, rest)
	case "close":
		err = r.closeChart()
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
	return false
}

func (r *REPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		_, _ = r.liner.WriteHistory(f)
		f.Close()
	}
}

func (r *REPL) completer(line string) []string {
	var completions []string
	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}
	if strings.HasPrefix(lower, "filter ") {
		prefix := strings.ToUpper(strings.TrimPrefix(lower, "filter "))
		for _, g := range r.catalog.Options() {
			if strings.HasPrefix(g, prefix) {
				completions = append(completions, "filter "+g)
			}
		}
	}
	return completions
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  search [text]                  Search exercises by name")
	fmt.Fprintln(r.out, "  filter <group|ALL>             Restrict the list to a muscle group")
	fmt.Fprintln(r.out, "  groups                         Show the muscle groups")
	fmt.Fprintln(r.out, "  more                           Load the next page of the list")
	fmt.Fprintln(r.out, "  list                           Show the list again")
	fmt.Fprintln(r.out, "  chart <exercise>               Open the history chart of an exercise")
	fmt.Fprintln(r.out, "  older / newer                  Move the chart window one page")
	fmt.Fprintln(r.out, "  select <n|id>                  Inspect a chart entry")
	fmt.Fprintln(r.out, "  add <sets> [-- note]           Log a record for the charted exercise")
	fmt.Fprintln(r.out, "  close                          Close the chart")
	fmt.Fprintln(r.out, "  help                           Show this help")
	fmt.Fprintln(r.out, "  exit / quit / q                Exit")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Sets: rows of <weight>x<reps> separated by commas, sets separated by '/'.")
	fmt.Fprintln(r.out, "  add 60x5,62.5x3 / 70x2 -- felt strong")
}

// search schedules a debounced search and waits until its result lands.
func (r *REPL) search(ctx context.Context, text, group string) error {
	filters, err := r.catalog.Resolve(group)
	if err != nil {
		return err
	}
	want := models.NewQuery(text, filters, r.pageSize, false)

	list := r.manager.List()
	if err := list.Search(text, group); err != nil {
		return err
	}
	snap, ok := r.awaitList(ctx, want)
	if !ok {
		return errors.New("search did not complete in time")
	}
	if snap.Err != "" {
		return errors.New(snap.Err)
	}
	r.cmdList()
	return nil
}

// awaitList polls the list until want has been answered.
func (r *REPL) awaitList(ctx context.Context, want models.Query) (session.ListView, bool) {
	deadline := time.Now().Add(r.wait + time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		snap := r.manager.List().Snapshot()
		answered := snap.Err != "" || len(snap.Items) > 0 || !snap.HasNext
		if snap.Query.Equal(want) && snap.State == query.StateIdle.String() && answered && !r.manager.List().Pending() {
			return snap, true
		}
		if time.Now().After(deadline) {
			return snap, false
		}
		select {
		case <-ctx.Done():
			return snap, false
		case <-tick.C:
		}
	}
}

func (r *REPL) cmdList() {
	renderList(r.out, r.manager.List().Snapshot())
}

func (r *REPL) openChart(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("usage: chart <exercise>")
	}
	if r.chart != nil && r.chart.Exercise() != name {
		_ = r.manager.CloseChart(r.chart.Exercise())
	}
	c, _, err := r.manager.OpenChart(ctx, name)
	if err != nil {
		return err
	}
	r.chart = c
	renderChart(r.out, c.View(), time.Now())
	return nil
}

func (r *REPL) navigate(ctx context.Context, direction int) error {
	if r.chart == nil {
		return errors.New("no chart open")
	}
	outcome, err := r.chart.Navigate(ctx, direction)
	if err != nil {
		return err
	}
	if outcome == query.OutcomeSkipped {
		fmt.Fprintln(r.out, "Nothing further in that direction.")
		return nil
	}
	renderChart(r.out, r.chart.View(), time.Now())
	return nil
}

func (r *REPL) selectEntry(arg string) error {
	if r.chart == nil {
		return errors.New("no chart open")
	}
	id := arg
	entries := r.chart.View().Window.Entries
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(entries) {
			return fmt.Errorf("entry %d is not in the window (1-%d)", n, len(entries))
		}
		id = entries[n-1].ID
	}
	entry, err := r.chart.Select(id)
	if err != nil {
		return err
	}
	renderEntry(r.out, entry, time.Now())
	return nil
}

func (r *REPL) add(ctx context.Context, arg string) error {
	if r.chart == nil {
		return errors.New("open a chart first")
	}
	if r.writer == nil {
		return errors.New("record submission is not available")
	}
	input, note, _ := strings.Cut(arg, "--")
	sets, err := parseSets(input)
	if err != nil {
		return err
	}
	sub, err := submit.Build(r.chart.Exercise(), sets, note, time.Now())
	if errors.Is(err, submit.ErrEmptySubmission) {
		return errors.New(submit.EmptyMessage)
	}
	if err != nil {
		return err
	}
	rec, err := r.writer.AddRecord(ctx, sub)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Stored %s at %s (total %s).\n", rec.ExerciseName, sub.DateTime(), formatWeight(rec.Total()))

	if _, err := r.chart.Load(ctx); err != nil {
		return err
	}
	renderChart(r.out, r.chart.View(), time.Now())
	return nil
}

func (r *REPL) closeChart() error {
	if r.chart == nil {
		return errors.New("no chart open")
	}
	err := r.manager.CloseChart(r.chart.Exercise())
	r.chart = nil
	return err
}

// parseSets reads "60x5,62.5x3 / 70x2" into rows grouped per set. A row
// without an "x" keeps an empty repetitions field and is dropped later.
func parseSets(input string) ([][]submit.Row, error) {
	var sets [][]submit.Row
	for _, group := range strings.Split(input, "/") {
		var rows []submit.Row
		for _, field := range strings.Split(group, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			weight, reps, _ := strings.Cut(strings.ToLower(field), "x")
			rows = append(rows, submit.Row{
				Weight:      strings.TrimSpace(weight),
				Repetitions: strings.TrimSpace(reps),
			})
		}
		if len(rows) > 0 {
			sets = append(sets, rows)
		}
	}
	if len(sets) == 0 {
		return nil, errors.New(submit.EmptyMessage)
	}
	return sets, nil
}
