// Package analytics derives the windowed per-record metrics that drive the
// exercise history chart.
package analytics

import (
	"strconv"
	"time"

	"github.com/thebtf/workoutdiary/pkg/models"
)

const day = 24 * time.Hour

// Entry is the derived view of one record inside a window.
type Entry struct {
	Date time.Time `json:"date"`
	ID   string    `json:"id"`
	Note string    `json:"note,omitempty"`
	// AggregateTotal is the summed weight over every repetition of every set.
	AggregateTotal float64 `json:"aggregate_total"`
	// PeakValue is the heaviest single repetition.
	PeakValue float64 `json:"peak_value"`
	// PeakCount is the largest number of repetitions at PeakValue within
	// one set.
	PeakCount int `json:"peak_count"`
	// MaxRepetitions is the length of the longest set.
	MaxRepetitions int `json:"max_repetitions"`
	// PercentChange is the change of AggregateTotal against the previous
	// entry of the window, in percent.
	PercentChange float64 `json:"percent_change"`
	// ElapsedDays is the number of whole days since the previous entry.
	ElapsedDays int `json:"elapsed_days"`
}

// PercentLabel renders PercentChange with two decimals, e.g. "-33.33%".
func (e Entry) PercentLabel() string {
	return FormatPercent(e.PercentChange)
}

// FormatPercent renders v with two decimals and a percent sign.
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

// Compute slices items[offset:offset+size], reverses the slice so it runs
// oldest to newest (items arrive newest first) and derives one Entry per
// record. A short tail yields fewer entries; it never fails. items is not
// modified.
func Compute(items []models.Record, offset, size int) []Entry {
	if offset < 0 {
		offset = 0
	}
	if size <= 0 || offset >= len(items) {
		return []Entry{}
	}
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	slice := items[offset:end]

	entries := make([]Entry, 0, len(slice))
	for i := len(slice) - 1; i >= 0; i-- {
		entries = append(entries, entryFor(slice[i]))
	}

	for i := 1; i < len(entries); i++ {
		prev, cur := &entries[i-1], &entries[i]
		if prev.AggregateTotal != 0 {
			cur.PercentChange = (cur.AggregateTotal - prev.AggregateTotal) / prev.AggregateTotal * 100
		}
		cur.ElapsedDays = int(cur.Date.Sub(prev.Date) / day)
	}
	return entries
}

func entryFor(r models.Record) Entry {
	e := Entry{
		ID:   r.ID,
		Date: r.Date,
		Note: r.Note,
	}
	found := false
	for _, s := range r.Sets {
		e.AggregateTotal += s.Total()
		n := len(s.Repetitions)
		if n > e.MaxRepetitions {
			e.MaxRepetitions = n
		}
		peak, ok := s.Max()
		if !ok {
			continue
		}
		atPeak := countEqual(s.Repetitions, peak)
		switch {
		case !found || peak > e.PeakValue:
			e.PeakValue = peak
			e.PeakCount = atPeak
			found = true
		case peak == e.PeakValue && atPeak > e.PeakCount:
			e.PeakCount = atPeak
		}
	}
	return e
}

// countEqual returns how many weights equal v.
func countEqual(weights []float64, v float64) int {
	n := 0
	for _, w := range weights {
		if w == v {
			n++
		}
	}
	return n
}

// Window is a computed, offset-addressed view of a record cache.
type Window struct {
	Entries []Entry `json:"entries"`
	Offset  int     `json:"offset"`
	Size    int     `json:"size"`
}

// NewWindow computes the window of size entries starting at offset.
func NewWindow(items []models.Record, offset, size int) Window {
	return Window{
		Offset:  offset,
		Size:    size,
		Entries: Compute(items, offset, size),
	}
}

// Lookup returns the entry with the given record id.
func (w Window) Lookup(id string) (Entry, bool) {
	for _, e := range w.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}
