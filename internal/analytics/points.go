package analytics

// DateLayout is the axis label format of chart points.
const DateLayout = "2006-01-02"

// Point is one drawable point of the history chart.
type Point struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Points returns the drawable points of the window, oldest first.
// Values are the aggregate totals.
func (w Window) Points() []Point {
	points := make([]Point, 0, len(w.Entries))
	for _, e := range w.Entries {
		points = append(points, Point{
			ID:    e.ID,
			Label: e.Date.Format(DateLayout),
			Value: e.AggregateTotal,
		})
	}
	return points
}

// Domain returns the value axis bounds: the min and max aggregate totals
// widened by 20% of their spread on each side. An empty window returns 0, 0.
func (w Window) Domain() (lo, hi float64) {
	if len(w.Entries) == 0 {
		return 0, 0
	}
	lo, hi = w.Entries[0].AggregateTotal, w.Entries[0].AggregateTotal
	for _, e := range w.Entries[1:] {
		if e.AggregateTotal < lo {
			lo = e.AggregateTotal
		}
		if e.AggregateTotal > hi {
			hi = e.AggregateTotal
		}
	}
	margin := 0.2 * (hi - lo)
	return lo - margin, hi + margin
}
