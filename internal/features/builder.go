package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/weathercode"
)

// Table is the derived feature table, one complete row per date.
type Table struct {
	Rows     []Vector
	Encoding *Encoding
}

// Latest returns the row with the maximum date.
func (t *Table) Latest() (Vector, bool) {
	if t == nil || len(t.Rows) == 0 {
		return Vector{}, false
	}
	return t.Rows[len(t.Rows)-1], true
}

// Builder derives lag feature vectors from daily observations using a fixed
// description encoding.
type Builder struct {
	resolver weathercode.Resolver
	encoding *Encoding
}

func NewBuilder(resolver weathercode.Resolver, encoding *Encoding) *Builder {
	return &Builder{resolver: resolver, encoding: encoding}
}

// FitEncoding builds the description encoding for a training history: the
// distinct lag-1 descriptions of every row that survives the drop rule.
func FitEncoding(obs []models.DailyObservation, resolver weathercode.Resolver) (*Encoding, error) {
	hist, err := newHistory(obs)
	if err != nil {
		return nil, err
	}

	var labels []string
	for _, date := range hist.dates {
		row, reason := hist.vector(date, resolver)
		if reason != "" {
			continue
		}
		labels = append(labels, row.DescriptionLag1)
	}
	if len(labels) == 0 {
		return nil, &InsufficientHistoryError{Reason: fmt.Sprintf("no date in %d observations has %d complete prior days", len(obs), LagDays)}
	}
	return NewEncoding(weathercode.Version, labels), nil
}

// Build derives every complete row of the history. Dates missing any of the
// seven prior days, or holding a null value, are dropped.
func (b *Builder) Build(obs []models.DailyObservation) (*Table, error) {
	if b.encoding == nil {
		return nil, errors.New("build features: no description encoding")
	}
	hist, err := newHistory(obs)
	if err != nil {
		return nil, err
	}

	table := &Table{Encoding: b.encoding}
	for _, date := range hist.dates {
		row, reason := hist.vector(date, b.resolver)
		if reason != "" {
			continue
		}
		if row.DescriptionLag1Encoded, err = b.encoding.Encode(row.DescriptionLag1); err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Seed returns the vector for the latest date in the history, the starting
// point of a rollout.
func (b *Builder) Seed(obs []models.DailyObservation) (Vector, error) {
	if b.encoding == nil {
		return Vector{}, errors.New("seed features: no description encoding")
	}
	hist, err := newHistory(obs)
	if err != nil {
		return Vector{}, err
	}
	if len(hist.dates) == 0 {
		return Vector{}, &InsufficientHistoryError{Reason: "no observations"}
	}

	latest := hist.dates[len(hist.dates)-1]
	row, reason := hist.vector(latest, b.resolver)
	if reason != "" {
		return Vector{}, &InsufficientHistoryError{Date: latest, Reason: reason}
	}
	if row.DescriptionLag1Encoded, err = b.encoding.Encode(row.DescriptionLag1); err != nil {
		return Vector{}, err
	}
	return row, nil
}

// history indexes tracked values by calendar date.
type history struct {
	dates  []time.Time
	values map[time.Time]*[NumVariables]float64
}

func newHistory(obs []models.DailyObservation) (*history, error) {
	h := &history{values: make(map[time.Time]*[NumVariables]float64, len(obs))}
	for _, o := range obs {
		date := models.DateOnly(o.Date)
		if _, dup := h.values[date]; dup {
			return nil, fmt.Errorf("duplicate observation for %s", date.Format(time.DateOnly))
		}
		var vals [NumVariables]float64
		for _, v := range Variables() {
			val, ok := o.Values[v.String()]
			if !ok {
				return nil, &MissingVariableError{Variable: v.String(), Date: date}
			}
			vals[v] = val
		}
		h.values[date] = &vals
		h.dates = append(h.dates, date)
	}
	sort.Slice(h.dates, func(i, j int) bool { return h.dates[i].Before(h.dates[j]) })
	return h, nil
}

// vector assembles the row for date. A non-empty reason explains why the row
// is incomplete.
func (h *history) vector(date time.Time, resolver weathercode.Resolver) (Vector, string) {
	today := h.values[date]
	row := Vector{Date: date, Raw: *today}

	for k := 1; k <= LagDays; k++ {
		prior, ok := h.values[date.AddDate(0, 0, -k)]
		if !ok {
			return Vector{}, fmt.Sprintf("no observation for %s (lag %d)", date.AddDate(0, 0, -k).Format(time.DateOnly), k)
		}
		for v := range prior {
			row.Lags[v][k-1] = prior[v]
		}
	}
	if !row.complete() {
		return Vector{}, "null value in window"
	}

	row.Description = resolver.Describe(codeOf(row.Raw[WeatherCode]))
	row.DescriptionLag1 = resolver.Describe(codeOf(row.Lags[WeatherCode][0]))
	return row, ""
}

func codeOf(v float64) int {
	return int(math.Round(v))
}

// WriteCSV writes the table in the training export layout.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TableHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, 0, 1+NumVariables*(LagDays+1)+3)
	for _, row := range t.Rows {
		record = record[:0]
		record = append(record, row.Date.Format(time.DateOnly))
		for _, v := range Variables() {
			record = append(record, formatFloat(row.Raw[v]))
		}
		for _, v := range Variables() {
			for k := 1; k <= LagDays; k++ {
				record = append(record, formatFloat(row.Lag(v, k)))
			}
		}
		record = append(record, row.Description, row.DescriptionLag1, strconv.Itoa(row.DescriptionLag1Encoded))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", row.Date.Format(time.DateOnly), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
