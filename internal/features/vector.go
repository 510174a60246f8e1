package features

import (
	"math"
	"time"
)

// Columns maps feature column names to values.
type Columns map[string]float64

// Vector is one row of the feature table: the raw values for Date plus the
// seven-day lag window of every tracked variable.
//
// Vector is array-backed, so assigning or passing it by value yields an
// independent copy of the whole window.
type Vector struct {
	Date time.Time
	Raw  [NumVariables]float64
	// Lags[v][k-1] holds the value of v at Date-k.
	Lags [NumVariables][LagDays]float64

	Description            string
	DescriptionLag1        string
	DescriptionLag1Encoded int
}

// Lag returns the value of v at Date-k.
func (v Vector) Lag(variable Variable, k int) float64 {
	return v.Lags[variable][k-1]
}

// Column returns a numeric column by name: a raw variable, a lag column or
// the encoded description lag.
func (v Vector) Column(name string) (float64, bool) {
	ref, ok := columnIndex[name]
	if !ok {
		return 0, false
	}
	switch ref.kind {
	case kindRaw:
		return v.Raw[ref.variable], true
	case kindLag:
		return v.Lags[ref.variable][ref.lag-1], true
	default:
		return float64(v.DescriptionLag1Encoded), true
	}
}

// Shift returns the vector for date, with each variable in next pushed into
// its lag window: lag_k takes lag_(k-1) for k = 7..2 and lag_1 takes the new
// value. Variables not in next keep their lags unchanged.
func (v Vector) Shift(date time.Time, next map[Variable]float64) Vector {
	out := v
	out.Date = date
	for variable, value := range next {
		lags := &out.Lags[variable]
		for k := LagDays; k >= 2; k-- {
			lags[k-1] = lags[k-2]
		}
		lags[0] = value
	}
	return out
}

// complete reports whether every raw and lag value is non-NaN.
func (v Vector) complete() bool {
	for i := range v.Raw {
		if math.IsNaN(v.Raw[i]) {
			return false
		}
		for _, lag := range v.Lags[i] {
			if math.IsNaN(lag) {
				return false
			}
		}
	}
	return true
}
