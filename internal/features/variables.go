package features

import "fmt"

// LagDays is the width of the lag window.
const LagDays = 7

// Variable is a daily quantity eligible for lag features.
type Variable int

const (
	TemperatureMean Variable = iota
	TemperatureMax
	RelativeHumidityMean
	PrecipitationSum
	WeatherCode
	WindSpeedMean
	WindGustsMean
	SurfacePressureMean
	DaylightDuration
	SunshineDuration
	DewPointMean
	CloudCoverMean
	PressureMSLMean

	NumVariables = int(iota)
)

var variableNames = [NumVariables]string{
	TemperatureMean:      "temperature_2m_mean",
	TemperatureMax:       "temperature_2m_max",
	RelativeHumidityMean: "relative_humidity_2m_mean",
	PrecipitationSum:     "precipitation_sum",
	WeatherCode:          "weather_code",
	WindSpeedMean:        "wind_speed_10m_mean",
	WindGustsMean:        "wind_gusts_10m_mean",
	SurfacePressureMean:  "surface_pressure_mean",
	DaylightDuration:     "daylight_duration",
	SunshineDuration:     "sunshine_duration",
	DewPointMean:         "dew_point_2m_mean",
	CloudCoverMean:       "cloud_cover_mean",
	PressureMSLMean:      "pressure_msl_mean",
}

// Column names for the description columns of the feature table.
const (
	ColumnDescription            = "weather_description"
	ColumnDescriptionLag1        = "weather_description_lag1"
	ColumnDescriptionLag1Encoded = "weather_description_lag1_encoded"
)

// String returns the upstream variable name, e.g. "temperature_2m_mean".
func (v Variable) String() string {
	if v < 0 || int(v) >= NumVariables {
		return fmt.Sprintf("variable(%d)", int(v))
	}
	return variableNames[v]
}

// Variables returns every tracked variable in column order.
func Variables() []Variable {
	vars := make([]Variable, NumVariables)
	for i := range vars {
		vars[i] = Variable(i)
	}
	return vars
}

// ParseVariable looks up a tracked variable by its upstream name.
func ParseVariable(name string) (Variable, bool) {
	for i, n := range variableNames {
		if n == name {
			return Variable(i), true
		}
	}
	return 0, false
}

// LagColumn returns the column name for v at offset k, e.g. "precipitation_sum_lag3".
func LagColumn(v Variable, k int) string {
	return fmt.Sprintf("%s_lag%d", v, k)
}

type columnKind int

const (
	kindRaw columnKind = iota
	kindLag
	kindEncoded
)

type columnRef struct {
	kind     columnKind
	variable Variable
	lag      int
}

// columnIndex resolves every numeric column name of the feature table.
var columnIndex = func() map[string]columnRef {
	idx := make(map[string]columnRef, NumVariables*(LagDays+1)+1)
	for _, v := range Variables() {
		idx[v.String()] = columnRef{kind: kindRaw, variable: v}
		for k := 1; k <= LagDays; k++ {
			idx[LagColumn(v, k)] = columnRef{kind: kindLag, variable: v, lag: k}
		}
	}
	idx[ColumnDescriptionLag1Encoded] = columnRef{kind: kindEncoded}
	return idx
}()

// TableHeader returns the feature table columns in export order.
func TableHeader() []string {
	header := []string{"date"}
	for _, v := range Variables() {
		header = append(header, v.String())
	}
	for _, v := range Variables() {
		for k := 1; k <= LagDays; k++ {
			header = append(header, LagColumn(v, k))
		}
	}
	return append(header, ColumnDescription, ColumnDescriptionLag1, ColumnDescriptionLag1Encoded)
}
