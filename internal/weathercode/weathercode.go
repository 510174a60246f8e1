package weathercode

import "sort"

// Version identifies the code table. Descriptions generated at training time
// and resolved at inference time must come from the same version.
const Version = "wmo-4677-v1"

// Unknown is returned for codes missing from the table.
const Unknown = "Unknown"

// table maps WMO weather interpretation codes to descriptions.
var table = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// Resolver turns weather codes into descriptions.
type Resolver interface {
	Describe(code int) string
}

// Table is the built-in WMO resolver.
type Table struct{}

// Describe returns the description for code, or Unknown.
func (Table) Describe(code int) string {
	return Describe(code)
}

// Describe returns the description for code, or Unknown.
func Describe(code int) string {
	if desc, ok := table[code]; ok {
		return desc
	}
	return Unknown
}

// Lookup reports whether code is in the table.
func Lookup(code int) (string, bool) {
	desc, ok := table[code]
	return desc, ok
}

// Codes returns every known code in ascending order.
func Codes() []int {
	codes := make([]int, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}
