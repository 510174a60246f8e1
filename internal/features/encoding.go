package features

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Encoding is the label table for weather_description_lag1, fixed when the
// training table is built. Codes are positions in the sorted label list.
type Encoding struct {
	Version   string   `json:"version"`
	CodeTable string   `json:"code_table"`
	Labels    []string `json:"labels"`
}

// NewEncoding builds an encoding over the given labels. Labels are sorted and
// de-duplicated; the version is derived from their content and codeTable.
func NewEncoding(codeTable string, labels []string) *Encoding {
	set := make(map[string]bool, len(labels))
	uniq := make([]string, 0, len(labels))
	for _, l := range labels {
		if !set[l] {
			set[l] = true
			uniq = append(uniq, l)
		}
	}
	sort.Strings(uniq)

	h := sha256.Sum256([]byte(codeTable + "\n" + strings.Join(uniq, "\n")))
	return &Encoding{
		Version:   "enc-" + hex.EncodeToString(h[:4]),
		CodeTable: codeTable,
		Labels:    uniq,
	}
}

// Encode returns the integer code of label.
func (e *Encoding) Encode(label string) (int, error) {
	for code, l := range e.Labels {
		if l == label {
			return code, nil
		}
	}
	return 0, &EncodingError{Label: label, Version: e.Version}
}
