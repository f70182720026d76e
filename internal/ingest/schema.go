// Package ingest converts heterogeneous CSV exports into canonical
// per-ticker series. It covers header schema detection, per-row validation,
// and the file-level engine that groups validated bars by ticker. Everything
// here is pure and in-memory; persistence belongs to the caller.
package ingest

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrDateColumnMissing is returned when a CSV header carries no date alias.
// Without dates no partial success is possible, so the whole file fails.
var ErrDateColumnMissing = errors.New("date column not found")

// Field identifies one canonical column of the normalized schema.
type Field int

// Canonical fields, in alias-resolution order.
const (
	FieldDate Field = iota
	FieldTicker
	FieldOpen
	FieldHigh
	FieldLow
	FieldClose
	FieldVolume
)

// fieldAliases is the fixed alias table. Per field the aliases are checked in
// the listed order and the first one present in the header wins, so richer
// aliases never shadow simpler ones. Matching is case-insensitive.
var fieldAliases = []struct {
	field   Field
	aliases []string
}{
	{FieldDate, []string{"date", "datetime"}},
	{FieldTicker, []string{"ticker", "symbol"}},
	{FieldOpen, []string{"open", "o"}},
	{FieldHigh, []string{"high", "h"}},
	{FieldLow, []string{"low", "l"}},
	{FieldClose, []string{"close", "adj close", "c"}},
	{FieldVolume, []string{"volume", "vol"}},
}

// Mapping holds the resolved source column index for each canonical field.
// Absent optional columns are -1.
type Mapping struct {
	Date   int
	Ticker int
	Open   int
	High   int
	Low    int
	Close  int
	Volume int
}

// HasTicker reports whether the source carries a ticker column.
func (m Mapping) HasTicker() bool { return m.Ticker >= 0 }

// HasVolume reports whether the source carries a volume column.
func (m Mapping) HasVolume() bool { return m.Volume >= 0 }

// DetectSchema resolves a CSV header row into a Mapping. The only terminal
// condition is a missing date column; rows missing other required fields are
// rejected individually at validation time.
func DetectSchema(header []string) (Mapping, error) {
	lowered := make([]string, len(header))
	for i, h := range header {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	m := Mapping{Date: -1, Ticker: -1, Open: -1, High: -1, Low: -1, Close: -1, Volume: -1}
	for _, fa := range fieldAliases {
		idx := -1
		for _, alias := range fa.aliases {
			for col, h := range lowered {
				if h == alias {
					idx = col
					break
				}
			}
			if idx >= 0 {
				break
			}
		}
		switch fa.field {
		case FieldDate:
			m.Date = idx
		case FieldTicker:
			m.Ticker = idx
		case FieldOpen:
			m.Open = idx
		case FieldHigh:
			m.High = idx
		case FieldLow:
			m.Low = idx
		case FieldClose:
			m.Close = idx
		case FieldVolume:
			m.Volume = idx
		}
	}

	if m.Date < 0 {
		return m, ErrDateColumnMissing
	}
	return m, nil
}

// TickerFromFilename derives a ticker for sources without a ticker column:
// the file's base name, extension dropped, uppercased, with every
// non-alphanumeric character removed. Pure so it can be tested without I/O.
func TickerFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range strings.ToUpper(base) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
