package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"barkeep/internal/domain"
)

// Rejection reasons recorded for rows excluded during validation.
const (
	ReasonUnparseableDate   = "unparseable_date"
	ReasonUnparseableNumber = "unparseable_number"
	ReasonOHLCInvariant     = "ohlc_invariant_violation"
	ReasonMissingField      = "missing_required_field"
)

// Rejection records one excluded row. Rejections are tallied, never fatal:
// the row simply drops out of its ticker's series.
type Rejection struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// dateLayouts are the accepted date formats, normalized to DateLayout on
// output. Anything else is an unparseable_date rejection, not a crash.
var dateLayouts = []string{
	domain.DateLayout,
	domain.TimestampLayout,
	"2006-01-02T15:04:05",
}

// ValidateRow checks one raw record against the column mapping and produces
// a validated Bar plus the raw ticker cell, or the Rejection that excludes
// the row. The rules:
//   - date must parse under one of dateLayouts;
//   - when a ticker column exists its cell must be non-empty;
//   - open/high/low/close must all be present and parse to positive finite
//     numbers;
//   - high must be >= open, close and low; low must be <= open and close;
//   - volume, when the column exists and the cell is non-empty, must parse
//     to a non-negative finite number (an empty cell leaves Volume unset).
func ValidateRow(m Mapping, record []string, row int) (domain.Bar, string, *Rejection) {
	reject := func(reason string) (domain.Bar, string, *Rejection) {
		return domain.Bar{}, "", &Rejection{Row: row, Reason: reason}
	}

	dateRaw, ok := cell(record, m.Date)
	if !ok {
		return reject(ReasonMissingField)
	}
	date, ok := parseDate(dateRaw)
	if !ok {
		return reject(ReasonUnparseableDate)
	}

	ticker := ""
	if m.HasTicker() {
		ticker, ok = cell(record, m.Ticker)
		if !ok {
			return reject(ReasonMissingField)
		}
	}

	var prices [4]float64
	for i, idx := range [4]int{m.Open, m.High, m.Low, m.Close} {
		raw, ok := cell(record, idx)
		if !ok {
			return reject(ReasonMissingField)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return reject(ReasonUnparseableNumber)
		}
		prices[i] = v
	}
	open, high, low, close := prices[0], prices[1], prices[2], prices[3]

	if high < open || high < close || high < low || low > open || low > close {
		return reject(ReasonOHLCInvariant)
	}

	bar := domain.Bar{Date: date, Open: open, High: high, Low: low, Close: close}

	if raw, ok := cell(record, m.Volume); m.HasVolume() && ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return reject(ReasonUnparseableNumber)
		}
		vol := int64(v)
		bar.Volume = &vol
	}

	return bar, ticker, nil
}

// cell returns the trimmed value at idx, reporting false for absent columns,
// short records, and empty cells.
func cell(record []string, idx int) (string, bool) {
	if idx < 0 || idx >= len(record) {
		return "", false
	}
	v := strings.TrimSpace(record[idx])
	return v, v != ""
}

// parseDate normalizes an accepted date string to YYYY-MM-DD.
func parseDate(raw string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(domain.DateLayout), true
		}
	}
	return "", false
}
