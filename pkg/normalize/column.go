package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Table is the columnar output shape for list-valued sources.
type Table struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// Transform is the per-column conversion applied to an extracted value.
type Transform int

const (
	TransformRaw Transform = iota
	TransformRound
	TransformScale
	TransformPercent // value already in percent, rounded
	TransformRatio   // fraction, multiplied by 100 and rounded
	TransformDate
	TransformTime
	TransformDatetime
)

// Column maps one source field to one output column.
type Column struct {
	Name      string
	Path      string // gjson path relative to the row or record
	Transform Transform
	Scale     Scale
}

func colRaw(name, path string) Column { return Column{Name: name, Path: path} }

func colRound(name, path string) Column {
	return Column{Name: name, Path: path, Transform: TransformRound}
}

func colScaled(name, path string, s Scale) Column {
	return Column{Name: name, Path: path, Transform: TransformScale, Scale: s}
}

func colPercent(name, path string) Column {
	return Column{Name: name, Path: path, Transform: TransformPercent}
}

func colRatio(name, path string) Column {
	return Column{Name: name, Path: path, Transform: TransformRatio}
}

func colDate(name, path string) Column {
	return Column{Name: name, Path: path, Transform: TransformDate}
}

func colTime(name, path string) Column {
	return Column{Name: name, Path: path, Transform: TransformTime}
}

func colDatetime(name, path string) Column {
	return Column{Name: name, Path: path, Transform: TransformDatetime}
}

// label returns the column header for a resolved scale.
func (c Column) label(s Scale) string {
	switch c.Transform {
	case TransformScale:
		return c.Name + s.Suffix()
	case TransformPercent, TransformRatio:
		return c.Name + "(%)"
	default:
		return c.Name
	}
}

// extract converts v according to the column transform. Missing or null
// values yield nil. Values that cannot be converted pass through unchanged.
func (c Column) extract(v gjson.Result, s Scale, loc *time.Location) any {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}

	switch c.Transform {
	case TransformRound, TransformPercent:
		if f, ok := numeric(v); ok {
			return round2(f)
		}
	case TransformRatio:
		if f, ok := numeric(v); ok {
			return round2(f * 100)
		}
	case TransformScale:
		if f, ok := numeric(v); ok {
			return Format(f, s)
		}
	case TransformDate, TransformTime, TransformDatetime:
		if ts, ok := stamp(v, loc); ok {
			return c.slice(ts)
		}
	}
	return v.Value()
}

func (c Column) slice(ts string) string {
	switch c.Transform {
	case TransformDate:
		if len(ts) >= 10 {
			return ts[:10]
		}
	case TransformTime:
		if len(ts) >= 19 {
			return ts[11:19]
		}
	}
	return ts
}

// numeric reads a JSON number or a numeric string.
func numeric(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// stamp returns a "2006-01-02 15:04:05" rendering of v. Strings are assumed
// to be canonicalized already.
func stamp(v gjson.Result, loc *time.Location) (string, bool) {
	switch v.Type {
	case gjson.String:
		return v.Str, true
	case gjson.Number:
		return formatEpoch(v.Num, loc)
	}
	return "", false
}

// buildTable extracts cols from every row. Auto-scaled columns resolve one
// scale from the largest magnitude in the column so every row shares a unit.
func buildTable(rows []gjson.Result, cols []Column, loc *time.Location) Table {
	scales := make([]Scale, len(cols))
	for i, c := range cols {
		scales[i] = c.Scale
		if c.Transform != TransformScale || c.Scale != ScaleAuto {
			continue
		}
		var peak float64
		for _, row := range rows {
			if f, ok := numeric(row.Get(c.Path)); ok && math.Abs(f) > peak {
				peak = math.Abs(f)
			}
		}
		scales[i] = Resolve(peak)
	}

	t := Table{
		Columns: make([]string, len(cols)),
		Data:    make([][]any, 0, len(rows)),
	}
	for i, c := range cols {
		t.Columns[i] = c.label(scales[i])
	}
	for _, row := range rows {
		out := make([]any, len(cols))
		for i, c := range cols {
			out[i] = c.extract(row.Get(c.Path), scales[i], loc)
		}
		t.Data = append(t.Data, out)
	}
	return t
}

// buildRecord extracts cols from a single object. Auto-scaled fields are keyed
// by the label of the scale their own value resolves to.
func buildRecord(obj gjson.Result, cols []Column, loc *time.Location) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		v := obj.Get(c.Path)
		s := c.Scale
		if c.Transform == TransformScale && s == ScaleAuto {
			if f, ok := numeric(v); ok {
				s = Resolve(f)
			} else {
				s = ScaleRaw
			}
		}
		out[c.label(s)] = c.extract(v, s, loc)
	}
	return out
}
