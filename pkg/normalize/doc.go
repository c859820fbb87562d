// Package normalize turns raw Snowball payloads into a compact presentation form.
//
// Normalization runs two passes:
//
//  1. Timestamp canonicalization. Every map key equal to "timestamp" or ending
//     in "_date" whose value is a number above 1e12 (milliseconds) or 1e9
//     (seconds) is rewritten as "2006-01-02 15:04:05" in the configured
//     location. Smaller values are left untouched. This is a heuristic: a
//     non-timestamp integer above 1e9 under a matching key is misread as a time.
//
//  2. Profile compaction. A named Profile extracts a fixed set of fields from
//     the document, rescales amounts to 万 (1e4) or 亿 (1e8) and emits either a
//     flat record or a Table of columns and rows.
//
// Normalization never fails. Invalid JSON is returned as a string and a
// document that does not have the shape a profile expects is returned with only
// the first pass applied.
//
// # Usage
//
//	n := normalize.New(normalize.WithLocation(shanghai))
//
//	out := n.Normalize(payload, normalize.ProfileKline)
//	if t, ok := out.(normalize.Table); ok {
//		fmt.Println(t.Columns)
//	}
package normalize
