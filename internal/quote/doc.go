// Package quote normalizes heterogeneous quote payloads into ticks and
// fetches single quotes on demand.
//
// Vendor payloads name the same fields differently. Normalize resolves each
// field from an ordered list of candidate keys, first match wins:
//
//	timestamp  t | timestamp | (time of receipt)
//	price      c | price | last | close
//	volume     v | volume | size
//
// A key that is present but null or not numeric counts as absent and the
// next candidate is tried. Numbers may be JSON numbers or numeric strings.
// Numeric timestamps are Unix seconds below 1e11 and Unix milliseconds
// above; string timestamps are RFC 3339 or numeric.
package quote
