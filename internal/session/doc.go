// Package session answers whether an instrument's home exchange is open.
//
// Two probes are provided. APIProbe asks the backend REST API. CalendarProbe
// answers offline from exchange calendars keyed by ISO 10383 MIC, mapping a
// symbol's suffix (".L", ".T", ...) to its venue and defaulting to XNYS.
//
// A probe never substitutes a default status: any failure is returned as an
// error and the caller decides how to treat it.
package session
