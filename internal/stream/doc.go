// Package stream maintains a single push connection to the market-data feed
// and delivers normalized ticks for one symbol.
//
// A Conn is single-use. Any transport failure, including a normal close by
// the server or a stale heartbeat, is reported through the error handler
// exactly once and the Conn is dead afterwards. Reconnecting is the caller's
// decision.
package stream
