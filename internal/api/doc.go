// Package api provides the REST client for the backend trading API.
//
// Market-data endpoints (keyed by instrument symbol):
//   - GET  /market-data/{symbol}/status
//   - POST /market-data/{symbol}/subscribe
//   - GET  /market-data/{symbol}/quote
//
// Dashboard endpoints:
//   - GET/POST /trades
//   - GET  /positions/{conid}/historical/{timeframe}?days=N
//   - POST /orders
//
// The push feed is a websocket served by the same backend; see package stream.
package api
