// Package server exposes the market-data controller and the trading proxy
// to the dashboard over HTTP.
//
// Routes:
//
//	GET  /health
//	POST /api/view                                  select the viewed instrument
//	GET  /api/market-data                           current controller snapshot
//	GET  /api/market-data/ws                        snapshot on connect and on every change
//	GET  /api/trades
//	POST /api/trades
//	GET  /api/positions/:conid/historical/:timeframe?days=N
//	POST /api/orders
package server
