// Package model defines shared data types used across marketwatch.
//
// Conventions:
//   - Prices and volumes: shopspring decimal, nil when the source did not provide one
//   - Timestamps: time.Time (UTC) for ticks and bars
//   - IDs: string symbols for instruments, string conids for positions
package model
