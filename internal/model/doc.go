// Package model defines shared data types used across the marketpulse daemon.
//
// Conventions:
//   - Prices: decimal.Decimal (github.com/shopspring/decimal), never floats
//   - Timestamps: time.Time, UTC on the wire, market-local inside the clock model
//   - Volumes: int64 units
//   - Event IDs: uuid strings, one per published envelope
package model
