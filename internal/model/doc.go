// Package model defines the data types shared by the pollers, reporters and ingesters.
//
// Conventions:
//   - Prices: float64 in the quote currency, as returned by the price source
//   - Timestamps: time.Time taken from the poller clock when the price arrives
//   - Tickers: case is preserved exactly as configured
package model
