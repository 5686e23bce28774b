// Package poller implements the Ticker Poller component.
//
// The Ticker Poller:
//   - Queries the price source for every configured ticker, sequentially and in order
//   - Stamps each price with the poller clock and hands the observation to a Handler
//   - Sleeps for the configured interval after each full cycle
//   - Logs and skips tickers that fail, unless configured to fail fast
package poller
