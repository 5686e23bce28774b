// Package quote provides the price sources the pollers read from.
//
// Providers:
//   - yahoo: Yahoo Finance quotes through github.com/piquette/finance-go (no key)
//   - finnhub: REST client for https://finnhub.io/api/v1 (X-Finnhub-Token)
//
// Every provider answers the same question: the current regular-market price
// of one ticker. A ticker the provider does not know yields ErrUnknownTicker;
// a known ticker without a tradable price yields ErrNoPrice.
package quote
