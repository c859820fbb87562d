// Package batch fans one Snowball operation out over many symbols.
//
// Each symbol becomes its own gateway invocation, so every call still goes
// through the shared credential pool and adaptive limiter. The worker count
// only bounds how many invocations are queued on the limiter at once;
// upstream calls remain paced one at a time.
//
// Example usage:
//
//	fetcher := batch.NewFetcher(gw, batch.DefaultConfig())
//	results, err := fetcher.FetchSymbols(ctx, "quotec", []string{"SH600000", "SZ000002"}, nil, normalize.ProfileQuotec)
//
// The fetcher:
//   - Removes duplicate and blank symbols
//   - Fills the operation's symbol parameter for each one
//   - Returns the results that succeeded alongside a joined error for the rest
//   - Stops queueing new symbols once a credential is reported expired
package batch
