package models

import "context"

// SnapshotFetcher retrieves the current market snapshot for symbol priced in convert.
// A failed fetch is a *FetchRejectedError, an unusable body a *DecodeError.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, symbol, convert string) (*MarketSnapshot, error)
}
