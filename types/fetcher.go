package types

import "context"

// Fetcher is the contract between the store and whatever produces confirmed values.
type Fetcher interface {

	/*
		Fetch is called by Store.Fetch when the caller wants the confirmed value for a key.
		1. Store marks the key as fetching and remembers the fetch generation
		2. Store calls Fetch(key)
		3. Fetcher talks to the network layer
		4. Store writes the result ONLY if the generation is still current
	*/
	Fetch(ctx context.Context, key Key) (Value, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, key Key) (Value, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, key Key) (Value, error) {
	return f(ctx, key)
}
