// Package reactive wraps rxgo for the per-file ingestion pipeline.
package reactive

import (
	"context"

	"github.com/reactivex/rxgo/v2"
)

// StreamConfig holds configuration for reactive streams
type StreamConfig struct {
	WorkerCount int
}

// DefaultStreamConfig returns default configuration
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		WorkerCount: 4,
	}
}

// Stream represents a reactive data stream
type Stream struct {
	observable rxgo.Observable
	config     StreamConfig
}

// NewStream creates a new reactive stream from a channel
func NewStream(ctx context.Context, source <-chan rxgo.Item, config StreamConfig) *Stream {
	obs := rxgo.FromChannel(source, rxgo.WithContext(ctx))
	return &Stream{
		observable: obs,
		config:     config,
	}
}

// FromSlice creates a stream that emits each element of items once.
func FromSlice[T any](ctx context.Context, items []T, config StreamConfig) *Stream {
	ch := make(chan rxgo.Item, len(items))
	for _, it := range items {
		ch <- rxgo.Of(it)
	}
	close(ch)
	return NewStream(ctx, ch, config)
}

// MapWithPool applies a transformation across the configured worker pool.
// Item order is not preserved; callers that care must carry ordering keys in
// the items themselves.
func (s *Stream) MapWithPool(transform func(context.Context, interface{}) (interface{}, error)) *Stream {
	s.observable = s.observable.Map(
		transform,
		rxgo.WithPool(s.config.WorkerCount),
	)
	return s
}

// ToChannel converts the stream back to a channel
func (s *Stream) ToChannel() <-chan rxgo.Item {
	return s.observable.Observe()
}
