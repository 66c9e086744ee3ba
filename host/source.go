// Package host connects the pipeline to whatever embeds it: the host hands
// over the raw search log and the variable manifest and is told which nodes
// the user selected.
package host

import (
	"context"
	"errors"
)

// Source supplies the two inputs of a session.
type Source interface {
	RawLog(ctx context.Context) (string, error)
	VariableManifest(ctx context.Context) (string, error)
}

// Sink receives selection notifications. Ids are selection ids (gid when the
// log carries one).
type Sink interface {
	NotifySelection(id int64) error
	NotifySelectionMany(ids []int64) error
}

// Deliver is how an asynchronous host hands a fetched text back.
type Deliver func(text string, err error)

// Fetcher starts an asynchronous fetch and calls deliver exactly once.
type Fetcher func(deliver Deliver)

// ErrNotDelivered is returned when a callback host finishes without
// delivering.
var ErrNotDelivered = errors.New("host did not deliver a result")

// Fetch runs an asynchronous fetch and waits for its delivery or ctx.
// Deliveries after the first are ignored.
func Fetch(ctx context.Context, fetch Fetcher) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	fetch(func(text string, err error) {
		select {
		case ch <- result{text, err}:
		default:
		}
	})
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CallbackSource adapts callback style fetches to Source.
type CallbackSource struct {
	Log      Fetcher
	Manifest Fetcher
}

func (s *CallbackSource) RawLog(ctx context.Context) (string, error) {
	if s.Log == nil {
		return "", ErrNotDelivered
	}
	return Fetch(ctx, s.Log)
}

func (s *CallbackSource) VariableManifest(ctx context.Context) (string, error) {
	if s.Manifest == nil {
		return "", ErrNotDelivered
	}
	return Fetch(ctx, s.Manifest)
}

// StaticSource serves fixed texts, e.g. a snapshot taken by live ingest.
type StaticSource struct {
	Log      string
	Manifest string
}

func (s StaticSource) RawLog(ctx context.Context) (string, error) {
	return s.Log, ctx.Err()
}

func (s StaticSource) VariableManifest(ctx context.Context) (string, error) {
	return s.Manifest, ctx.Err()
}
