package scraper

import (
	"context"
	"time"

	"github.com/FranksOps/modfinder/internal/storage"
)

type contextKey string

const labelsKey contextKey = "fetch_labels"

// Labels describe why a request was made. They travel in the request
// context so the Fetcher stays unaware of the crawl structure.
type Labels struct {
	Stage   storage.Stage
	Keyword string
	Engine  string
}

// WithLabels attaches l to ctx.
func WithLabels(ctx context.Context, l Labels) context.Context {
	return context.WithValue(ctx, labelsKey, l)
}

// LabelsFrom returns the labels attached to ctx, or the zero value.
func LabelsFrom(ctx context.Context) Labels {
	l, _ := ctx.Value(labelsKey).(Labels)
	return l
}

// Exchange is one completed (or failed) request. Exactly one of Page and Err
// is set.
type Exchange struct {
	Labels
	Method   string
	URL      string
	Page     *Page
	Err      error
	Start    time.Time
	Duration time.Duration
}

// Observer receives every exchange a Fetcher performs.
type Observer interface {
	Observe(ctx context.Context, ex Exchange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ex Exchange)

func (f ObserverFunc) Observe(ctx context.Context, ex Exchange) { f(ctx, ex) }
