package cache

import "github.com/jonboulle/clockwork"

// Observer receives cache events, typically to export them as metrics.
type Observer interface {
	CacheHit(cache string)
	CacheMiss(cache string)
	CacheEvicted(cache string, n int)
	CacheSize(cache string, n int)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)          {}
func (nopObserver) CacheMiss(string)         {}
func (nopObserver) CacheEvicted(string, int) {}
func (nopObserver) CacheSize(string, int)    {}

type options struct {
	name     string
	clock    clockwork.Clock
	observer Observer
}

// Option configures a Manager or QueryCache.
type Option func(*options)

// WithClock sets the clock used for timestamps and expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithObserver reports hits, misses, evictions and size.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithName sets the cache label passed to the Observer.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func buildOptions(defaultName string, opts []Option) options {
	o := options{
		name:     defaultName,
		clock:    clockwork.NewRealClock(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
