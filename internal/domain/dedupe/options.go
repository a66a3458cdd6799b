package dedupe

// Option applies a configuration option to the in-memory guard.
type Option func(*inMemoryDeduper)

// WithMaxSize caps the number of ids tracked at once.
// maxSize <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
