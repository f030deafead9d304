package store

// Option applies a configuration option to the BadgerStore.
type Option func(*BadgerStore)

// WithPath sets the on-disk directory for the database files.
func WithPath(path string) Option {
	return func(s *BadgerStore) {
		if path != "" {
			s.path = path
		}
	}
}

// WithInMemory enables in-memory mode (no disk persistence). Useful for
// testing.
func WithInMemory() Option {
	return func(s *BadgerStore) {
		s.inMemory = true
	}
}
