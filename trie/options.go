package trie

// Option configures a table at construction.
type Option func(*options)

type options struct {
	grow bool
}

// Growable lets the node store double when it fills up instead of failing
// with ErrCapacityExceeded. The capacity passed to the constructor becomes
// the initial size.
func Growable() Option {
	return func(o *options) { o.grow = true }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
