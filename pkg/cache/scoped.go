package cache

// ScopedKeyer prefixes every key from an inner Keyer, giving each tenant of
// a shared backend its own namespace.
//
//	serverKeyer := NewScopedKeyer(nil, "forestplot:serve:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means
// the DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) RowsKey(dataHash string, opts RowsKeyOpts) string {
	return k.prefix + k.inner.RowsKey(dataHash, opts)
}

func (k *ScopedKeyer) ArtifactKey(rowsHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(rowsHash, opts)
}
