package cache

// ScopedKeyer wraps a Keyer with a prefix so that several tenants or map
// projects can share one cache backend.
//
// Example usage:
//
//	projectKeyer := NewScopedKeyer(NewDefaultKeyer(), "project:harbour:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// LabelsKey generates a prefixed placement key.
func (k *ScopedKeyer) LabelsKey(inputHash string, opts LabelsKeyOpts) string {
	return k.prefix + k.inner.LabelsKey(inputHash, opts)
}

// ArtifactKey generates a prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(labelsHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(labelsHash, opts)
}
