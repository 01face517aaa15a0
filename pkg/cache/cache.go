// Package cache stores placement results and rendered outputs.
//
// Everything cached is keyed by content: the hash of the input features,
// the configuration, the style and the avoidance layers. A changed input
// therefore never hits a stale entry and entries need no invalidation
// beyond their TTL.
//
// Three backends implement [Cache]: [FileCache] for the CLI, [RedisCache]
// for the HTTP service, and [NullCache] to disable caching.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with expiry.
type Cache interface {
	// Get returns the value for key and whether it was found. A miss is
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// LabelsKey is the key of a placement result.
	LabelsKey(inputHash string, opts LabelsKeyOpts) string

	// ArtifactKey is the key of a rendered output of a placement result.
	ArtifactKey(labelsHash string, opts ArtifactKeyOpts) string
}

// LabelsKeyOpts are the placement inputs other than the features.
type LabelsKeyOpts struct {
	ConfigHash    string `json:"config"`
	StyleHash     string `json:"style"`
	AvoidanceHash string `json:"avoidance,omitempty"`
}

// ArtifactKeyOpts select one rendered output.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
	// SourceHash is set for outputs that draw the features too.
	SourceHash string `json:"source,omitempty"`
}

// DefaultKeyer builds keys as "prefix:sha256(parts)".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LabelsKey implements Keyer.
func (DefaultKeyer) LabelsKey(inputHash string, opts LabelsKeyOpts) string {
	return hashKey("labels", inputHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(labelsHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", labelsHash, opts)
}
