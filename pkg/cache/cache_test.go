package cache

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.geojson")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != Hash([]byte("hello")) {
		t.Error("HashFile should match Hash of the contents")
	}
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("HashFile should fail for a missing file")
	}
}

func TestHashJSON(t *testing.T) {
	a, err := HashJSON(map[string]any{"b": 1, "a": "x"})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := HashJSON(map[string]any{"a": "x", "b": 1})
	if a != b {
		t.Error("HashJSON should not depend on map order")
	}
	if _, err := HashJSON(func() {}); err == nil {
		t.Error("HashJSON should fail for unencodable values")
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	lk1 := k.LabelsKey("input123", LabelsKeyOpts{ConfigHash: "c1", StyleHash: "s1"})
	lk2 := k.LabelsKey("input123", LabelsKeyOpts{ConfigHash: "c2", StyleHash: "s1"})
	if lk1 == lk2 {
		t.Error("Different LabelsKeyOpts should produce different keys")
	}
	if !strings.HasPrefix(lk1, "labels:") {
		t.Errorf("LabelsKey unexpected: %s", lk1)
	}
	if lk1 != k.LabelsKey("input123", LabelsKeyOpts{ConfigHash: "c1", StyleHash: "s1"}) {
		t.Error("LabelsKey should be deterministic")
	}

	ak1 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "svg"})
	ak2 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "geojson"})
	if ak1 == ak2 {
		t.Error("Different ArtifactKeyOpts should produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "project:42:")

	key := scoped.LabelsKey("abc", LabelsKeyOpts{})
	if !strings.HasPrefix(key, "project:42:labels:") {
		t.Errorf("ScopedKeyer LabelsKey should be prefixed: %s", key)
	}
	key = scoped.ArtifactKey("abc", ArtifactKeyOpts{Format: "svg"})
	if !strings.HasPrefix(key, "project:42:artifact:") {
		t.Errorf("ScopedKeyer ArtifactKey should be prefixed: %s", key)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	want := "prefix:" + NewDefaultKeyer().LabelsKey("x", LabelsKeyOpts{})
	if key := scoped.LabelsKey("x", LabelsKeyOpts{}); key != want {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, hit, err := c.Get(ctx, "labels:a"); hit || err != nil {
		t.Fatalf("empty cache Get = hit %v, err %v", hit, err)
	}
	if err := c.Set(ctx, "labels:a", []byte("payload"), time.Hour); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "labels:a")
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}

	// Expired entries are misses and get removed.
	if err := c.Set(ctx, "labels:old", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "labels:old"); hit {
		t.Error("expired entry should miss")
	}

	// Corrupt entries are misses.
	if err := os.WriteFile(c.path("labels:bad"), []byte("{"), 0o644); err == nil {
		if _, hit, _ := c.Get(ctx, "labels:bad"); hit {
			t.Error("corrupt entry should miss")
		}
	}

	if err := c.Delete(ctx, "labels:a"); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, "labels:a"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}

	for _, k := range []string{"k1", "k2", "k3"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil || n != 3 {
		t.Errorf("Clear() = %d, %v, want 3", n, err)
	}
	if _, hit, _ := c.Get(ctx, "k1"); hit {
		t.Error("entry survived Clear")
	}
}

var errBadValue = errors.New("bad value")

type fakeRedis struct {
	data  map[string][]byte
	fails int
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.fails > 0 {
		f.fails--
		return redis.NewStringResult("", &net.OpError{Op: "read", Err: errors.New("connection reset")})
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisCache(t *testing.T) {
	retryDelay = time.Millisecond
	defer func() { retryDelay = 200 * time.Millisecond }()

	ctx := context.Background()
	fake := &fakeRedis{data: map[string][]byte{}}
	c := newRedisCache(fake, "cartolabel:")

	if _, hit, err := c.Get(ctx, "labels:a"); hit || err != nil {
		t.Fatalf("miss: hit %v, err %v", hit, err)
	}
	if err := c.Set(ctx, "labels:a", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.data["cartolabel:labels:a"]; !ok {
		t.Error("key should carry the prefix")
	}

	fake.fails = 1
	data, hit, err := c.Get(ctx, "labels:a")
	if err != nil || !hit || string(data) != "v" {
		t.Errorf("Get after transient failure = %q, %v, %v", data, hit, err)
	}

	fake.fails = 5
	if _, _, err := c.Get(ctx, "labels:a"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("persistent failure error = %v, want ErrUnavailable", err)
	}
	fake.fails = 0

	if err := c.Delete(ctx, "labels:a"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "labels:a"); hit {
		t.Error("deleted key should miss")
	}
}

func TestRetryableError(t *testing.T) {
	// Retryable(nil) returns nil
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	// Non-nil error is wrapped
	err := Retryable(ErrUnavailable)
	if err == nil {
		t.Fatal("Retryable should return wrapped error")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}

	// Error message is preserved
	if err.Error() != ErrUnavailable.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}

	// Non-wrapped errors are not retryable
	if IsRetryable(errBadValue) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	// Success on first try
	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should call once: %d", calls)
	}

	// Non-retryable error stops immediately
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return errBadValue
	})
	if err != errBadValue {
		t.Errorf("Should return non-retryable error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should not retry non-retryable error: %d", calls)
	}

	// Retryable error triggers retries
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrUnavailable)
		}
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("Should retry once: %d", calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(ErrUnavailable)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}
