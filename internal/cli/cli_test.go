package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cartolabel/pkg/cache"
	"github.com/matzehuels/cartolabel/pkg/config"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")

	dir, err := cacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/tmp/xdg", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"", "data/wells.geojson", "wells.labels"},
		{"", "wells.ndjson", "wells.labels"},
		{"", "", "labels"},
		{"site", "data/wells.geojson", "site"},
	}
	for _, tt := range tests {
		if got := outputName(tt.name, tt.input); got != tt.want {
			t.Errorf("outputName(%q, %q) = %q, want %q", tt.name, tt.input, got, tt.want)
		}
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"json", []string{"json"}},
		{"JSON, svg,,geojson ", []string{"json", "svg", "geojson"}},
	}
	for _, tt := range tests {
		got := parseList(tt.input)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("parseList(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewCache(t *testing.T) {
	c := New(&bytes.Buffer{}, log.InfoLevel)
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     config.Cache
		noCache bool
		check   func(cache.Cache) bool
	}{
		{"no cache flag", config.Cache{}, true, func(ch cache.Cache) bool { _, ok := ch.(*cache.NullCache); return ok }},
		{"none backend", config.Cache{Backend: config.CacheNone}, false, func(ch cache.Cache) bool { _, ok := ch.(*cache.NullCache); return ok }},
		{"file backend", config.Cache{Dir: t.TempDir()}, false, func(ch cache.Cache) bool { _, ok := ch.(*cache.FileCache); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := c.newCache(ctx, tt.cfg, tt.noCache)
			if err != nil {
				t.Fatal(err)
			}
			defer ch.Close()
			if !tt.check(ch) {
				t.Errorf("newCache() = %T", ch)
			}
		})
	}
}

func TestRootCommand(t *testing.T) {
	root := New(&bytes.Buffer{}, log.InfoLevel).RootCommand()

	want := []string{"cache", "completion", "inspect", "place", "serve"}
	var got []string
	for _, cmd := range root.Commands() {
		if !cmd.Hidden && cmd.Name() != "help" {
			got = append(got, cmd.Name())
		}
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("subcommands = %v, want %v", got, want)
	}
}

func TestCachePathCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "run.toml")
	if err := os.WriteFile(cfg, []byte("[cache]\ndir = \"cache\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := fileCacheDir(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "cache"); got != want {
		t.Errorf("fileCacheDir() = %q, want %q", got, want)
	}

	redis := filepath.Join(dir, "redis.toml")
	if err := os.WriteFile(redis, []byte("[cache]\nbackend = \"redis\"\nredis_url = \"redis://localhost\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fileCacheDir(redis); err == nil {
		t.Error("redis backend has no cache directory")
	}
}
