package label

import (
	"fmt"
	"strings"

	"github.com/matzehuels/cartolabel/pkg/feature"
)

// ResolveText returns the label text of f: the fixed text if configured,
// otherwise the primary attribute, otherwise the fallback attribute.
// Non-string attribute values are formatted with fmt.Sprint. The result is
// trimmed; an empty string means the feature gets no label.
func ResolveText(f feature.Feature, cfg *Config) string {
	if t := strings.TrimSpace(cfg.FixedText); t != "" {
		return t
	}
	for _, key := range []string{cfg.TextAttribute, cfg.TextAttributeFallback} {
		if key == "" {
			continue
		}
		if t := attrText(f, key); t != "" {
			return t
		}
	}
	return ""
}

func attrText(f feature.Feature, key string) string {
	v, ok := f.Attr(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
