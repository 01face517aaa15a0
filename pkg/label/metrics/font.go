package metrics

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tdewolff/canvas"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// referenceSize is the point size glyphs are laid out at before scaling to
// the style's cap height. Large enough that rounding inside the font
// rasteriser does not matter.
const referenceSize = 100.0

type fontData struct {
	style canvas.FontStyle
	data  []byte
}

// FontMeasurer measures text from glyph outlines. It is safe for
// concurrent use; families are loaded on first use and cached.
type FontMeasurer struct {
	logger *log.Logger

	mu       sync.Mutex
	sources  map[string][]fontData
	families map[string]*loadedFamily
}

type loadedFamily struct {
	family *canvas.FontFamily
	styles map[canvas.FontStyle]bool
}

// NewFontMeasurer returns a measurer with the built-in "go" and "go-mono"
// families registered.
func NewFontMeasurer(logger *log.Logger) *FontMeasurer {
	m := &FontMeasurer{
		logger:   logger,
		sources:  make(map[string][]fontData),
		families: make(map[string]*loadedFamily),
	}
	m.register("go", canvas.FontRegular, goregular.TTF)
	m.register("go", canvas.FontBold, gobold.TTF)
	m.register("go", canvas.FontItalic, goitalic.TTF)
	m.register("go", canvas.FontBold|canvas.FontItalic, gobolditalic.TTF)
	m.register("go-mono", canvas.FontRegular, gomono.TTF)
	m.register("go-mono", canvas.FontBold, gomonobold.TTF)
	m.register("go-mono", canvas.FontItalic, gomonoitalic.TTF)
	m.register("go-mono", canvas.FontBold|canvas.FontItalic, gomonobolditalic.TTF)
	return m
}

// RegisterFont adds font data (TTF/OTF/WOFF) for a family and face.
// It replaces an already loaded family of the same name.
func (m *FontMeasurer) RegisterFont(family string, bold, italic bool, data []byte) {
	m.register(family, fontStyle(bold, italic), data)
}

// RegisterFontFile reads a font file and registers it.
func (m *FontMeasurer) RegisterFontFile(family, path string, bold, italic bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	m.RegisterFont(family, bold, italic, data)
	return nil
}

func (m *FontMeasurer) register(family string, style canvas.FontStyle, data []byte) {
	key := familyKey(family)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[key] = append(m.sources[key], fontData{style: style, data: data})
	delete(m.families, key)
}

// Measure implements Measurer.
func (m *FontMeasurer) Measure(text string, style *Style) (float64, float64) {
	if text == "" {
		return 0, 0
	}
	if style == nil {
		logger(m.logger).Warn("no text style, estimating label size", "text", text)
		return Estimate(text, DefaultCapHeight, 1), DefaultCapHeight
	}
	height := style.Height()
	width, err := m.measure(text, style, height)
	if err != nil {
		logger(m.logger).Warn("text measurement failed, estimating label size",
			"text", text, "family", style.FontFamily, "err", err)
		return Estimate(text, height, style.Scale()), height
	}
	return width, height
}

func (m *FontMeasurer) measure(text string, style *Style, height float64) (width float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("font layout: %v", r)
		}
	}()

	fam, want, err := m.family(style)
	if err != nil {
		return 0, err
	}
	face := fam.Face(referenceSize, canvas.Black, want, canvas.FontNormal)
	capHeight := face.Metrics().CapHeight
	if capHeight <= 0 {
		return 0, fmt.Errorf("font has no cap height")
	}
	outline, _, err := face.ToPath(text)
	if err != nil {
		return 0, err
	}
	if outline == nil || outline.Empty() {
		return 0, fmt.Errorf("empty outline")
	}
	advance := face.TextWidth(text)
	if advance <= 0 {
		return 0, fmt.Errorf("zero advance")
	}
	return advance * (height / capHeight) * style.Scale(), nil
}

// family returns the loaded family for the style and the closest face
// style that is actually available.
func (m *FontMeasurer) family(style *Style) (*canvas.FontFamily, canvas.FontStyle, error) {
	name := style.FontFamily
	if name == "" {
		name = DefaultFamily
	}
	key := familyKey(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	lf, ok := m.families[key]
	if !ok {
		srcs, known := m.sources[key]
		if !known {
			return nil, 0, fmt.Errorf("unknown font family %q", name)
		}
		lf = &loadedFamily{family: canvas.NewFontFamily(name), styles: make(map[canvas.FontStyle]bool)}
		for _, src := range srcs {
			if err := lf.family.LoadFont(src.data, 0, src.style); err != nil {
				return nil, 0, fmt.Errorf("load %s: %w", name, err)
			}
			lf.styles[src.style] = true
		}
		m.families[key] = lf
	}

	want := fontStyle(style.Bold, style.Italic)
	for _, s := range []canvas.FontStyle{want, want &^ canvas.FontItalic, canvas.FontRegular} {
		if lf.styles[s] {
			return lf.family, s, nil
		}
	}
	return nil, 0, fmt.Errorf("font family %q has no regular face", name)
}

func fontStyle(bold, italic bool) canvas.FontStyle {
	s := canvas.FontRegular
	if bold {
		s = canvas.FontBold
	}
	if italic {
		s |= canvas.FontItalic
	}
	return s
}

func familyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var _ Measurer = (*FontMeasurer)(nil)
var _ Measurer = Heuristic{}
