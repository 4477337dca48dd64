// Package badge renders shields.io-style SVG badges with measured text widths.
package badge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// DefaultFontSize matches the shields.io flat style.
const DefaultFontSize = 11

// FontMetrics measures badge text and carries the font for SVG embedding.
type FontMetrics struct {
	name  string
	size  float64
	data  []byte
	width map[rune]float64

	// average printable-ASCII advance, used for runes outside the table
	avg float64
}

// TextWidth returns the rendered width of s in pixels.
func (m *FontMetrics) TextWidth(s string) float64 {
	var w float64
	for _, r := range s {
		adv, ok := m.width[r]
		if !ok {
			adv = m.avg
		}
		w += adv
	}
	return w
}

// FontData returns the raw TTF/OTF bytes.
func (m *FontMetrics) FontData() []byte { return m.data }

// FontName returns the family name from the font's name table, or the name
// it was loaded under.
func (m *FontMetrics) FontName() string { return m.name }

// FontSize returns the pixel size the widths were measured at.
func (m *FontMetrics) FontSize() float64 { return m.size }

// Load returns metrics for fontFile, or Go Regular when fontFile is empty.
// A non-positive size means DefaultFontSize.
func Load(fontFile string, size float64) (*FontMetrics, error) {
	if size <= 0 {
		size = DefaultFontSize
	}
	if fontFile == "" {
		return LoadDefaultFont(size)
	}
	return LoadFontFile(fontFile, size)
}

// LoadDefaultFont measures Go Regular, which ships with x/image.
func LoadDefaultFont(size float64) (*FontMetrics, error) {
	return LoadFont("Go", goregular.TTF, size)
}

// LoadFontFile reads and measures a TTF/OTF file.
func LoadFontFile(path string, size float64) (*FontMetrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading font file %s: %w", path, err)
	}
	return LoadFont(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), data, size)
}

// LoadFont parses raw font bytes and measures printable ASCII at size.
func LoadFont(name string, data []byte, size float64) (*FontMetrics, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", name, err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72})
	if err != nil {
		return nil, fmt.Errorf("creating face for %s: %w", name, err)
	}
	defer face.Close()

	m := &FontMetrics{name: name, size: size, data: data, width: make(map[rune]float64, 95)}
	var sum float64
	for r := ' '; r <= '~'; r++ {
		if adv, ok := face.GlyphAdvance(r); ok {
			m.width[r] = toPixels(adv)
			sum += m.width[r]
		}
	}
	if len(m.width) > 0 {
		m.avg = sum / float64(len(m.width))
	} else {
		m.avg = size * 0.6
	}

	if family, err := f.Name(&sfnt.Buffer{}, sfnt.NameIDFamily); err == nil && family != "" {
		m.name = family
	}
	return m, nil
}

func toPixels(v fixed.Int26_6) float64 { return float64(v) / 64 }
