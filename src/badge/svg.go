package badge

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

const padding = 10

// renderSVG produces a flat badge with the font embedded as a data URI so
// the measured widths match what viewers render.
func (e *Engine) renderSVG(b Badge) string {
	labelWidth := int(math.Round(e.metrics.TextWidth(b.Label))) + padding
	valueWidth := int(math.Round(e.metrics.TextWidth(b.Value))) + padding
	total := labelWidth + valueWidth

	name := e.metrics.FontName()
	label := xmlEscape(b.Label)
	value := xmlEscape(b.Value)

	var s strings.Builder
	fmt.Fprintf(&s, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="20" role="img" aria-label="%s: %s">`, total, label, value)
	fmt.Fprintf(&s, `<title>%s: %s</title>`, label, value)

	s.WriteString(`<defs>`)
	fmt.Fprintf(&s, `<style type="text/css">%s</style>`, fontFaceCSS(name, e.metrics.FontData()))
	s.WriteString(`<linearGradient id="s" x2="0" y2="100%">`)
	s.WriteString(`<stop offset="0" stop-color="#bbb" stop-opacity=".1"/>`)
	s.WriteString(`<stop offset="1" stop-opacity=".1"/>`)
	s.WriteString(`</linearGradient>`)
	fmt.Fprintf(&s, `<clipPath id="r"><rect width="%d" height="20" rx="3" fill="#fff"/></clipPath>`, total)
	s.WriteString(`</defs>`)

	s.WriteString(`<g clip-path="url(#r)">`)
	fmt.Fprintf(&s, `<rect width="%d" height="20" fill="#555"/>`, labelWidth)
	fmt.Fprintf(&s, `<rect x="%d" width="%d" height="20" fill="%s"/>`, labelWidth, valueWidth, xmlEscape(b.Color))
	fmt.Fprintf(&s, `<rect width="%d" height="20" fill="url(#s)"/>`, total)
	s.WriteString(`</g>`)

	family := xmlEscape(fmt.Sprintf("'%s',Verdana,Geneva,sans-serif", name))
	fmt.Fprintf(&s, `<g fill="#fff" text-anchor="middle" font-family="%s" font-size="%g">`, family, e.metrics.FontSize())
	writeText(&s, labelWidth/2, label)
	writeText(&s, labelWidth+valueWidth/2, value)
	s.WriteString(`</g></svg>`)
	return s.String()
}

// writeText draws text with a one pixel drop shadow.
func writeText(s *strings.Builder, x int, text string) {
	fmt.Fprintf(s, `<text x="%d" y="15" fill="#010101" fill-opacity=".3">%s</text>`, x, text)
	fmt.Fprintf(s, `<text x="%d" y="14">%s</text>`, x, text)
}

func fontFaceCSS(name string, data []byte) string {
	format, css := "ttf", "truetype"
	if len(data) >= 4 && string(data[:4]) == "OTTO" {
		format, css = "otf", "opentype"
	}
	return fmt.Sprintf(
		`@font-face{font-family:'%s';src:url(data:font/%s;base64,%s) format('%s')}`,
		name, format, base64.StdEncoding.EncodeToString(data), css,
	)
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

func xmlEscape(s string) string { return xmlReplacer.Replace(s) }
