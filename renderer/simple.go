package renderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"sync"

	"campuscert/certificate"

	"github.com/goodsign/monday"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

// Simple draws a reduced certificate with rectangles, a gradient and the
// embedded Go Regular face. It does not fail for any record.
type Simple struct {
	Locale monday.Locale
}

func (s Simple) Render(_ context.Context, rec certificate.Record) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	fillGradient(img, mustHex(colorGradFrom), mustHex(colorGradTo))

	l := labelsFor(s.Locale)
	ink, accent, muted := mustHex(colorInk), mustHex(colorAccent), mustHex(colorMuted)

	title, name, course, body, small := simpleFace(40), simpleFace(36), simpleFace(28), simpleFace(20), simpleFace(14)

	drawText(img, title, l.Title, Width/2, 80, alignCenter, ink)
	fillRect(img, image.Rect(Width/2-50, 100, Width/2+50, 102), accent)

	drawText(img, name, rec.StudentName, Width/2, 250, alignCenter, ink)
	drawText(img, course, rec.CourseTitle, Width/2, 350, alignCenter, accent)

	drawText(img, body, fmt.Sprintf("Date: %s", shortDate(rec, s.Locale)), 100, 550, alignLeft, ink)
	drawText(img, body, rec.IssuerName, Width-100, 550, alignRight, ink)

	drawText(img, small, fmt.Sprintf("%s: %s", l.CertID, rec.ID), Width/2, 620, alignCenter, muted)
	drawText(img, small, fmt.Sprintf("%s: %s", l.IssuedTo, rec.IssuedTo), Width/2, 650, alignCenter, muted)

	var buf bytes.Buffer
	// Encoding an in-memory RGBA only fails on writer errors, and bytes.Buffer has none.
	_ = png.Encode(&buf, img)
	return buf.Bytes(), nil
}

// fillGradient paints a linear gradient along the top-left to bottom-right diagonal.
func fillGradient(img *image.RGBA, from, to color.RGBA) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	den := w*w + h*h
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			t := (float64(x)*w + float64(y)*h) / den
			img.SetRGBA(x, y, lerp(from, to, t))
		}
	}
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

var (
	simpleFontOnce sync.Once
	simpleFont     *opentype.Font
)

// simpleFace returns a Go Regular face at size points. The parsed font is
// shared; each face carries its own buffer, so faces are per render. The
// ASCII bitmap face is the last resort.
func simpleFace(size float64) font.Face {
	simpleFontOnce.Do(func() {
		if f, err := opentype.Parse(goregular.TTF); err == nil {
			simpleFont = f
		}
	})
	if simpleFont != nil {
		face, err := opentype.NewFace(simpleFont, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}

func drawText(img *image.RGBA, face font.Face, s string, x, y int, a align, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}
	width := d.MeasureString(s).Ceil()
	switch a {
	case alignCenter:
		x -= width / 2
	case alignRight:
		x -= width
	}
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// mustHex parses "#rrggbb" constants. Only package constants are passed in.
func mustHex(s string) color.RGBA {
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil || len(s) != 7 {
		panic("renderer: bad color " + s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
