package renderer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"campuscert/certerr"
	"campuscert/certificate"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/goodsign/monday"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Rich lays out a styled certificate with TrueType text. When FontDir is set,
// regular.ttf and bold.ttf are loaded from it; otherwise the embedded Go fonts are used.
type Rich struct {
	FontDir string
	Locale  monday.Locale
}

type faceSet struct {
	title, name, course, body, caption, small font.Face
}

func (fs *faceSet) close() {
	for _, f := range []font.Face{fs.title, fs.name, fs.course, fs.body, fs.caption, fs.small} {
		if f != nil {
			_ = f.Close()
		}
	}
}

func (r Rich) Render(ctx context.Context, rec certificate.Record) (img []byte, err error) {
	const op = "renderer.Rich"
	if err := ctx.Err(); err != nil {
		return nil, certerr.New(certerr.RenderingUnsupported, op, err)
	}

	faces, err := r.loadFaces()
	if err != nil {
		return nil, certerr.New(certerr.RenderingUnsupported, op, err)
	}
	defer faces.close()

	defer func() {
		if p := recover(); p != nil {
			img, err = nil, certerr.Newf(certerr.RenderingUnsupported, op, "surface panic: %v", p)
		}
	}()

	dc := gg.NewContext(Width, Height)
	r.draw(dc, faces, rec)

	if err := ctx.Err(); err != nil {
		return nil, certerr.New(certerr.RenderingUnsupported, op, err)
	}
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, certerr.New(certerr.RenderingUnsupported, op, err)
	}
	return buf.Bytes(), nil
}

func (r Rich) draw(dc *gg.Context, faces *faceSet, rec certificate.Record) {
	l := labelsFor(r.Locale)
	w, h := float64(Width), float64(Height)

	grad := gg.NewLinearGradient(0, 0, w, h)
	grad.AddColorStop(0, mustHex(colorGradFrom))
	grad.AddColorStop(1, mustHex(colorGradTo))
	dc.SetFillStyle(grad)
	dc.DrawRoundedRectangle(0, 0, w, h, 10)
	dc.Fill()

	// Header
	dc.SetFontFace(faces.title)
	dc.SetHexColor(colorInk)
	dc.DrawStringAnchored(l.Title, w/2, 80, 0.5, 0.5)
	dc.SetHexColor(colorAccent)
	dc.DrawRectangle(w/2-50, 110, 100, 2)
	dc.Fill()

	// Recipient and course
	dc.SetFontFace(faces.body)
	dc.SetHexColor(colorMuted)
	dc.DrawStringAnchored(l.AwardedTo, w/2, 190, 0.5, 0.5)

	dc.SetFontFace(faces.name)
	dc.SetHexColor(colorInk)
	dc.DrawStringWrapped(rec.StudentName, w/2, 250, 0.5, 0.5, w-120, 1.1, gg.AlignCenter)

	dc.SetFontFace(faces.body)
	dc.SetHexColor(colorMuted)
	dc.DrawStringAnchored(l.Completed, w/2, 310, 0.5, 0.5)

	dc.SetFontFace(faces.course)
	dc.SetHexColor(colorAccent)
	dc.DrawStringWrapped(rec.CourseTitle, w/2, 370, 0.5, 0.5, w-160, 1.2, gg.AlignCenter)

	// Footer: date on the left, issuer signature line on the right
	dc.SetFontFace(faces.caption)
	dc.SetHexColor(colorMuted)
	dc.DrawStringAnchored(l.IssueDate, 80, 520, 0, 0.5)
	dc.SetFontFace(faces.body)
	dc.SetHexColor(colorInk)
	dc.DrawStringAnchored(longDate(rec, r.Locale), 80, 550, 0, 0.5)

	dc.DrawRectangle(w-300, 525, 200, 2)
	dc.Fill()
	dc.DrawStringAnchored(rec.IssuerName, w-200, 550, 0.5, 0.5)

	dc.SetFontFace(faces.caption)
	dc.SetHexColor(colorMuted)
	dc.DrawStringAnchored(fmt.Sprintf("%s: %s", l.CertID, rec.ID), w/2, 620, 0.5, 0.5)
	dc.SetFontFace(faces.small)
	dc.DrawStringAnchored(fmt.Sprintf("%s: %s", l.IssuedTo, rec.IssuedTo), w/2, 650, 0.5, 0.5)
}

func (r Rich) loadFaces() (*faceSet, error) {
	regularTTF, boldTTF := goregular.TTF, gobold.TTF
	if r.FontDir != "" {
		var err error
		if regularTTF, err = os.ReadFile(filepath.Join(r.FontDir, "regular.ttf")); err != nil {
			return nil, fmt.Errorf("load regular font: %w", err)
		}
		if boldTTF, err = os.ReadFile(filepath.Join(r.FontDir, "bold.ttf")); err != nil {
			return nil, fmt.Errorf("load bold font: %w", err)
		}
	}

	regular, err := truetype.Parse(regularTTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := truetype.Parse(boldTTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}

	face := func(f *truetype.Font, size float64) font.Face {
		return truetype.NewFace(f, &truetype.Options{Size: size, Hinting: font.HintingFull})
	}
	return &faceSet{
		title:   face(bold, 36),
		name:    face(bold, 42),
		course:  face(bold, 28),
		body:    face(regular, 20),
		caption: face(regular, 16),
		small:   face(regular, 12),
	}, nil
}
