// Package renderer draws the visual certificate that is pinned next to the
// record. Two strategies exist: Rich needs TrueType faces and a full 2D
// surface, Simple only fills rectangles and draws bitmap text.
package renderer

import (
	"context"
	"log/slog"
	"time"

	"campuscert/certificate"
	"campuscert/metrics"

	"github.com/goodsign/monday"
)

// Canvas dimensions in pixels.
const (
	Width  = 1000
	Height = 700
)

// Palette shared by both renderers.
const (
	colorInk      = "#2c3e50"
	colorAccent   = "#3498db"
	colorMuted    = "#7f8c8d"
	colorGradFrom = "#f5f7fa"
	colorGradTo   = "#c3cfe2"
)

// Renderer turns a record into PNG bytes.
type Renderer interface {
	Render(ctx context.Context, rec certificate.Record) ([]byte, error)
}

// labels are the fixed captions printed on a certificate.
type labels struct {
	Title     string
	AwardedTo string
	Completed string
	IssueDate string
	CertID    string
	IssuedTo  string
}

var labelsByLocale = map[monday.Locale]labels{
	monday.LocaleFrFR: {
		Title:     "CERTIFICAT DE RÉUSSITE",
		AwardedTo: "Ce certificat est décerné à",
		Completed: "Pour avoir complété avec succès",
		IssueDate: "Date d'émission",
		CertID:    "Certificat ID",
		IssuedTo:  "Délivré à l'adresse",
	},
	monday.LocaleEnUS: {
		Title:     "CERTIFICATE OF COMPLETION",
		AwardedTo: "This certificate is awarded to",
		Completed: "For successfully completing",
		IssueDate: "Date of issue",
		CertID:    "Certificate ID",
		IssuedTo:  "Issued to address",
	},
}

func labelsFor(locale monday.Locale) labels {
	if l, ok := labelsByLocale[locale]; ok {
		return l
	}
	return labelsByLocale[monday.LocaleEnUS]
}

// longDate formats the issue date in the locale's long form, e.g. "14 mars 2025".
func longDate(rec certificate.Record, locale monday.Locale) string {
	t, err := rec.IssuedTime()
	if err != nil {
		return rec.IssuedAt
	}
	if locale == monday.LocaleEnUS {
		return monday.Format(t, "January 2, 2006", locale)
	}
	return monday.Format(t, "2 January 2006", locale)
}

func shortDate(rec certificate.Record, locale monday.Locale) string {
	t, err := rec.IssuedTime()
	if err != nil {
		return rec.IssuedAt
	}
	if locale == monday.LocaleEnUS {
		return t.Format("01/02/2006")
	}
	return t.Format("02/01/2006")
}

// Fallback tries Primary and, on any failure, renders the same record with Secondary.
type Fallback struct {
	Primary   Renderer
	Secondary Renderer
}

func (f Fallback) Render(ctx context.Context, rec certificate.Record) ([]byte, error) {
	start := time.Now()
	img, err := f.Primary.Render(ctx, rec)
	if err == nil {
		return img, nil
	}
	slog.Warn("Rich render failed, using simple renderer",
		"certificate_id", rec.ID,
		"error", err,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	metrics.RenderFallbacks.Inc()
	return f.Secondary.Render(ctx, rec)
}
