package edit

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	xdraw "golang.org/x/image/draw"

	"screen-recorder/internal/logging"
)

// Shape sizes in frame pixels at scale 1.
const (
	arrowHeight   = 40.0
	arrowHead     = 20.0
	textMinWidth  = 100.0
	textPadding   = 8.0
	textFontSize  = 20.0
	markerSize    = 48.0
	pencilLength  = 40.0
	pencilWidth   = 8.0
	haloAlpha     = 0x30 / 255.0
	textBoxAlpha  = 0.6
	textEdgeAlpha = 0x40 / 255.0
)

// Placement is the transform of an overlay on a frame: translate to the
// centre, rotate, then scale uniformly.
type Placement struct {
	CX    float64
	CY    float64
	Angle float64 // radians
	Scale float64
}

// Place computes where o is drawn on a width x height frame. The editor
// and every playback path use this same transform.
func Place(o Overlay, width, height int) Placement {
	o.Normalize()
	return Placement{
		CX:    o.X / 100 * float64(width),
		CY:    o.Y / 100 * float64(height),
		Angle: o.Rotation * math.Pi / 180,
		Scale: o.Scale,
	}
}

// arrowPath returns the outline of an arrow of width w, pointing right,
// with its box centred on the origin.
func arrowPath(w float64) []Point {
	shaft := math.Max(0, w-arrowHead)
	pts := []Point{
		{0, 17}, {shaft, 17}, {shaft, 8}, {w, 20}, {shaft, 32}, {shaft, 23}, {0, 23},
	}
	for i := range pts {
		pts[i].X -= w / 2
		pts[i].Y -= arrowHeight / 2
	}
	return pts
}

// Renderer draws overlays onto still frames.
type Renderer struct {
	textFace   text.Face
	markerFace text.Face
}

// NewRenderer loads fontFile for text and glyph markers. Without a font,
// text boxes and markers are drawn without their glyphs.
func NewRenderer(fontFile string) (*Renderer, error) {
	gg.SetLogger(logging.Slog())
	r := &Renderer{}
	if fontFile == "" {
		return r, nil
	}
	source, err := text.NewFontSourceFromFile(fontFile)
	if err != nil {
		return nil, fmt.Errorf("load overlay font: %w", err)
	}
	r.textFace = source.Face(textFontSize)
	r.markerFace = source.Face(markerSize)
	return r, nil
}

// Render returns a copy of base with overlays drawn on top in order.
func (r *Renderer) Render(base image.Image, overlays []Overlay) (image.Image, error) {
	b := base.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty base image")
	}
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(canvas, image.Point{}, base, b, xdraw.Src, nil)

	dc := gg.NewContextForImage(canvas)
	defer dc.Close()

	for _, o := range overlays {
		p := Place(o, b.Dx(), b.Dy())
		o.Normalize()

		dc.Push()
		dc.Translate(p.CX, p.CY)
		dc.Rotate(p.Angle)
		dc.Scale(p.Scale, p.Scale)
		face, err := r.draw(dc, o)
		dc.Pop()
		if err != nil {
			logging.Debug("overlay %s not drawn: %v", o.ID, err)
			continue
		}

		// gg draws text in device space, so glyphs are placed upright at
		// the overlay centre after the transform is popped.
		if face != nil && o.Content != "" {
			dc.SetFont(face)
			dc.SetHexColor(o.Color)
			dc.DrawStringAnchored(o.Content, p.CX, p.CY, 0.5, 0.5)
		}
	}
	return dc.Image(), nil
}

// EncodePNG renders and writes the result as PNG.
func (r *Renderer) EncodePNG(w io.Writer, base image.Image, overlays []Overlay) error {
	img, err := r.Render(base, overlays)
	if err != nil {
		return err
	}
	dc := gg.NewContextForImage(img)
	defer dc.Close()
	return dc.EncodePNG(w)
}

// draw paints the shape of o around the origin and returns the face its
// content should be written with, if any.
func (r *Renderer) draw(dc *gg.Context, o Overlay) (text.Face, error) {
	switch {
	case o.Type == KindText:
		return r.textFace, r.drawTextBox(dc, o)
	case o.IsArrow():
		return nil, drawArrow(dc, o)
	case o.Content == ContentPencil:
		return nil, drawPencil(dc, o)
	case r.markerFace != nil:
		return r.markerFace, nil
	default:
		dc.SetHexColor(o.Color)
		dc.DrawCircle(0, 0, markerSize/2)
		return nil, dc.Fill()
	}
}

func drawArrow(dc *gg.Context, o Overlay) error {
	pts := arrowPath(o.Width)
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, pt := range pts[1:] {
		dc.LineTo(pt.X, pt.Y)
	}
	dc.ClosePath()
	dc.SetHexColor(o.Color)
	return dc.Fill()
}

func drawPencil(dc *gg.Context, o Overlay) error {
	setAlpha(dc, o.Color, haloAlpha)
	dc.DrawCircle(0, 0, pencilLength*0.7)
	if err := dc.Fill(); err != nil {
		return err
	}

	half := pencilLength / 2
	dc.SetHexColor(o.Color)
	dc.SetLineWidth(pencilWidth)
	dc.SetLineCap(gg.LineCapRound)
	dc.DrawLine(-half*0.7, half*0.7, half*0.7, -half*0.7)
	return dc.Stroke()
}

func (r *Renderer) drawTextBox(dc *gg.Context, o Overlay) error {
	w, h := textMinWidth, textFontSize*1.4
	if r.textFace != nil {
		dc.SetFont(r.textFace)
		tw, th := dc.MeasureString(o.Content)
		w = math.Max(w, tw+2*textPadding)
		h = th + 2*textPadding
	}

	dc.DrawRoundedRectangle(-w/2, -h/2, w, h, 8)
	dc.SetRGBA(0, 0, 0, textBoxAlpha)
	if err := dc.Fill(); err != nil {
		return err
	}
	dc.DrawRoundedRectangle(-w/2, -h/2, w, h, 8)
	setAlpha(dc, o.Color, textEdgeAlpha)
	dc.SetLineWidth(1)
	return dc.Stroke()
}

func setAlpha(dc *gg.Context, hex string, alpha float64) {
	c := gg.Hex(hex)
	dc.SetRGBA(c.R, c.G, c.B, alpha)
}
