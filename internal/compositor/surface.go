package compositor

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"

	"screen-recorder/internal/logging"
)

// Surface is the off-screen drawing target of a compositor.
type Surface interface {
	// Size returns the locked surface dimensions.
	Size() (width, height int)
	// DrawFrame stretches img to cover the whole surface.
	DrawFrame(img image.Image)
	// DrawCircleImage paints img, already sized to the circle's diameter,
	// clipped to the circle.
	DrawCircleImage(img image.Image, c Circle)
	// StrokeCircle strokes the outline of c.
	StrokeCircle(c Circle, width float64, hexColor string)
	// Snapshot copies the current surface into dst, which must match Size.
	Snapshot(dst *image.RGBA)
	Close() error
}

// SurfaceFactory creates a surface of the given size.
type SurfaceFactory func(width, height int) (Surface, error)

// GGSurface renders with a gogpu/gg context.
type GGSurface struct {
	dc     *gg.Context
	width  int
	height int

	// layer holds the bubble image at its surface position; it backs the
	// image pattern used to fill the circle.
	layer *image.RGBA
}

// NewGGSurface is a SurfaceFactory backed by gogpu/gg.
func NewGGSurface(width, height int) (Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	gg.SetLogger(logging.Slog())
	return &GGSurface{
		dc:     gg.NewContext(width, height),
		width:  width,
		height: height,
		layer:  image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

// Size implements Surface.
func (s *GGSurface) Size() (int, int) { return s.width, s.height }

// DrawFrame implements Surface.
func (s *GGSurface) DrawFrame(img image.Image) {
	s.dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:             0,
		Y:             0,
		DstWidth:      float64(s.width),
		DstHeight:     float64(s.height),
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
}

// DrawCircleImage implements Surface. DrawImage ignores clip paths, so the
// image is placed on a transparent layer and used as the fill pattern of the
// circle path instead.
func (s *GGSurface) DrawCircleImage(img image.Image, c Circle) {
	draw.Draw(s.layer, s.layer.Bounds(), image.Transparent, image.Point{}, draw.Src)

	origin := image.Pt(int(c.CX-c.R), int(c.CY-c.R))
	xdraw.Copy(s.layer, origin, img, img.Bounds(), xdraw.Src, nil)

	s.dc.SetFillPattern(s.dc.CreateImagePattern(gg.ImageBufFromImage(s.layer), 0, 0, s.width, s.height))
	s.dc.DrawCircle(c.CX, c.CY, c.R)
	if err := s.dc.Fill(); err != nil {
		logging.Debug("bubble fill failed: %v", err)
	}
}

// StrokeCircle implements Surface.
func (s *GGSurface) StrokeCircle(c Circle, width float64, hexColor string) {
	s.dc.SetHexColor(hexColor)
	s.dc.SetLineWidth(width)
	s.dc.DrawCircle(c.CX, c.CY, c.R)
	if err := s.dc.Stroke(); err != nil {
		logging.Debug("ring stroke failed: %v", err)
	}
}

// Snapshot implements Surface.
func (s *GGSurface) Snapshot(dst *image.RGBA) {
	src := s.dc.Image()
	xdraw.Copy(dst, image.Point{}, src, src.Bounds(), xdraw.Src, nil)
}

// Close implements Surface.
func (s *GGSurface) Close() error {
	return s.dc.Close()
}
