// Package sketch is the capture surface for freehand input. It rasterizes
// stroke paths exported by the drawing canvas into an image that feeds the
// same preprocessing and OCR pipeline as uploaded files.
package sketch

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/chewxy/math32"
	jsoniter "github.com/json-iterator/go"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"golang.org/x/image/vector"

	"github.com/nvr-ai/go-ocr/images"
)

// Canvas defaults, matching the drawing surface on the digits page.
const (
	DefaultWidth       = 300
	DefaultHeight      = 200
	DefaultStrokeWidth = 3
	DefaultStrokeColor = "#000"
)

// Limits on a single render. Stroke rasterization costs the area of each
// stroke's bounding box, so the total of those areas is bounded as well as
// the canvas and the point count.
const (
	maxCanvasSide = 2048
	maxPoints     = 10000
	maxRasterArea = 1 << 24
)

// Point is a canvas coordinate in pixels.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Path is one stroke in the canvas export format.
type Path struct {
	// DrawMode is false for eraser strokes.
	DrawMode    bool    `json:"drawMode"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float32 `json:"strokeWidth"`
	Paths       []Point `json:"paths"`
}

// Options configures the canvas.
type Options struct {
	Width      int
	Height     int
	Background color.Color
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Background == nil {
		o.Background = color.White
	}
	return o
}

// Render rasterizes paths onto a fresh canvas.
//
// Strokes are drawn in order with round joins and caps. Eraser strokes paint
// the background colour.
//
// Arguments:
//   - paths: The strokes to draw.
//   - opts: Canvas size and background. Zero values select the defaults.
//
// Returns:
//   - *image.NRGBA: The rendered canvas.
//   - error: If a stroke colour cannot be parsed, or the canvas, the point
//     count or the stroked area exceeds the render limits.
func Render(paths []Path, opts Options) (*image.NRGBA, error) {
	opts = opts.withDefaults()
	if opts.Width > maxCanvasSide || opts.Height > maxCanvasSide {
		return nil, errors.Errorf("canvas %dx%d exceeds %dpx", opts.Width, opts.Height, maxCanvasSide)
	}
	if err := checkPoints(paths); err != nil {
		return nil, err
	}
	canvasRect := image.Rect(0, 0, opts.Width, opts.Height)

	strokes := make([]stroke, 0, len(paths))
	area := 0
	for i, p := range paths {
		var c color.Color = opts.Background
		if p.DrawMode {
			parsed, err := ParseColor(p.StrokeColor)
			if err != nil {
				return nil, errors.Wrapf(err, "path %d", i)
			}
			c = parsed
		}
		width := p.StrokeWidth
		if width <= 0 {
			width = DefaultStrokeWidth
		}
		bounds := strokeBounds(p.Paths, width/2).Intersect(canvasRect)
		if bounds.Empty() {
			continue
		}
		if area += bounds.Dx() * bounds.Dy(); area > maxRasterArea {
			return nil, errors.Errorf("path %d: stroked area exceeds %d pixels", i, maxRasterArea)
		}
		strokes = append(strokes, stroke{pts: p.Paths, radius: width / 2, bounds: bounds, src: image.NewUniform(c)})
	}

	canvas := image.NewNRGBA(canvasRect)
	draw.Draw(canvas, canvas.Rect, image.NewUniform(opts.Background), image.Point{}, draw.Src)
	r := &vector.Rasterizer{}
	for _, s := range strokes {
		drawStroke(canvas, r, s)
	}
	return canvas, nil
}

type stroke struct {
	pts    []Point
	radius float32
	bounds image.Rectangle
	src    image.Image
}

func checkPoints(paths []Path) error {
	n := 0
	for i, p := range paths {
		n += len(p.Paths)
		if n > maxPoints {
			return errors.Errorf("sketch has more than %d points", maxPoints)
		}
		if !finite(p.StrokeWidth) {
			return errors.Errorf("path %d: invalid stroke width", i)
		}
		for _, pt := range p.Paths {
			if !finite(pt.X) || !finite(pt.Y) {
				return errors.Errorf("path %d: invalid point", i)
			}
		}
	}
	return nil
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// strokeBounds returns the pixel rectangle covered by pts widened by radius.
func strokeBounds(pts []Point, radius float32) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX, maxX = math32.Min(minX, p.X), math32.Max(maxX, p.X)
		minY, maxY = math32.Min(minY, p.Y), math32.Max(maxY, p.Y)
	}
	return image.Rect(
		pixel(math32.Floor(minX-radius)), pixel(math32.Floor(minY-radius)),
		pixel(math32.Ceil(maxX+radius)), pixel(math32.Ceil(maxY+radius)),
	)
}

// pixel converts a coordinate to an int, saturating far outside any canvas.
func pixel(v float32) int {
	const limit = 4 * maxCanvasSide
	switch {
	case v < -limit:
		return -limit
	case v > limit:
		return limit
	}
	return int(v)
}

// drawStroke fills a round dot at every point and a quad along every segment
// as one path on a rasterizer covering the stroke bounds, then composites it
// once.
// Every primitive is wound the same way, so overlaps add up instead of
// cancelling.
func drawStroke(dst *image.NRGBA, r *vector.Rasterizer, s stroke) {
	pts, radius, bounds := s.pts, s.radius, s.bounds
	r.Reset(bounds.Dx(), bounds.Dy())
	origin := Point{X: float32(bounds.Min.X), Y: float32(bounds.Min.Y)}
	for i, p := range pts {
		p = Point{X: p.X - origin.X, Y: p.Y - origin.Y}
		addCircle(r, p, radius)
		if i == 0 {
			continue
		}
		prev := Point{X: pts[i-1].X - origin.X, Y: pts[i-1].Y - origin.Y}
		addSegment(r, prev, p, radius)
	}
	r.Draw(dst, bounds, s.src, bounds.Min)
}

func addCircle(r *vector.Rasterizer, c Point, radius float32) {
	const steps = 16
	for i := 0; i <= steps; i++ {
		a := 2 * math32.Pi * float32(i) / steps
		p := Point{X: c.X + radius*math32.Cos(a), Y: c.Y + radius*math32.Sin(a)}
		if i == 0 {
			moveTo(r, p)
			continue
		}
		lineTo(r, p)
	}
	r.ClosePath()
}

// addSegment adds the quad swept by a segment, wound like addCircle.
func addSegment(r *vector.Rasterizer, a, b Point, radius float32) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math32.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*radius, dx/length*radius
	moveTo(r, Point{X: a.X + nx, Y: a.Y + ny})
	lineTo(r, Point{X: a.X - nx, Y: a.Y - ny})
	lineTo(r, Point{X: b.X - nx, Y: b.Y - ny})
	lineTo(r, Point{X: b.X + nx, Y: b.Y + ny})
	r.ClosePath()
}

// moveTo and lineTo keep vertices inside the rasterizer bounds; strokes that
// run off the canvas are flattened against its edge.
func moveTo(r *vector.Rasterizer, p Point) {
	r.MoveTo(clampToRaster(r, p))
}

func lineTo(r *vector.Rasterizer, p Point) {
	r.LineTo(clampToRaster(r, p))
}

func clampToRaster(r *vector.Rasterizer, p Point) (float32, float32) {
	size := r.Size()
	x := math32.Max(0, math32.Min(float32(size.X), p.X))
	y := math32.Max(0, math32.Min(float32(size.Y), p.Y))
	return x, y
}

// ParseColor parses a CSS hex colour ("#000", "#1a2b3c") or the names
// "black" and "white".
func ParseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		s = DefaultStrokeColor
	case "black":
		return color.Black, nil
	case "white":
		return color.White, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parse stroke colour %q", s)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Request is a sketch submission: either stroke paths or an already encoded
// canvas snapshot.
type Request struct {
	// Paths are the strokes to rasterize.
	Paths []Path `json:"paths,omitempty"`
	// Image is a base64 image data URI exported by the canvas.
	Image string `json:"image,omitempty"`
	// Width and Height override the canvas size for Paths.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Snapshot produces encoded PNG bytes for the request.
//
// Returns:
//   - []byte: PNG bytes ready for preprocessing.
//   - error: An *images.DecodeError for a bad snapshot, or a render error.
func Snapshot(req Request) ([]byte, error) {
	if req.Image != "" {
		data, err := images.DecodeDataURI(req.Image)
		if err != nil {
			return nil, err
		}
		if _, err := images.New(data); err != nil {
			return nil, err
		}
		return data, nil
	}
	canvas, err := Render(req.Paths, Options{Width: req.Width, Height: req.Height})
	if err != nil {
		return nil, err
	}
	return images.EncodePNG(canvas)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decode parses a sketch submission. The body is either a Request object or
// the bare path array exported by the canvas.
func Decode(body []byte) (Request, error) {
	var req Request
	if IsPathArray(body) {
		if err := json.Unmarshal(body, &req.Paths); err != nil {
			return Request{}, errors.Wrap(err, "decode sketch paths")
		}
		if err := checkPoints(req.Paths); err != nil {
			return Request{}, err
		}
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, errors.Wrap(err, "decode sketch request")
	}
	if req.Image == "" && req.Paths == nil {
		return Request{}, errors.New("sketch request has neither paths nor image")
	}
	if err := checkPoints(req.Paths); err != nil {
		return Request{}, err
	}
	return req, nil
}

// IsPathArray reports whether body is a bare JSON array of paths rather
// than a Request object.
func IsPathArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '['
}
