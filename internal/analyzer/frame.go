package analyzer

import (
	"image"
	"image/color"
	"image/draw"
)

// Frame is an RGBA pixel array with its origin at (0,0). It is the value
// scripts receive as an image and may hand back after transforming it.
type Frame struct {
	pix *image.RGBA
}

// NewFrame copies img into a fresh frame.
func NewFrame(img image.Image) *Frame {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Frame{pix: dst}
}

// BlankFrame returns a frame of the given size filled with c.
func BlankFrame(w, h int, c color.Color) *Frame {
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return &Frame{pix: dst}
}

func (f *Frame) Width() int  { return f.pix.Rect.Dx() }
func (f *Frame) Height() int { return f.pix.Rect.Dy() }

// At returns [r, g, b, a] at (x, y), or zeros outside the frame.
func (f *Frame) At(x, y int) []int {
	if !(image.Point{X: x, Y: y}).In(f.pix.Rect) {
		return []int{0, 0, 0, 0}
	}
	c := f.pix.RGBAAt(x, y)
	return []int{int(c.R), int(c.G), int(c.B), int(c.A)}
}

// Set writes one pixel; out-of-range points are ignored.
func (f *Frame) Set(x, y, r, g, b int) {
	f.pix.SetRGBA(x, y, color.RGBA{R: clampByte(r), G: clampByte(g), B: clampByte(b), A: 255})
}

// Crop returns a copy of the rectangle (x1,y1)-(x2,y2) in any corner order,
// clipped to the frame.
func (f *Frame) Crop(x1, y1, x2, y2 int) *Frame {
	r := image.Rect(x1, y1, x2, y2).Intersect(f.pix.Rect)
	return NewFrame(f.pix.SubImage(r))
}

// Image exposes the frame as a standard image.
func (f *Frame) Image() image.Image {
	return f.pix
}

// gray converts the frame to an 8-bit grayscale image.
func (f *Frame) gray() *image.Gray {
	g := image.NewGray(f.pix.Rect)
	draw.Draw(g, g.Bounds(), f.pix, image.Point{}, draw.Src)
	return g
}

func clampByte(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
