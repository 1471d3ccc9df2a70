// Package pixelsink holds the destinations for finished pixels: image files,
// the live framebuffer, and fan-out across several of them.
package pixelsink

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"

	"lumen/rgb"
)

var ErrOutOfOrder = errors.New("pixel written out of order")

// Sink accepts tone-mapped pixels addressed by row (0 is the top) and column.
type Sink interface {
	WritePixel(row, col int, p rgb.Pixel) error
	Close() error
}

// PPM writes the plain-text P3 format.  Pixels must arrive in row-major order,
// top row first.
type PPM struct {
	w          *bufio.Writer
	rows, cols int
	next       int
}

// NewPPM writes the header immediately.  Close flushes but does not close w.
func NewPPM(w io.Writer, rows, cols int) (*PPM, error) {
	p := &PPM{w: bufio.NewWriter(w), rows: rows, cols: cols}
	if _, err := fmt.Fprintf(p.w, "P3\n%d %d\n255\n", cols, rows); err != nil {
		return nil, fmt.Errorf("while writing header: %w", err)
	}
	return p, nil
}

func (p *PPM) WritePixel(row, col int, px rgb.Pixel) error {
	if p.next >= p.rows*p.cols || row*p.cols+col != p.next || col >= p.cols {
		return fmt.Errorf("%w: got (%d, %d), want pixel %d of %d", ErrOutOfOrder, row, col, p.next, p.rows*p.cols)
	}
	p.next++
	if _, err := fmt.Fprintf(p.w, "%d %d %d\n", px[0], px[1], px[2]); err != nil {
		return fmt.Errorf("while writing pixel: %w", err)
	}
	return nil
}

func (p *PPM) Close() error {
	if err := p.w.Flush(); err != nil {
		return fmt.Errorf("while flushing: %w", err)
	}
	if p.next != p.rows*p.cols {
		return fmt.Errorf("image incomplete: %d of %d pixels written", p.next, p.rows*p.cols)
	}
	return nil
}

// Framebuffer is an in-memory image that may be written and read
// concurrently.
type Framebuffer struct {
	mu  sync.Mutex
	img *image.NRGBA
}

func NewFramebuffer(rows, cols int) *Framebuffer {
	return &Framebuffer{img: image.NewNRGBA(image.Rect(0, 0, cols, rows))}
}

func (f *Framebuffer) WritePixel(row, col int, p rgb.Pixel) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !(image.Point{X: col, Y: row}).In(f.img.Rect) {
		return fmt.Errorf("pixel (%d, %d) outside %v", row, col, f.img.Rect)
	}
	f.img.SetNRGBA(col, row, color.NRGBA{R: p[0], G: p[1], B: p[2], A: 255})
	return nil
}

func (f *Framebuffer) Close() error {
	return nil
}

func (f *Framebuffer) Pixel(row, col int) rgb.Pixel {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.img.NRGBAAt(col, row)
	return rgb.Pixel{c.R, c.G, c.B}
}

// Snapshot copies the current contents.
func (f *Framebuffer) Snapshot() *image.NRGBA {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := image.NewNRGBA(f.img.Rect)
	copy(out.Pix, f.img.Pix)
	return out
}

func (f *Framebuffer) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, f.Snapshot()); err != nil {
		return fmt.Errorf("while encoding png: %w", err)
	}
	return nil
}

// PNG buffers the whole image and encodes it to w on Close.
type PNG struct {
	fb *Framebuffer
	w  io.Writer
}

func NewPNG(w io.Writer, rows, cols int) *PNG {
	return &PNG{fb: NewFramebuffer(rows, cols), w: w}
}

func (p *PNG) WritePixel(row, col int, px rgb.Pixel) error {
	return p.fb.WritePixel(row, col, px)
}

func (p *PNG) Close() error {
	return p.fb.EncodePNG(p.w)
}

// Multi fans every pixel out to each sink in turn.
type Multi []Sink

func (m Multi) WritePixel(row, col int, p rgb.Pixel) error {
	for i, s := range m {
		if err := s.WritePixel(row, col, p); err != nil {
			return fmt.Errorf("while writing to sink %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every sink, even after a failure, and reports the first error.
func (m Multi) Close() error {
	var first error
	for i, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = fmt.Errorf("while closing sink %d: %w", i, err)
		}
	}
	return first
}
