// Package frame post-processes raw screenshots into publishable images.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
)

// Options controls the square framing pass.
type Options struct {
	Background  color.Color
	JPEGQuality int
}

// Result carries the encoded image and its final dimensions.
type Result struct {
	JPEG   []byte
	Width  int
	Height int
}

// SquareJPEG pastes the PNG screenshot centered onto a square canvas whose
// side equals the larger screenshot dimension, then encodes it as JPEG.
// Keeping the artifact square makes it directly usable on feeds that crop
// to 1:1.
func SquareJPEG(pngData []byte, opts Options) (Result, error) {
	if opts.Background == nil {
		opts.Background = color.Black
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 95
	}

	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return Result{}, fmt.Errorf("decode screenshot: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	side := w
	if h > side {
		side = h
	}

	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	offset := image.Pt((side-w)/2, (side-h)/2)
	draw.Draw(canvas, image.Rectangle{Min: offset, Max: offset.Add(image.Pt(w, h))}, src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
		return Result{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return Result{
		JPEG:   buf.Bytes(),
		Width:  side,
		Height: side,
	}, nil
}
