package transcode

import (
	"io"
	"math"
)

// FrameRotator rotates a video frame about its center, clipping the
// result to the input dimensions. The CPU implementation below and a GPU
// shader implementation are interchangeable; whichever is used stays
// confined to the video-processor goroutine.
type FrameRotator interface {
	io.Closer
	Rotate(f *VideoFrame, degrees float32) (*VideoFrame, error)
}

// CPURotator rotates I420 frames on the CPU by converting to RGB,
// applying an inverse-mapped rotation about the image center, and
// converting back to I420. Pixels that fall outside the source map to
// black.
type CPURotator struct {
	rgb []byte // scratch RGB24 plane, reused across frames
}

// NewCPURotator creates a CPU rotator.
func NewCPURotator() *CPURotator {
	return &CPURotator{}
}

// Close implements FrameRotator. The CPU rotator holds no resources
// beyond its scratch buffer.
func (r *CPURotator) Close() error { return nil }

// Rotate returns a new frame rotated by the given angle. Zero degrees
// returns the input unchanged.
func (r *CPURotator) Rotate(f *VideoFrame, degrees float32) (*VideoFrame, error) {
	if degrees == 0 {
		return f, nil
	}
	w, h := f.Width, f.Height
	if cap(r.rgb) < w*h*3 {
		r.rgb = make([]byte, w*h*3)
	}
	rgb := r.rgb[:w*h*3]
	i420ToRGB(f, rgb)

	out := make([]byte, w*h*3)
	rad := float64(degrees) * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(w-1)/2, float64(h-1)/2

	// Inverse mapping: for each destination pixel, sample the source
	// location obtained by rotating back around the center.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			sx := int(math.Round(cos*dx + sin*dy + cx))
			sy := int(math.Round(-sin*dx + cos*dy + cy))
			di := (y*w + x) * 3
			if sx >= 0 && sx < w && sy >= 0 && sy < h {
				si := (sy*w + sx) * 3
				out[di], out[di+1], out[di+2] = rgb[si], rgb[si+1], rgb[si+2]
			}
		}
	}

	rotated := NewI420Frame(w, h)
	rotated.PTS = f.PTS
	rgbToI420(out, rotated)
	return rotated, nil
}

// BT.601 full-range conversions.

func i420ToRGB(f *VideoFrame, rgb []byte) {
	w, h := f.Width, f.Height
	yp, up, vp := f.Data[0], f.Data[1], f.Data[2]
	ys, cs := f.Stride[0], f.Stride[1]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			Y := float64(yp[y*ys+x])
			U := float64(up[(y/2)*cs+x/2]) - 128
			V := float64(vp[(y/2)*cs+x/2]) - 128
			i := (y*w + x) * 3
			rgb[i] = clampByte(int32(Y + 1.402*V))
			rgb[i+1] = clampByte(int32(Y - 0.344136*U - 0.714136*V))
			rgb[i+2] = clampByte(int32(Y + 1.772*U))
		}
	}
}

func rgbToI420(rgb []byte, f *VideoFrame) {
	w, h := f.Width, f.Height
	yp, up, vp := f.Data[0], f.Data[1], f.Data[2]
	ys, cs := f.Stride[0], f.Stride[1]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			R, G, B := float64(rgb[i]), float64(rgb[i+1]), float64(rgb[i+2])
			yp[y*ys+x] = clampByte(int32(0.299*R + 0.587*G + 0.114*B))
			if y%2 == 0 && x%2 == 0 {
				up[(y/2)*cs+x/2] = clampByte(int32(-0.168736*R - 0.331264*G + 0.5*B + 128))
				vp[(y/2)*cs+x/2] = clampByte(int32(0.5*R - 0.418688*G - 0.081312*B + 128))
			}
		}
	}
}
