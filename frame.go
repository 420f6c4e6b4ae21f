// Core frame, packet and stream descriptor types used across the pipeline.
package transcode

// PixelFormat represents video pixel formats.
type PixelFormat int

const (
	PixelFormatI420  PixelFormat = iota // YUV 4:2:0 planar (Y + U + V)
	PixelFormatNV12                     // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatRGB24                    // Packed RGB, 3 bytes per pixel
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatRGB24:
		return "RGB24"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3
	case PixelFormatNV12:
		return 2
	case PixelFormatRGB24:
		return 1
	default:
		return 0
	}
}

// SampleFormat represents audio sample formats.
type SampleFormat int

const (
	SampleFormatS16  SampleFormat = iota // Signed 16-bit PCM, interleaved
	SampleFormatF32                      // 32-bit float, interleaved
	SampleFormatF32P                     // 32-bit float, planar (one buffer per channel)
)

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatS16:
		return "S16"
	case SampleFormatF32:
		return "F32"
	case SampleFormatF32P:
		return "F32P"
	default:
		return "Unknown"
	}
}

// Planar reports whether each channel occupies its own buffer.
func (f SampleFormat) Planar() bool {
	return f == SampleFormatF32P
}

// Rational is an exact time base or frame rate (Num/Den).
type Rational struct {
	Num int64
	Den int64
}

// Invert returns Den/Num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// Seconds converts ts ticks of this time base into seconds.
func (r Rational) Seconds(ts int64) float64 {
	return float64(ts) * float64(r.Num) / float64(r.Den)
}

// RescaleTS converts a timestamp from one time base to another, rounding
// to nearest. NoPTS passes through unchanged.
func RescaleTS(ts int64, from, to Rational) int64 {
	if ts == NoPTS {
		return NoPTS
	}
	num := ts * from.Num * to.Den
	den := from.Den * to.Num
	if num >= 0 {
		return (num + den/2) / den
	}
	return (num - den/2) / den
}

// NoPTS marks a missing timestamp, mirroring the codec library convention.
const NoPTS int64 = -1 << 63

// Packet is an owning handle to compressed media bytes. A packet lives in
// exactly one queue slot or one stage-local variable at a time; transfer
// through a queue is a move. Native-backed packets carry a release hook.
type Packet struct {
	Data        []byte
	PTS         int64
	DTS         int64
	Duration    int64
	StreamIndex int

	release func() // frees native payload, nil for Go-allocated packets
}

// Free releases the packet payload. Safe to call more than once.
func (p *Packet) Free() {
	if p == nil {
		return
	}
	if p.release != nil {
		p.release()
		p.release = nil
	}
	p.Data = nil
}

// Clone creates an independent copy of the packet and its payload.
func (p *Packet) Clone() *Packet {
	clone := &Packet{
		PTS:         p.PTS,
		DTS:         p.DTS,
		Duration:    p.Duration,
		StreamIndex: p.StreamIndex,
	}
	if p.Data != nil {
		clone.Data = make([]byte, len(p.Data))
		copy(clone.Data, p.Data)
	}
	return clone
}

// VideoFrame represents a raw decoded video frame.
// The Data slices may point to external memory (e.g., native memory via
// FFI). Callers must ensure the data remains valid for the lifetime of
// the frame.
type VideoFrame struct {
	Data   [][]byte    // Plane data (1-3 planes depending on format)
	Stride []int       // Stride for each plane in bytes
	Width  int         // Frame width in pixels
	Height int         // Frame height in pixels
	Format PixelFormat // Pixel format
	PTS    int64       // Presentation timestamp in stream time-base ticks
}

// Clone creates a deep copy of the video frame.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:   make([][]byte, len(f.Data)),
		Stride: make([]int, len(f.Stride)),
		Width:  f.Width,
		Height: f.Height,
		Format: f.Format,
		PTS:    f.PTS,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return clone
}

// ShareData returns a new frame header that references this frame's pixel
// planes without copying them. Used for duplicated frames during slow-down,
// where duplicates differ only in PTS.
func (f *VideoFrame) ShareData() *VideoFrame {
	clone := *f
	return &clone
}

// NewI420Frame allocates a zeroed I420 frame of the given dimensions.
func NewI420Frame(width, height int) *VideoFrame {
	cw, ch := (width+1)/2, (height+1)/2
	return &VideoFrame{
		Data:   [][]byte{make([]byte, width*height), make([]byte, cw*ch), make([]byte, cw*ch)},
		Stride: []int{width, cw, cw},
		Width:  width,
		Height: height,
		Format: PixelFormatI420,
	}
}

// I420Size returns the total buffer size needed for an I420 frame.
func I420Size(width, height int) int {
	ySize := width * height
	uvSize := ((width + 1) / 2) * ((height + 1) / 2)
	return ySize + uvSize*2
}

// AudioFrame represents a block of decoded audio samples. Planar formats
// keep one buffer per channel in Data; interleaved formats use Data[0].
type AudioFrame struct {
	Data       [][]float32  // Per-channel samples (planar) or Data[0] (interleaved)
	SampleRate int          // Sample rate (e.g., 48000)
	Channels   int          // Number of channels
	Format     SampleFormat // Sample format
	NbSamples  int          // Samples per channel
	PTS        int64        // Presentation timestamp in sample ticks
}

// Clone creates a deep copy of the audio frame.
func (f *AudioFrame) Clone() *AudioFrame {
	clone := &AudioFrame{
		Data:       make([][]float32, len(f.Data)),
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		Format:     f.Format,
		NbSamples:  f.NbSamples,
		PTS:        f.PTS,
	}
	for i, ch := range f.Data {
		if ch != nil {
			clone.Data[i] = make([]float32, len(ch))
			copy(clone.Data[i], ch)
		}
	}
	return clone
}

// NewPlanarAudioFrame allocates a zeroed planar float frame.
func NewPlanarAudioFrame(sampleRate, channels, nbSamples int) *AudioFrame {
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, nbSamples)
	}
	return &AudioFrame{
		Data:       data,
		SampleRate: sampleRate,
		Channels:   channels,
		Format:     SampleFormatF32P,
		NbSamples:  nbSamples,
	}
}

// StreamInfo describes the streams of a probed input. It is created once
// by the demuxer prelude and shared read-only with every stage.
type StreamInfo struct {
	HasVideo         bool
	VideoStreamIndex int
	VideoCodec       VideoCodecID
	Width            int
	Height           int
	FPS              int
	VideoPixelFormat PixelFormat
	VideoTimeBase    Rational // time base of input video packets
	VideoExtraData   []byte   // codec-specific config (SPS/PPS etc.)

	HasAudio         bool
	AudioStreamIndex int
	AudioCodec       AudioCodecID
	SampleRate       int
	Channels         int
	SampleFormat     SampleFormat
	AudioTimeBase    Rational // time base of input audio packets
	AudioExtraData   []byte

	native uint64 // native input handle, set by the libstream_av binding
}
