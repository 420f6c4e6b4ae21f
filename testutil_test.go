package transcode

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
)

// In-memory codec provider used by the pipeline tests. Packets carry
// just enough metadata for the fake decoders to synthesize frames, and
// the fake writer records everything the muxer emits.

const (
	testVideoStream = 0
	testAudioStream = 1
)

func testStreamInfo(videoFrames, audioSamples int) *StreamInfo {
	info := &StreamInfo{}
	if videoFrames >= 0 {
		info.HasVideo = true
		info.VideoStreamIndex = testVideoStream
		info.VideoCodec = VideoCodecMPEG4
		info.Width = 64
		info.Height = 48
		info.FPS = 25
		info.VideoPixelFormat = PixelFormatI420
		info.VideoTimeBase = Rational{Num: 1, Den: 25}
	}
	if audioSamples >= 0 {
		info.HasAudio = true
		info.AudioStreamIndex = testAudioStream
		info.AudioCodec = AudioCodecAAC
		info.SampleRate = 48000
		info.Channels = 2
		info.SampleFormat = SampleFormatF32P
		info.AudioTimeBase = Rational{Num: 1, Den: 48000}
	}
	return info
}

// videoPacket encodes the frame index; the fake decoder turns it back
// into a synthetic frame.
func videoPacket(index int64) *Packet {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(index))
	return &Packet{Data: data, PTS: index, DTS: index, Duration: 1, StreamIndex: testVideoStream}
}

// audioPacket encodes a sample count per channel.
func audioPacket(pts int64, nbSamples int) *Packet {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(nbSamples))
	return &Packet{Data: data, PTS: pts, DTS: pts, Duration: int64(nbSamples), StreamIndex: testAudioStream}
}

// testPackets builds an interleaved packet sequence for n video frames
// and total audio samples split into frames of audioFrameLen. Packets are
// ordered by presentation time (25 fps video, 48 kHz audio), video first
// on ties, as a container demuxer would deliver them.
func testPackets(videoFrames, audioSamples, audioFrameLen int) []*Packet {
	var packets []*Packet
	v, pts := int64(0), int64(0)
	for v < int64(videoFrames) || pts < int64(audioSamples) {
		if v < int64(videoFrames) && (pts >= int64(audioSamples) || v*48000 <= pts*25) {
			packets = append(packets, videoPacket(v))
			v++
			continue
		}
		n := int64(audioFrameLen)
		if remaining := int64(audioSamples) - pts; n > remaining {
			n = remaining
		}
		packets = append(packets, audioPacket(pts, int(n)))
		pts += n
	}
	return packets
}

type fakeSource struct {
	info    *StreamInfo
	packets []*Packet
	pos     int
	closed  bool
}

func (s *fakeSource) StreamInfo() *StreamInfo { return s.info }

func (s *fakeSource) ReadPacket() (*Packet, error) {
	if s.pos >= len(s.packets) {
		return nil, io.EOF
	}
	pkt := s.packets[s.pos]
	s.pos++
	return pkt, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// gradientFrame synthesizes an I420 frame whose luma encodes the frame
// index, so tests can follow frames through the pipeline.
func gradientFrame(info *StreamInfo, index int64) *VideoFrame {
	frame := NewI420Frame(info.Width, info.Height)
	frame.PTS = index
	for y := 0; y < info.Height; y++ {
		for x := 0; x < info.Width; x++ {
			frame.Data[0][y*frame.Stride[0]+x] = byte((int64(x+y) + index) % 256)
		}
	}
	for i := range frame.Data[1] {
		frame.Data[1][i] = 100
		frame.Data[2][i] = 200
	}
	return frame
}

// sineFrame synthesizes a planar float stereo frame.
func sineFrame(info *StreamInfo, pts int64, nbSamples int) *AudioFrame {
	frame := NewPlanarAudioFrame(info.SampleRate, info.Channels, nbSamples)
	frame.PTS = pts
	for c := 0; c < info.Channels; c++ {
		for i := 0; i < nbSamples; i++ {
			t := float64(pts + int64(i))
			frame.Data[c][i] = float32(0.25 * math.Sin(2*math.Pi*440*t/float64(info.SampleRate)))
		}
	}
	return frame
}

type fakeVideoDecoder struct {
	info    *StreamInfo
	pending []*VideoFrame
	flushed bool
	closed  bool
}

func (d *fakeVideoDecoder) SendPacket(pkt *Packet) error {
	if pkt == nil {
		d.flushed = true
		return nil
	}
	index := int64(binary.LittleEndian.Uint64(pkt.Data))
	d.pending = append(d.pending, gradientFrame(d.info, index))
	return nil
}

func (d *fakeVideoDecoder) ReceiveFrame() (*VideoFrame, error) {
	if len(d.pending) == 0 {
		if d.flushed {
			return nil, io.EOF
		}
		return nil, ErrAgain
	}
	frame := d.pending[0]
	d.pending = d.pending[1:]
	return frame, nil
}

func (d *fakeVideoDecoder) Close() error {
	d.closed = true
	return nil
}

type fakeAudioDecoder struct {
	info    *StreamInfo
	pending []*AudioFrame
	flushed bool
	closed  bool
}

func (d *fakeAudioDecoder) SendPacket(pkt *Packet) error {
	if pkt == nil {
		d.flushed = true
		return nil
	}
	nbSamples := int(binary.LittleEndian.Uint64(pkt.Data))
	d.pending = append(d.pending, sineFrame(d.info, pkt.PTS, nbSamples))
	return nil
}

func (d *fakeAudioDecoder) ReceiveFrame() (*AudioFrame, error) {
	if len(d.pending) == 0 {
		if d.flushed {
			return nil, io.EOF
		}
		return nil, ErrAgain
	}
	frame := d.pending[0]
	d.pending = d.pending[1:]
	return frame, nil
}

func (d *fakeAudioDecoder) Close() error {
	d.closed = true
	return nil
}

// fakeVideoEncoder emits one packet per submitted frame, preserving PTS.
// It also remembers whether every frame's chroma was neutral, so
// pipeline tests can observe the grayscale filter end to end.
type fakeVideoEncoder struct {
	pending       []*Packet
	flushed       bool
	closed        bool
	frames        int64
	chromaNeutral bool
}

func (e *fakeVideoEncoder) SendFrame(frame *VideoFrame) error {
	if frame == nil {
		e.flushed = true
		return nil
	}
	if e.frames == 0 {
		e.chromaNeutral = true
	}
	for _, plane := range frame.Data[1:3] {
		for _, v := range plane {
			if v != 128 {
				e.chromaNeutral = false
				break
			}
		}
	}
	e.frames++
	e.pending = append(e.pending, &Packet{Data: []byte{0}, PTS: frame.PTS, DTS: frame.PTS, Duration: 1})
	return nil
}

func (e *fakeVideoEncoder) ReceivePacket() (*Packet, error) {
	if len(e.pending) == 0 {
		if e.flushed {
			return nil, io.EOF
		}
		return nil, ErrAgain
	}
	pkt := e.pending[0]
	e.pending = e.pending[1:]
	return pkt, nil
}

func (e *fakeVideoEncoder) Close() error {
	e.closed = true
	return nil
}

type fakeAudioCodecEncoder struct {
	pending []*Packet
	flushed bool
	closed  bool
}

func (e *fakeAudioCodecEncoder) SendFrame(frame *AudioFrame) error {
	if frame == nil {
		e.flushed = true
		return nil
	}
	e.pending = append(e.pending, &Packet{Data: []byte{0}, PTS: frame.PTS, DTS: frame.PTS, Duration: int64(frame.NbSamples)})
	return nil
}

func (e *fakeAudioCodecEncoder) ReceivePacket() (*Packet, error) {
	if len(e.pending) == 0 {
		if e.flushed {
			return nil, io.EOF
		}
		return nil, ErrAgain
	}
	pkt := e.pending[0]
	e.pending = e.pending[1:]
	return pkt, nil
}

func (e *fakeAudioCodecEncoder) Close() error {
	e.closed = true
	return nil
}

type writtenPacket struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
}

// fakeWriter records the muxer's output.
type fakeWriter struct {
	mu             sync.Mutex
	videoStreams   int
	audioStreams   int
	headerWritten  bool
	trailerWritten bool
	closed         bool
	packets        []writtenPacket
}

func (w *fakeWriter) AddVideoStream(VideoStreamParams) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.videoStreams++
	return w.videoStreams + w.audioStreams - 1, nil
}

func (w *fakeWriter) AddAudioStream(AudioStreamParams) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.audioStreams++
	return w.videoStreams + w.audioStreams - 1, nil
}

func (w *fakeWriter) WriteHeader() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.headerWritten = true
	return nil
}

func (w *fakeWriter) WriteInterleaved(pkt *Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.packets = append(w.packets, writtenPacket{
		StreamIndex: pkt.StreamIndex,
		PTS:         pkt.PTS,
		DTS:         pkt.DTS,
		Duration:    pkt.Duration,
	})
	return nil
}

func (w *fakeWriter) WriteTrailer() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.trailerWritten = true
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) streamPackets(stream int) []writtenPacket {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []writtenPacket
	for _, pkt := range w.packets {
		if pkt.StreamIndex == stream {
			out = append(out, pkt)
		}
	}
	return out
}

// fakeProvider wires the fakes into the CodecProvider interface and
// keeps references to the source, video encoder and writer it hands out
// so tests can inspect them after the pipeline joins.
type fakeProvider struct {
	info    *StreamInfo
	packets []*Packet
	writer  *fakeWriter

	source       *fakeSource
	videoEncoder *fakeVideoEncoder
}

func newFakeProvider(info *StreamInfo, packets []*Packet) *fakeProvider {
	return &fakeProvider{info: info, packets: packets, writer: &fakeWriter{}}
}

func (p *fakeProvider) OpenInput(string) (PacketSource, error) {
	p.source = &fakeSource{info: p.info, packets: p.packets}
	return p.source, nil
}

func (p *fakeProvider) NewVideoDecoder(info *StreamInfo) (VideoDecoder, error) {
	return &fakeVideoDecoder{info: info}, nil
}

func (p *fakeProvider) NewAudioDecoder(info *StreamInfo) (AudioDecoder, error) {
	return &fakeAudioDecoder{info: info}, nil
}

func (p *fakeProvider) NewVideoEncoder(VideoEncoderParams) (VideoEncoder, error) {
	p.videoEncoder = &fakeVideoEncoder{}
	return p.videoEncoder, nil
}

func (p *fakeProvider) NewAudioEncoder(AudioEncoderParams) (AudioCodecEncoder, error) {
	return &fakeAudioCodecEncoder{}, nil
}

func (p *fakeProvider) CreateOutput(string, string) (ContainerWriter, error) {
	return p.writer, nil
}
