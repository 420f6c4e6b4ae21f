package transcode

import (
	"fmt"

	"github.com/rs/zerolog"
)

// AudioProcessor applies pitch-preserving tempo change and re-packetizes
// the variable-rate stretcher output into fixed-size frames for the
// encoder. Output PTS is a pure counter of emitted samples; combined with
// the muxer's 1/sampleRate time base this makes the emitted duration
// equal inputSamples/speed with no reference to input timestamps.
type AudioProcessor struct {
	speed      float64
	gain       float64
	sampleRate int
	channels   int
	frameSize  int

	stretcher TempoStretcher
	ring      *AudioRingBuffer

	interleaved []float32 // planar->interleaved staging
	scratch     []float32 // stretcher drain buffer
	frameBuf    []float32 // one output frame, interleaved

	processedSamples int64 // PTS counter, in samples
	framesIn         int64
	framesOut        int64

	log zerolog.Logger
}

// NewAudioProcessor builds a processor for planar float input. Any other
// sample format is an init failure: the decode stage is configured to
// deliver planar float, so a mismatch means the pipeline is miswired.
func NewAudioProcessor(cfg Config, info *StreamInfo, frameSize int, log zerolog.Logger) (*AudioProcessor, error) {
	if info.SampleFormat != SampleFormatF32P {
		return nil, fmt.Errorf("audio processor requires planar float input, got %s", info.SampleFormat)
	}
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid audio frame size %d", frameSize)
	}
	p := &AudioProcessor{
		speed:       cfg.SpeedFactor,
		gain:        cfg.AudioGain,
		sampleRate:  info.SampleRate,
		channels:    info.Channels,
		frameSize:   frameSize,
		stretcher:   NewWSOLAStretcher(info.SampleRate, info.Channels, cfg.SpeedFactor),
		ring:        NewAudioRingBuffer(frameSize, info.Channels),
		scratch:     make([]float32, frameSize*info.Channels),
		frameBuf:    make([]float32, frameSize*info.Channels),
		log:         log.With().Str("stage", "audio-process").Logger(),
	}
	return p, nil
}

// Run consumes decoded frames until the input queue closes, then flushes
// and finishes the output queue. It always finishes downstream, even
// after a mid-stream failure, so later stages cannot hang.
func (p *AudioProcessor) Run(in *Queue[*AudioFrame], out *Queue[*AudioFrame]) {
	defer out.Finish()
	p.log.Info().Float64("speed", p.speed).Int("frame_size", p.frameSize).Msg("started")

	for {
		frame, ok := in.Pop()
		if !ok {
			break
		}
		if err := p.processFrame(frame, out); err != nil {
			p.log.Warn().Err(err).Msg("dropping audio frame")
		}
		p.framesIn++
	}

	p.flush(out)
	p.log.Info().Int64("frames_in", p.framesIn).Int64("frames_out", p.framesOut).
		Int64("samples_out", p.processedSamples).Msg("finished")
}

func (p *AudioProcessor) processFrame(frame *AudioFrame, out *Queue[*AudioFrame]) error {
	if frame.Format != SampleFormatF32P || len(frame.Data) < p.channels {
		return fmt.Errorf("unexpected frame format %s", frame.Format)
	}

	n := frame.NbSamples
	need := n * p.channels
	if cap(p.interleaved) < need {
		p.interleaved = make([]float32, need)
	}
	buf := p.interleaved[:need]
	for c := 0; c < p.channels; c++ {
		src := frame.Data[c]
		for i := 0; i < n; i++ {
			buf[i*p.channels+c] = src[i]
		}
	}
	if p.gain != 1.0 {
		g := float32(p.gain)
		for i := range buf {
			buf[i] *= g
		}
	}

	p.stretcher.Put(buf, n)
	p.drainStretcher(out)
	return nil
}

// drainStretcher moves stretcher output through the ring buffer and emits
// every complete fixed-size frame. Receiving at most one frame's worth per
// iteration keeps the write below the ring's 4x headroom.
func (p *AudioProcessor) drainStretcher(out *Queue[*AudioFrame]) {
	for {
		n := p.stretcher.Receive(p.scratch, p.frameSize)
		if n == 0 {
			return
		}
		if !p.ring.Write(p.scratch, n) {
			p.log.Warn().Int("samples", n).Msg("ring buffer full, dropping samples")
			continue
		}
		p.emitFullFrames(out)
	}
}

func (p *AudioProcessor) emitFullFrames(out *Queue[*AudioFrame]) {
	for p.ring.ReadFrame(p.frameBuf) {
		p.emit(p.frameBuf, out)
	}
}

// emit builds one planar output frame of exactly frameSize samples from
// interleaved data and pushes it with the next counter PTS.
func (p *AudioProcessor) emit(interleaved []float32, out *Queue[*AudioFrame]) {
	frame := NewPlanarAudioFrame(p.sampleRate, p.channels, p.frameSize)
	for c := 0; c < p.channels; c++ {
		dst := frame.Data[c]
		for i := 0; i < p.frameSize; i++ {
			dst[i] = interleaved[i*p.channels+c]
		}
	}
	frame.PTS = p.processedSamples
	p.processedSamples += int64(p.frameSize)
	if out.Push(frame) {
		p.framesOut++
	}
}

// flush drains the stretcher tail, then zero-pads any residual partial
// block so the encoder still receives a full frame.
func (p *AudioProcessor) flush(out *Queue[*AudioFrame]) {
	p.stretcher.Flush()
	p.drainStretcher(out)
	p.emitFullFrames(out)

	if residual := p.ring.Available(); residual > 0 {
		for i := range p.frameBuf {
			p.frameBuf[i] = 0
		}
		p.ring.ReadAll(p.frameBuf)
		p.ring.Clear()
		p.emit(p.frameBuf, out)
	}
}
