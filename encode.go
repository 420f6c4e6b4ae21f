package transcode

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// runVideoEncode pops processed frames, submits them to the encoder, and
// pushes every produced packet downstream. On input close it flushes the
// encoder and finishes the output queue.
func runVideoEncode(in *Queue[*VideoFrame], out *Queue[*Packet], enc VideoEncoder, log zerolog.Logger) {
	log = log.With().Str("stage", "video-encode").Logger()
	defer out.Finish()
	defer enc.Close()
	log.Info().Msg("started")

	var frames, packets int64
	for {
		frame, ok := in.Pop()
		var submit *VideoFrame
		if ok {
			frames++
			submit = frame
		}
		if err := enc.SendFrame(submit); err != nil {
			log.Warn().Err(err).Msg("encoder rejected frame")
			if !ok {
				break
			}
			continue
		}
		eos := drainEncoder(enc.ReceivePacket, out, &packets, log)
		if !ok || eos {
			break
		}
	}
	log.Info().Int64("frames", frames).Int64("packets", packets).Msg("finished")
}

// drainEncoder pulls packets until the encoder wants more input (false)
// or reports end of stream (true).
func drainEncoder(receive func() (*Packet, error), out *Queue[*Packet], packets *int64, log zerolog.Logger) bool {
	for {
		pkt, err := receive()
		switch {
		case err == nil:
			if out.Push(pkt) {
				*packets++
			} else {
				pkt.Free()
			}
		case errors.Is(err, ErrAgain):
			return false
		case errors.Is(err, io.EOF):
			return true
		default:
			log.Warn().Err(err).Msg("transient encode error")
			return false
		}
	}
}

// AudioEncoder is the format-level audio encoder capability: a uniform
// contract over the concrete AC3/AAC/MP3 encoders and the packet
// passthrough. Construction is the only thing that differs per format.
type AudioEncoder interface {
	io.Closer

	// EncodeFrame submits one frame and returns any packets produced.
	EncodeFrame(frame *AudioFrame) ([]*Packet, error)

	// Flush drains the tail after the last frame.
	Flush() ([]*Packet, error)

	Name() string
}

// NewAudioEncoder is the factory dispatching on the target format. The
// returned encoder owns the underlying codec handle.
func NewAudioEncoder(format TargetAudioFormat, params AudioEncoderParams, provider CodecProvider) (AudioEncoder, error) {
	switch format {
	case TargetAudioAC3, TargetAudioAAC, TargetAudioMP3:
		params.Codec = format.CodecID()
		codec, err := provider.NewAudioEncoder(params)
		if err != nil {
			return nil, fmt.Errorf("open %s encoder: %w", format, err)
		}
		return &codecAudioEncoder{
			codec:     codec,
			name:      format.String(),
			frameSize: format.FrameSize(),
		}, nil
	case TargetAudioCopy:
		return &copyAudioEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported audio format %d", format)
	}
}

// codecAudioEncoder adapts the low-level send/receive codec primitive to
// the format-level contract, enforcing the codec's fixed block size.
type codecAudioEncoder struct {
	codec     AudioCodecEncoder
	name      string
	frameSize int // required samples per frame, 0 = no constraint
}

func (e *codecAudioEncoder) Name() string { return e.name }

func (e *codecAudioEncoder) EncodeFrame(frame *AudioFrame) ([]*Packet, error) {
	if e.frameSize > 0 && frame.NbSamples != e.frameSize {
		return nil, fmt.Errorf("%s encoder requires %d samples per frame, got %d",
			e.name, e.frameSize, frame.NbSamples)
	}
	if err := e.codec.SendFrame(frame); err != nil {
		return nil, err
	}
	return e.receiveAll()
}

func (e *codecAudioEncoder) Flush() ([]*Packet, error) {
	if err := e.codec.SendFrame(nil); err != nil {
		return nil, err
	}
	return e.receiveAll()
}

func (e *codecAudioEncoder) receiveAll() ([]*Packet, error) {
	var packets []*Packet
	for {
		pkt, err := e.codec.ReceivePacket()
		if err == nil {
			packets = append(packets, pkt)
			continue
		}
		if errors.Is(err, ErrAgain) || errors.Is(err, io.EOF) {
			return packets, nil
		}
		return packets, err
	}
}

func (e *codecAudioEncoder) Close() error { return e.codec.Close() }

// copyAudioEncoder is the COPY target. Passthrough happens at the packet
// level (demuxer output wired directly to the muxer); this frame-level
// path is intentionally non-functional and reports misuse.
type copyAudioEncoder struct{}

func (e *copyAudioEncoder) Name() string { return "COPY" }

func (e *copyAudioEncoder) EncodeFrame(*AudioFrame) ([]*Packet, error) {
	return nil, errors.New("copy encoder accepts packets, not frames")
}

func (e *copyAudioEncoder) Flush() ([]*Packet, error) { return nil, nil }

func (e *copyAudioEncoder) Close() error { return nil }

// runAudioEncode pops fixed-size frames from the audio processor and
// routes the factory encoder's packets downstream. Per-frame failures
// (e.g. a wrong-size block reaching AC3) are logged and dropped.
func runAudioEncode(in *Queue[*AudioFrame], out *Queue[*Packet], enc AudioEncoder, log zerolog.Logger) {
	log = log.With().Str("stage", "audio-encode").Str("encoder", enc.Name()).Logger()
	defer out.Finish()
	defer enc.Close()
	log.Info().Msg("started")

	var frames, packets int64
	for {
		frame, ok := in.Pop()
		if !ok {
			break
		}
		frames++
		pkts, err := enc.EncodeFrame(frame)
		if err != nil {
			log.Warn().Err(err).Msg("dropping audio frame")
		}
		pushPackets(pkts, out, &packets)
	}

	pkts, err := enc.Flush()
	if err != nil {
		log.Warn().Err(err).Msg("flush failed")
	}
	pushPackets(pkts, out, &packets)
	log.Info().Int64("frames", frames).Int64("packets", packets).Msg("finished")
}

func pushPackets(pkts []*Packet, out *Queue[*Packet], count *int64) {
	for _, pkt := range pkts {
		if out.Push(pkt) {
			*count++
		} else {
			pkt.Free()
		}
	}
}
