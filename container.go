package transcode

import (
	"errors"
	"io"
)

// The codec library boundary. The pipeline engine drives these interfaces
// and never touches codec internals; implementations wrap a real codec
// library (see the libstream_av binding) or synthetic codecs in tests.

// ErrAgain is returned by Receive-style calls when the codec needs more
// input before it can produce output.
var ErrAgain = errors.New("codec needs more input")

// io.EOF from a Receive-style call means the codec is fully drained after
// a flush; there is nothing more to submit or receive.

// PacketSource reads demuxed packets from an opened container.
type PacketSource interface {
	io.Closer

	// StreamInfo returns the immutable probe result. Valid before the
	// first ReadPacket call.
	StreamInfo() *StreamInfo

	// ReadPacket returns the next packet in file order, or io.EOF at the
	// end of the container.
	ReadPacket() (*Packet, error)
}

// VideoDecoder turns compressed packets into raw frames.
// SendPacket(nil) flushes; ReceiveFrame then drains buffered frames and
// finally returns io.EOF.
type VideoDecoder interface {
	io.Closer
	SendPacket(pkt *Packet) error
	ReceiveFrame() (*VideoFrame, error)
}

// AudioDecoder is the audio counterpart of VideoDecoder.
type AudioDecoder interface {
	io.Closer
	SendPacket(pkt *Packet) error
	ReceiveFrame() (*AudioFrame, error)
}

// VideoEncoder turns raw frames into compressed packets.
// SendFrame(nil) flushes; ReceivePacket then drains buffered packets and
// finally returns io.EOF.
type VideoEncoder interface {
	io.Closer
	SendFrame(frame *VideoFrame) error
	ReceivePacket() (*Packet, error)
}

// AudioCodecEncoder is the low-level audio encoder primitive with the
// same send/receive contract as VideoEncoder. Format-level policy (fixed
// block sizes, passthrough) lives in the AudioEncoder wrappers.
type AudioCodecEncoder interface {
	io.Closer
	SendFrame(frame *AudioFrame) error
	ReceivePacket() (*Packet, error)
}

// VideoEncoderParams configures a video encoder.
type VideoEncoderParams struct {
	Codec   VideoCodecID
	Width   int
	Height  int
	FPS     int
	Bitrate int
	GOPSize int // 0 = encoder default
}

// AudioEncoderParams configures an audio encoder.
type AudioEncoderParams struct {
	Codec      AudioCodecID
	SampleRate int
	Channels   int
	Bitrate    int
}

// VideoStreamParams describes a video output stream for the muxer.
type VideoStreamParams struct {
	Codec     VideoCodecID
	Width     int
	Height    int
	FPS       int
	TimeBase  Rational // 1/fps
	ExtraData []byte
}

// AudioStreamParams describes an audio output stream for the muxer.
type AudioStreamParams struct {
	Codec      AudioCodecID
	SampleRate int
	Channels   int
	TimeBase   Rational // 1/sampleRate
	ExtraData  []byte
}

// ContainerWriter writes an output container. Streams are added before
// WriteHeader; packets carry timestamps already rescaled to the target
// stream's time base.
type ContainerWriter interface {
	io.Closer
	AddVideoStream(p VideoStreamParams) (streamIndex int, err error)
	AddAudioStream(p AudioStreamParams) (streamIndex int, err error)
	WriteHeader() error
	WriteInterleaved(pkt *Packet) error
	WriteTrailer() error
}

// CodecProvider constructs the codec-library primitives the pipeline
// needs. The production implementation binds a native codec library; test
// providers are in-memory.
type CodecProvider interface {
	OpenInput(path string) (PacketSource, error)
	NewVideoDecoder(info *StreamInfo) (VideoDecoder, error)
	NewAudioDecoder(info *StreamInfo) (AudioDecoder, error)
	NewVideoEncoder(p VideoEncoderParams) (VideoEncoder, error)
	NewAudioEncoder(p AudioEncoderParams) (AudioCodecEncoder, error)
	CreateOutput(path, format string) (ContainerWriter, error)
}
