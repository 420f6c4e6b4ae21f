//go:build (darwin || linux) && !noav

// Native codec library support via libstream_av using purego.
//
// libstream_av is a thin wrapper around FFmpeg (libavformat/libavcodec)
// with a simple primitive-only API, loaded dynamically at runtime. It
// supplies the container demuxer/muxer and the codec send/receive
// primitives; the pipeline engine itself never touches libav directly.

package transcode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	streamAVOnce    sync.Once
	streamAVHandle  uintptr
	streamAVInitErr error
)

// libstream_av function pointers
var (
	savOpenInput       func(path string) uint64
	savInputStreamInfo func(input uint64, out uintptr) int32
	savReadPacket      func(input uint64, data uintptr, capacity int32, meta uintptr) int32
	savCloseInput      func(input uint64)

	savDecoderOpen         func(input uint64, streamIndex int32) uint64
	savDecoderSend         func(decoder uint64, data uintptr, size int32, pts, dts int64) int32
	savDecoderReceiveVideo func(decoder uint64, buf uintptr, capacity int32, meta uintptr) int32
	savDecoderReceiveAudio func(decoder uint64, buf uintptr, capacity int32, meta uintptr) int32
	savDecoderClose        func(decoder uint64)

	savEncoderOpenVideo func(codec, width, height, fps, bitrate, gop int32) uint64
	savEncoderOpenAudio func(codec, sampleRate, channels, bitrate int32) uint64
	savEncoderSendVideo func(encoder uint64, buf uintptr, size int32, pts int64) int32
	savEncoderSendAudio func(encoder uint64, buf uintptr, nbSamples int32, pts int64) int32
	savEncoderReceive   func(encoder uint64, buf uintptr, capacity int32, meta uintptr) int32
	savEncoderClose     func(encoder uint64)

	savOutputOpen           func(path, format string) uint64
	savOutputAddVideoStream func(output uint64, codec, width, height, fps int32, tbNum, tbDen int64) int32
	savOutputAddAudioStream func(output uint64, codec, sampleRate, channels int32, tbNum, tbDen int64) int32
	savOutputWriteHeader    func(output uint64) int32
	savOutputWritePacket    func(output uint64, stream int32, data uintptr, size int32, pts, dts, duration int64) int32
	savOutputWriteTrailer   func(output uint64) int32
	savOutputClose          func(output uint64)

	savGetError   func() uintptr
	savGetVersion func() uintptr
)

// Return codes from stream_av.h
const (
	savAgain = 0
	savErr   = -1
	savEOF   = -2
)

// Codec and format identifiers from stream_av.h. They match the public
// enums one-to-one so translation is a cast.
const (
	savCodecMPEG4 = 1
	savCodecH264  = 2
	savCodecMJPEG = 3

	savCodecAC3 = 1
	savCodecAAC = 2
	savCodecMP3 = 3
	savCodecPCM = 4

	savPixFmtI420    = 0
	savSampleFmtF32P = 2
)

// packI420 serializes a frame's planes into one contiguous buffer in
// Y, U, V order, dropping stride padding. Returns the bytes written.
func packI420(frame *VideoFrame, out []byte) int {
	w, h := frame.Width, frame.Height
	cw, ch := (w+1)/2, (h+1)/2
	n := 0
	dims := [3][2]int{{w, h}, {cw, ch}, {cw, ch}}
	for p := 0; p < 3; p++ {
		pw, ph := dims[p][0], dims[p][1]
		stride := frame.Stride[p]
		for y := 0; y < ph; y++ {
			copy(out[n:n+pw], frame.Data[p][y*stride:])
			n += pw
		}
	}
	return n
}

// unpackI420 is the inverse of packI420 into a tightly-strided frame.
func unpackI420(in []byte, frame *VideoFrame) {
	w, h := frame.Width, frame.Height
	cw, ch := (w+1)/2, (h+1)/2
	n := 0
	sizes := []int{w * h, cw * ch, cw * ch}
	for p := 0; p < 3; p++ {
		copy(frame.Data[p], in[n:n+sizes[p]])
		n += sizes[p]
	}
}

// anyStreamHandle recovers the native input handle recorded at probe
// time; decoders are constructed from the opened input's streams.
func anyStreamHandle(info *StreamInfo) (uint64, bool) {
	return info.native, info.native != 0
}

func loadStreamAV() error {
	streamAVOnce.Do(func() {
		streamAVInitErr = loadStreamAVLib()
	})
	return streamAVInitErr
}

func loadStreamAVLib() error {
	paths := getStreamAVLibPaths()

	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			streamAVHandle = handle
			loadStreamAVSymbols()
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to load libstream_av: %w", lastErr)
	}
	return errors.New("libstream_av not found in any standard location")
}

func getStreamAVLibPaths() []string {
	var paths []string

	libName := "libstream_av.so"
	if runtime.GOOS == "darwin" {
		libName = "libstream_av.dylib"
	}

	// Environment variable overrides
	if envPath := os.Getenv("STREAM_AV_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv("STREAM_SDK_LIB_PATH"); envPath != "" {
		paths = append(paths, filepath.Join(envPath, libName))
	}

	// Try to find based on executable location
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	// Try module root (works in IDE/tests)
	if root := findModuleRoot(); root != "" {
		paths = append(paths, filepath.Join(root, "build", libName))
	}

	// Try to find based on working directory
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(wd, "build", libName),
			filepath.Join(wd, "..", "build", libName),
		)
	}

	// System paths
	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/opt/homebrew/lib/"+libName,
		)
	case "linux":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/usr/lib/"+libName,
		)
	}

	return paths
}

func loadStreamAVSymbols() {
	register := func(fptr any, name string) {
		purego.RegisterLibFunc(fptr, streamAVHandle, name)
	}
	register(&savOpenInput, "sav_open_input")
	register(&savInputStreamInfo, "sav_input_stream_info")
	register(&savReadPacket, "sav_read_packet")
	register(&savCloseInput, "sav_close_input")
	register(&savDecoderOpen, "sav_decoder_open")
	register(&savDecoderSend, "sav_decoder_send")
	register(&savDecoderReceiveVideo, "sav_decoder_receive_video")
	register(&savDecoderReceiveAudio, "sav_decoder_receive_audio")
	register(&savDecoderClose, "sav_decoder_close")
	register(&savEncoderOpenVideo, "sav_encoder_open_video")
	register(&savEncoderOpenAudio, "sav_encoder_open_audio")
	register(&savEncoderSendVideo, "sav_encoder_send_video")
	register(&savEncoderSendAudio, "sav_encoder_send_audio")
	register(&savEncoderReceive, "sav_encoder_receive")
	register(&savEncoderClose, "sav_encoder_close")
	register(&savOutputOpen, "sav_output_open")
	register(&savOutputAddVideoStream, "sav_output_add_video_stream")
	register(&savOutputAddAudioStream, "sav_output_add_audio_stream")
	register(&savOutputWriteHeader, "sav_output_write_header")
	register(&savOutputWritePacket, "sav_output_write_packet")
	register(&savOutputWriteTrailer, "sav_output_write_trailer")
	register(&savOutputClose, "sav_output_close")
	register(&savGetError, "sav_get_error")
	register(&savGetVersion, "sav_get_version")
}

func savError() error {
	if savGetError == nil {
		return errors.New("libstream_av error")
	}
	msg := goStringFromPtr(savGetError())
	if msg == "" {
		msg = "unknown libstream_av error"
	}
	return errors.New(msg)
}

// NativeProvider implements CodecProvider on top of libstream_av.
type NativeProvider struct{}

// NewNativeProvider loads libstream_av and returns a provider backed by it.
func NewNativeProvider() (*NativeProvider, error) {
	if err := loadStreamAV(); err != nil {
		return nil, err
	}
	return &NativeProvider{}, nil
}

// Version returns the underlying library version string.
func (p *NativeProvider) Version() string {
	return goStringFromPtr(savGetVersion())
}

const (
	savPacketCapacity = 4 << 20  // compressed packet ceiling
	savFrameCapacity  = 64 << 20 // raw 4K I420 frame fits comfortably
)

// nativeInput implements PacketSource.
type nativeInput struct {
	handle uint64
	info   *StreamInfo
	buf    []byte
	meta   [4]int64
	closed bool
}

func (p *NativeProvider) OpenInput(path string) (PacketSource, error) {
	handle := savOpenInput(path)
	if handle == 0 {
		return nil, fmt.Errorf("open %s: %w", path, savError())
	}

	// Slots: hasVideo, videoStream, videoCodec, width, height, fpsNum,
	// fpsDen, pixFmt, vTBNum, vTBDen, hasAudio, audioStream, audioCodec,
	// sampleRate, channels, sampleFmt, aTBNum, aTBDen.
	var slots [18]int64
	if savInputStreamInfo(handle, uintptr(unsafe.Pointer(&slots[0]))) != 0 {
		savCloseInput(handle)
		return nil, fmt.Errorf("probe %s: %w", path, savError())
	}

	info := &StreamInfo{}
	if slots[0] != 0 {
		info.HasVideo = true
		info.VideoStreamIndex = int(slots[1])
		info.VideoCodec = VideoCodecID(slots[2])
		info.Width = int(slots[3])
		info.Height = int(slots[4])
		if slots[6] > 0 {
			info.FPS = int((slots[5] + slots[6]/2) / slots[6])
		}
		info.VideoPixelFormat = PixelFormat(slots[7])
		info.VideoTimeBase = Rational{Num: slots[8], Den: slots[9]}
	}
	if slots[10] != 0 {
		info.HasAudio = true
		info.AudioStreamIndex = int(slots[11])
		info.AudioCodec = AudioCodecID(slots[12])
		info.SampleRate = int(slots[13])
		info.Channels = int(slots[14])
		info.SampleFormat = SampleFormat(slots[15])
		info.AudioTimeBase = Rational{Num: slots[16], Den: slots[17]}
	}
	info.native = handle

	return &nativeInput{
		handle: handle,
		info:   info,
		buf:    make([]byte, savPacketCapacity),
	}, nil
}

func (in *nativeInput) StreamInfo() *StreamInfo { return in.info }

func (in *nativeInput) ReadPacket() (*Packet, error) {
	n := savReadPacket(in.handle, uintptr(unsafe.Pointer(&in.buf[0])), int32(len(in.buf)), uintptr(unsafe.Pointer(&in.meta[0])))
	switch {
	case n == savEOF:
		return nil, io.EOF
	case n < 0:
		return nil, savError()
	}
	data := make([]byte, n)
	copy(data, in.buf[:n])
	return &Packet{
		Data:        data,
		PTS:         in.meta[0],
		DTS:         in.meta[1],
		Duration:    in.meta[2],
		StreamIndex: int(in.meta[3]),
	}, nil
}

func (in *nativeInput) Close() error {
	if !in.closed {
		savCloseInput(in.handle)
		in.closed = true
	}
	return nil
}

// nativeVideoDecoder implements VideoDecoder.
type nativeVideoDecoder struct {
	handle uint64
	buf    []byte
	meta   [4]int64
}

func (p *NativeProvider) NewVideoDecoder(info *StreamInfo) (VideoDecoder, error) {
	src, ok := anyStreamHandle(info)
	if !ok {
		return nil, errors.New("video decoder requires a native input")
	}
	handle := savDecoderOpen(src, int32(info.VideoStreamIndex))
	if handle == 0 {
		return nil, savError()
	}
	return &nativeVideoDecoder{handle: handle, buf: make([]byte, savFrameCapacity)}, nil
}

func (d *nativeVideoDecoder) SendPacket(pkt *Packet) error {
	return savSend(d.handle, pkt)
}

func (d *nativeVideoDecoder) ReceiveFrame() (*VideoFrame, error) {
	n := savDecoderReceiveVideo(d.handle, uintptr(unsafe.Pointer(&d.buf[0])), int32(len(d.buf)), uintptr(unsafe.Pointer(&d.meta[0])))
	switch {
	case n == savAgain:
		return nil, ErrAgain
	case n == savEOF:
		return nil, io.EOF
	case n < 0:
		return nil, savError()
	}
	w, h := int(d.meta[0]), int(d.meta[1])
	frame := NewI420Frame(w, h)
	frame.PTS = d.meta[2]
	unpackI420(d.buf[:n], frame)
	return frame, nil
}

func (d *nativeVideoDecoder) Close() error {
	savDecoderClose(d.handle)
	return nil
}

// nativeAudioDecoder implements AudioDecoder. Decoded audio arrives as
// packed planar float (all of channel 0, then channel 1, ...).
type nativeAudioDecoder struct {
	handle     uint64
	sampleRate int
	channels   int
	buf        []float32
	meta       [4]int64
}

func (p *NativeProvider) NewAudioDecoder(info *StreamInfo) (AudioDecoder, error) {
	src, ok := anyStreamHandle(info)
	if !ok {
		return nil, errors.New("audio decoder requires a native input")
	}
	handle := savDecoderOpen(src, int32(info.AudioStreamIndex))
	if handle == 0 {
		return nil, savError()
	}
	return &nativeAudioDecoder{
		handle:     handle,
		sampleRate: info.SampleRate,
		channels:   info.Channels,
		buf:        make([]float32, 65536*info.Channels),
	}, nil
}

func (d *nativeAudioDecoder) SendPacket(pkt *Packet) error {
	return savSend(d.handle, pkt)
}

func (d *nativeAudioDecoder) ReceiveFrame() (*AudioFrame, error) {
	n := savDecoderReceiveAudio(d.handle, uintptr(unsafe.Pointer(&d.buf[0])), int32(len(d.buf)), uintptr(unsafe.Pointer(&d.meta[0])))
	switch {
	case n == savAgain:
		return nil, ErrAgain
	case n == savEOF:
		return nil, io.EOF
	case n < 0:
		return nil, savError()
	}
	frame := NewPlanarAudioFrame(d.sampleRate, d.channels, int(n))
	frame.PTS = d.meta[0]
	for c := 0; c < d.channels; c++ {
		copy(frame.Data[c], d.buf[c*int(n):(c+1)*int(n)])
	}
	return frame, nil
}

func (d *nativeAudioDecoder) Close() error {
	savDecoderClose(d.handle)
	return nil
}

// savSend submits a packet (or a flush when pkt is nil) to a decoder.
func savSend(handle uint64, pkt *Packet) error {
	if pkt == nil || len(pkt.Data) == 0 {
		if savDecoderSend(handle, 0, 0, 0, 0) < 0 {
			return savError()
		}
		return nil
	}
	if savDecoderSend(handle, uintptr(unsafe.Pointer(&pkt.Data[0])), int32(len(pkt.Data)), pkt.PTS, pkt.DTS) < 0 {
		return savError()
	}
	return nil
}

// nativeVideoEncoder implements VideoEncoder.
type nativeVideoEncoder struct {
	handle uint64
	packed []byte
	out    []byte
	meta   [4]int64
}

func (p *NativeProvider) NewVideoEncoder(params VideoEncoderParams) (VideoEncoder, error) {
	handle := savEncoderOpenVideo(savVideoCodec(params.Codec), int32(params.Width), int32(params.Height),
		int32(params.FPS), int32(params.Bitrate), int32(params.GOPSize))
	if handle == 0 {
		return nil, savError()
	}
	return &nativeVideoEncoder{
		handle: handle,
		packed: make([]byte, I420Size(params.Width, params.Height)),
		out:    make([]byte, savPacketCapacity),
	}, nil
}

func (e *nativeVideoEncoder) SendFrame(frame *VideoFrame) error {
	if frame == nil {
		if savEncoderSendVideo(e.handle, 0, 0, 0) < 0 {
			return savError()
		}
		return nil
	}
	n := packI420(frame, e.packed)
	if savEncoderSendVideo(e.handle, uintptr(unsafe.Pointer(&e.packed[0])), int32(n), frame.PTS) < 0 {
		return savError()
	}
	return nil
}

func (e *nativeVideoEncoder) ReceivePacket() (*Packet, error) {
	return savReceive(e.handle, e.out, &e.meta)
}

func (e *nativeVideoEncoder) Close() error {
	savEncoderClose(e.handle)
	return nil
}

// nativeAudioEncoder implements AudioCodecEncoder.
type nativeAudioEncoder struct {
	handle   uint64
	channels int
	packed   []float32
	out      []byte
	meta     [4]int64
}

func (p *NativeProvider) NewAudioEncoder(params AudioEncoderParams) (AudioCodecEncoder, error) {
	handle := savEncoderOpenAudio(savAudioCodec(params.Codec), int32(params.SampleRate),
		int32(params.Channels), int32(params.Bitrate))
	if handle == 0 {
		return nil, savError()
	}
	return &nativeAudioEncoder{
		handle:   handle,
		channels: params.Channels,
		packed:   make([]float32, 8192*params.Channels),
		out:      make([]byte, savPacketCapacity),
	}, nil
}

func (e *nativeAudioEncoder) SendFrame(frame *AudioFrame) error {
	if frame == nil {
		if savEncoderSendAudio(e.handle, 0, 0, 0) < 0 {
			return savError()
		}
		return nil
	}
	n := frame.NbSamples
	if need := n * e.channels; len(e.packed) < need {
		e.packed = make([]float32, need)
	}
	for c := 0; c < e.channels; c++ {
		copy(e.packed[c*n:(c+1)*n], frame.Data[c])
	}
	if savEncoderSendAudio(e.handle, uintptr(unsafe.Pointer(&e.packed[0])), int32(n), frame.PTS) < 0 {
		return savError()
	}
	return nil
}

func (e *nativeAudioEncoder) ReceivePacket() (*Packet, error) {
	return savReceive(e.handle, e.out, &e.meta)
}

func (e *nativeAudioEncoder) Close() error {
	savEncoderClose(e.handle)
	return nil
}

func savReceive(handle uint64, out []byte, meta *[4]int64) (*Packet, error) {
	n := savEncoderReceive(handle, uintptr(unsafe.Pointer(&out[0])), int32(len(out)), uintptr(unsafe.Pointer(&meta[0])))
	switch {
	case n == savAgain:
		return nil, ErrAgain
	case n == savEOF:
		return nil, io.EOF
	case n < 0:
		return nil, savError()
	}
	data := make([]byte, n)
	copy(data, out[:n])
	return &Packet{Data: data, PTS: meta[0], DTS: meta[1], Duration: meta[2]}, nil
}

// nativeOutput implements ContainerWriter.
type nativeOutput struct {
	handle uint64
	closed bool
}

func (p *NativeProvider) CreateOutput(path, format string) (ContainerWriter, error) {
	handle := savOutputOpen(path, format)
	if handle == 0 {
		return nil, fmt.Errorf("create %s: %w", path, savError())
	}
	return &nativeOutput{handle: handle}, nil
}

func (o *nativeOutput) AddVideoStream(p VideoStreamParams) (int, error) {
	idx := savOutputAddVideoStream(o.handle, savVideoCodec(p.Codec), int32(p.Width), int32(p.Height),
		int32(p.FPS), p.TimeBase.Num, p.TimeBase.Den)
	if idx < 0 {
		return 0, savError()
	}
	return int(idx), nil
}

func (o *nativeOutput) AddAudioStream(p AudioStreamParams) (int, error) {
	idx := savOutputAddAudioStream(o.handle, savAudioCodec(p.Codec), int32(p.SampleRate),
		int32(p.Channels), p.TimeBase.Num, p.TimeBase.Den)
	if idx < 0 {
		return 0, savError()
	}
	return int(idx), nil
}

func (o *nativeOutput) WriteHeader() error {
	if savOutputWriteHeader(o.handle) < 0 {
		return savError()
	}
	return nil
}

func (o *nativeOutput) WriteInterleaved(pkt *Packet) error {
	var data uintptr
	if len(pkt.Data) > 0 {
		data = uintptr(unsafe.Pointer(&pkt.Data[0]))
	}
	if savOutputWritePacket(o.handle, int32(pkt.StreamIndex), data, int32(len(pkt.Data)),
		pkt.PTS, pkt.DTS, pkt.Duration) < 0 {
		return savError()
	}
	return nil
}

func (o *nativeOutput) WriteTrailer() error {
	if savOutputWriteTrailer(o.handle) < 0 {
		return savError()
	}
	return nil
}

func (o *nativeOutput) Close() error {
	if !o.closed {
		savOutputClose(o.handle)
		o.closed = true
	}
	return nil
}

func savVideoCodec(c VideoCodecID) int32 {
	switch c {
	case VideoCodecMPEG4:
		return savCodecMPEG4
	case VideoCodecH264:
		return savCodecH264
	case VideoCodecMJPEG:
		return savCodecMJPEG
	default:
		return 0
	}
}

func savAudioCodec(c AudioCodecID) int32 {
	switch c {
	case AudioCodecAC3:
		return savCodecAC3
	case AudioCodecAAC:
		return savCodecAAC
	case AudioCodecMP3:
		return savCodecMP3
	case AudioCodecPCM:
		return savCodecPCM
	default:
		return 0
	}
}
