// Package transcode implements a pipelined audio/video transcoding
// engine: it decodes a container file, applies time-domain speed change
// (pitch-preserving on audio), optional visual filters and rotation, and
// re-encodes into a new container with audio and video still in sync.
//
// # Architecture
//
// The engine is a six-stage graph with parallel audio and video
// sub-pipelines that rejoin at the muxer. Stages run one goroutine each
// and communicate through bounded single-producer/single-consumer
// queues; a closed-and-empty queue is the end-of-stream signal.
//
//	          +-- VPktQ -> VDecode -- VFrameQ -> VProcess -- VFrameQ' -> VEncode -- VPktQ' --+
//	Demux ----+                                                                              +--> Mux -> file
//	          +-- APktQ -> ADecode -- AFrameQ -> AProcess -- AFrameQ' -> AEncode -- APktQ' --+
//
// The video processor drops or duplicates frames to change speed; the
// audio processor runs a WSOLA time stretcher and re-packetizes its
// variable-rate output into fixed-size encoder frames through a ring
// buffer. Both regenerate linear PTS from emitted counts, which keeps
// the streams aligned without any cross-stream coordination.
//
// # Native Libraries
//
// Container and codec primitives load libstream_av, a thin FFmpeg
// wrapper with a primitive-only API, via purego (CGO_ENABLED=0). Set
// STREAM_AV_LIB_PATH to the full path of the library file, or
// STREAM_SDK_LIB_PATH to the directory containing it. The pipeline
// itself is pure Go and can run against any
// CodecProvider implementation.
//
// # Build Tags
//
//   - noav: disable the libstream_av binding
package transcode
