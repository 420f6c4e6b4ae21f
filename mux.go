package transcode

import (
	"fmt"

	"github.com/rs/zerolog"
)

// MuxerParams describes the output container and its streams. A nil
// stream params pointer means that sub-pipeline is absent and only the
// other stream is written.
type MuxerParams struct {
	Video *VideoStreamParams
	Audio *AudioStreamParams

	// Source time bases of incoming packet PTS: frame-count units for
	// video (1/fps), sample-count units for audio (1/sampleRate). In
	// COPY mode the audio source time base is the input stream's.
	VideoSourceTimeBase Rational
	AudioSourceTimeBase Rational
}

// Muxer interleaves the two encoded packet streams by presentation time
// and writes the output container.
type Muxer struct {
	writer ContainerWriter
	params MuxerParams

	videoStream int
	audioStream int

	videoPackets int64
	audioPackets int64

	log zerolog.Logger
}

// NewMuxer wraps an opened container writer.
func NewMuxer(writer ContainerWriter, params MuxerParams, log zerolog.Logger) *Muxer {
	return &Muxer{
		writer:      writer,
		params:      params,
		videoStream: -1,
		audioStream: -1,
		log:         log.With().Str("stage", "mux").Logger(),
	}
}

// Init adds the output streams and writes the container header. Failures
// here are fatal and happen before any stage is spawned.
func (m *Muxer) Init() error {
	if m.params.Video != nil {
		idx, err := m.writer.AddVideoStream(*m.params.Video)
		if err != nil {
			return fmt.Errorf("add video stream: %w", err)
		}
		m.videoStream = idx
	}
	if m.params.Audio != nil {
		idx, err := m.writer.AddAudioStream(*m.params.Audio)
		if err != nil {
			return fmt.Errorf("add audio stream: %w", err)
		}
		m.audioStream = idx
	}
	if err := m.writer.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Run interleaves packets until both inputs are closed and empty, then
// writes the trailer and closes the file. At each step it services the
// stream whose last written packet has the smaller presentation time,
// ties going to video; comparison is in seconds since the two streams
// tick in different time bases.
func (m *Muxer) Run(videoIn, audioIn *Queue[*Packet]) error {
	m.log.Info().Msg("started")

	videoDone := videoIn == nil
	audioDone := audioIn == nil
	var videoSec, audioSec float64

	for !videoDone || !audioDone {
		isVideo := !videoDone
		if !videoDone && !audioDone {
			isVideo = videoSec <= audioSec
		}
		if isVideo {
			pkt, ok := videoIn.Pop()
			if !ok {
				videoDone = true
				continue
			}
			videoSec = m.writePacket(pkt, true)
		} else {
			pkt, ok := audioIn.Pop()
			if !ok {
				audioDone = true
				continue
			}
			audioSec = m.writePacket(pkt, false)
		}
	}

	if err := m.writer.WriteTrailer(); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	if err := m.writer.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	m.log.Info().Int64("video_packets", m.videoPackets).
		Int64("audio_packets", m.audioPackets).Msg("finished")
	return nil
}

// writePacket stamps, rescales and writes one packet, returning its
// presentation time in seconds.
func (m *Muxer) writePacket(pkt *Packet, isVideo bool) float64 {
	var srcTB, dstTB Rational
	if isVideo {
		pkt.StreamIndex = m.videoStream
		srcTB, dstTB = m.params.VideoSourceTimeBase, m.params.Video.TimeBase
		if pkt.PTS == NoPTS {
			pkt.PTS = m.videoPackets
			pkt.DTS = pkt.PTS
		}
		m.videoPackets++
	} else {
		pkt.StreamIndex = m.audioStream
		srcTB, dstTB = m.params.AudioSourceTimeBase, m.params.Audio.TimeBase
		if pkt.PTS == NoPTS {
			pkt.PTS = m.audioPackets
			pkt.DTS = pkt.PTS
		}
		m.audioPackets++
	}

	sec := srcTB.Seconds(pkt.PTS)
	pkt.PTS = RescaleTS(pkt.PTS, srcTB, dstTB)
	pkt.DTS = RescaleTS(pkt.DTS, srcTB, dstTB)
	pkt.Duration = RescaleTS(pkt.Duration, srcTB, dstTB)

	if err := m.writer.WriteInterleaved(pkt); err != nil {
		m.log.Warn().Err(err).Msg("interleaved write failed")
	}
	pkt.Free()
	return sec
}
