package transcode

import (
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// Demuxer reads the input container and routes compressed packets to the
// video and audio sub-pipelines. Either output queue may be nil when the
// corresponding stream is absent or disabled; packets for a nil queue are
// freed immediately.
type Demuxer struct {
	src       PacketSource
	info      *StreamInfo
	maxFrames int // cap on routed video packets, 0 = unlimited

	videoCount int64
	audioCount int64

	log zerolog.Logger
}

// NewDemuxer wraps an opened packet source. The source is probed by the
// provider before the pipeline spawns, so stream info is already
// available here.
func NewDemuxer(src PacketSource, maxFrames int, log zerolog.Logger) *Demuxer {
	return &Demuxer{
		src:       src,
		info:      src.StreamInfo(),
		maxFrames: maxFrames,
		log:       log.With().Str("stage", "demux").Logger(),
	}
}

// Run routes packets until EOF, a read error, or the video frame cap,
// then finishes both queues. Mid-stream read errors terminate the loop;
// downstream treats the finished queues as normal end of stream.
func (d *Demuxer) Run(videoOut, audioOut *Queue[*Packet]) {
	defer func() {
		if videoOut != nil {
			videoOut.Finish()
		}
		if audioOut != nil {
			audioOut.Finish()
		}
		d.src.Close()
		d.log.Info().Int64("video_packets", d.videoCount).
			Int64("audio_packets", d.audioCount).Msg("finished")
	}()

	d.log.Info().Msg("started")
	for {
		pkt, err := d.src.ReadPacket()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.log.Warn().Err(err).Msg("read error, ending stream")
			}
			return
		}

		switch {
		case d.info.HasVideo && pkt.StreamIndex == d.info.VideoStreamIndex:
			if videoOut == nil || !videoOut.Push(pkt) {
				pkt.Free()
				continue
			}
			d.videoCount++
			if d.maxFrames > 0 && d.videoCount >= int64(d.maxFrames) {
				return
			}
		case d.info.HasAudio && pkt.StreamIndex == d.info.AudioStreamIndex:
			if audioOut == nil || !audioOut.Push(pkt) {
				pkt.Free()
				continue
			}
			d.audioCount++
		default:
			pkt.Free()
		}
	}
}
