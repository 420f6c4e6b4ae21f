package transcode

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// queueCapacity bounds every inter-stage queue. Decoded frames dominate
// memory use, so the bound doubles as the pipeline's memory ceiling.
const queueCapacity = 32

// Pipeline assembles the six-stage transcoding graph and runs it to
// completion: demux -> decode -> process -> encode -> mux, with audio
// and video in parallel sub-pipelines that rejoin at the muxer.
type Pipeline struct {
	cfg      Config
	provider CodecProvider
	log      zerolog.Logger

	stats PipelineStats
}

// PipelineStats is a snapshot of per-stage counters after Run returns.
type PipelineStats struct {
	VideoPacketsIn  int64
	AudioPacketsIn  int64
	VideoFramesOut  int64
	AudioFramesOut  int64
	VideoPacketsOut int64
	AudioPacketsOut int64
}

// New validates the config and prepares a pipeline. The provider supplies
// the codec-library primitives.
func New(cfg Config, provider CodecProvider, log zerolog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("codec provider is required")
	}
	return &Pipeline{cfg: cfg, provider: provider, log: log}, nil
}

// Stats returns the counters collected by the last Run.
func (p *Pipeline) Stats() PipelineStats { return p.stats }

// Run transcodes inputPath into outputPath. All stage initialization
// happens before any goroutine spawns; an init failure aborts with no
// side goroutines and a closed output. Cancelling ctx finishes the
// demuxer's output queues, which propagates shutdown downstream; Run
// still waits for every stage to drain and join.
func (p *Pipeline) Run(ctx context.Context, inputPath, outputPath string) error {
	cfg := &p.cfg

	src, err := p.provider.OpenInput(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	info := src.StreamInfo()
	p.log.Info().
		Bool("video", info.HasVideo).Bool("audio", info.HasAudio).
		Int("width", info.Width).Int("height", info.Height).Int("fps", info.FPS).
		Int("sample_rate", info.SampleRate).Int("channels", info.Channels).
		Msg("input probed")

	audioCopy := cfg.AudioFormat == TargetAudioCopy

	// Construct every stage up front; any failure is fatal-init.
	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}

	demuxer := NewDemuxer(src, cfg.MaxFrames, p.log)

	var vdec VideoDecoder
	var vproc *VideoProcessor
	var venc VideoEncoder
	if info.HasVideo {
		if vdec, err = p.provider.NewVideoDecoder(info); err != nil {
			closeAll()
			src.Close()
			return fmt.Errorf("open video decoder: %w", err)
		}
		closers = append(closers, vdec)
		vproc = NewVideoProcessor(*cfg, info, nil, p.log)
		venc, err = p.provider.NewVideoEncoder(VideoEncoderParams{
			Codec:   cfg.VideoCodec,
			Width:   info.Width,
			Height:  info.Height,
			FPS:     info.FPS,
			Bitrate: cfg.VideoBitrate,
		})
		if err != nil {
			closeAll()
			src.Close()
			return fmt.Errorf("open video encoder: %w", err)
		}
		closers = append(closers, venc)
	}

	var adec AudioDecoder
	var aproc *AudioProcessor
	var aenc AudioEncoder
	if info.HasAudio && !audioCopy {
		if adec, err = p.provider.NewAudioDecoder(info); err != nil {
			closeAll()
			src.Close()
			return fmt.Errorf("open audio decoder: %w", err)
		}
		closers = append(closers, adec)
		aproc, err = NewAudioProcessor(*cfg, info, cfg.AudioFormat.FrameSize(), p.log)
		if err != nil {
			closeAll()
			src.Close()
			return fmt.Errorf("init audio processor: %w", err)
		}
		aenc, err = NewAudioEncoder(cfg.AudioFormat, AudioEncoderParams{
			SampleRate: info.SampleRate,
			Channels:   info.Channels,
			Bitrate:    cfg.AudioBitrate,
		}, p.provider)
		if err != nil {
			closeAll()
			src.Close()
			return fmt.Errorf("open audio encoder: %w", err)
		}
		closers = append(closers, aenc)
	}

	writer, err := p.provider.CreateOutput(outputPath, cfg.OutputFormat)
	if err != nil {
		closeAll()
		src.Close()
		return fmt.Errorf("open output: %w", err)
	}

	muxer := NewMuxer(writer, p.muxerParams(info, audioCopy), p.log)
	if err := muxer.Init(); err != nil {
		writer.Close()
		closeAll()
		src.Close()
		return err
	}

	// Queue graph. In COPY mode the demuxed audio packets feed the muxer
	// directly, bypassing decode/process/encode.
	var (
		vPktQ, vPktOutQ     *Queue[*Packet]
		vFrameQ, vFrameOutQ *Queue[*VideoFrame]
		aPktQ, aPktOutQ     *Queue[*Packet]
		aFrameQ, aFrameOutQ *Queue[*AudioFrame]
	)
	if info.HasVideo {
		vPktQ = NewQueue[*Packet](queueCapacity)
		vFrameQ = NewQueue[*VideoFrame](queueCapacity)
		vFrameOutQ = NewQueue[*VideoFrame](queueCapacity)
		vPktOutQ = NewQueue[*Packet](queueCapacity)
	}
	if info.HasAudio {
		aPktQ = NewQueue[*Packet](queueCapacity)
		if audioCopy {
			aPktOutQ = aPktQ
		} else {
			aFrameQ = NewQueue[*AudioFrame](queueCapacity)
			aFrameOutQ = NewQueue[*AudioFrame](queueCapacity)
			aPktOutQ = NewQueue[*Packet](queueCapacity)
		}
	}

	// Spawn stages and join them all; only the muxer surfaces an error
	// (a failed trailer means an unusable file).
	var g errgroup.Group
	g.Go(func() error { demuxer.Run(vPktQ, aPktQ); return nil })
	if info.HasVideo {
		g.Go(func() error { runDecodeStage("video-decode", vPktQ, vFrameQ, vdec, p.log); return nil })
		g.Go(func() error { vproc.Run(vFrameQ, vFrameOutQ); return nil })
		g.Go(func() error { runVideoEncode(vFrameOutQ, vPktOutQ, venc, p.log); return nil })
	}
	if info.HasAudio && !audioCopy {
		g.Go(func() error { runDecodeStage("audio-decode", aPktQ, aFrameQ, adec, p.log); return nil })
		g.Go(func() error { aproc.Run(aFrameQ, aFrameOutQ); return nil })
		g.Go(func() error { runAudioEncode(aFrameOutQ, aPktOutQ, aenc, p.log); return nil })
	}
	g.Go(func() error { return muxer.Run(vPktOutQ, aPktOutQ) })

	// Cooperative abort: finishing the demuxer's output queues drains the
	// whole graph.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.log.Warn().Msg("cancelled, shutting down pipeline")
			if vPktQ != nil {
				vPktQ.Finish()
			}
			if aPktQ != nil {
				aPktQ.Finish()
			}
		case <-stop:
		}
	}()

	muxErr := g.Wait()

	// Anything still queued after an abort is released exactly once here.
	drainPacketQueue(vPktQ)
	drainPacketQueue(aPktQ)
	if aPktOutQ != aPktQ {
		drainPacketQueue(aPktOutQ)
	}
	drainPacketQueue(vPktOutQ)
	if vFrameQ != nil {
		vFrameQ.Drain(func(*VideoFrame) {})
		vFrameOutQ.Drain(func(*VideoFrame) {})
	}
	if aFrameQ != nil {
		aFrameQ.Drain(func(*AudioFrame) {})
		aFrameOutQ.Drain(func(*AudioFrame) {})
	}

	p.collectStats(demuxer, vproc, aproc, muxer)
	if muxErr != nil {
		return muxErr
	}
	p.log.Info().Msg("transcode complete")
	return ctx.Err()
}

func drainPacketQueue(q *Queue[*Packet]) {
	if q != nil {
		q.Drain(func(pkt *Packet) { pkt.Free() })
	}
}

// muxerParams derives the output stream descriptors. Video keeps the
// input geometry (rotation clips to input bounds) with a 1/fps time
// base; audio is 1/sampleRate, or the input stream's own time base when
// packets are copied through untouched.
func (p *Pipeline) muxerParams(info *StreamInfo, audioCopy bool) MuxerParams {
	cfg := &p.cfg
	var params MuxerParams
	if info.HasVideo {
		fps := info.FPS
		if fps <= 0 {
			fps = 25
		}
		params.Video = &VideoStreamParams{
			Codec:    cfg.VideoCodec,
			Width:    info.Width,
			Height:   info.Height,
			FPS:      fps,
			TimeBase: Rational{Num: 1, Den: int64(fps)},
		}
		params.VideoSourceTimeBase = Rational{Num: 1, Den: int64(fps)}
	}
	if info.HasAudio {
		codec := cfg.AudioFormat.CodecID()
		tb := Rational{Num: 1, Den: int64(info.SampleRate)}
		src := tb
		if audioCopy {
			codec = info.AudioCodec
			src = info.AudioTimeBase
			tb = info.AudioTimeBase
		}
		params.Audio = &AudioStreamParams{
			Codec:      codec,
			SampleRate: info.SampleRate,
			Channels:   info.Channels,
			TimeBase:   tb,
		}
		params.AudioSourceTimeBase = src
	}
	return params
}

func (p *Pipeline) collectStats(d *Demuxer, vproc *VideoProcessor, aproc *AudioProcessor, m *Muxer) {
	p.stats = PipelineStats{
		VideoPacketsIn:  d.videoCount,
		AudioPacketsIn:  d.audioCount,
		VideoPacketsOut: m.videoPackets,
		AudioPacketsOut: m.audioPackets,
	}
	if vproc != nil {
		p.stats.VideoFramesOut = vproc.totalOutputFrames
	}
	if aproc != nil {
		p.stats.AudioFramesOut = aproc.framesOut
	}
}
