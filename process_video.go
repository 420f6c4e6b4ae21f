package transcode

import (
	"math"

	"github.com/rs/zerolog"
)

// VideoProcessor resamples the frame rate for speed change, applies the
// pixel filters and rotation, and regenerates a linear PTS sequence.
//
// Speed change is frame drop/duplicate driven by a floor accumulator:
// input frame i (1-based) is emitted floor(i/s) - floor((i-1)/s) times.
// For s > 1 this keeps 1/s of frames with uniform spacing; for s < 1 it
// duplicates each frame, fractionally when 1/s is not an integer. The
// emitted count is floor(N/s) for N input frames.
//
// Every emitted frame receives pts = totalOutputFrames++ and the input
// PTS is discarded; the encoder's 1/fps time base then yields correct
// durations without cross-stream coordination.
type VideoProcessor struct {
	cfg     Config
	width   int
	height  int
	rotator FrameRotator

	inputIndex        int64 // frames consumed, 1-based in the keep formula
	totalOutputFrames int64 // linear PTS counter

	log zerolog.Logger
}

// NewVideoProcessor builds a processor. rotator may be nil, in which case
// a CPU rotator is used when rotation is requested.
func NewVideoProcessor(cfg Config, info *StreamInfo, rotator FrameRotator, log zerolog.Logger) *VideoProcessor {
	if rotator == nil {
		rotator = NewCPURotator()
	}
	return &VideoProcessor{
		cfg:     cfg,
		width:   info.Width,
		height:  info.Height,
		rotator: rotator,
		log:     log.With().Str("stage", "video-process").Logger(),
	}
}

// repeatCount returns how many times the next input frame is emitted.
func (p *VideoProcessor) repeatCount() int {
	s := p.cfg.SpeedFactor
	i := p.inputIndex + 1
	p.inputIndex = i
	if s == 1.0 {
		return 1
	}
	return int(math.Floor(float64(i)/s) - math.Floor(float64(i-1)/s))
}

// Run consumes decoded frames until the input queue closes, then
// finishes the output queue.
func (p *VideoProcessor) Run(in *Queue[*VideoFrame], out *Queue[*VideoFrame]) {
	defer out.Finish()
	defer p.rotator.Close()
	p.log.Info().Float64("speed", p.cfg.SpeedFactor).Msg("started")

	for {
		frame, ok := in.Pop()
		if !ok {
			break
		}
		repeats := p.repeatCount()
		if repeats == 0 {
			continue
		}

		processed, err := p.applyPixelOps(frame)
		if err != nil {
			p.log.Warn().Err(err).Msg("dropping video frame")
			continue
		}

		// Duplicates share pixel data; each gets its own header and the
		// next linear PTS.
		for r := 0; r < repeats; r++ {
			emitted := processed
			if r > 0 {
				emitted = processed.ShareData()
			}
			emitted.PTS = p.totalOutputFrames
			p.totalOutputFrames++
			out.Push(emitted)
		}
	}

	p.log.Info().Int64("frames_in", p.inputIndex).
		Int64("frames_out", p.totalOutputFrames).Msg("finished")
}

// applyPixelOps runs the fixed transformation order on a kept frame:
// rotation, grayscale, brightness/contrast, blur, sharpen.
func (p *VideoProcessor) applyPixelOps(frame *VideoFrame) (*VideoFrame, error) {
	cfg := &p.cfg
	if cfg.RotationDeg != 0 {
		rotated, err := p.rotator.Rotate(frame, cfg.RotationDeg)
		if err != nil {
			return nil, err
		}
		frame = rotated
	}
	if cfg.EnableGrayscale {
		applyGrayscale(frame)
	}
	if cfg.Brightness != 1.0 || cfg.Contrast != 1.0 {
		applyBrightnessContrast(frame, cfg.Brightness, cfg.Contrast)
	}
	if cfg.EnableBlur {
		applyBoxBlur(frame)
	}
	if cfg.EnableSharpen {
		applySharpen(frame)
	}
	return frame, nil
}

// OutputFrames reports the number of frames emitted so far.
func (p *VideoProcessor) OutputFrames() int64 {
	return p.totalOutputFrames
}
