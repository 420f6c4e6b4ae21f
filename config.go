package transcode

import "fmt"

// Config enumerates the user-facing transformation parameters. The same
// speed factor drives both the video frame resampler and the audio tempo
// core; A/V sync falls out of both processors regenerating PTS from their
// emitted counts.
type Config struct {
	SpeedFactor float64 // [0.1, 5.0]; 1.0 = no change
	RotationDeg float32 // 0 disables rotation

	EnableBlur      bool
	EnableSharpen   bool
	EnableGrayscale bool
	Brightness      float32 // [0.0, 2.0], 1.0 = unchanged
	Contrast        float32 // [0.0, 2.0], 1.0 = unchanged

	AudioGain float64 // linear volume gain, 1.0 = unchanged

	VideoCodec   VideoCodecID
	AudioFormat  TargetAudioFormat
	VideoBitrate int // bits per second
	AudioBitrate int

	OutputFormat string // container short name, e.g. "avi"

	MaxFrames int // cap on demuxed video frames, 0 = whole file
}

// DefaultConfig returns the documented defaults: no transformation,
// MPEG-4 video and AC3 audio in an AVI container.
func DefaultConfig() Config {
	return Config{
		SpeedFactor:  1.0,
		Brightness:   1.0,
		Contrast:     1.0,
		AudioGain:    1.0,
		VideoCodec:   VideoCodecMPEG4,
		AudioFormat:  TargetAudioAC3,
		VideoBitrate: 800_000,
		AudioBitrate: 128_000,
		OutputFormat: "avi",
	}
}

// Validate checks every parameter range. A Config that fails validation
// must never reach the pipeline.
func (c *Config) Validate() error {
	if c.SpeedFactor < 0.1 || c.SpeedFactor > 5.0 {
		return fmt.Errorf("speed factor %.3f out of range [0.1, 5.0]", c.SpeedFactor)
	}
	if c.Brightness < 0.0 || c.Brightness > 2.0 {
		return fmt.Errorf("brightness %.3f out of range [0.0, 2.0]", c.Brightness)
	}
	if c.Contrast < 0.0 || c.Contrast > 2.0 {
		return fmt.Errorf("contrast %.3f out of range [0.0, 2.0]", c.Contrast)
	}
	if c.AudioGain < 0.0 {
		return fmt.Errorf("audio gain %.3f must be non-negative", c.AudioGain)
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("max frames %d must be non-negative", c.MaxFrames)
	}
	if c.OutputFormat == "" {
		return fmt.Errorf("output format must be set")
	}
	return nil
}
