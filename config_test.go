package transcode

import "testing"

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"speed lower bound", func(c *Config) { c.SpeedFactor = 0.1 }, false},
		{"speed upper bound", func(c *Config) { c.SpeedFactor = 5.0 }, false},
		{"speed too low", func(c *Config) { c.SpeedFactor = 0.05 }, true},
		{"speed too high", func(c *Config) { c.SpeedFactor = 5.1 }, true},
		{"brightness high", func(c *Config) { c.Brightness = 2.5 }, true},
		{"brightness negative", func(c *Config) { c.Brightness = -0.1 }, true},
		{"contrast high", func(c *Config) { c.Contrast = 3 }, true},
		{"negative gain", func(c *Config) { c.AudioGain = -1 }, true},
		{"negative max frames", func(c *Config) { c.MaxFrames = -1 }, true},
		{"missing format", func(c *Config) { c.OutputFormat = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTargetAudioFormatFrameSize(t *testing.T) {
	if TargetAudioAC3.FrameSize() != 1536 {
		t.Errorf("AC3 frame size = %d", TargetAudioAC3.FrameSize())
	}
	if TargetAudioAAC.FrameSize() != 1024 {
		t.Errorf("AAC frame size = %d", TargetAudioAAC.FrameSize())
	}
	if TargetAudioMP3.FrameSize() != 1152 {
		t.Errorf("MP3 frame size = %d", TargetAudioMP3.FrameSize())
	}
	if TargetAudioCopy.FrameSize() != 0 {
		t.Errorf("COPY frame size = %d", TargetAudioCopy.FrameSize())
	}
}
