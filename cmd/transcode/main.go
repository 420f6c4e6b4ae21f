// Command transcode re-encodes a media file with speed change, rotation
// and pixel filters while keeping audio and video in sync.
//
// Usage:
//
//	transcode <input> <output> [speed] [rotation_deg] [blur 0|1] [sharpen 0|1] [grayscale 0|1] [brightness] [contrast]
//
// Arguments beyond the output path are optional; defaults leave the
// media untransformed (speed 1.0, no rotation, filters off).
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/thesyncim/transcode"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <input> <output> [speed] [rotation_deg] [blur 0|1] [sharpen 0|1] [grayscale 0|1] [brightness] [contrast]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "example: %s input.mp4 output.avi 1.5 90 0 1 0 1.2 1.3\n", os.Args[0])
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	cfg, err := parseArgs(os.Args[3:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	provider, err := transcode.NewNativeProvider()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	pipeline, err := transcode.New(cfg, provider, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := pipeline.Run(context.Background(), os.Args[1], os.Args[2]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	stats := pipeline.Stats()
	log.Info().
		Int64("video_frames", stats.VideoFramesOut).
		Int64("video_packets", stats.VideoPacketsOut).
		Int64("audio_packets", stats.AudioPacketsOut).
		Str("output", os.Args[2]).
		Msg("transcode finished")
}

// parseArgs fills a Config from the optional positional arguments.
func parseArgs(args []string) (transcode.Config, error) {
	cfg := transcode.DefaultConfig()

	parseFloat := func(i int, name string) (float64, error) {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, args[i])
		}
		return v, nil
	}
	parseBool := func(i int, name string) (bool, error) {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return false, fmt.Errorf("invalid %s %q (use 0 or 1)", name, args[i])
		}
		return v != 0, nil
	}

	var err error
	if len(args) > 0 {
		if cfg.SpeedFactor, err = parseFloat(0, "speed"); err != nil {
			return cfg, err
		}
	}
	if len(args) > 1 {
		v, err := parseFloat(1, "rotation")
		if err != nil {
			return cfg, err
		}
		cfg.RotationDeg = float32(v)
	}
	if len(args) > 2 {
		if cfg.EnableBlur, err = parseBool(2, "blur"); err != nil {
			return cfg, err
		}
	}
	if len(args) > 3 {
		if cfg.EnableSharpen, err = parseBool(3, "sharpen"); err != nil {
			return cfg, err
		}
	}
	if len(args) > 4 {
		if cfg.EnableGrayscale, err = parseBool(4, "grayscale"); err != nil {
			return cfg, err
		}
	}
	if len(args) > 5 {
		v, err := parseFloat(5, "brightness")
		if err != nil {
			return cfg, err
		}
		cfg.Brightness = float32(v)
	}
	if len(args) > 6 {
		v, err := parseFloat(6, "contrast")
		if err != nil {
			return cfg, err
		}
		cfg.Contrast = float32(v)
	}
	return cfg, nil
}
