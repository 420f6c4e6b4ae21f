package transcode

// VideoCodecID identifies a video codec.
type VideoCodecID int

const (
	VideoCodecUnknown VideoCodecID = iota
	VideoCodecMPEG4
	VideoCodecH264
	VideoCodecMJPEG
)

func (c VideoCodecID) String() string {
	switch c {
	case VideoCodecMPEG4:
		return "MPEG4"
	case VideoCodecH264:
		return "H264"
	case VideoCodecMJPEG:
		return "MJPEG"
	default:
		return "Unknown"
	}
}

// AudioCodecID identifies an audio codec.
type AudioCodecID int

const (
	AudioCodecUnknown AudioCodecID = iota
	AudioCodecAC3
	AudioCodecAAC
	AudioCodecMP3
	AudioCodecPCM
)

func (c AudioCodecID) String() string {
	switch c {
	case AudioCodecAC3:
		return "AC3"
	case AudioCodecAAC:
		return "AAC"
	case AudioCodecMP3:
		return "MP3"
	case AudioCodecPCM:
		return "PCM"
	default:
		return "Unknown"
	}
}

// TargetAudioFormat selects the audio encoder implementation.
type TargetAudioFormat int

const (
	TargetAudioAC3 TargetAudioFormat = iota // Dolby Digital, fixed 1536-sample frames
	TargetAudioAAC
	TargetAudioMP3
	TargetAudioCopy // packet-level passthrough, no re-encode
)

func (f TargetAudioFormat) String() string {
	switch f {
	case TargetAudioAC3:
		return "AC3"
	case TargetAudioAAC:
		return "AAC"
	case TargetAudioMP3:
		return "MP3"
	case TargetAudioCopy:
		return "COPY"
	default:
		return "Unknown"
	}
}

// CodecID returns the codec carried by streams encoded in this format.
func (f TargetAudioFormat) CodecID() AudioCodecID {
	switch f {
	case TargetAudioAC3:
		return AudioCodecAC3
	case TargetAudioAAC:
		return AudioCodecAAC
	case TargetAudioMP3:
		return AudioCodecMP3
	default:
		return AudioCodecUnknown
	}
}

// FrameSize returns the samples-per-channel block size the format's
// encoder requires, or 0 when the format has no fixed block size.
func (f TargetAudioFormat) FrameSize() int {
	switch f {
	case TargetAudioAC3:
		return 1536
	case TargetAudioAAC:
		return 1024
	case TargetAudioMP3:
		return 1152
	default:
		return 0
	}
}
