package transcode

import (
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// frameDecoder is the shared shape of VideoDecoder and AudioDecoder,
// letting both decode stages run the same template.
type frameDecoder[F any] interface {
	io.Closer
	SendPacket(pkt *Packet) error
	ReceiveFrame() (F, error)
}

// runDecodeStage pops packets, feeds the decoder, and pushes every
// produced frame downstream. When the input queue closes it submits a
// flush (nil packet) so late frames buffered inside the codec are not
// lost, then finishes the output queue.
//
// The drain loop handles the decoder's three states: ErrAgain (needs more
// input), io.EOF (fully drained after flush), and transient errors, which
// are logged and skipped.
func runDecodeStage[F any](name string, in *Queue[*Packet], out *Queue[F], dec frameDecoder[F], log zerolog.Logger) {
	log = log.With().Str("stage", name).Logger()
	defer out.Finish()
	defer dec.Close()
	log.Info().Msg("started")

	var packets, frames int64
	eos := false
	for !eos {
		pkt, ok := in.Pop()
		if ok {
			packets++
		}
		// A closed input queue turns into a flush submission.
		var submit *Packet
		if ok {
			submit = pkt
		}
		if err := dec.SendPacket(submit); err != nil {
			log.Warn().Err(err).Msg("decoder rejected packet")
			pkt.Free()
			if !ok {
				break
			}
			continue
		}
		pkt.Free()

	drain:
		for {
			frame, err := dec.ReceiveFrame()
			switch {
			case err == nil:
				if out.Push(frame) {
					frames++
				}
			case errors.Is(err, ErrAgain):
				break drain
			case errors.Is(err, io.EOF):
				eos = true
				break drain
			default:
				log.Warn().Err(err).Msg("transient decode error")
				break drain
			}
		}
		if !ok && !eos {
			// Flush submitted but decoder never reported EOF; nothing
			// further can arrive.
			break
		}
	}

	log.Info().Int64("packets", packets).Int64("frames", frames).Msg("finished")
}
