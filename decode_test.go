package transcode

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

func TestDecodeStage_DecodesAndFlushes(t *testing.T) {
	info := testStreamInfo(10, -1)
	in := NewQueue[*Packet](4)
	out := NewQueue[*VideoFrame](4)
	dec := &fakeVideoDecoder{info: info}

	done := make(chan []*VideoFrame)
	go func() {
		var frames []*VideoFrame
		for {
			f, ok := out.Pop()
			if !ok {
				break
			}
			frames = append(frames, f)
		}
		done <- frames
	}()
	go runDecodeStage("video-decode", in, out, dec, zerolog.Nop())

	for i := 0; i < 10; i++ {
		in.Push(videoPacket(int64(i)))
	}
	in.Finish()

	frames := <-done
	if len(frames) != 10 {
		t.Fatalf("decoded %d frames, want 10", len(frames))
	}
	for i, f := range frames {
		if f.PTS != int64(i) {
			t.Errorf("frame %d pts %d", i, f.PTS)
		}
	}
	if !dec.flushed {
		t.Error("decoder was never flushed")
	}
	if !dec.closed {
		t.Error("decoder was never closed")
	}
	if !out.Finished() {
		t.Error("output queue not finished")
	}
}

// A decoder buffering several packets before emitting exercises the
// ErrAgain path; the flush must recover the tail.
type bufferingVideoDecoder struct {
	fakeVideoDecoder
	held []*VideoFrame
}

func (d *bufferingVideoDecoder) SendPacket(pkt *Packet) error {
	if pkt == nil {
		d.flushed = true
		d.pending = append(d.pending, d.held...)
		d.held = nil
		return nil
	}
	index := int64(0)
	if len(pkt.Data) >= 8 {
		index = pkt.PTS
	}
	d.held = append(d.held, gradientFrame(d.info, index))
	return nil
}

func (d *bufferingVideoDecoder) ReceiveFrame() (*VideoFrame, error) {
	// Hold everything until flush.
	if len(d.pending) == 0 {
		if d.flushed {
			return nil, io.EOF
		}
		return nil, ErrAgain
	}
	return d.fakeVideoDecoder.ReceiveFrame()
}

func TestDecodeStage_FlushRecoversBufferedFrames(t *testing.T) {
	info := testStreamInfo(4, -1)
	in := NewQueue[*Packet](4)
	out := NewQueue[*VideoFrame](8)
	dec := &bufferingVideoDecoder{fakeVideoDecoder: fakeVideoDecoder{info: info}}

	done := make(chan int)
	go func() {
		count := 0
		for {
			_, ok := out.Pop()
			if !ok {
				break
			}
			count++
		}
		done <- count
	}()
	go runDecodeStage("video-decode", in, out, dec, zerolog.Nop())

	for i := 0; i < 4; i++ {
		in.Push(videoPacket(int64(i)))
	}
	in.Finish()

	if got := <-done; got != 4 {
		t.Fatalf("recovered %d frames after flush, want 4", got)
	}
}

// A transiently failing decoder must not kill the stage.
type flakyAudioDecoder struct {
	fakeAudioDecoder
	failNext bool
}

func (d *flakyAudioDecoder) ReceiveFrame() (*AudioFrame, error) {
	if d.failNext {
		d.failNext = false
		return nil, errors.New("bitstream glitch")
	}
	return d.fakeAudioDecoder.ReceiveFrame()
}

func TestDecodeStage_TransientErrorContinues(t *testing.T) {
	info := testStreamInfo(-1, 4096)
	in := NewQueue[*Packet](4)
	out := NewQueue[*AudioFrame](8)
	dec := &flakyAudioDecoder{fakeAudioDecoder: fakeAudioDecoder{info: info}}
	dec.failNext = true

	done := make(chan int)
	go func() {
		count := 0
		for {
			_, ok := out.Pop()
			if !ok {
				break
			}
			count++
		}
		done <- count
	}()
	go runDecodeStage("audio-decode", in, out, dec, zerolog.Nop())

	for i := 0; i < 4; i++ {
		in.Push(audioPacket(int64(i*1024), 1024))
	}
	in.Finish()

	// One receive fails transiently; the frame stays pending and is
	// delivered on a later drain, so all four frames still arrive.
	if got := <-done; got != 4 {
		t.Fatalf("decoded %d frames, want 4", got)
	}
}

func TestDemuxer_RoutesAndCaps(t *testing.T) {
	info := testStreamInfo(10, 8192)
	packets := testPackets(10, 8192, 1024)
	src := &fakeSource{info: info, packets: packets}

	d := NewDemuxer(src, 4, zerolog.Nop())
	vq := NewQueue[*Packet](32)
	aq := NewQueue[*Packet](32)
	d.Run(vq, aq)

	if !vq.Finished() || !aq.Finished() {
		t.Fatal("demuxer must finish both queues")
	}
	if vq.Len() != 4 {
		t.Errorf("video packets routed = %d, want 4 (max_frames cap)", vq.Len())
	}
	if !src.closed {
		t.Error("source not closed")
	}
}

func TestDemuxer_NoAudioQueueFreesPackets(t *testing.T) {
	info := testStreamInfo(2, 2048)
	packets := testPackets(2, 2048, 1024)
	src := &fakeSource{info: info, packets: packets}

	d := NewDemuxer(src, 0, zerolog.Nop())
	vq := NewQueue[*Packet](32)
	d.Run(vq, nil)

	if vq.Len() != 2 {
		t.Errorf("video packets routed = %d, want 2", vq.Len())
	}
}
