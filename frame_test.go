package transcode

import "testing"

func TestRescaleTS(t *testing.T) {
	tests := []struct {
		ts       int64
		from, to Rational
		want     int64
	}{
		{0, Rational{1, 25}, Rational{1, 25}, 0},
		{10, Rational{1, 25}, Rational{1, 25}, 10},
		{1, Rational{1, 25}, Rational{1, 90000}, 3600},
		{48000, Rational{1, 48000}, Rational{1, 1000}, 1000},
		{3, Rational{1, 30}, Rational{1, 1000}, 100},
		{NoPTS, Rational{1, 25}, Rational{1, 90000}, NoPTS},
	}
	for _, tt := range tests {
		if got := RescaleTS(tt.ts, tt.from, tt.to); got != tt.want {
			t.Errorf("RescaleTS(%d, %v, %v) = %d, want %d", tt.ts, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRationalSeconds(t *testing.T) {
	tb := Rational{Num: 1, Den: 25}
	if got := tb.Seconds(50); got != 2.0 {
		t.Errorf("Seconds(50) = %v, want 2.0", got)
	}
}

func TestVideoFrameClone(t *testing.T) {
	f := NewI420Frame(16, 16)
	f.PTS = 7
	f.Data[0][0] = 99

	clone := f.Clone()
	clone.Data[0][0] = 1
	if f.Data[0][0] != 99 {
		t.Error("clone must not alias the original planes")
	}
	if clone.PTS != 7 || clone.Width != 16 {
		t.Error("clone lost metadata")
	}
}

func TestVideoFrameShareData(t *testing.T) {
	f := NewI420Frame(16, 16)
	dup := f.ShareData()
	dup.PTS = 5
	if f.PTS == 5 {
		t.Error("ShareData must copy the header")
	}
	dup.Data[0][0] = 42
	if f.Data[0][0] != 42 {
		t.Error("ShareData must alias the pixel planes")
	}
}

func TestPacketFreeIdempotent(t *testing.T) {
	released := 0
	pkt := &Packet{Data: []byte{1, 2, 3}, release: func() { released++ }}
	pkt.Free()
	pkt.Free()
	if released != 1 {
		t.Fatalf("release called %d times", released)
	}
	if pkt.Data != nil {
		t.Fatal("payload not cleared")
	}
}

func TestI420Size(t *testing.T) {
	if got := I420Size(640, 480); got != 640*480*3/2 {
		t.Errorf("I420Size(640, 480) = %d", got)
	}
	// Odd dimensions round the chroma planes up.
	if got := I420Size(3, 3); got != 9+4+4 {
		t.Errorf("I420Size(3, 3) = %d", got)
	}
}
