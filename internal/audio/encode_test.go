package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeSamples(t *testing.T, raw []byte) []int16 {
	t.Helper()
	require.Zero(t, len(raw)%2)
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}

func TestEncodeFloat32FrameCountAndRange(t *testing.T) {
	for _, channels := range []int{1, 2, 4} {
		frames := make([]float32, 480*channels)
		for i := range frames {
			// Include values outside [-1, 1] to exercise the clip.
			frames[i] = float32(i%7)*0.5 - 1.5
		}

		raw := EncodeFloat32(frames, channels)
		samples := decodeSamples(t, raw)
		require.Len(t, samples, 480, "channels=%d", channels)
		for _, s := range samples {
			require.LessOrEqual(t, s, int16(maxSample16))
			require.GreaterOrEqual(t, s, int16(-maxSample16-1))
		}
	}
}

func TestEncodeFloat32DownmixAverages(t *testing.T) {
	// One frame, two channels: 1.0 and 0.0 average to 0.5.
	raw := EncodeFloat32([]float32{1.0, 0.0}, 2)
	samples := decodeSamples(t, raw)
	require.Len(t, samples, 1)
	want := 0.5 * float64(maxSample16)
	require.Equal(t, int16(want), samples[0])
}

func TestEncodeFloat32ClipsFullScale(t *testing.T) {
	raw := EncodeFloat32([]float32{2.5, -3.0}, 1)
	samples := decodeSamples(t, raw)
	require.Equal(t, []int16{maxSample16, -maxSample16}, samples)
}

func TestEncodeFloat32TruncatesTowardZero(t *testing.T) {
	// 0.00005*32767 = 1.63..., -0.00005*32767 = -1.63...: both truncate to ±1.
	raw := EncodeFloat32([]float32{0.00005, -0.00005}, 1)
	samples := decodeSamples(t, raw)
	require.Equal(t, []int16{1, -1}, samples)
}

func TestEncodeInt16DownmixRoundsAndClamps(t *testing.T) {
	tests := []struct {
		name     string
		frames   []int16
		channels int
		want     []int16
	}{
		{name: "plain average", frames: []int16{100, 200}, channels: 2, want: []int16{150}},
		{name: "round to nearest", frames: []int16{100, 201}, channels: 2, want: []int16{151}},
		{name: "negative rounding", frames: []int16{-100, -201}, channels: 2, want: []int16{-151}},
		{name: "boundary clamp", frames: []int16{32767, 32767}, channels: 2, want: []int16{32767}},
		{name: "mono passthrough", frames: []int16{-32768, 42}, channels: 1, want: []int16{-32768, 42}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			samples := decodeSamples(t, EncodeInt16(tc.frames, tc.channels))
			require.Equal(t, tc.want, samples)
		})
	}
}

func TestByteReinterpretRoundTrip(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	require.Equal(t, []int16{1, 32767, -32768}, BytesToInt16(raw))

	floats := BytesToFloat32([]byte{0x00, 0x00, 0x80, 0x3F})
	require.Len(t, floats, 1)
	require.InDelta(t, 1.0, float64(floats[0]), 1e-9)
}
