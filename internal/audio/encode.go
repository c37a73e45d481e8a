package audio

import (
	"encoding/binary"
	"math"
)

const maxSample16 = 32767

// EncodeFloat32 converts interleaved float32 frames into mono 16-bit
// little-endian PCM. Channels are down-mixed by averaging, the mixed sample
// is clipped to [-1.0, 1.0], scaled to the positive 16-bit range, and
// truncated toward zero. Out-of-range input is absorbed by the clip, so the
// call cannot fail.
func EncodeFloat32(frames []float32, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	frameCount := len(frames) / channels
	out := make([]byte, frameCount*2)

	for i := 0; i < frameCount; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(frames[i*channels+ch])
		}
		mixed := sum / float64(channels)
		if mixed > 1.0 {
			mixed = 1.0
		} else if mixed < -1.0 {
			mixed = -1.0
		}
		sample := int16(mixed * maxSample16)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// EncodeInt16 down-mixes interleaved int16 frames to mono 16-bit
// little-endian PCM. The per-frame average is rounded toward nearest and
// clamped to the signed 16-bit range; the clamp matters when the channel
// count is low and samples sit near the boundary.
func EncodeInt16(frames []int16, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	frameCount := len(frames) / channels
	out := make([]byte, frameCount*2)

	for i := 0; i < frameCount; i++ {
		var sum int64
		for ch := 0; ch < channels; ch++ {
			sum += int64(frames[i*channels+ch])
		}
		mixed := roundedDivide(sum, int64(channels))
		if mixed > maxSample16 {
			mixed = maxSample16
		} else if mixed < -maxSample16-1 {
			mixed = -maxSample16 - 1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(mixed)))
	}
	return out
}

// roundedDivide divides sum by count rounding half away from zero.
func roundedDivide(sum, count int64) int64 {
	if sum >= 0 {
		return (sum + count/2) / count
	}
	return (sum - count/2) / count
}

// BytesToInt16 reinterprets little-endian PCM bytes as int16 samples.
// Trailing odd bytes are dropped.
func BytesToInt16(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}

// BytesToFloat32 reinterprets little-endian IEEE-754 bytes as float32 samples.
func BytesToFloat32(raw []byte) []float32 {
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
