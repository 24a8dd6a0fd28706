package audio

import (
	"encoding/binary"
	"fmt"
)

// mulaw bias per ITU-T G.711
const mulawBias = 0x84

// DecodeMulaw expands G.711 μ-law companded bytes to 16-bit linear PCM
// samples. Telephony carriers deliver 8 kHz μ-law; the speech engine needs
// linear PCM, so this is always the first stage of normalization.
func DecodeMulaw(data []byte) []int16 {
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = mulawToLinear(b)
	}
	return samples
}

// mulawToLinear expands a single μ-law byte
func mulawToLinear(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	sample := (int32(mantissa)<<3 + mulawBias) << exponent
	sample -= mulawBias

	if sign != 0 {
		return int16(-sample)
	}
	return int16(sample)
}

// Resampler doubles an 8 kHz PCM stream to 16 kHz by linear interpolation.
// It carries the previous input sample across calls so that splitting a
// stream into arbitrary chunks produces byte-identical output to resampling
// it in one piece. One Resampler belongs to exactly one session and must not
// be shared.
type Resampler struct {
	prev   int16
	primed bool
}

// NewResampler creates a resampler with empty continuation state
func NewResampler() *Resampler {
	return &Resampler{}
}

// Resample converts 8 kHz samples to 16 kHz. For each input sample it emits
// the midpoint between the carried previous sample and the current one,
// followed by the current sample. The first sample of a stream has no
// predecessor and is emitted twice.
func (r *Resampler) Resample(samples []int16) []int16 {
	out := make([]int16, 0, len(samples)*2)
	for _, cur := range samples {
		if !r.primed {
			r.prev = cur
			r.primed = true
		}
		mid := int16((int32(r.prev) + int32(cur)) / 2)
		out = append(out, mid, cur)
		r.prev = cur
	}
	return out
}

// Reset clears the continuation state
func (r *Resampler) Reset() {
	r.prev = 0
	r.primed = false
}

// Normalizer converts one transport-encoded audio chunk into 16-bit PCM
// bytes at the engine's sample rate. It owns the per-session resampler state.
type Normalizer struct {
	inputRate  int
	targetRate int
	resampler  *Resampler
}

// NewNormalizer creates a normalizer for the given rate conversion. Only the
// telephony 8000→16000 Hz conversion is supported.
func NewNormalizer(inputRate, targetRate int) (*Normalizer, error) {
	if inputRate != 8000 || targetRate != 16000 {
		return nil, fmt.Errorf("unsupported rate conversion: %d -> %d Hz", inputRate, targetRate)
	}

	return &Normalizer{
		inputRate:  inputRate,
		targetRate: targetRate,
		resampler:  NewResampler(),
	}, nil
}

// Normalize decodes one μ-law chunk and resamples it to the target rate,
// returning little-endian 16-bit PCM bytes
func (n *Normalizer) Normalize(mulawData []byte) []byte {
	linear := DecodeMulaw(mulawData)
	resampled := n.resampler.Resample(linear)
	return SamplesToBytes(resampled)
}

// SamplesToBytes packs int16 samples as little-endian PCM bytes
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToSamples unpacks little-endian PCM bytes into int16 samples.
// The byte slice length must be even.
func BytesToSamples(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM byte length must be even, got %d", len(data))
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}
