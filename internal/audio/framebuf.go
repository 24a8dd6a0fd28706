package audio

// FrameBuffer accumulates normalized PCM bytes and releases them in whole
// frames of the size the speech engine requires. Arrival order is preserved
// exactly; the engine is a sequential decoder and frame reordering would
// corrupt its output.
type FrameBuffer struct {
	frameSize int
	buf       []byte
}

// NewFrameBuffer creates a buffer releasing frames of frameSizeBytes each
func NewFrameBuffer(frameSizeBytes int) *FrameBuffer {
	return &FrameBuffer{
		frameSize: frameSizeBytes,
		buf:       make([]byte, 0, frameSizeBytes*4),
	}
}

// Append extends the buffer with incoming PCM bytes
func (f *FrameBuffer) Append(data []byte) {
	f.buf = append(f.buf, data...)
}

// DrainFrames removes and returns every complete frame currently buffered,
// in FIFO order. After it returns, fewer than one frame's bytes remain.
func (f *FrameBuffer) DrainFrames() [][]byte {
	var frames [][]byte
	for len(f.buf) >= f.frameSize {
		frame := make([]byte, f.frameSize)
		copy(frame, f.buf[:f.frameSize])
		frames = append(frames, frame)
		f.buf = f.buf[f.frameSize:]
	}

	// Reclaim capacity once the consumed prefix dominates the backing array
	if len(frames) > 0 && len(f.buf) > 0 {
		remainder := make([]byte, len(f.buf), f.frameSize*4)
		copy(remainder, f.buf)
		f.buf = remainder
	} else if len(f.buf) == 0 {
		f.buf = f.buf[:0]
	}

	return frames
}

// Len returns the number of buffered bytes not yet released
func (f *FrameBuffer) Len() int {
	return len(f.buf)
}

// FrameSize returns the configured frame size in bytes
func (f *FrameBuffer) FrameSize() int {
	return f.frameSize
}
