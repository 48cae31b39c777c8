package growatt_rs232

// FrameAssembler rebuilds data-frames from a byte stream that is not aligned to frame
// boundaries. The buffer is either empty or holds a prefix starting with StartMarker.
type FrameAssembler struct {
	buf    Frame
	cursor int
}

// Push feeds one byte. When it completes a frame, the frame is returned and the
// assembler is reset. Bytes received while the buffer is empty are dropped unless they
// are StartMarker; a marker received mid-frame is plain payload.
func (a *FrameAssembler) Push(b byte) (*Frame, bool) {
	if a.cursor > 0 && a.buf[0] == StartMarker {
		a.buf[a.cursor] = b
		a.cursor++
		if a.cursor == FrameSize {
			frame := a.buf
			a.Reset()
			return &frame, true
		}
		return nil, false
	}
	if b == StartMarker {
		a.buf[0] = StartMarker
		a.cursor = 1
	}
	return nil, false
}

// Accepts reports whether Push(b) would keep b (as payload or as a new frame start).
func (a *FrameAssembler) Accepts(b byte) bool {
	return a.cursor > 0 || b == StartMarker
}

func (a *FrameAssembler) Reset() {
	a.cursor = 0
	a.buf = Frame{}
}

func (a *FrameAssembler) Len() int {
	return a.cursor
}

// Pending returns a copy of the committed prefix.
func (a *FrameAssembler) Pending() []byte {
	out := make([]byte, a.cursor)
	copy(out, a.buf[:a.cursor])
	return out
}
