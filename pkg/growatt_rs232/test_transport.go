package growatt_rs232

import (
	"errors"
	"sync"
)

var errTestRead = errors.New("test transport: read failed")

// TestTransport is an in-memory Transport for tests and dry runs. Replies registered with
// ReplyTo are queued whenever the matching command is written.
type TestTransport struct {
	mu        sync.Mutex
	inbound   []byte
	writes    [][]byte
	replies   map[string][]byte
	failReads int
	writeErr  error
	cmdErrs   map[string]error
}

func NewTestTransport() *TestTransport {
	return &TestTransport{
		replies: map[string][]byte{},
		cmdErrs: map[string]error{},
	}
}

// NewPresentTestTransport answers the init command like a powered inverter.
func NewPresentTestTransport() *TestTransport {
	t := NewTestTransport()
	t.ReplyTo(InitCommand(), []byte{0x3F, 0x23, 0x7E, 0x34, 0x41, 0x7E, 0x23, 0x3F})
	return t
}

func (t *TestTransport) Feed(b ...byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbound = append(t.inbound, b...)
}

func (t *TestTransport) FeedFrame(frame Frame) {
	t.Feed(frame[:]...)
}

func (t *TestTransport) ReplyTo(command []byte, reply []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[string(command)] = append([]byte(nil), reply...)
}

func (t *TestTransport) ClearReplies() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = map[string][]byte{}
}

// FailNextReads makes the next n reads fail. A failed read loses its byte.
func (t *TestTransport) FailNextReads(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failReads = n
}

func (t *TestTransport) FailWrites(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// FailCommand makes every write of command fail with err, other writes go through.
func (t *TestTransport) FailCommand(command []byte, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cmdErrs[string(command)] = err
}

func (t *TestTransport) Writes() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.writes))
	copy(out, t.writes)
	return out
}

func (t *TestTransport) ResetWrites() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = nil
}

func (t *TestTransport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inbound)
}

func (t *TestTransport) ReadByte() (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inbound) == 0 {
		return 0, ErrNoData
	}
	b := t.inbound[0]
	t.inbound = t.inbound[1:]
	if t.failReads > 0 {
		t.failReads--
		return 0, errTestRead
	}
	return b, nil
}

func (t *TestTransport) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	if err, ok := t.cmdErrs[string(p)]; ok {
		return err
	}
	t.writes = append(t.writes, append([]byte(nil), p...))
	if reply, ok := t.replies[string(p)]; ok {
		t.inbound = append(t.inbound, reply...)
	}
	return nil
}

func (t *TestTransport) Close() error {
	return nil
}

// EncodeFrame builds a data-frame holding the given readings. Channels not listed are zero.
func EncodeFrame(readings ...Reading) Frame {
	var frame Frame
	frame[0] = StartMarker
	for _, r := range readings {
		b, ok := BindingFor(r.Channel)
		if !ok {
			continue
		}
		raw := b.RawFromValue(r.Value)
		for i := 0; i < b.Width; i++ {
			frame[b.Offset+i] = byte(raw >> (8 * uint(b.Width-1-i)))
		}
	}
	return frame
}
