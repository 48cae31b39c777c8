package growatt_rs232

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssemblerSingleFrame(t *testing.T) {

	assert := assert.New(t)

	frame := EncodeFrame(Reading{Channel: CHANNEL_GRID_VOLTAGE, Value: 231.4})
	a := FrameAssembler{}

	completed := 0
	for i, b := range frame {
		out, ok := a.Push(b)
		if i < FrameSize-1 {
			assert.False(ok, "frame must not complete before the last byte")
			assert.Nil(out)
			assert.Equal(i+1, a.Len())
			continue
		}
		assert.True(ok, "frame completes on byte 31")
		assert.Equal(frame, *out)
		completed++
	}
	assert.Equal(1, completed)
	assert.Equal(0, a.Len(), "assembler is reset after a complete frame")
	assert.Empty(a.Pending())
}

func TestAssemblerDiscardsNoiseBeforeMarker(t *testing.T) {

	assert := assert.New(t)

	a := FrameAssembler{}
	for _, b := range []byte{0x00, 0x12, 0xFF, 0x56, 0x58} {
		assert.False(a.Accepts(b))
		_, ok := a.Push(b)
		assert.False(ok)
		assert.Equal(0, a.Len(), "noise is never committed")
	}

	assert.True(a.Accepts(StartMarker))
	a.Push(StartMarker)
	assert.Equal([]byte{StartMarker}, a.Pending())
}

func TestAssemblerMarkerMidFrameIsPayload(t *testing.T) {

	assert := assert.New(t)

	a := FrameAssembler{}
	a.Push(StartMarker)
	a.Push(0x01)
	a.Push(0x02)
	assert.Equal(3, a.Len())

	assert.True(a.Accepts(StartMarker))
	a.Push(StartMarker)
	assert.Equal(4, a.Len(), "marker mid-frame must not restart the frame")
	assert.Equal([]byte{StartMarker, 0x01, 0x02, StartMarker}, a.Pending())
}

func TestAssemblerResyncAfterNoise(t *testing.T) {

	assert := assert.New(t)

	frame := EncodeFrame(Reading{Channel: CHANNEL_PV1_VOLTAGE, Value: 350.2})
	stream := append([]byte{0x11, 0x22, 0x33}, frame[:]...)
	stream = append(stream, 0x44)
	stream = append(stream, frame[:]...)

	a := FrameAssembler{}
	var frames []Frame
	for _, b := range stream {
		if out, ok := a.Push(b); ok {
			frames = append(frames, *out)
		}
	}

	assert.Len(frames, 2)
	for _, f := range frames {
		assert.Equal(frame, f)
	}
}

func TestAssemblerRandomStreamsOnlyYieldAlignedFrames(t *testing.T) {

	assert := assert.New(t)

	rnd := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		a := FrameAssembler{}
		n := rnd.Intn(500)
		for i := 0; i < n; i++ {
			b := byte(rnd.Intn(256))
			// bias towards the marker so frames actually complete
			if rnd.Intn(8) == 0 {
				b = StartMarker
			}
			out, ok := a.Push(b)
			if ok {
				assert.Equal(StartMarker, out[0])
				assert.Equal(0, a.Len())
			}
			assert.GreaterOrEqual(a.Len(), 0)
			assert.Less(a.Len(), FrameSize)
			if a.Len() > 0 {
				assert.Equal(StartMarker, a.Pending()[0])
			}
		}
	}
}

func TestAssemblerReset(t *testing.T) {

	assert := assert.New(t)

	a := FrameAssembler{}
	a.Push(StartMarker)
	a.Push(0x10)
	a.Reset()
	assert.Equal(0, a.Len())

	// a reset assembler needs a fresh marker
	a.Push(0x10)
	assert.Equal(0, a.Len())
}
