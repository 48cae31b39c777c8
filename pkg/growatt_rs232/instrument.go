package growatt_rs232

// Instrument observes driver activity. Implementations must be cheap; they run inside
// the drain loop.
type Instrument interface {
	ByteReceived()
	ByteDiscarded()
	ReadFailed()
	FrameCompleted()
	FramePublished()
	FrameThrottled()
	LinkInitiated(present bool)
}

type noopInstrument struct{}

func (noopInstrument) ByteReceived() {}
func (noopInstrument) ByteDiscarded() {}
func (noopInstrument) ReadFailed() {}
func (noopInstrument) FrameCompleted() {}
func (noopInstrument) FramePublished() {}
func (noopInstrument) FrameThrottled() {}
func (noopInstrument) LinkInitiated(bool) {}
