package growatt_rs232

const (
	StartMarker byte = 0x57
	FrameSize        = 31

	// Fewer bytes than this right after InitCommand means the inverter serial port is
	// unpowered (no DC voltage, e.g. at night).
	MinInitReplyBytes = 6
)

// Bytes 8-11 ("1000" / "1500") select the interval the inverter streams data-frames at.
var initCommand = [14]byte{0x3F, 0x23, 0x7E, 0x34, 0x41, 0x7E, 0x32,
	0x59, 0x31, 0x30, 0x30, 0x30, 0x23, 0x3F}

var startCommand = [14]byte{0x3F, 0x23, 0x7E, 0x34, 0x41, 0x7E, 0x32,
	0x59, 0x31, 0x35, 0x30, 0x30, 0x23, 0x3F}

type Frame [FrameSize]byte

func InitCommand() []byte {
	c := initCommand
	return c[:]
}

func StartCommand() []byte {
	c := startCommand
	return c[:]
}
