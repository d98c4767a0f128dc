package protocol

import (
	"encoding/binary"
	"fmt"
)

// ButtonStatesSize is the size of a GetButtonStates response.
const ButtonStatesSize = 24

// ButtonStates is the raw hardware input snapshot returned by GetButtonStates.
type ButtonStates struct {
	// bit n set means Button(n) is held down
	Pressed  uint32
	Encoders [NumEncoders]uint8
	Faders   [NumFaders]uint8
}

// IsPressed reports whether b is down in the snapshot.
func (s ButtonStates) IsPressed(b Button) bool {
	return s.Pressed&(1<<b) != 0
}

// ParseButtonStates decodes a GetButtonStates payload.
func ParseButtonStates(payload []byte) (ButtonStates, error) {
	if len(payload) != ButtonStatesSize {
		return ButtonStates{}, fmt.Errorf("%w: button states of %d bytes", ErrMalformedResponse, len(payload))
	}
	var s ButtonStates
	s.Pressed = binary.LittleEndian.Uint32(payload[0:4])
	copy(s.Encoders[:], payload[4:8])
	copy(s.Faders[:], payload[8:12])
	return s, nil
}

// Bytes encodes the snapshot as a GetButtonStates payload.
func (s ButtonStates) Bytes() []byte {
	buf := make([]byte, ButtonStatesSize)
	binary.LittleEndian.PutUint32(buf[0:4], s.Pressed)
	copy(buf[4:8], s.Encoders[:])
	copy(buf[8:12], s.Faders[:])
	return buf
}
