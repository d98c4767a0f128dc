package protocol

import "fmt"

// Op is a command family. Each family has one opcode and a fixed payload shape.
type Op uint8

const (
	OpResetCommandIndex Op = iota
	OpSystemInfo
	OpHardwareInfo
	OpGetButtonStates
	OpSetChannelVolume
	OpSetChannelState
	OpSetFader
	OpSetFaderDisplayMode
	OpSetRouting
	OpSetEncoderValue
	OpSetEffectParameters
	OpSetMicrophoneParameters
	OpSetColourMap
	OpSetButtonState
	OpSetAnimation
	OpReadDCP
	numOps
)

// SystemInfoCommand selects a system-info query.
type SystemInfoCommand uint8

const (
	SystemInfoFirmwareVersion SystemInfoCommand = iota
	SystemInfoSupportsDCPCategory
)

// HardwareInfoCommand selects a hardware-info query.
type HardwareInfoCommand uint8

const (
	HardwareInfoFirmwareVersion HardwareInfoCommand = iota
	HardwareInfoSerialNumber
)

// DCPCategory groups related hardware settings for capability queries and readback.
type DCPCategory uint8

const (
	DCPGeneral DCPCategory = iota
	DCPRouting
	DCPMixing
	DCPEffects
	DCPMicrophone
	DCPLighting
	NumDCPCategories = 6
)

var dcpNames = []string{"general", "routing", "mixing", "effects", "microphone", "lighting"}

func (c DCPCategory) String() string { return nameOf(dcpNames, c) }

// MaxParamsPerCommand bounds the number of key/value pairs in one parameter command.
const MaxParamsPerCommand = 16

// ParamSize is the size of one key/value pair in a parameter payload.
const ParamSize = 8

// length limits for a payload, inclusive; step > 1 requires a multiple of step
type span struct {
	min, max, step int
}

func fixed(n int) span { return span{min: n, max: n} }

type opSpec struct {
	name     string
	opcode   uint32
	readOnly bool
	targets  int // number of valid targets, 0 means target must be zero
	request  span
	response span
}

var opSpecs = [numOps]opSpec{
	OpResetCommandIndex:       {name: "ResetCommandIndex", opcode: 0x000, request: fixed(0), response: fixed(0)},
	OpSystemInfo:              {name: "SystemInfo", opcode: 0x001, readOnly: true, targets: 2},
	OpHardwareInfo:            {name: "HardwareInfo", opcode: 0x80f, readOnly: true, targets: 2, request: fixed(0)},
	OpGetButtonStates:         {name: "GetButtonStates", opcode: 0x800, readOnly: true, request: fixed(0), response: fixed(ButtonStatesSize)},
	OpSetChannelVolume:        {name: "SetChannelVolume", opcode: 0x806, targets: NumChannels, request: fixed(1), response: fixed(0)},
	OpSetChannelState:         {name: "SetChannelState", opcode: 0x809, targets: NumChannels, request: fixed(1), response: fixed(0)},
	OpSetFader:                {name: "SetFader", opcode: 0x805, targets: NumFaders, request: fixed(1), response: fixed(0)},
	OpSetFaderDisplayMode:     {name: "SetFaderDisplayMode", opcode: 0x814, targets: NumFaders, request: fixed(1), response: fixed(0)},
	OpSetRouting:              {name: "SetRouting", opcode: 0x804, request: fixed(1), response: fixed(0)},
	OpSetEncoderValue:         {name: "SetEncoderValue", opcode: 0x80a, targets: NumEncoders, request: fixed(1), response: fixed(0)},
	OpSetEffectParameters:     {name: "SetEffectParameters", opcode: 0x801, request: span{ParamSize, ParamSize * MaxParamsPerCommand, ParamSize}, response: fixed(0)},
	OpSetMicrophoneParameters: {name: "SetMicrophoneParameters", opcode: 0x80b, request: span{ParamSize, ParamSize * MaxParamsPerCommand, ParamSize}, response: fixed(0)},
	OpSetColourMap:            {name: "SetColourMap", opcode: 0x803, request: fixed(4 * NumColourTargets), response: fixed(0)},
	OpSetButtonState:          {name: "SetButtonState", opcode: 0x808, targets: NumButtons, request: fixed(1), response: fixed(0)},
	OpSetAnimation:            {name: "SetAnimation", opcode: 0x816, request: fixed(NumAnimationFields), response: fixed(0)},
	OpReadDCP:                 {name: "ReadDCP", opcode: 0x810, readOnly: true, request: fixed(0), response: fixed(4)},
}

// Command is one tagged unit of the device vocabulary: a family plus the
// 12-bit target (channel, fader, routing cell, DCP address, sub-query) it acts on.
type Command struct {
	Op     Op
	Target uint16
}

func ResetCommandIndex() Command { return Command{Op: OpResetCommandIndex} }

func SystemInfo(sub SystemInfoCommand) Command {
	return Command{Op: OpSystemInfo, Target: uint16(sub)}
}

func HardwareInfo(sub HardwareInfoCommand) Command {
	return Command{Op: OpHardwareInfo, Target: uint16(sub)}
}

func GetButtonStates() Command { return Command{Op: OpGetButtonStates} }

func SetChannelVolume(ch Channel) Command {
	return Command{Op: OpSetChannelVolume, Target: uint16(ch)}
}

func SetChannelState(ch Channel) Command {
	return Command{Op: OpSetChannelState, Target: uint16(ch)}
}

func SetFader(f Fader) Command { return Command{Op: OpSetFader, Target: uint16(f)} }

func SetFaderDisplayMode(f Fader) Command {
	return Command{Op: OpSetFaderDisplayMode, Target: uint16(f)}
}

// SetRouting writes a single routing matrix cell.
func SetRouting(in InputDevice, out OutputDevice) Command {
	return Command{Op: OpSetRouting, Target: uint16(in)<<4 | uint16(out)}
}

func SetEncoderValue(e Encoder) Command {
	return Command{Op: OpSetEncoderValue, Target: uint16(e)}
}

func SetEffectParameters() Command { return Command{Op: OpSetEffectParameters} }

func SetMicrophoneParameters() Command { return Command{Op: OpSetMicrophoneParameters} }

func SetColourMap() Command { return Command{Op: OpSetColourMap} }

func SetButtonState(b Button) Command {
	return Command{Op: OpSetButtonState, Target: uint16(b)}
}

func SetAnimation() Command { return Command{Op: OpSetAnimation} }

// ReadDCP reads the 4-byte value stored at a DCP address.
func ReadDCP(addr DCPAddress) Command {
	return Command{Op: OpReadDCP, Target: uint16(addr.Category)<<8 | uint16(addr.Key)}
}

// RoutingCell returns the input and output addressed by a SetRouting command.
func (c Command) RoutingCell() (InputDevice, OutputDevice) {
	return InputDevice(c.Target >> 4), OutputDevice(c.Target & 0x0f)
}

// Address returns the DCP address of a ReadDCP command.
func (c Command) Address() DCPAddress {
	return DCPAddress{Category: DCPCategory(c.Target >> 8), Key: uint8(c.Target)}
}

// Idempotent reports whether the command only reads device state and may be
// retried freely.
func (c Command) Idempotent() bool {
	return c.Op < numOps && opSpecs[c.Op].readOnly
}

// ID returns the 32-bit command id sent in the frame header.
func (c Command) ID() (uint32, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	return opSpecs[c.Op].opcode<<12 | uint32(c.Target), nil
}

func (c Command) String() string {
	if c.Op >= numOps {
		return fmt.Sprintf("Op(%d)", c.Op)
	}
	switch c.Op {
	case OpSetRouting:
		in, out := c.RoutingCell()
		return fmt.Sprintf("%s(%s,%s)", opSpecs[c.Op].name, in, out)
	case OpReadDCP:
		addr := c.Address()
		return fmt.Sprintf("%s(%s,%#02x)", opSpecs[c.Op].name, addr.Category, addr.Key)
	}
	if opSpecs[c.Op].targets > 0 {
		return fmt.Sprintf("%s(%d)", opSpecs[c.Op].name, c.Target)
	}
	return opSpecs[c.Op].name
}

// ParseID maps a command id back to a Command.
func ParseID(id uint32) (Command, error) {
	opcode := id >> 12
	for op := Op(0); op < numOps; op++ {
		if opSpecs[op].opcode == opcode {
			c := Command{Op: op, Target: uint16(id & 0xfff)}
			if err := c.validate(); err != nil {
				return Command{}, err
			}
			return c, nil
		}
	}
	return Command{}, fmt.Errorf("%w: id %#x", ErrUnsupportedCommand, id)
}

func (c Command) validate() error {
	if c.Op >= numOps {
		return fmt.Errorf("%w: op %d", ErrUnsupportedCommand, c.Op)
	}
	if c.Target > 0xfff {
		return fmt.Errorf("%w: %s target %#x out of range", ErrUnsupportedCommand, opSpecs[c.Op].name, c.Target)
	}
	ok := true
	switch c.Op {
	case OpSetRouting:
		in, out := c.RoutingCell()
		ok = in < NumInputs && out < NumOutputs
	case OpReadDCP:
		ok = c.Address().Category < NumDCPCategories
	default:
		if n := opSpecs[c.Op].targets; n > 0 {
			ok = int(c.Target) < n
		} else {
			ok = c.Target == 0
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s target %#x", ErrUnsupportedCommand, opSpecs[c.Op].name, c.Target)
	}
	return nil
}

// shape returns the request and response payload limits of the command.
func (c Command) shape() (request, response span) {
	s := opSpecs[c.Op]
	switch c.Op {
	case OpSystemInfo:
		if SystemInfoCommand(c.Target) == SystemInfoSupportsDCPCategory {
			return fixed(2), fixed(2)
		}
		return fixed(0), fixed(16)
	case OpHardwareInfo:
		if HardwareInfoCommand(c.Target) == HardwareInfoSerialNumber {
			return fixed(0), span{min: 0, max: 32}
		}
		return fixed(0), fixed(16)
	}
	return s.request, s.response
}

func (s span) allows(n int) bool {
	if n < s.min || n > s.max {
		return false
	}
	return s.step <= 1 || n%s.step == 0
}
