package protocol

import (
	"encoding/binary"
	"fmt"
)

// DCPAddress locates one readable value inside a DCP category.
type DCPAddress struct {
	Category DCPCategory
	Key      uint8
}

func (a DCPAddress) String() string { return fmt.Sprintf("%s/%#02x", a.Category, a.Key) }

// Assignment is a value written to a DCP address.
type Assignment struct {
	Address DCPAddress
	Value   int32
}

func ChannelVolumeAddress(ch Channel) DCPAddress { return DCPAddress{DCPMixing, uint8(ch)} }

func ChannelStateAddress(ch Channel) DCPAddress { return DCPAddress{DCPMixing, 0x40 + uint8(ch)} }

func FaderAddress(f Fader) DCPAddress { return DCPAddress{DCPMixing, 0x80 + uint8(f)} }

func FaderStyleAddress(f Fader) DCPAddress { return DCPAddress{DCPMixing, 0x90 + uint8(f)} }

func RoutingAddress(in InputDevice, out OutputDevice) DCPAddress {
	return DCPAddress{DCPRouting, uint8(in)<<4 | uint8(out)}
}

func EncoderAddress(e Encoder) DCPAddress { return DCPAddress{DCPEffects, EncoderKeyBase + uint8(e)} }

func EffectAddress(k EffectKey) DCPAddress { return DCPAddress{DCPEffects, uint8(k)} }

func MicrophoneAddress(k MicrophoneParamKey) DCPAddress { return DCPAddress{DCPMicrophone, uint8(k)} }

func ColourAddress(t ColourTarget) DCPAddress { return DCPAddress{DCPLighting, uint8(t)} }

func ButtonLightAddress(b Button) DCPAddress { return DCPAddress{DCPLighting, 0x80 + uint8(b)} }

func AnimationAddress(f AnimationField) DCPAddress {
	return DCPAddress{DCPLighting, 0xf0 + uint8(f)}
}

// Param is a key/value pair in a SetEffectParameters or SetMicrophoneParameters payload.
type Param struct {
	Key   uint32
	Value int32
}

// EncodeParams lays out params as consecutive (key u32, value i32) pairs.
func EncodeParams(params []Param) []byte {
	buf := make([]byte, len(params)*ParamSize)
	for i, p := range params {
		binary.LittleEndian.PutUint32(buf[i*ParamSize:], p.Key)
		binary.LittleEndian.PutUint32(buf[i*ParamSize+4:], uint32(p.Value))
	}
	return buf
}

// DecodeParams is the inverse of EncodeParams.
func DecodeParams(payload []byte) ([]Param, error) {
	if len(payload)%ParamSize != 0 {
		return nil, fmt.Errorf("%w: parameter payload of %d bytes", ErrMalformedResponse, len(payload))
	}
	params := make([]Param, len(payload)/ParamSize)
	for i := range params {
		params[i].Key = binary.LittleEndian.Uint32(payload[i*ParamSize:])
		params[i].Value = int32(binary.LittleEndian.Uint32(payload[i*ParamSize+4:]))
	}
	return params, nil
}

// EncodeColours lays out the colour map as one little endian 0x00RRGGBB word per target.
func EncodeColours(colours []uint32) []byte {
	buf := make([]byte, 4*NumColourTargets)
	for i := 0; i < NumColourTargets && i < len(colours); i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], colours[i])
	}
	return buf
}

// EncodeValue is the payload of a ReadDCP response.
func EncodeValue(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(payload []byte) (int32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("%w: value payload of %d bytes", ErrMalformedResponse, len(payload))
	}
	return int32(binary.LittleEndian.Uint32(payload)), nil
}

// Assignments decodes a write command into the DCP values it changes.
// Read-only commands yield no assignments.
func Assignments(cmd Command, payload []byte) ([]Assignment, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	request, _ := cmd.shape()
	if !request.allows(len(payload)) {
		return nil, fmt.Errorf("%w: %s payload of %d bytes", ErrUnsupportedCommand, cmd, len(payload))
	}
	one := func(addr DCPAddress, v int32) []Assignment {
		return []Assignment{{Address: addr, Value: v}}
	}
	switch cmd.Op {
	case OpSetChannelVolume:
		return one(ChannelVolumeAddress(Channel(cmd.Target)), int32(payload[0])), nil
	case OpSetChannelState:
		return one(ChannelStateAddress(Channel(cmd.Target)), int32(payload[0])), nil
	case OpSetFader:
		return one(FaderAddress(Fader(cmd.Target)), int32(payload[0])), nil
	case OpSetFaderDisplayMode:
		return one(FaderStyleAddress(Fader(cmd.Target)), int32(payload[0])), nil
	case OpSetRouting:
		in, out := cmd.RoutingCell()
		return one(RoutingAddress(in, out), int32(payload[0])), nil
	case OpSetEncoderValue:
		return one(EncoderAddress(Encoder(cmd.Target)), int32(int8(payload[0]))), nil
	case OpSetButtonState:
		return one(ButtonLightAddress(Button(cmd.Target)), int32(payload[0])), nil
	case OpSetEffectParameters, OpSetMicrophoneParameters:
		params, err := DecodeParams(payload)
		if err != nil {
			return nil, err
		}
		category, limit := DCPEffects, uint32(NumEffectKeys)
		if cmd.Op == OpSetMicrophoneParameters {
			category, limit = DCPMicrophone, uint32(NumMicrophoneParamKeys)
		}
		out := make([]Assignment, 0, len(params))
		for _, p := range params {
			if p.Key >= limit {
				return nil, fmt.Errorf("%w: %s key %d", ErrUnsupportedCommand, cmd, p.Key)
			}
			out = append(out, Assignment{Address: DCPAddress{category, uint8(p.Key)}, Value: p.Value})
		}
		return out, nil
	case OpSetColourMap:
		out := make([]Assignment, NumColourTargets)
		for i := range out {
			out[i] = Assignment{
				Address: ColourAddress(ColourTarget(i)),
				Value:   int32(binary.LittleEndian.Uint32(payload[i*4:])),
			}
		}
		return out, nil
	case OpSetAnimation:
		out := make([]Assignment, NumAnimationFields)
		for i := range out {
			out[i] = Assignment{Address: AnimationAddress(AnimationField(i)), Value: int32(payload[i])}
		}
		return out, nil
	}
	return nil, nil
}
