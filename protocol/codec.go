// Package protocol implements the binary command vocabulary of the mixer and
// the frame codec used on the vendor control endpoint.
//
// A frame is a 16 byte little endian header followed by the payload:
//
//	[0:4]   command id (opcode<<12 | target)
//	[4:6]   payload length
//	[6:8]   command index, echoed by the device
//	[8:10]  status (responses only, 0 = ok)
//	[10:12] reserved
//	[12:16] CRC-32 (IEEE) of the payload
//
// The codec has no state and is safe for concurrent use.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

const (
	// HeaderSize is the size of the frame header.
	HeaderSize = 16
	// MaxPayloadSize is the largest payload a frame can carry.
	MaxPayloadSize = 1024
	// MaxFrameSize is the largest frame, header included.
	MaxFrameSize = HeaderSize + MaxPayloadSize
)

var (
	// ErrUnsupportedCommand is returned for commands outside the vocabulary or
	// with a target or payload the command does not accept.
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrMalformedResponse is returned for frames that do not match the shape
	// expected for the command.
	ErrMalformedResponse = errors.New("malformed response")
)

// Response is a decoded device reply.
type Response struct {
	Status  uint16
	Payload []byte
}

// Encode builds the request frame for cmd.
func Encode(cmd Command, index uint16, payload []byte) ([]byte, error) {
	id, err := cmd.ID()
	if err != nil {
		return nil, err
	}
	request, _ := cmd.shape()
	if !request.allows(len(payload)) {
		return nil, fmt.Errorf("%w: %s payload of %d bytes", ErrUnsupportedCommand, cmd, len(payload))
	}
	return frame(id, index, 0, payload), nil
}

// Decode validates a response frame against the shape expected for cmd and the
// index the request was sent with.
func Decode(cmd Command, index uint16, data []byte) (Response, error) {
	id, err := cmd.ID()
	if err != nil {
		return Response{}, err
	}
	h, payload, err := split(data)
	if err != nil {
		return Response{}, err
	}
	if h.id != id {
		return Response{}, fmt.Errorf("%w: command id %#x, want %#x", ErrMalformedResponse, h.id, id)
	}
	if h.index != index {
		return Response{}, fmt.Errorf("%w: command index %d, want %d", ErrMalformedResponse, h.index, index)
	}
	if h.status != 0 {
		return Response{Status: h.status, Payload: payload}, nil
	}
	_, response := cmd.shape()
	if !response.allows(len(payload)) {
		return Response{}, fmt.Errorf("%w: %s payload of %d bytes", ErrMalformedResponse, cmd, len(payload))
	}
	return Response{Payload: payload}, nil
}

// DecodeRequest parses a request frame. It is the device side of Encode.
func DecodeRequest(data []byte) (Command, uint16, []byte, error) {
	h, payload, err := split(data)
	if err != nil {
		return Command{}, 0, nil, err
	}
	cmd, err := ParseID(h.id)
	if err != nil {
		return Command{}, 0, nil, err
	}
	request, _ := cmd.shape()
	if !request.allows(len(payload)) {
		return Command{}, 0, nil, fmt.Errorf("%w: %s payload of %d bytes", ErrUnsupportedCommand, cmd, len(payload))
	}
	return cmd, h.index, payload, nil
}

// EncodeResponse builds a response frame. It is the device side of Decode.
func EncodeResponse(cmd Command, index uint16, status uint16, payload []byte) ([]byte, error) {
	id, err := cmd.ID()
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrUnsupportedCommand, len(payload))
	}
	return frame(id, index, status, payload), nil
}

// PeekIndex returns the command index of a frame without validating it.
func PeekIndex(data []byte) (uint16, bool) {
	if len(data) < HeaderSize {
		return 0, false
	}
	return binary.LittleEndian.Uint16(data[6:8]), true
}

type header struct {
	id     uint32
	length uint16
	index  uint16
	status uint16
	crc    uint32
}

func frame(id uint32, index, status uint16, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], id)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(payload)))
	binary.LittleEndian.PutUint16(buf[6:8], index)
	binary.LittleEndian.PutUint16(buf[8:10], status)
	binary.LittleEndian.PutUint32(buf[12:16], crc32.ChecksumIEEE(payload))
	copy(buf[HeaderSize:], payload)
	return buf
}

func split(data []byte) (header, []byte, error) {
	if len(data) < HeaderSize {
		return header{}, nil, fmt.Errorf("%w: frame of %d bytes", ErrMalformedResponse, len(data))
	}
	h := header{
		id:     binary.LittleEndian.Uint32(data[0:4]),
		length: binary.LittleEndian.Uint16(data[4:6]),
		index:  binary.LittleEndian.Uint16(data[6:8]),
		status: binary.LittleEndian.Uint16(data[8:10]),
		crc:    binary.LittleEndian.Uint32(data[12:16]),
	}
	payload := data[HeaderSize:]
	if int(h.length) != len(payload) {
		return header{}, nil, fmt.Errorf("%w: length field %d, frame carries %d", ErrMalformedResponse, h.length, len(payload))
	}
	if crc32.ChecksumIEEE(payload) != h.crc {
		return header{}, nil, fmt.Errorf("%w: checksum mismatch", ErrMalformedResponse)
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return h, out, nil
}
