// Package sphero speaks the Sphero v1 binary API over a serial link.
//
// Client packets are FF FF|FE DID CID SEQ DLEN DATA... CHK, responses are
// FF FF MRSP SEQ DLEN DATA... CHK and asynchronous packets are
// FF FE ID LEN_HI LEN_LO DATA... CHK. DLEN counts the data bytes plus the
// checksum; CHK is the inverted modulo-256 sum of every byte after SOP2.
package sphero

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	sop1        = 0xFF
	sop2Answer  = 0xFF
	sop2NoReply = 0xFE
)

// Device IDs.
const (
	DeviceCore   byte = 0x00
	DeviceSphero byte = 0x02
)

// Command IDs.
const (
	CmdPing             byte = 0x01 // core
	CmdSleep            byte = 0x22 // core
	CmdSetHeading       byte = 0x01
	CmdSetStabilization byte = 0x02
	CmdSetDataStreaming byte = 0x11
	CmdSetRGBLED        byte = 0x20
	CmdSetBackLED       byte = 0x21
	CmdRoll             byte = 0x30
)

// Async packet IDs.
const (
	AsyncPowerNotification byte = 0x01
	AsyncSensorData        byte = 0x03
)

// Response codes.
const (
	RspOK           byte = 0x00
	RspGeneralError byte = 0x01
	RspChecksum     byte = 0x02
	RspFragment     byte = 0x03
	RspBadCommand   byte = 0x04
	RspUnsupported  byte = 0x05
	RspBadMessage   byte = 0x06
	RspBadParam     byte = 0x07
)

var (
	ErrChecksum     = errors.New("sphero: checksum mismatch")
	ErrTimeout      = errors.New("sphero: response timeout")
	ErrNotConnected = errors.New("sphero: not connected")
	ErrBadPacket    = errors.New("sphero: malformed packet")
)

// Checksum returns the inverted modulo-256 sum of b.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return ^sum
}

// Command is one client-to-device packet.
type Command struct {
	DID      byte
	CID      byte
	Seq      byte
	Data     []byte
	NoAnswer bool
}

// MarshalBinary encodes the command for the wire.
func (c Command) MarshalBinary() ([]byte, error) {
	if len(c.Data) > 254 {
		return nil, fmt.Errorf("%w: %d data bytes", ErrBadPacket, len(c.Data))
	}
	sop2 := byte(sop2Answer)
	if c.NoAnswer {
		sop2 = sop2NoReply
	}

	buf := make([]byte, 0, 7+len(c.Data))
	buf = append(buf, sop1, sop2, c.DID, c.CID, c.Seq, byte(len(c.Data)+1))
	buf = append(buf, c.Data...)
	return append(buf, Checksum(buf[2:])), nil
}

// Response is a synchronous reply to a Command.
type Response struct {
	Code byte
	Seq  byte
	Data []byte
}

// Err converts a non-OK response code into an error.
func (r Response) Err() error {
	if r.Code == RspOK {
		return nil
	}
	return fmt.Errorf("sphero: response code 0x%02X", r.Code)
}

// Async is an unsolicited device packet such as streamed sensor data.
type Async struct {
	ID   byte
	Data []byte
}

// Reader decodes responses and async packets from a byte stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next packet, either a Response or an Async. Garbage
// before a start-of-packet marker is skipped; a packet with a bad checksum
// is reported as ErrChecksum and the stream stays usable.
func (r *Reader) Next() (any, error) {
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != sop1 {
			continue
		}
		kind, err := r.br.Peek(1)
		if err != nil {
			return nil, err
		}
		switch kind[0] {
		case sop2Answer:
			r.br.ReadByte()
			return r.readResponse()
		case sop2NoReply:
			r.br.ReadByte()
			return r.readAsync()
		}
	}
}

func (r *Reader) readResponse() (any, error) {
	head := make([]byte, 3) // MRSP SEQ DLEN
	if _, err := io.ReadFull(r.br, head); err != nil {
		return nil, err
	}
	dlen := int(head[2])
	if dlen < 1 {
		return nil, fmt.Errorf("%w: response dlen 0", ErrBadPacket)
	}
	body := make([]byte, dlen)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return nil, err
	}
	sum := Checksum(append(head, body[:dlen-1]...))
	if sum != body[dlen-1] {
		return nil, ErrChecksum
	}
	return Response{Code: head[0], Seq: head[1], Data: body[:dlen-1]}, nil
}

func (r *Reader) readAsync() (any, error) {
	head := make([]byte, 3) // ID LEN_HI LEN_LO
	if _, err := io.ReadFull(r.br, head); err != nil {
		return nil, err
	}
	dlen := int(head[1])<<8 | int(head[2])
	if dlen < 1 {
		return nil, fmt.Errorf("%w: async dlen 0", ErrBadPacket)
	}
	body := make([]byte, dlen)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return nil, err
	}
	sum := Checksum(append(head, body[:dlen-1]...))
	if sum != body[dlen-1] {
		return nil, ErrChecksum
	}
	return Async{ID: head[0], Data: body[:dlen-1]}, nil
}
