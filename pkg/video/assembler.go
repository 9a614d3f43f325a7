package video

import (
	"bytes"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// H264 NAL unit types
const (
	NALSlice = 1
	NALIDR   = 5
	NALSPS   = 7
	NALPPS   = 8
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Assembler depacketizes H264 RTP into Annex-B access units. A unit is
// complete when the packet with the RTP marker bit arrives.
type Assembler struct {
	depacketizer codecs.H264Packet
	unit         bytes.Buffer
	lastSeq      uint16
	started      bool
	broken       bool
}

// NewAssembler creates an assembler
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Push adds one RTP packet. It returns a complete access unit or nil.
// A sequence gap drops the unit in progress.
func (a *Assembler) Push(pkt *rtp.Packet) ([]byte, error) {
	if a.started && pkt.SequenceNumber != a.lastSeq+1 {
		a.broken = true
	}
	a.lastSeq = pkt.SequenceNumber
	a.started = true

	nal, err := a.depacketizer.Unmarshal(pkt.Payload)
	if err != nil {
		a.broken = true
	} else {
		a.unit.Write(nal)
	}

	if !pkt.Marker {
		return nil, err
	}

	defer a.unit.Reset()
	if a.broken || a.unit.Len() == 0 {
		a.broken = false
		return nil, err
	}
	out := make([]byte, a.unit.Len())
	copy(out, a.unit.Bytes())
	return out, nil
}

// NALTypes lists the NAL unit types in an Annex-B stream
func NALTypes(annexB []byte) []int {
	var types []int
	for i := 0; i+3 < len(annexB); i++ {
		if annexB[i] != 0 || annexB[i+1] != 0 {
			continue
		}
		switch {
		case annexB[i+2] == 1:
			types = append(types, int(annexB[i+3]&0x1F))
			i += 3
		case annexB[i+2] == 0 && i+4 < len(annexB) && annexB[i+3] == 1:
			types = append(types, int(annexB[i+4]&0x1F))
			i += 4
		}
	}
	return types
}

// IsKeyframe reports whether the unit carries an IDR slice
func IsKeyframe(annexB []byte) bool {
	for _, t := range NALTypes(annexB) {
		if t == NALIDR {
			return true
		}
	}
	return false
}
