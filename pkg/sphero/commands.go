package sphero

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Streaming mask bits for filtered IMU angles.
const (
	MaskIMUPitch uint32 = 0x00040000
	MaskIMURoll  uint32 = 0x00020000
	MaskIMUYaw   uint32 = 0x00010000

	MaskAttitude = MaskIMUPitch | MaskIMURoll | MaskIMUYaw
)

// MaxStreamRate is the device's base sample rate in Hz; streaming divisors
// are applied to it.
const MaxStreamRate = 400

// Attitude is one filtered IMU sample in degrees.
type Attitude struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Roll drives at speed (0-1) toward heading (degrees, normalised to 0-359).
func Roll(speed float64, heading int) Command {
	state := byte(1)
	if speed <= 0 {
		state = 0
	}
	data := make([]byte, 4)
	data[0] = speedByte(speed)
	binary.BigEndian.PutUint16(data[1:3], uint16(wrapHeading(heading)))
	data[3] = state
	return Command{DID: DeviceSphero, CID: CmdRoll, Data: data}
}

// Stop rolls at zero speed holding heading.
func Stop(heading int) Command {
	return Roll(0, heading)
}

// SetHeading redefines the current heading as the given angle.
func SetHeading(heading int) Command {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, uint16(wrapHeading(heading)))
	return Command{DID: DeviceSphero, CID: CmdSetHeading, Data: data}
}

// SetRGB sets the main LED color.
func SetRGB(r, g, b byte) Command {
	return Command{DID: DeviceSphero, CID: CmdSetRGBLED, Data: []byte{r, g, b, 0}}
}

// SetBackLED sets the tail light brightness (0-1).
func SetBackLED(brightness float64) Command {
	return Command{DID: DeviceSphero, CID: CmdSetBackLED, Data: []byte{speedByte(brightness)}}
}

// SetStabilization turns the internal control system on or off.
func SetStabilization(on bool) Command {
	v := byte(0)
	if on {
		v = 1
	}
	return Command{DID: DeviceSphero, CID: CmdSetStabilization, Data: []byte{v}}
}

// SetDataStreaming asks for mask samples at MaxStreamRate/divisor Hz,
// frames samples per packet, count packets (0 = forever). Divisor 0 stops.
func SetDataStreaming(divisor, frames uint16, mask uint32, count byte) Command {
	data := make([]byte, 9)
	binary.BigEndian.PutUint16(data[0:2], divisor)
	binary.BigEndian.PutUint16(data[2:4], frames)
	binary.BigEndian.PutUint32(data[4:8], mask)
	data[8] = count
	return Command{DID: DeviceSphero, CID: CmdSetDataStreaming, Data: data}
}

// Ping checks the link.
func Ping() Command {
	return Command{DID: DeviceCore, CID: CmdPing}
}

// Sleep puts the device to sleep until woken (wakeup 0 = no timed wake).
func Sleep(wakeup uint16) Command {
	data := make([]byte, 5)
	binary.BigEndian.PutUint16(data[0:2], wakeup)
	return Command{DID: DeviceCore, CID: CmdSleep, Data: data}
}

// ParseAttitude decodes an attitude-only sensor packet. Each frame is three
// big-endian int16 angles in mask order: pitch, roll, yaw.
func ParseAttitude(data []byte) ([]Attitude, error) {
	if len(data)%6 != 0 {
		return nil, fmt.Errorf("%w: attitude payload %d bytes", ErrBadPacket, len(data))
	}
	out := make([]Attitude, 0, len(data)/6)
	for i := 0; i < len(data); i += 6 {
		out = append(out, Attitude{
			Pitch: float64(int16(binary.BigEndian.Uint16(data[i:]))),
			Roll:  float64(int16(binary.BigEndian.Uint16(data[i+2:]))),
			Yaw:   float64(int16(binary.BigEndian.Uint16(data[i+4:]))),
		})
	}
	return out, nil
}

func speedByte(v float64) byte {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(math.Round(v * 255))
}

func wrapHeading(h int) int {
	h %= 360
	if h < 0 {
		h += 360
	}
	return h
}
