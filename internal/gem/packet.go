// Package gem implements the network side of the metering device: the
// binary packet codec, per-device counter tracking and the TCP listener
// devices push their packets to.
package gem

import (
	"errors"
	"strconv"
)

// 32-channel absolute/polarized packet layout, all multi-byte fields
// big-endian:
//
//	[0:2]     header 0xFE 0xFF
//	[2]       format byte 0x05
//	[3:5]     voltage, tenths of a volt
//	[5:165]   32 x 5-byte absolute watt-second counters
//	[165:325] 32 x 5-byte polarized watt-second counters
//	[325:329] serial number
//	[329:332] seconds counter, wraps at 2^24
//	[332]     checksum, sum of bytes [0:332] mod 256
//	[333:335] footer 0xFF 0xFE
const (
	PacketSize = 335

	packetFormat = 0x05

	headerByte0 = 0xFE
	headerByte1 = 0xFF

	packetChannels = 32
	counterSize    = 5

	voltageOffset   = 3
	absoluteOffset  = 5
	polarizedOffset = absoluteOffset + packetChannels*counterSize
	serialOffset    = polarizedOffset + packetChannels*counterSize
	secondsOffset   = serialOffset + 4
	checksumOffset  = secondsOffset + 3
	footerOffset    = checksumOffset + 1

	secondsModulo = 1 << 24
)

var (
	ErrShortPacket   = errors.New("gem: short packet")
	ErrBadHeader     = errors.New("gem: bad packet header")
	ErrBadFooter     = errors.New("gem: bad packet footer")
	ErrChecksum      = errors.New("gem: checksum mismatch")
	ErrUnknownFormat = errors.New("gem: unknown packet format")
)

// Packet is one decoded wire packet. Counters are cumulative; instantaneous
// power is derived later by the Monitor from successive packets.
type Packet struct {
	Serial    string
	Voltage   float64
	Absolute  [packetChannels]uint64
	Polarized [packetChannels]uint64
	Seconds   uint32
}

// DecodePacket decodes one packet from buf. buf must hold exactly one packet.
func DecodePacket(buf []byte) (*Packet, error) {
	if len(buf) < PacketSize {
		return nil, ErrShortPacket
	}
	if buf[0] != headerByte0 || buf[1] != headerByte1 {
		return nil, ErrBadHeader
	}
	if buf[2] != packetFormat {
		return nil, ErrUnknownFormat
	}
	if buf[footerOffset] != headerByte1 || buf[footerOffset+1] != headerByte0 {
		return nil, ErrBadFooter
	}

	var sum uint32
	for _, b := range buf[:checksumOffset] {
		sum += uint32(b)
	}
	if byte(sum&0xFF) != buf[checksumOffset] {
		return nil, ErrChecksum
	}

	pkt := &Packet{
		Voltage: float64(beUint(buf[voltageOffset:voltageOffset+2])) / 10,
		Serial:  strconv.FormatUint(beUint(buf[serialOffset:serialOffset+4]), 10),
		Seconds: uint32(beUint(buf[secondsOffset : secondsOffset+3])),
	}
	for i := 0; i < packetChannels; i++ {
		abs := buf[absoluteOffset+i*counterSize:]
		pol := buf[polarizedOffset+i*counterSize:]
		pkt.Absolute[i] = beUint(abs[:counterSize])
		pkt.Polarized[i] = beUint(pol[:counterSize])
	}
	return pkt, nil
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
