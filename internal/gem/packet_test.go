package gem

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodePacket builds a valid wire packet, used by the codec, monitor and
// listener tests.
func encodePacket(t *testing.T, pkt Packet) []byte {
	t.Helper()

	buf := make([]byte, PacketSize)
	buf[0] = headerByte0
	buf[1] = headerByte1
	buf[2] = packetFormat

	putBE(buf[voltageOffset:voltageOffset+2], uint64(pkt.Voltage*10))
	for i := 0; i < packetChannels; i++ {
		putBE(buf[absoluteOffset+i*counterSize:absoluteOffset+(i+1)*counterSize], pkt.Absolute[i])
		putBE(buf[polarizedOffset+i*counterSize:polarizedOffset+(i+1)*counterSize], pkt.Polarized[i])
	}

	serial, err := strconv.ParseUint(pkt.Serial, 10, 32)
	require.NoError(t, err)
	putBE(buf[serialOffset:serialOffset+4], serial)
	putBE(buf[secondsOffset:secondsOffset+3], uint64(pkt.Seconds))

	var sum uint32
	for _, b := range buf[:checksumOffset] {
		sum += uint32(b)
	}
	buf[checksumOffset] = byte(sum & 0xFF)
	buf[footerOffset] = headerByte1
	buf[footerOffset+1] = headerByte0

	return buf
}

func putBE(dst []byte, v uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	pkt := Packet{
		Serial:  "12345",
		Voltage: 121.5,
		Seconds: 3600,
	}
	pkt.Absolute[0] = 123456789
	pkt.Polarized[0] = 1000
	pkt.Absolute[31] = 42

	decoded, err := DecodePacket(encodePacket(t, pkt))

	require.NoError(t, err)
	assert.Equal(t, pkt, *decoded)
}

func TestDecodeShortPacket(t *testing.T) {
	_, err := DecodePacket(make([]byte, PacketSize-1))
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestDecodeBadHeader(t *testing.T) {
	buf := encodePacket(t, Packet{Serial: "1", Voltage: 120})
	buf[0] = 0x00
	_, err := DecodePacket(buf)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestDecodeChecksumMismatch(t *testing.T) {
	buf := encodePacket(t, Packet{Serial: "12345", Voltage: 120})
	// flip one counter byte without fixing the checksum
	buf[absoluteOffset] ^= 0xFF
	_, err := DecodePacket(buf)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestDecodeUnknownFormat(t *testing.T) {
	buf := encodePacket(t, Packet{Serial: "12345", Voltage: 120})
	buf[2] = 0x07
	_, err := DecodePacket(buf)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDecodeBadFooter(t *testing.T) {
	buf := encodePacket(t, Packet{Serial: "12345", Voltage: 120})
	buf[footerOffset] = 0x00
	_, err := DecodePacket(buf)
	assert.ErrorIs(t, err, ErrBadFooter)
}
