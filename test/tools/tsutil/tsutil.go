// Package tsutil provides shared MPEG-TS test infrastructure: synthetic
// packet construction and small file helpers. The tswrite and mpegts test
// suites do not import it; they build their packets with local helpers.
package tsutil

import "os"

// TSPacketSize is the fixed size of an MPEG-TS packet.
const TSPacketSize = 188

// BuildPacket constructs a single 188-byte TS packet carrying payload on
// pid, with continuity counter cc. If pcr is non-nil, an adaptation field
// carrying that 27 MHz PCR value is written ahead of the payload.
func BuildPacket(pid uint16, cc byte, payload []byte, pcr *uint64) []byte {
	var pkt [TSPacketSize]byte
	pkt[0] = 0x47
	pkt[1] = byte(pid>>8) & 0x1F
	pkt[2] = byte(pid)
	pkt[3] = 0x10 | (cc & 0x0F)

	body := pkt[4:]
	if pcr != nil {
		pkt[3] |= 0x20
		adaptLen := 7 // flags byte + 6-byte PCR field
		body[0] = byte(adaptLen)
		body[1] = 0x10 // PCR_flag
		encodePCR(body[2:8], *pcr)
		body = body[1+adaptLen:]
	}
	n := copy(body, payload)
	for i := n; i < len(body); i++ {
		body[i] = 0xFF
	}
	return pkt[:]
}

// encodePCR writes v (in 27 MHz ticks) into a 6-byte PCR field.
func encodePCR(dst []byte, v uint64) {
	base := v / 300
	ext := v % 300
	dst[0] = byte(base >> 25)
	dst[1] = byte(base >> 17)
	dst[2] = byte(base >> 9)
	dst[3] = byte(base >> 1)
	dst[4] = byte(base<<7) | 0x7E | byte(ext>>8)
	dst[5] = byte(ext)
}

// BuildStream concatenates n packets on pid at rate one PCR every pcrEvery
// packets, starting from pcr0 and advancing by pcrStepPerPacket ticks per
// packet -- enough to drive rate-controller and pacer tests without a real
// capture file.
func BuildStream(pid uint16, n int, pcr0 uint64, pcrStepPerPacket uint64, pcrEvery int) []byte {
	var out []byte
	cc := byte(0)
	pcr := pcr0
	for i := 0; i < n; i++ {
		var withPCR *uint64
		if pcrEvery > 0 && i%pcrEvery == 0 {
			v := pcr
			withPCR = &v
		}
		payload := []byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)}
		out = append(out, BuildPacket(pid, cc, payload, withPCR)...)
		cc = (cc + 1) & 0x0F
		pcr += pcrStepPerPacket
	}
	return out
}

// CopyFile copies the file at src to dst, reading the entire file into memory.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// FileExists returns true if the path exists (and is stat-able).
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
