// internal/integrity/checksum.go
package integrity

import "hash/crc32"

// Checksums are pure functions of the byte range given.
// Two independently computed checksums of identical bytes always match;
// the majority-vote comparisons elsewhere depend on this.

// crc8Table is the CRC-8 table for polynomial 0x07 (ATM HEC).
var crc8Table = makeCRC8Table(0x07)

func makeCRC8Table(poly uint8) [256]uint8 {
	var table [256]uint8
	for i := 0; i < 256; i++ {
		crc := uint8(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// Checksum8 computes CRC-8 (poly 0x07) over data.
func Checksum8(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}

// Checksum16 computes CRC-16/CCITT-FALSE over data.
func Checksum16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Checksum32 computes CRC-32 (IEEE) over data.
func Checksum32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
