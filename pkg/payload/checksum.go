package payload

import "github.com/sigurn/crc8"

var payloadCRC8 = crc8.MakeTable(crc8.CRC8)

// Checksum returns the CRC-8 of b, logged with every transfer so payloads
// can be compared across runs
func Checksum(b []byte) uint8 {
	csum := crc8.Init(payloadCRC8)
	csum = crc8.Update(csum, b, payloadCRC8)
	return crc8.Complete(csum, payloadCRC8)
}
