// Package hrm parses the GATT Heart Rate Measurement characteristic (0x2A37)
// as emitted by chest straps such as the Polar H10.
//
// Flags byte: bit 0 = HR is 16-bit, bit 3 = Energy Expended present,
// bit 4 = RR intervals present. RR values are UINT16 LE in units of 1/1024 s,
// so rr_ms = raw * 1000 / 1024.
package hrm

import (
	"encoding/binary"
	"fmt"
)

const (
	flagHR16Bit   = 0x01
	flagEnergyExp = 0x08
	flagRRPresent = 0x10
)

// Measurement is one decoded Heart Rate Measurement notification.
type Measurement struct {
	HR int       // beats per minute
	RR []float64 // RR intervals in milliseconds, in transmission order
}

// Parse decodes a Heart Rate Measurement characteristic value.
func Parse(data []byte) (Measurement, error) {
	if len(data) < 2 {
		return Measurement{}, fmt.Errorf("hrm: payload too short (%d bytes)", len(data))
	}

	flags := data[0]
	offset := 1

	var hr int
	if flags&flagHR16Bit != 0 {
		if len(data) < offset+2 {
			return Measurement{}, fmt.Errorf("hrm: payload too short for 16-bit HR")
		}
		hr = int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
	} else {
		hr = int(data[offset])
		offset++
	}

	if flags&flagEnergyExp != 0 {
		if len(data) < offset+2 {
			return Measurement{}, fmt.Errorf("hrm: payload too short for energy expended")
		}
		offset += 2
	}

	var rr []float64
	if flags&flagRRPresent != 0 {
		for len(data) >= offset+2 {
			raw := binary.LittleEndian.Uint16(data[offset:])
			rr = append(rr, float64(raw)*1000.0/1024.0)
			offset += 2
		}
	}

	return Measurement{HR: hr, RR: rr}, nil
}
