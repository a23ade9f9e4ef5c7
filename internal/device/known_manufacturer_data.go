package device

import (
	"encoding/binary"
	"fmt"

	"github.com/srg/blelink/internal/bledb"
)

// ManufacturerData is the company-specific section of an advertisement.
//
// Format:
//   - Bytes 0-1: Company ID, little-endian
//   - Bytes 2-:  Vendor payload
type ManufacturerData struct {
	CompanyID uint16 `json:"companyId"`
	Company   string `json:"company,omitempty"`
	Payload   []byte `json:"payload,omitempty"`
}

// VendorName returns the company name, or the hex identifier when unknown.
func (m *ManufacturerData) VendorName() string {
	if m.Company != "" {
		return m.Company
	}
	return fmt.Sprintf("0x%04X", m.CompanyID)
}

// ParseManufacturerData splits raw manufacturer data into company ID and payload.
// Returns (nil, nil) for empty input.
func ParseManufacturerData(raw []byte) (*ManufacturerData, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("manufacturer data too short: %d bytes", len(raw))
	}

	id := binary.LittleEndian.Uint16(raw[0:2])
	md := &ManufacturerData{
		CompanyID: id,
		Company:   bledb.LookupCompany(id),
	}
	if len(raw) > 2 {
		md.Payload = append([]byte(nil), raw[2:]...)
	}
	return md, nil
}

// Manufacturer parses the advertised manufacturer data; nil when absent or malformed.
func (a *Advertising) Manufacturer() *ManufacturerData {
	md, err := ParseManufacturerData(a.ManufacturerData)
	if err != nil {
		return nil
	}
	return md
}
