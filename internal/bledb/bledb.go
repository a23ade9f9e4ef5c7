// Package bledb normalizes BLE UUIDs and resolves the handful of assigned
// numbers the tool prints by name.
package bledb

import "strings"

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID
// 0000xxxx-0000-1000-8000-00805f9b34fb, without dashes.
const sigBaseSuffix = "00001000800000805f9b34fb"

var services = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",
	"1809": "Health Thermometer",
	"fff0": "Vendor Telemetry",
}

var characteristics = map[string]string{
	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a05": "Service Changed",
	"2a19": "Battery Level",
	"2a1c": "Temperature Measurement",
	"2a24": "Model Number String",
	"2a29": "Manufacturer Name String",
	"2a37": "Heart Rate Measurement",
	"2a38": "Body Sensor Location",
	"fff1": "Vendor Telemetry Frame",
}

// appearances covers the generic categories (code & 0xFFC0) plus the
// thermometer sub-categories.
var appearances = map[uint16]string{
	0:   "Unknown",
	64:  "Phone",
	128: "Computer",
	192: "Watch",
	768: "Thermometer",
	769: "Ear Thermometer",
	832: "Heart Rate Sensor",
}

// companies lists Bluetooth SIG company identifiers seen on thermometers and
// the phones they pair with.
var companies = map[uint16]string{
	0x0006: "Microsoft",
	0x004C: "Apple, Inc.",
	0x0059: "Nordic Semiconductor ASA",
	0x0075: "Samsung Electronics Co. Ltd.",
	0x02E5: "Espressif Incorporated",
	0xFFFF: "Test / Unassigned",
}

var descriptors = map[string]string{
	"2900": "Characteristic Extended Properties",
	"2901": "Characteristic User Descriptor",
	"2902": "Client Characteristic Configuration",
	"2904": "Characteristic Presentation Format",
}

// NormalizeUUID converts a UUID string to the internal form: lowercase, no
// dashes, braces or 0x prefix. Full 128-bit UUIDs on the SIG base collapse to
// their 16-bit short form.
func NormalizeUUID(uuid string) string {
	s := strings.ToLower(strings.TrimSpace(uuid))
	s = strings.TrimPrefix(s, "0x")
	s = strings.Trim(s, "{}")
	s = strings.ReplaceAll(s, "-", "")

	if len(s) == 32 && strings.HasPrefix(s, "0000") && strings.HasSuffix(s, sigBaseSuffix) {
		return s[4:8]
	}
	return s
}

// NormalizeUUIDs normalizes every element of uuids.
func NormalizeUUIDs(uuids []string) []string {
	result := make([]string, len(uuids))
	for i, u := range uuids {
		result[i] = NormalizeUUID(u)
	}
	return result
}

// LookupService returns the assigned name of a service UUID or "" if unknown.
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the assigned name of a characteristic UUID or "" if unknown.
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the assigned name of a descriptor UUID or "" if unknown.
func LookupDescriptor(uuid string) string {
	return descriptors[NormalizeUUID(uuid)]
}

// LookupAppearanceCode returns the name of a GAP appearance value. Unknown
// sub-categories fall back to their category; "" if neither is known.
func LookupAppearanceCode(code uint16) string {
	if name, ok := appearances[code]; ok {
		return name
	}
	return appearances[code&0xFFC0]
}

// LookupCompany returns the name of a Bluetooth SIG company identifier.
func LookupCompany(id uint16) string {
	return companies[id]
}
