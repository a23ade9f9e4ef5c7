package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blelink/internal/device"
)

var propertyMap = []struct {
	ble ble.Property
	dev device.Property
}{
	{ble.CharRead, device.PropRead},
	{ble.CharWrite, device.PropWrite},
	{ble.CharWriteNR, device.PropWriteNoResponse},
	{ble.CharNotify, device.PropNotify},
	{ble.CharIndicate, device.PropIndicate},
}

func convertProperties(p ble.Property) device.Property {
	var out device.Property
	for _, m := range propertyMap {
		if p&m.ble != 0 {
			out |= m.dev
		}
	}
	return out
}

// convertProfile builds the topology of a discovered profile and the
// characteristic lookup table keyed by CharacteristicRef.Key.
//
// Characteristics are identified by their declaration handle. Backends that
// leave handles unset (CoreBluetooth) get their discovery position instead.
func convertProfile(address string, profile *ble.Profile) (*device.Topology, map[string]*ble.Characteristic) {
	topology := &device.Topology{Address: address}
	chars := make(map[string]*ble.Characteristic)
	if profile == nil {
		return topology, chars
	}

	position := uint16(0)
	for _, bs := range profile.Services {
		characteristics := make([]device.Characteristic, 0, len(bs.Characteristics))
		for _, bc := range bs.Characteristics {
			position++
			instance := bc.Handle
			if instance == 0 {
				instance = position
			}

			descriptors := make([]string, 0, len(bc.Descriptors))
			for _, d := range bc.Descriptors {
				descriptors = append(descriptors, d.UUID.String())
			}
			characteristics = append(characteristics,
				device.NewCharacteristic(bc.UUID.String(), instance, convertProperties(bc.Property), descriptors...))
		}

		svc := device.NewService(bs.UUID.String(), characteristics...)
		for i, c := range svc.Characteristics {
			ref := device.CharacteristicRef{Service: svc.UUID, Characteristic: c.UUID, Instance: c.Instance}
			chars[ref.Key()] = bs.Characteristics[i]
		}
		topology.Services = append(topology.Services, svc)
	}
	return topology, chars
}
