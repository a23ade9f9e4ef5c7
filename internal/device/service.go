package device

import (
	"time"

	"github.com/srg/blelink/internal/bledb"
)

// ----------------------------
// Topology
// ----------------------------

// Topology is the attribute table discovered on a connected peripheral.
type Topology struct {
	Address  string
	Services []Service
}

// Service represents a GATT service and its characteristics
type Service struct {
	UUID            string
	Name            string
	Characteristics []Characteristic
}

// Characteristic is one characteristic instance inside a service.
type Characteristic struct {
	UUID        string
	Name        string
	Instance    uint16
	Properties  Property
	Descriptors []string
}

// NewService builds a service with normalized UUID and known name.
func NewService(uuid string, chars ...Characteristic) Service {
	return Service{
		UUID:            NormalizeUUID(uuid),
		Name:            bledb.LookupService(uuid),
		Characteristics: chars,
	}
}

// NewCharacteristic builds a characteristic with normalized UUID and known name.
func NewCharacteristic(uuid string, instance uint16, props Property, descriptors ...string) Characteristic {
	return Characteristic{
		UUID:        NormalizeUUID(uuid),
		Name:        bledb.LookupCharacteristic(uuid),
		Instance:    instance,
		Properties:  props,
		Descriptors: NormalizeUUIDs(descriptors),
	}
}

// Service returns the first service matching uuid.
func (t *Topology) Service(uuid string) (*Service, bool) {
	if t == nil {
		return nil, false
	}
	uuid = NormalizeUUID(uuid)
	for i := range t.Services {
		if t.Services[i].UUID == uuid {
			return &t.Services[i], true
		}
	}
	return nil, false
}

// CharacteristicCount returns the number of characteristics across all services.
func (t *Topology) CharacteristicCount() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, svc := range t.Services {
		n += len(svc.Characteristics)
	}
	return n
}

// FindNotifiable resolves a characteristic for notification setup, preferring
// one with notify, then indicate, then any with a matching UUID.
func (t *Topology) FindNotifiable(service, characteristic string) (CharacteristicRef, error) {
	return t.find(service, characteristic, PropNotify, PropIndicate)
}

// FindReadable resolves a characteristic for a read, preferring one with the
// read property, then any with a matching UUID.
func (t *Topology) FindReadable(service, characteristic string) (CharacteristicRef, error) {
	return t.find(service, characteristic, PropRead)
}

// FindWritable resolves a characteristic for a write, preferring the property
// matching the requested write type, then any with a matching UUID.
func (t *Topology) FindWritable(service, characteristic string, withResponse bool) (CharacteristicRef, error) {
	if withResponse {
		return t.find(service, characteristic, PropWrite)
	}
	return t.find(service, characteristic, PropWriteNoResponse)
}

func (t *Topology) find(service, characteristic string, preferred ...Property) (CharacteristicRef, error) {
	svc, ok := t.Service(service)
	if !ok {
		return CharacteristicRef{}, &NotFoundError{Resource: "service", UUIDs: []string{NormalizeUUID(service)}}
	}

	charUUID := NormalizeUUID(characteristic)
	var fallback *Characteristic
	for _, want := range preferred {
		for i := range svc.Characteristics {
			c := &svc.Characteristics[i]
			if c.UUID != charUUID {
				continue
			}
			if fallback == nil {
				fallback = c
			}
			if c.Properties.Has(want) {
				return svc.ref(c), nil
			}
		}
	}
	if fallback != nil {
		return svc.ref(fallback), nil
	}

	return CharacteristicRef{}, &NotFoundError{Resource: "characteristic", UUIDs: []string{svc.UUID, charUUID}}
}

func (s *Service) ref(c *Characteristic) CharacteristicRef {
	return CharacteristicRef{Service: s.UUID, Characteristic: c.UUID, Instance: c.Instance}
}

// Advertising is the latest advertising snapshot observed for a peripheral.
type Advertising struct {
	Address          string
	LocalName        string
	ManufacturerData []byte
	Services         []string
	RSSI             int
	TxPower          int
	Connectable      bool
	SeenAt           time.Time
}

// NewAdvertising captures an advertisement report at the given time.
func NewAdvertising(adv Advertisement, seenAt time.Time) *Advertising {
	return &Advertising{
		Address:          NormalizeAddress(adv.Addr()),
		LocalName:        adv.LocalName(),
		ManufacturerData: append([]byte(nil), adv.ManufacturerData()...),
		Services:         NormalizeUUIDs(adv.Services()),
		RSSI:             adv.RSSI(),
		TxPower:          adv.TxPowerLevel(),
		Connectable:      adv.Connectable(),
		SeenAt:           seenAt,
	}
}
