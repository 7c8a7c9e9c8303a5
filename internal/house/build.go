package house

import "fmt"

// Device kinds accepted by Build
const (
	KindThermometer = "thermometer"
	KindSocket      = "socket"
)

// KindOf returns the kind name of d, or "" for devices Build cannot create
func KindOf(d Device) string {
	switch d.(type) {
	case *Thermometer:
		return KindThermometer
	case *Socket:
		return KindSocket
	}
	return ""
}

// RoomSpec describes a room to seed
type RoomSpec struct {
	Name    string
	Devices []DeviceSpec
}

// DeviceSpec describes a device with a fixed reading
type DeviceSpec struct {
	Name  string
	Kind  string
	Value float64
	Units string // thermometers only
	Off   bool
}

// Build creates a house from specs. Duplicate room or device names are errors.
func Build(specs []RoomSpec) (*House, error) {
	h := New()
	for _, rs := range specs {
		room := NewRoom(rs.Name)
		for _, ds := range rs.Devices {
			device, err := buildDevice(ds)
			if err != nil {
				return nil, fmt.Errorf("room %s: %w", rs.Name, err)
			}
			if !room.AddDevice(device) {
				return nil, fmt.Errorf("room %s: duplicate device %s", rs.Name, ds.Name)
			}
		}
		if !h.AddRoom(room) {
			return nil, fmt.Errorf("duplicate room %s", rs.Name)
		}
	}
	return h, nil
}

func buildDevice(ds DeviceSpec) (Device, error) {
	var device Device
	switch ds.Kind {
	case KindThermometer:
		units, err := ParseUnits(ds.Units)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", ds.Name, err)
		}
		device = NewThermometer(ds.Name, FixedTemperature{Value: ds.Value, Units: units})
	case KindSocket:
		device = NewSocket(ds.Name, FixedPower(ds.Value))
	default:
		return nil, fmt.Errorf("device %s: unknown kind %q", ds.Name, ds.Kind)
	}
	if ds.Off {
		device.TurnOff()
	}
	return device, nil
}
