package house

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrDeviceNotFound = errors.New("device not found")
)

const (
	reportHeader = "===============Smart House Report==============="
	reportFooter = "===============Smart House Report end==========="
)

// Room is a named, ordered collection of devices with unique names
type Room struct {
	name    string
	devices []Device
}

// NewRoom creates a room. Devices with a name already present are dropped.
func NewRoom(name string, devices ...Device) *Room {
	r := &Room{name: name}
	for _, d := range devices {
		r.AddDevice(d)
	}
	return r
}

func (r *Room) Name() string { return r.name }

// Devices returns the devices in insertion order
func (r *Room) Devices() []Device {
	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// DeviceNames returns device names in insertion order
func (r *Room) DeviceNames() []string {
	names := make([]string, 0, len(r.devices))
	for _, d := range r.devices {
		names = append(names, d.Name())
	}
	return names
}

// Device looks a device up by name
func (r *Room) Device(name string) (Device, bool) {
	for _, d := range r.devices {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}

// AddDevice appends d unless a device with the same name exists
func (r *Room) AddDevice(d Device) bool {
	if _, exists := r.Device(d.Name()); exists {
		return false
	}
	r.devices = append(r.devices, d)
	return true
}

// House is the aggregate of rooms. It is not safe for concurrent use; share
// it through a Guard.
type House struct {
	rooms []*Room
}

// New creates a house. Rooms with a name already present are dropped.
func New(rooms ...*Room) *House {
	h := &House{}
	for _, r := range rooms {
		h.AddRoom(r)
	}
	return h
}

// Rooms returns rooms in storage order
func (h *House) Rooms() []*Room {
	out := make([]*Room, len(h.rooms))
	copy(out, h.rooms)
	return out
}

// RoomNames returns room names in storage order
func (h *House) RoomNames() []string {
	names := make([]string, 0, len(h.rooms))
	for _, r := range h.rooms {
		names = append(names, r.name)
	}
	return names
}

// Room looks a room up by name
func (h *House) Room(name string) (*Room, bool) {
	for _, r := range h.rooms {
		if r.name == name {
			return r, true
		}
	}
	return nil, false
}

// AddRoom appends r unless a room with the same name exists
func (h *House) AddRoom(r *Room) bool {
	if _, exists := h.Room(r.name); exists {
		return false
	}
	h.rooms = append(h.rooms, r)
	return true
}

// Lookup finds a device by room and device name
func (h *House) Lookup(roomName, deviceName string) (Device, error) {
	room, ok := h.Room(roomName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomName)
	}
	device, ok := room.Device(deviceName)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrDeviceNotFound, deviceName, roomName)
	}
	return device, nil
}

// DeviceRef names one device of the house
type DeviceRef struct {
	Room   string
	Device string
}

// ReportByDevices renders the reports of the listed devices between the
// house report banners. The first failing device aborts the report.
func (h *House) ReportByDevices(refs ...DeviceRef) (string, error) {
	var b strings.Builder
	b.WriteString(reportHeader)
	b.WriteByte('\n')

	for _, ref := range refs {
		device, err := h.Lookup(ref.Room, ref.Device)
		if err != nil {
			return "", err
		}
		report, err := device.Report()
		if err != nil {
			return "", err
		}
		b.WriteString(report)
		b.WriteByte('\n')
	}

	b.WriteString(reportFooter)
	b.WriteByte('\n')
	return b.String(), nil
}

// Guard serializes all access to a House behind one mutex
type Guard struct {
	mu    sync.Mutex
	house *House
}

// NewGuard takes ownership of h
func NewGuard(h *House) *Guard {
	return &Guard{house: h}
}

// With runs fn with exclusive access to the house
func (g *Guard) With(fn func(h *House) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.house)
}
