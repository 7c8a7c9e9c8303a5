package house

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrDeviceOff          = errors.New("device is off")
	ErrReadingUnavailable = errors.New("reading is not a finite number")
)

// Device is a switchable appliance that can describe itself
type Device interface {
	Name() string
	IsOn() bool
	TurnOn()
	TurnOff()
	// Report renders the current reading. It fails with ErrDeviceOff or
	// ErrReadingUnavailable.
	Report() (string, error)
}

// TemperatureSource supplies thermometer readings
type TemperatureSource interface {
	Temperature() Temperature
}

// PowerSource supplies socket power draw in watts
type PowerSource interface {
	Power() float64
}

// FixedTemperature always reports the same value
type FixedTemperature Temperature

func (f FixedTemperature) Temperature() Temperature { return Temperature(f) }

// FixedPower always reports the same draw
type FixedPower float64

func (f FixedPower) Power() float64 { return float64(f) }

// Thermometer reports ambient temperature
type Thermometer struct {
	name   string
	on     bool
	source TemperatureSource
}

// NewThermometer returns a powered-on thermometer
func NewThermometer(name string, source TemperatureSource) *Thermometer {
	return &Thermometer{name: name, on: true, source: source}
}

func (t *Thermometer) Name() string { return t.name }
func (t *Thermometer) IsOn() bool   { return t.on }
func (t *Thermometer) TurnOn()      { t.on = true }
func (t *Thermometer) TurnOff()     { t.on = false }

// Temperature returns the current reading, or false when the device is off
func (t *Thermometer) Temperature() (Temperature, bool) {
	if !t.on {
		return Temperature{}, false
	}
	return t.source.Temperature(), true
}

func (t *Thermometer) Report() (string, error) {
	temp, ok := t.Temperature()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceOff, t.name)
	}
	if math.IsNaN(temp.Value) || math.IsInf(temp.Value, 0) {
		return "", fmt.Errorf("%w: %s", ErrReadingUnavailable, t.name)
	}
	return framedReport(t.name, " Temperature: "+temp.String()), nil
}

// Socket is a smart power socket
type Socket struct {
	name   string
	on     bool
	source PowerSource
}

// NewSocket returns a powered-on socket
func NewSocket(name string, source PowerSource) *Socket {
	return &Socket{name: name, on: true, source: source}
}

func (s *Socket) Name() string { return s.name }
func (s *Socket) IsOn() bool   { return s.on }
func (s *Socket) TurnOn()      { s.on = true }
func (s *Socket) TurnOff()     { s.on = false }

// Power returns the current draw in watts, or false when the socket is off
func (s *Socket) Power() (float64, bool) {
	if !s.on {
		return 0, false
	}
	return s.source.Power(), true
}

func (s *Socket) Report() (string, error) {
	power, ok := s.Power()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceOff, s.name)
	}
	if math.IsNaN(power) || math.IsInf(power, 0) {
		return "", fmt.Errorf("%w: %s", ErrReadingUnavailable, s.name)
	}
	line := " Power consumption: " + strconv.FormatFloat(power, 'f', -1, 64) + " W"
	return framedReport(s.name, line), nil
}

func framedReport(name, body string) string {
	title := "---------" + name + "---------"
	return title + "\n" + body + "\n" + strings.Repeat("-", utf8.RuneCountInString(title))
}
