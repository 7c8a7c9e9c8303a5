package house

import (
	"fmt"
	"strconv"
	"strings"
)

// Units is a temperature scale
type Units int

const (
	Celsius Units = iota
	Fahrenheit
	Kelvin
)

// ParseUnits accepts "celsius", "fahrenheit", "kelvin" and their one-letter
// forms in any case. Empty means celsius.
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(s) {
	case "", "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	case "k", "kelvin":
		return Kelvin, nil
	default:
		return Celsius, fmt.Errorf("unknown temperature units %q", s)
	}
}

func (u Units) String() string {
	switch u {
	case Celsius:
		return "°C"
	case Fahrenheit:
		return "°F"
	case Kelvin:
		return "K"
	default:
		return fmt.Sprintf("Units(%d)", int(u))
	}
}

// Temperature is a reading in a given scale
type Temperature struct {
	Value float64
	Units Units
}

// Convert returns the same temperature expressed in units to
func (t Temperature) Convert(to Units) Temperature {
	if t.Units == to {
		return t
	}

	celsius := t.Value
	switch t.Units {
	case Fahrenheit:
		celsius = (t.Value - 32) * 5 / 9
	case Kelvin:
		celsius = t.Value - 273.15
	}

	switch to {
	case Fahrenheit:
		return Temperature{Value: celsius*9/5 + 32, Units: to}
	case Kelvin:
		return Temperature{Value: celsius + 273.15, Units: to}
	default:
		return Temperature{Value: celsius, Units: Celsius}
	}
}

func (t Temperature) String() string {
	return strconv.FormatFloat(t.Value, 'f', -1, 64) + t.Units.String()
}
