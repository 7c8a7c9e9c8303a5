package house

// Default builds the demo house: three rooms, each with a thermometer and a
// smart socket.
func Default() *House {
	return New(
		NewRoom("Kitchen",
			NewThermometer("Therm1", FixedTemperature{Value: 16, Units: Celsius}),
			NewSocket("Socket1", FixedPower(100)),
		),
		NewRoom("Bedroom",
			NewThermometer("Therm3", FixedTemperature{Value: 15, Units: Celsius}),
			NewSocket("Socket3", FixedPower(50)),
		),
		NewRoom("LivingRoom",
			NewThermometer("Therm5", FixedTemperature{Value: 14, Units: Celsius}),
			NewSocket("Socket4", FixedPower(30)),
		),
	)
}
