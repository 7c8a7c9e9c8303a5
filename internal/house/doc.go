// Package house models the smart house served over STP: rooms holding
// switchable devices (thermometers and smart sockets) that render textual
// reports. The whole aggregate is guarded by a single Guard.
package house
