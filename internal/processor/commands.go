package processor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/denisbaic/smarthouse/internal/house"
	"github.com/denisbaic/smarthouse/internal/protocol"
	"github.com/denisbaic/smarthouse/internal/stream"
)

// Command tokens
const (
	CommandHello                    = "hello"
	CommandRoomsList                = "rooms_list"
	CommandDevicesList              = "devices_list"
	CommandDeviceReport             = "device_report"
	CommandSetDevicePowerState      = "set_device_power_state"
	CommandIsDeviceOn               = "is_device_on"
	CommandGetDeviceReportStream    = "get_device_report_stream"
	CommandCancelDeviceReportStream = "cancel_device_report_stream"
)

// Parameter keys
const (
	ParamRoomName     = "room_name"
	ParamDeviceName   = "device_name"
	ParamPowerState   = "power_state"
	ParamRequestDelay = "request_delay"
	ParamAddr         = protocol.AddrKey
	ParamStreamName   = "stream_name"
)

// HelloResponse is the fixed answer to hello
const HelloResponse = "Hello from server"

type resolveFunc func(params protocol.Params, env *Env) (string, error)

// commandProcessor matches one exact command token and parses parameters
// before handing off to resolve. Commands without parameters skip parsing,
// so trailing tokens are ignored.
type commandProcessor struct {
	command  string
	resolve  resolveFunc
	noParams bool
}

func (p commandProcessor) Command() string {
	return p.command
}

func (p commandProcessor) TryProcess(req protocol.Request, env *Env) (string, error) {
	if req.Command() != p.command {
		return "", ErrNotHandled
	}
	if p.noParams {
		return p.resolve(protocol.Params{}, env)
	}
	params, err := req.Params()
	if err != nil {
		return "", err
	}
	return p.resolve(params, env)
}

// Func builds a processor for command from a resolve function
func Func(command string, resolve func(params protocol.Params, env *Env) (string, error)) Processor {
	return commandProcessor{command: command, resolve: resolve}
}

// bareFunc builds a processor for a command that takes no parameters
func bareFunc(command string, resolve func(env *Env) (string, error)) Processor {
	wrapped := func(_ protocol.Params, env *Env) (string, error) {
		return resolve(env)
	}
	return commandProcessor{command: command, resolve: wrapped, noParams: true}
}

func Hello() Processor {
	return bareFunc(CommandHello, func(*Env) (string, error) {
		return HelloResponse, nil
	})
}

// RoomsList answers "[room1,room2,...]" in house order
func RoomsList() Processor {
	return bareFunc(CommandRoomsList, func(env *Env) (string, error) {
		return "[" + strings.Join(env.House.RoomNames(), ",") + "]", nil
	})
}

// DevicesList answers "<room>:[dev1,dev2,...]"
func DevicesList() Processor {
	return Func(CommandDevicesList, func(params protocol.Params, env *Env) (string, error) {
		roomName, err := required(params, ParamRoomName)
		if err != nil {
			return "", err
		}
		room, ok := env.House.Room(roomName)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrCantFindRoom, roomName)
		}
		return roomName + ":[" + strings.Join(room.DeviceNames(), ",") + "]", nil
	})
}

// DeviceReport answers the house report of a single device
func DeviceReport() Processor {
	return Func(CommandDeviceReport, func(params protocol.Params, env *Env) (string, error) {
		roomName, deviceName, err := roomAndDevice(params)
		if err != nil {
			return "", err
		}
		if _, err := lookupDevice(env.House, roomName, deviceName); err != nil {
			return "", err
		}
		report, err := env.House.ReportByDevices(house.DeviceRef{Room: roomName, Device: deviceName})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCantGetReport, err)
		}
		return report, nil
	})
}

// SetDevicePowerState turns a device on for power_state:true and off for
// any other value. The response is empty.
func SetDevicePowerState() Processor {
	return Func(CommandSetDevicePowerState, func(params protocol.Params, env *Env) (string, error) {
		roomName, deviceName, err := roomAndDevice(params)
		if err != nil {
			return "", err
		}
		state, err := required(params, ParamPowerState)
		if err != nil {
			return "", err
		}
		device, err := lookupDevice(env.House, roomName, deviceName)
		if err != nil {
			return "", err
		}

		if state == "true" {
			device.TurnOn()
		} else {
			device.TurnOff()
		}
		return "", nil
	})
}

// IsDeviceOn answers "room_name:<r>,device_name:<d>,is_on:<bool>"
func IsDeviceOn() Processor {
	return Func(CommandIsDeviceOn, func(params protocol.Params, env *Env) (string, error) {
		roomName, deviceName, err := roomAndDevice(params)
		if err != nil {
			return "", err
		}
		device, err := lookupDevice(env.House, roomName, deviceName)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("room_name:%s,device_name:%s,is_on:%t", roomName, deviceName, device.IsOn()), nil
	})
}

// GetDeviceReportStream registers a stream task sending the device report
// to addr every request_delay ticks. A missing, unparsable or zero delay
// uses the registry default.
func GetDeviceReportStream() Processor {
	return Func(CommandGetDeviceReportStream, func(params protocol.Params, env *Env) (string, error) {
		roomName, deviceName, err := roomAndDevice(params)
		if err != nil {
			return "", err
		}
		addr, err := required(params, ParamAddr)
		if err != nil {
			return "", err
		}
		device, err := lookupDevice(env.House, roomName, deviceName)
		if err != nil {
			return "", err
		}

		var delay uint64
		if raw, ok := params.Get(ParamRequestDelay); ok {
			if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
				delay = parsed
			}
		}

		name, err := env.Streams.Subscribe(stream.Subscription{
			Room:   roomName,
			Device: device.Name(),
			Delay:  delay,
			Addr:   addr,
			Render: deviceReportRenderer(env.Guard, roomName, device.Name()),
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCantStartStream, err)
		}
		return "create thread with name : " + name, nil
	})
}

// CancelDeviceReportStream cancels a stream by name. An unknown name is
// not an error.
func CancelDeviceReportStream() Processor {
	return Func(CommandCancelDeviceReportStream, func(params protocol.Params, env *Env) (string, error) {
		name, err := required(params, ParamStreamName)
		if err != nil {
			return "", err
		}
		if env.Streams.Cancel(name) {
			return "Cancel thread with name : " + name, nil
		}
		return "Cancel thread with name : " + name + " - no thread to cancel", nil
	})
}

// deviceReportRenderer looks the device up again on every tick so a missing
// or switched off device only skips ticks
func deviceReportRenderer(guard *house.Guard, roomName, deviceName string) stream.RenderFunc {
	return func() (string, error) {
		var report string
		err := guard.With(func(h *house.House) error {
			device, err := h.Lookup(roomName, deviceName)
			if err != nil {
				return err
			}
			report, err = device.Report()
			return err
		})
		return report, err
	}
}

func required(params protocol.Params, key string) (string, error) {
	value, ok := params.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, key)
	}
	return value, nil
}

func roomAndDevice(params protocol.Params) (string, string, error) {
	roomName, err := required(params, ParamRoomName)
	if err != nil {
		return "", "", err
	}
	deviceName, err := required(params, ParamDeviceName)
	if err != nil {
		return "", "", err
	}
	return roomName, deviceName, nil
}

func lookupDevice(h *house.House, roomName, deviceName string) (house.Device, error) {
	room, ok := h.Room(roomName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCantFindRoom, roomName)
	}
	device, ok := room.Device(deviceName)
	if !ok {
		return nil, fmt.Errorf("%w: %s in room %s", ErrCantFindDevice, deviceName, roomName)
	}
	return device, nil
}
