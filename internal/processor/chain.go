package processor

import (
	"errors"
	"fmt"

	"github.com/denisbaic/smarthouse/internal/house"
	"github.com/denisbaic/smarthouse/internal/protocol"
	"github.com/denisbaic/smarthouse/internal/stream"
)

// Streams is the part of the stream registry the processors need
type Streams interface {
	Subscribe(sub stream.Subscription) (string, error)
	Cancel(name string) bool
}

// Env is what a processor may touch while resolving one request. House is
// only valid for the duration of the call; background work must go through
// Guard.
type Env struct {
	House   *house.House
	Guard   *house.Guard
	Streams Streams
}

// Processor resolves requests for one command
type Processor interface {
	// Command is the exact first token this processor accepts
	Command() string
	// TryProcess returns ErrNotHandled when req is for another command
	TryProcess(req protocol.Request, env *Env) (string, error)
}

// Chain is an ordered, append-only list of processors
type Chain struct {
	processors []Processor
	commands   map[string]struct{}
}

// NewChain creates a chain from processors in order
func NewChain(processors ...Processor) (*Chain, error) {
	c := &Chain{commands: make(map[string]struct{})}
	for _, p := range processors {
		if err := c.Append(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DefaultChain returns the chain of every built-in command
func DefaultChain() *Chain {
	c, err := NewChain(
		Hello(),
		RoomsList(),
		DevicesList(),
		DeviceReport(),
		SetDevicePowerState(),
		IsDeviceOn(),
		GetDeviceReportStream(),
		CancelDeviceReportStream(),
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Append adds p at the end. Two processors may not share a command.
func (c *Chain) Append(p Processor) error {
	command := p.Command()
	if command == "" {
		return fmt.Errorf("processor has an empty command")
	}
	if _, exists := c.commands[command]; exists {
		return fmt.Errorf("processor for command %q already registered", command)
	}
	c.commands[command] = struct{}{}
	c.processors = append(c.processors, p)
	return nil
}

// Commands returns registered commands in dispatch order
func (c *Chain) Commands() []string {
	commands := make([]string, 0, len(c.processors))
	for _, p := range c.processors {
		commands = append(commands, p.Command())
	}
	return commands
}

// Handles reports whether some processor owns command
func (c *Chain) Handles(command string) bool {
	_, ok := c.commands[command]
	return ok
}

// Dispatch offers req to each processor in order and returns the first
// result that is not ErrNotHandled
func (c *Chain) Dispatch(req protocol.Request, env *Env) (string, error) {
	for _, p := range c.processors {
		response, err := p.TryProcess(req, env)
		if errors.Is(err, ErrNotHandled) {
			continue
		}
		return response, err
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedCommand, req.Command())
}
