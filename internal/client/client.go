// Package client talks to an STP server. Every call opens a new connection,
// performs the handshake, sends one request and reads one response.
package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/denisbaic/smarthouse/internal/processor"
	"github.com/denisbaic/smarthouse/internal/protocol"
)

// ResponseError is an error response line returned by the server
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string {
	return "server: " + e.Message
}

// Client sends requests to one server address
type Client struct {
	addr string
	opts protocol.Options
}

// New creates a client for addr
func New(addr string, opts protocol.Options) *Client {
	return &Client{addr: addr, opts: opts}
}

// Do sends a raw request line and returns the raw response line. Error
// responses are returned as text, not as errors.
func (c *Client) Do(ctx context.Context, request string) (string, error) {
	opts := c.opts
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", context.DeadlineExceeded
		}
		opts.HandshakeTimeout = shorter(opts.HandshakeTimeout, remaining)
		opts.ReadTimeout = shorter(opts.ReadTimeout, remaining)
		opts.WriteTimeout = shorter(opts.WriteTimeout, remaining)
	}

	conn, err := protocol.Dial(ctx, c.addr, opts)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	return conn.SendRequest(request)
}

// call is Do plus translation of error responses into *ResponseError
func (c *Client) call(ctx context.Context, command string, kv ...string) (string, error) {
	response, err := c.Do(ctx, protocol.FormatRequest(command, kv...))
	if err != nil {
		return "", err
	}
	if message, found := strings.CutPrefix(response, processor.ErrorResponsePrefix); found {
		return "", &ResponseError{Message: message}
	}
	return response, nil
}

func (c *Client) Hello(ctx context.Context) (string, error) {
	return c.call(ctx, processor.CommandHello)
}

// RoomsList returns room names in house order
func (c *Client) RoomsList(ctx context.Context) ([]string, error) {
	response, err := c.call(ctx, processor.CommandRoomsList)
	if err != nil {
		return nil, err
	}
	return parseList(response)
}

// DevicesList returns the device names of a room
func (c *Client) DevicesList(ctx context.Context, room string) ([]string, error) {
	response, err := c.call(ctx, processor.CommandDevicesList, processor.ParamRoomName, room)
	if err != nil {
		return nil, err
	}
	list, found := strings.CutPrefix(response, room+":")
	if !found {
		return nil, fmt.Errorf("unexpected devices_list response %q", response)
	}
	return parseList(list)
}

// DeviceReport returns the rendered report of one device
func (c *Client) DeviceReport(ctx context.Context, room, device string) (string, error) {
	return c.call(ctx, processor.CommandDeviceReport,
		processor.ParamRoomName, room,
		processor.ParamDeviceName, device,
	)
}

// IsDeviceOn reports the power state of one device
func (c *Client) IsDeviceOn(ctx context.Context, room, device string) (bool, error) {
	response, err := c.call(ctx, processor.CommandIsDeviceOn,
		processor.ParamRoomName, room,
		processor.ParamDeviceName, device,
	)
	if err != nil {
		return false, err
	}
	idx := strings.LastIndex(response, "is_on:")
	if idx < 0 {
		return false, fmt.Errorf("unexpected is_device_on response %q", response)
	}
	on, err := strconv.ParseBool(response[idx+len("is_on:"):])
	if err != nil {
		return false, fmt.Errorf("unexpected is_device_on response %q: %w", response, err)
	}
	return on, nil
}

// SetDevicePowerState switches one device on or off
func (c *Client) SetDevicePowerState(ctx context.Context, room, device string, on bool) error {
	_, err := c.call(ctx, processor.CommandSetDevicePowerState,
		processor.ParamRoomName, room,
		processor.ParamDeviceName, device,
		processor.ParamPowerState, strconv.FormatBool(on),
	)
	return err
}

// GetDeviceReportStream asks the server to send the device report to addr
// every delay ticks (0 for the server default) and returns the stream name
func (c *Client) GetDeviceReportStream(ctx context.Context, room, device string, delay uint64, addr string) (string, error) {
	kv := []string{
		processor.ParamRoomName, room,
		processor.ParamDeviceName, device,
	}
	if delay > 0 {
		kv = append(kv, processor.ParamRequestDelay, strconv.FormatUint(delay, 10))
	}
	kv = append(kv, processor.ParamAddr, addr)

	response, err := c.call(ctx, processor.CommandGetDeviceReportStream, kv...)
	if err != nil {
		return "", err
	}
	name, found := strings.CutPrefix(response, "create thread with name : ")
	if !found {
		return "", fmt.Errorf("unexpected get_device_report_stream response %q", response)
	}
	return name, nil
}

// CancelDeviceReportStream cancels a stream and reports whether the server had it
func (c *Client) CancelDeviceReportStream(ctx context.Context, name string) (bool, error) {
	response, err := c.call(ctx, processor.CommandCancelDeviceReportStream, processor.ParamStreamName, name)
	if err != nil {
		return false, err
	}
	return !strings.HasSuffix(response, " - no thread to cancel"), nil
}

func parseList(s string) ([]string, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed list %q", s)
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return []string{}, nil
	}
	return strings.Split(inner, ","), nil
}

func shorter(current, limit time.Duration) time.Duration {
	if current <= 0 || limit < current {
		return limit
	}
	return current
}
