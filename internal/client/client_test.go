package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisbaic/smarthouse/internal/protocol"
)

// cannedServer answers each request with responses[request] and records the
// requests it saw
type cannedServer struct {
	ln        *protocol.Listener
	responses map[string]string

	mu       sync.Mutex
	requests []string
}

func startCannedServer(t *testing.T, responses map[string]string) *cannedServer {
	t.Helper()

	ln, err := protocol.Listen("127.0.0.1:0", testOptions())
	require.NoError(t, err)

	s := &cannedServer{ln: ln, responses: responses}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			session, err := ln.Upgrade(conn)
			if err != nil {
				continue
			}
			go session.ProcessRequest(func(request string) string {
				s.mu.Lock()
				s.requests = append(s.requests, request)
				s.mu.Unlock()
				return s.responses[request]
			})
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *cannedServer) lastRequest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	return s.requests[len(s.requests)-1]
}

func testOptions() protocol.Options {
	opts := protocol.DefaultOptions()
	opts.HandshakeTimeout = time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return opts
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDo(t *testing.T) {
	s := startCannedServer(t, map[string]string{"hello": "Hello from server"})
	c := New(s.ln.Addr().String(), testOptions())

	got, err := c.Do(testContext(t), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello from server", got)
}

func TestHelperRequestsAndParsing(t *testing.T) {
	responses := make(map[string]string)
	responses["hello"] = "Hello from server"
	responses["rooms_list"] = "[Kitchen,Bedroom]"
	responses["devices_list room_name:Kitchen"] = "Kitchen:[Therm1,Socket1]"
	responses["devices_list room_name:Empty"] = "Empty:[]"
	responses["device_report room_name:Kitchen device_name:Therm1"] = "report"
	responses["is_device_on room_name:Kitchen device_name:Therm1"] = "room_name:Kitchen,device_name:Therm1,is_on:true"
	responses["set_device_power_state room_name:Kitchen device_name:Therm1 power_state:false"] = ""
	responses["get_device_report_stream room_name:Kitchen device_name:Therm1 request_delay:2 addr:127.0.0.1:9000"] = "create thread with name : Kitchen-Therm1"
	responses["get_device_report_stream room_name:Kitchen device_name:Therm1 addr:127.0.0.1:9000"] = "create thread with name : Kitchen-Therm1"
	responses["cancel_device_report_stream stream_name:Kitchen-Therm1"] = "Cancel thread with name : Kitchen-Therm1"
	responses["cancel_device_report_stream stream_name:Nope"] = "Cancel thread with name : Nope - no thread to cancel"
	s := startCannedServer(t, responses)
	c := New(s.ln.Addr().String(), testOptions())
	ctx := testContext(t)

	hello, err := c.Hello(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello from server", hello)

	rooms, err := c.RoomsList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kitchen", "Bedroom"}, rooms)

	devices, err := c.DevicesList(ctx, "Kitchen")
	require.NoError(t, err)
	assert.Equal(t, []string{"Therm1", "Socket1"}, devices)

	devices, err = c.DevicesList(ctx, "Empty")
	require.NoError(t, err)
	assert.Empty(t, devices)

	report, err := c.DeviceReport(ctx, "Kitchen", "Therm1")
	require.NoError(t, err)
	assert.Equal(t, "report", report)

	on, err := c.IsDeviceOn(ctx, "Kitchen", "Therm1")
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, c.SetDevicePowerState(ctx, "Kitchen", "Therm1", false))
	assert.Equal(t, "set_device_power_state room_name:Kitchen device_name:Therm1 power_state:false", s.lastRequest())

	name, err := c.GetDeviceReportStream(ctx, "Kitchen", "Therm1", 2, "127.0.0.1:9000")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen-Therm1", name)

	name, err = c.GetDeviceReportStream(ctx, "Kitchen", "Therm1", 0, "127.0.0.1:9000")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen-Therm1", name)
	assert.Equal(t, "get_device_report_stream room_name:Kitchen device_name:Therm1 addr:127.0.0.1:9000", s.lastRequest())

	found, err := c.CancelDeviceReportStream(ctx, "Kitchen-Therm1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = c.CancelDeviceReportStream(ctx, "Nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestErrorResponse(t *testing.T) {
	s := startCannedServer(t, map[string]string{
		"devices_list room_name:Attic": "Proccess request error : can't find room: Attic",
	})
	c := New(s.ln.Addr().String(), testOptions())

	_, err := c.DevicesList(testContext(t), "Attic")
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "can't find room: Attic", respErr.Message)
}

func TestUnexpectedResponses(t *testing.T) {
	responses := map[string]string{"rooms_list": "Kitchen,Bedroom"}
	responses["is_device_on room_name:Kitchen device_name:Therm1"] = "maybe"
	s := startCannedServer(t, responses)
	c := New(s.ln.Addr().String(), testOptions())
	ctx := testContext(t)

	_, err := c.RoomsList(ctx)
	assert.Error(t, err)

	_, err = c.IsDeviceOn(ctx, "Kitchen", "Therm1")
	assert.Error(t, err)
}

func TestDoDialFailure(t *testing.T) {
	ln, err := protocol.Listen("127.0.0.1:0", testOptions())
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = New(addr, testOptions()).Do(testContext(t), "hello")
	assert.Error(t, err)
}

func TestDoExpiredContext(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := New("127.0.0.1:1", testOptions()).Do(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
