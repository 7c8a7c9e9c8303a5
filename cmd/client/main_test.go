package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisbaic/smarthouse/internal/house"
	"github.com/denisbaic/smarthouse/internal/processor"
	"github.com/denisbaic/smarthouse/internal/protocol"
	"github.com/denisbaic/smarthouse/internal/server"
	"github.com/denisbaic/smarthouse/internal/stream"
)

// startServer runs a full STP server on loopback and returns its address
func startServer(t *testing.T) string {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	udp, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { udp.Close() })

	registry := stream.NewRegistry(udp, logger, nil, stream.DefaultConfig())
	dispatcher := processor.NewDispatcher(processor.DefaultChain(), house.NewGuard(house.Default()), registry, logger, nil)

	srv := server.NewServer(server.Config{
		Address: "127.0.0.1:0",
		Options: protocol.DefaultOptions(),
	}, logger, dispatcher, registry, nil)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	return srv.Addr().String()
}

// stdinFile returns a regular file holding input, so the REPL runs without
// a prompt
func stdinFile(t *testing.T, input string) *os.File {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRun(t *testing.T) {
	addr := startServer(t)

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{
			name: "version",
			args: []string{"--version"},
			want: "smarthouse-client " + version + "\n",
		},
		{
			name: "one-shot",
			args: []string{"-s", addr, "hello"},
			want: "Hello from server\n",
		},
		{
			name: "one-shot joins arguments",
			args: []string{"--server", addr, "devices_list", "room_name:Kitchen"},
			want: "Kitchen:[Therm1,Socket1]\n",
		},
		{
			name:  "repl stops at quit",
			args:  []string{"-s", addr},
			stdin: "hello\n\n  rooms_list  \nquit\nhello\n",
			want:  "Hello from server\n[Kitchen,Bedroom,LivingRoom]\n",
		},
		{
			name:  "repl stops at end of input",
			args:  []string{"-s", addr},
			stdin: "is_device_on room_name:Kitchen device_name:Socket1\n",
			want:  "room_name:Kitchen,device_name:Socket1,is_on:true\n",
		},
		{
			name:  "repl prints error responses",
			args:  []string{"-s", addr},
			stdin: "devices_list room_name:Attic\nexit\n",
			want:  "Proccess request error : can't find room: Attic\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			err := run(context.Background(), tt.args, stdinFile(t, tt.stdin), &stdout)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stdout.String())
		})
	}
}

func TestRunOneShotUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	var stdout bytes.Buffer
	err = run(context.Background(), []string{"-s", addr, "-w", "1", "hello"}, stdinFile(t, ""), &stdout)
	assert.Error(t, err)
	assert.Empty(t, stdout.String())
}

func TestRunReplReportsTransportErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	var stdout bytes.Buffer
	err = run(context.Background(), []string{"-s", addr, "-w", "1"}, stdinFile(t, "hello\n"), &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "error: ")
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	var stdout bytes.Buffer
	err := run(context.Background(), []string{"--bogus"}, stdinFile(t, ""), &stdout)
	assert.Error(t, err)
}

func TestWithReportAddr(t *testing.T) {
	tests := []struct {
		name       string
		request    string
		reportAddr string
		want       string
	}{
		{
			name:       "appends to stream request",
			request:    "get_device_report_stream room_name:Kitchen device_name:Therm1",
			reportAddr: "127.0.0.1:8081",
			want:       "get_device_report_stream room_name:Kitchen device_name:Therm1 addr:127.0.0.1:8081",
		},
		{
			name:       "keeps explicit addr",
			request:    "get_device_report_stream room_name:Kitchen device_name:Therm1 addr:10.0.0.1:9000",
			reportAddr: "127.0.0.1:8081",
			want:       "get_device_report_stream room_name:Kitchen device_name:Therm1 addr:10.0.0.1:9000",
		},
		{
			name:       "other commands untouched",
			request:    "device_report room_name:Kitchen device_name:Therm1",
			reportAddr: "127.0.0.1:8081",
			want:       "device_report room_name:Kitchen device_name:Therm1",
		},
		{
			name:    "no listener",
			request: "get_device_report_stream room_name:Kitchen device_name:Therm1",
			want:    "get_device_report_stream room_name:Kitchen device_name:Therm1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withReportAddr(tt.request, tt.reportAddr); got != tt.want {
				t.Errorf("withReportAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}
