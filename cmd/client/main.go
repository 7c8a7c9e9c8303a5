// Command smarthouse-client sends STP requests to a smart house server.
//
// With arguments it sends them as one request line and prints the response.
// Without arguments it reads request lines from stdin. When --listen-udp is
// set, report datagrams received on that address are printed as they
// arrive and get_device_report_stream requests without addr: use it.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/denisbaic/smarthouse/internal/client"
	"github.com/denisbaic/smarthouse/internal/processor"
	"github.com/denisbaic/smarthouse/internal/protocol"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "smarthouse-client: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin *os.File, stdout io.Writer) error {
	fs := flag.NewFlagSet("smarthouse-client", flag.ContinueOnError)

	var (
		serverAddr  string
		listenUDP   string
		timeoutSec  int
		showVersion bool
	)
	fs.StringVarP(&serverAddr, "server", "s", "127.0.0.1:8080", "STP server address")
	fs.StringVarP(&listenUDP, "listen-udp", "u", "", "Receive device report streams on this UDP address")
	fs.IntVarP(&timeoutSec, "timeout", "w", 10, "Per-request timeout in seconds")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Fprintf(stdout, "smarthouse-client %s\n", version)
		return nil
	}

	opts := protocol.DefaultOptions()
	timeout := time.Duration(timeoutSec) * time.Second
	c := client.New(serverAddr, opts)

	var reportAddr string
	if listenUDP != "" {
		conn, err := net.ListenPacket("udp", listenUDP)
		if err != nil {
			return fmt.Errorf("failed to listen on UDP %s: %w", listenUDP, err)
		}
		defer conn.Close()
		reportAddr = conn.LocalAddr().String()
		go printReports(conn, stdout)
	}

	if fs.NArg() > 0 {
		return send(ctx, c, timeout, withReportAddr(strings.Join(fs.Args(), " "), reportAddr), stdout)
	}

	interactive := term.IsTerminal(int(stdin.Fd()))
	if interactive {
		fmt.Fprintf(stdout, "Connected to %s. Commands: %s. Type quit to exit.\n",
			serverAddr, strings.Join(processor.DefaultChain().Commands(), ", "))
		if reportAddr != "" {
			fmt.Fprintf(stdout, "Receiving report streams on %s\n", reportAddr)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		if interactive {
			fmt.Fprint(stdout, "> ")
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		if err := send(ctx, c, timeout, withReportAddr(line, reportAddr), stdout); err != nil {
			fmt.Fprintf(stdout, "error: %v\n", err)
		}
	}
}

func send(ctx context.Context, c *client.Client, timeout time.Duration, request string, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := c.Do(ctx, request)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, response)
	return nil
}

// withReportAddr appends addr:<reportAddr> to stream requests that lack one
func withReportAddr(request, reportAddr string) string {
	if reportAddr == "" || protocol.CommandOf(request) != processor.CommandGetDeviceReportStream {
		return request
	}
	if params, err := protocol.ParseParams(request); err == nil {
		if _, ok := params.Get(processor.ParamAddr); ok {
			return request
		}
	}
	return request + " " + processor.ParamAddr + ":" + reportAddr
}

func printReports(conn net.PacketConn, stdout io.Writer) {
	buf := make([]byte, 64*1024)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		fmt.Fprintf(stdout, "\n[report from %s]\n%s\n", from, buf[:n])
	}
}
