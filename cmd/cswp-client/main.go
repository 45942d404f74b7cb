package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/coresight/cswp/client"
)

var dial = client.Dial

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("cswp-client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	defaultAddr := strings.TrimSpace(getenv("CSWP_SERVER_ADDR"))
	if defaultAddr == "" {
		defaultAddr = "127.0.0.1:8192"
	}

	addr := fs.String("server-addr", defaultAddr, "CSWP server host:port address")
	clientID := fs.String("client-id", "cswp-client", "client identity sent in INIT")
	devNo := fs.Uint64("dev", 0, "device number to open and query")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	c, err := dial(ctx, *addr, *clientID, client.Config{})
	if err != nil {
		return fmt.Errorf("cswp-client: failed to dial %s: %w", *addr, err)
	}
	defer func() {
		if err := c.Term(ctx); err != nil {
			log.Printf("cswp-client: failed to close session: %v", err)
		}
	}()

	if _, err := fmt.Fprintf(out, "CSWP SERVER: %s (protocol %d, version %#x)\n",
		c.Server.ServerID, c.Server.ProtocolVersion, c.Server.ServerVersion); err != nil {
		return err
	}

	open, err := c.DeviceOpen(ctx, *devNo)
	if err != nil {
		return fmt.Errorf("cswp-client: failed to open device %d: %w", *devNo, err)
	}
	_, err = fmt.Fprintf(out, "DEVICE %d: %s\n", *devNo, open.DeviceInfo)
	return err
}
