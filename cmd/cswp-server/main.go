package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/coresight/cswp/backend/membackend"
	"github.com/coresight/cswp/internal/logging"
	"github.com/coresight/cswp/protocol"
	"github.com/coresight/cswp/server"
	"github.com/coresight/cswp/transport"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("cswp-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	defaultAddr := strings.TrimSpace(getenv("CSWP_LISTEN_ADDR"))
	if defaultAddr == "" {
		defaultAddr = ":8192"
	}

	addr := fs.String("listen-addr", defaultAddr, "TCP address to listen on")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "text", "log format (text, json)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(*logFormat)
	if err != nil {
		return err
	}
	logger := logging.New(level, format, out)
	logging.SetDefault(logger)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("cswp-server: listen on %s: %w", *addr, err)
	}
	defer ln.Close()
	logger.Info("cswp-server listening", logging.Field{Key: "addr", Value: ln.Addr().String()})

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("cswp-server: accept: %w", err)
		}
		serveConn(conn, logger)
	}
}

// serveConn dispatches one connection against a fresh in-memory backend
// seeded with a single demonstration device and register catalog.
func serveConn(conn net.Conn, logger logging.Logger) {
	defer conn.Close()

	bk := membackend.New(membackend.RegisterCatalog{
		"cpu": {
			{ID: 0, Name: "r0", SizeWords: 1, DisplayName: "R0", Description: "general purpose register 0"},
			{ID: 15, Name: "pc", SizeWords: 1, DisplayName: "PC", Description: "program counter"},
		},
	}, 64*1024)
	if err := bk.SetDevices([]protocol.DeviceSpec{{Name: "core0", Type: "cpu"}}); err != nil {
		logger.Error("failed to seed devices", logging.Field{Key: "error", Value: err})
		return
	}

	d := server.NewDispatcher(transport.NewTCPTransportFromConn(conn), bk, server.Config{Logger: logger})
	if err := d.Serve(context.Background()); err != nil {
		logger.Warn("connection ended", logging.Field{Key: "remote", Value: conn.RemoteAddr().String()}, logging.Field{Key: "error", Value: err})
	}
}
