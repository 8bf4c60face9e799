// Command dhcpd runs a standalone DHCPv4 server using the
// github.com/AdguardTeam/godhcpd/internal/dhcpd package.
package main

import (
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdguardTeam/godhcpd/internal/dhcpd"
)

func main() {
	var (
		endpoint   = flag.String("endpoint", "0.0.0.0:67", "address to bind the DHCP server to")
		subnet     = flag.String("subnet-mask", "255.255.255.0", "subnet mask for the served network")
		poolStart  = flag.String("pool-start", "", "first address of the dynamic pool")
		poolEnd    = flag.String("pool-end", "", "last address of the dynamic pool")
		leaseTime  = flag.Duration("lease-time", 24*time.Hour, "lease duration handed to clients")
		iface      = flag.String("interface", "", "bind the socket to this interface (linux only)")
		dbPath     = flag.String("db", "", "path to the lease persistence file")
		leaseDebug = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *leaseDebug {
		level = slog.LevelDebug
	}
	logger := dhcpd.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	udpAddr, err := net.ResolveUDPAddr("udp4", *endpoint)
	if err != nil {
		fatal(logger, "parsing endpoint", err)
	}

	mask := net.ParseIP(*subnet).To4()
	if mask == nil {
		fatal(logger, "parsing subnet mask", nil)
	}

	cfg := &dhcpd.Configuration{
		Endpoint:   udpAddr,
		SubnetMask: net.IPMask(mask),
		PoolStart:  net.ParseIP(*poolStart),
		PoolEnd:    net.ParseIP(*poolEnd),
		LeaseTime:  *leaseTime,
		Interface:  *iface,
	}

	opts := []dhcpd.ServerOption{dhcpd.WithLogger(logger)}

	if *dbPath != "" {
		opts = append(opts, dhcpd.WithClientStore(dhcpd.NewFileClientStore(nil), *dbPath))
	}

	srv, err := dhcpd.NewServer(cfg, opts...)
	if err != nil {
		fatal(logger, "building server", err)
	}

	if err = srv.Start(); err != nil {
		fatal(logger, "starting server", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	if err = srv.Stop(); err != nil {
		logger.Warn("server stopped with error", "error", err)
	}
}

func fatal(logger dhcpd.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
