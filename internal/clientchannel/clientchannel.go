// Package clientchannel implements the balancer's client-facing ingress:
// a TCP listener that runs each client's HELLO handshake to completion,
// invokes the scheduler, and replies with either a host:port assignment
// or the NO_SERVER_AVAILABLE sentinel.
package clientchannel

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pranshu258/linebalancer/internal/assignlog"
	"github.com/pranshu258/linebalancer/internal/contracts"
	"github.com/pranshu258/linebalancer/internal/metrics"
	"github.com/pranshu258/linebalancer/internal/registry"
	"github.com/pranshu258/linebalancer/internal/schedule"
)

const handshakeTimeout = time.Second

// Channel serves client handshakes and hands out backend assignments.
type Channel struct {
	reg     *registry.Registry
	log     *assignlog.Log
	metrics *metrics.Metrics
	logger  *log.Logger

	anonCounter atomic.Uint64
}

// New builds a client channel bound to reg and the shared assignment
// log. logger may be nil.
func New(reg *registry.Registry, assignLog *assignlog.Log, m *metrics.Metrics, logger *log.Logger) *Channel {
	if logger == nil {
		logger = log.Default()
	}
	return &Channel{reg: reg, log: assignLog, metrics: m, logger: logger}
}

// Serve accepts client connections on ln until it returns an error.
func (c *Channel) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go c.handle(conn)
	}
}

func (c *Channel) handle(conn net.Conn) {
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	name, mode := c.readHandshake(conn)
	if name == "" {
		name = fmt.Sprintf("Client-%d", c.anonCounter.Add(1))
	}

	if c.reg.IsBanned(host, name) {
		c.deny(conn)
		return
	}

	snap := c.reg.Snapshot()
	resolvedMode := mode
	if resolvedMode == "" {
		resolvedMode = snap.DefaultMode
	}

	b, ok := schedule.Select(snap, resolvedMode, c.reg)
	if !ok {
		c.logger.Printf("no schedulable backend for %s (mode=%s)", name, resolvedMode)
		c.deny(conn)
		return
	}

	if _, err := conn.Write([]byte(b.String() + "\n")); err != nil {
		c.logger.Printf("write assignment to %s failed: %v", conn.RemoteAddr(), err)
		return
	}
	c.log.Append(contracts.ClientRecord{
		ClientName: name,
		Mode:       resolvedMode,
		AssignedAt: time.Now().UnixMilli(),
		Backend:    b,
		Remote:     conn.RemoteAddr().String(),
	})
	if c.metrics != nil {
		if resolvedMode == contracts.ModeDynamic {
			c.metrics.AssignDynamicTotal.Inc()
		} else {
			c.metrics.AssignStaticTotal.Inc()
		}
	}
}

func (c *Channel) deny(conn net.Conn) {
	conn.Write([]byte("NO_SERVER_AVAILABLE\n"))
	if c.metrics != nil {
		c.metrics.AssignDeniedTotal.Inc()
	}
}

// readHandshake reads at most one HELLO line within handshakeTimeout.
// A missing line, or one that doesn't start with HELLO, yields an empty
// name and mode; the caller falls back to an auto-name and the
// default mode.
func (c *Channel) readHandshake(conn net.Conn) (name string, mode contracts.Mode) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", ""
	}
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(strings.ToUpper(line), "HELLO") {
		return "", ""
	}

	fields := strings.Fields(line)
	if len(fields) >= 2 {
		name = fields[1]
	}
	if len(fields) >= 3 {
		if m, ok := contracts.ParseMode(fields[2]); ok {
			mode = m
		}
	}
	return name, mode
}
