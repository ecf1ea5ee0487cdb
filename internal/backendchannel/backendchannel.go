// Package backendchannel implements the balancer's backend-registration
// ingress: a TCP listener that accepts one short-lived connection per
// !join or !report message from a worker, dispatches by line prefix,
// and closes the connection after handling it. !join and unrecognized
// lines get a reply on the same connection; !report gets none.
package backendchannel

import (
	"bufio"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pranshu258/linebalancer/internal/contracts"
	"github.com/pranshu258/linebalancer/internal/registry"
)

// Channel listens for backend join/report connections.
type Channel struct {
	reg *registry.Registry
	log *log.Logger
}

// New builds a backend channel bound to reg. logger may be nil.
func New(reg *registry.Registry, logger *log.Logger) *Channel {
	if logger == nil {
		logger = log.Default()
	}
	return &Channel{reg: reg, log: logger}
}

// Serve accepts connections on ln until it returns an error (typically
// because the listener was closed). One bad peer never stops the loop.
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

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		c.log.Printf("backendchannel: read from %s failed: %v", host, err)
		return
	}
	line = strings.TrimRight(line, "\r\n")

	switch {
	case strings.HasPrefix(line, "!join"):
		c.handleJoin(conn, host, line)
	case strings.HasPrefix(line, "!report"):
		c.handleReport(host, line)
	default:
		conn.Write([]byte("!err\n"))
	}
}

func (c *Channel) handleJoin(conn net.Conn, host, line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.log.Printf("backendchannel: short !join from %s: %q", host, line)
		conn.Write([]byte("!err\n"))
		return
	}
	port, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		c.log.Printf("backendchannel: bad port in !join from %s: %q", host, line)
		conn.Write([]byte("!err\n"))
		return
	}
	c.reg.AddBackend(host, port)
	conn.Write([]byte("!ack\n"))
}

// handleReport parses "!report <port> clients <n> <name>@<ip> ...". The
// count n is a hint: parsing stops at n tokens or end of message,
// whichever comes first, tolerating excess or missing tokens.
func (c *Channel) handleReport(host, line string) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		c.log.Printf("backendchannel: short !report from %s: %q", host, line)
		return
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		c.log.Printf("backendchannel: bad port in !report from %s: %q", host, line)
		return
	}
	if fields[2] != "clients" {
		c.log.Printf("backendchannel: malformed !report from %s: %q", host, line)
		return
	}
	n, err := strconv.Atoi(fields[3])
	if err != nil {
		c.log.Printf("backendchannel: bad count in !report from %s: %q", host, line)
		return
	}

	tokens := fields[4:]
	if n < len(tokens) {
		tokens = tokens[:n]
	}

	now := time.Now().UnixMilli()
	clients := make([]contracts.LiveClient, 0, len(tokens))
	for _, tok := range tokens {
		name, ip := splitNameIP(tok)
		clients = append(clients, contracts.LiveClient{Name: name, IP: ip, ReportedAt: now})
	}

	b := contracts.Backend{Address: host, Port: port}
	if err := c.reg.SetReport(b, clients); err != nil {
		c.log.Printf("backendchannel: report for unknown backend %s: %v", b, err)
	}
}

// splitNameIP splits a "name@ip" token on the last '@'. A token with no
// '@' is treated wholly as the name, with ip defaulting to "unknown".
func splitNameIP(tok string) (name, ip string) {
	i := strings.LastIndex(tok, "@")
	if i < 0 {
		return tok, "unknown"
	}
	return tok[:i], tok[i+1:]
}
