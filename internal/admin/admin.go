// Package admin implements the balancer's administrative console: a
// single cooperative reader over standard input that parses
// whitespace-delimited commands and mutates the registry in response.
// It never holds a lock across its own I/O; each command does one
// bounded registry call and prints the result.
package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/pranshu258/linebalancer/internal/assignlog"
	"github.com/pranshu258/linebalancer/internal/contracts"
	"github.com/pranshu258/linebalancer/internal/probe"
	"github.com/pranshu258/linebalancer/internal/registry"
)

const helpText = `commands:
  servers                              list backends with RTT, weight, drain, live count
  live                                 per-backend reported live clients
  clients | recent                     last <=500 assignments
  status                               servers + live
  drain <h:p> | drain all              exclude a backend (or all) from selection
  undrain <h:p> | undrain all          re-admit a backend (or all)
  drained                              list drained backends
  setweight <h:p> <N>                  set RR weight (clamped >=1)
  weights                              list weights
  mode default <static|dynamic>        change default client mode
  set ping <ms>                        set probe interval (clamped >=200)
  set maxconn <N>                      set per-backend live cap
  ban ip <x> | ban name <x>            deny future clients by IP/name
  unban ip <x> | unban name <x>        lift a ban
  bans                                 list banned IPs/names
  remove <h:p>                         drop a backend from the registry
  clear                                empty the assignment log
  help                                 this text
`

// Console runs the admin REPL against a registry, assignment log, and
// probe loop (for ping-interval restarts and RTT quantile display).
type Console struct {
	ctx    context.Context
	reg    *registry.Registry
	log    *assignlog.Log
	probes *probe.Loop
	logger *log.Logger
	out    io.Writer
}

// New builds a Console. ctx is the root lifetime used to restart the
// probe loop when the operator changes the ping interval. logger may
// be nil; out is typically os.Stdout.
func New(ctx context.Context, reg *registry.Registry, assignLog *assignlog.Log, probes *probe.Loop, logger *log.Logger, out io.Writer) *Console {
	if logger == nil {
		logger = log.Default()
	}
	return &Console{ctx: ctx, reg: reg, log: assignLog, probes: probes, logger: logger, out: out}
}

// Run reads commands from in until EOF or the reader returns an error.
// A malformed or unknown command is reported inline; it never
// terminates the loop.
func (c *Console) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.dispatch(strings.Fields(line))
	}
}

func (c *Console) dispatch(args []string) {
	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "servers":
		c.cmdServers()
	case "live":
		c.cmdLive()
	case "clients", "recent":
		c.cmdRecent()
	case "status":
		c.cmdServers()
		c.cmdLive()
	case "drain":
		c.cmdDrain(rest, true)
	case "undrain":
		c.cmdDrain(rest, false)
	case "drained":
		c.cmdDrained()
	case "setweight":
		c.cmdSetWeight(rest)
	case "weights":
		c.cmdWeights()
	case "mode":
		c.cmdMode(rest)
	case "set":
		c.cmdSet(rest)
	case "ban":
		c.cmdBan(rest, true)
	case "unban":
		c.cmdBan(rest, false)
	case "bans":
		c.cmdBans()
	case "remove":
		c.cmdRemove(rest)
	case "clear":
		c.log.Clear()
		c.printf("assignment log cleared\n")
	case "help":
		c.printf("%s", helpText)
	default:
		c.printf("unknown command %q; try 'help'\n", cmd)
	}
}

func (c *Console) printf(format string, a ...interface{}) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *Console) cmdServers() {
	snap := c.reg.Snapshot()
	if len(snap.Entries) == 0 {
		c.printf("no backends registered\n")
		return
	}
	for _, e := range snap.Entries {
		rtt := "unknown"
		if e.HasRTT {
			rtt = fmt.Sprintf("%dms", e.RTTMs)
			if c.probes != nil {
				if p50, p90, ok := c.probes.Sampler.Quantiles(e.Backend); ok {
					rtt = fmt.Sprintf("%dms (p50=%.1fms p90=%.1fms)", e.RTTMs, p50, p90)
				}
			}
		}
		c.printf("%-22s weight=%-3d drained=%-5v rtt=%-30s live=%d\n",
			e.Backend, e.Weight, e.Drained, rtt, e.LiveCount())
	}
}

func (c *Console) cmdLive() {
	snap := c.reg.Snapshot()
	for _, e := range snap.Entries {
		c.printf("%s:\n", e.Backend)
		if len(e.LiveClients) == 0 {
			c.printf("  (no live clients reported)\n")
			continue
		}
		for _, lc := range e.LiveClients {
			c.printf("  %s@%s\n", lc.Name, lc.IP)
		}
	}
}

func (c *Console) cmdRecent() {
	recent := c.log.Recent()
	if len(recent) == 0 {
		c.printf("no assignments yet\n")
		return
	}
	for _, r := range recent {
		c.printf("%s -> %s (%s) remote=%s\n", r.ClientName, r.Backend, r.Mode, r.Remote)
	}
}

func (c *Console) cmdDrain(args []string, drain bool) {
	verb := "undrain"
	if drain {
		verb = "drain"
	}
	if len(args) != 1 {
		c.printf("usage: %s <h:p> | %s all\n", verb, verb)
		return
	}
	if args[0] == "all" {
		if drain {
			c.reg.DrainAll()
		} else {
			c.reg.UndrainAll()
		}
		c.printf("%sed all backends\n", verb)
		return
	}
	b, err := parseBackend(args[0])
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	var opErr error
	if drain {
		opErr = c.reg.Drain(b)
	} else {
		opErr = c.reg.Undrain(b)
	}
	if opErr != nil {
		c.printf("%s: %v\n", b, opErr)
		return
	}
	c.printf("%sed %s\n", verb, b)
}

func (c *Console) cmdDrained() {
	snap := c.reg.Snapshot()
	any := false
	for _, e := range snap.Entries {
		if e.Drained {
			c.printf("%s\n", e.Backend)
			any = true
		}
	}
	if !any {
		c.printf("no drained backends\n")
	}
}

func (c *Console) cmdSetWeight(args []string) {
	if len(args) != 2 {
		c.printf("usage: setweight <h:p> <N>\n")
		return
	}
	b, err := parseBackend(args[0])
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		c.printf("bad weight %q\n", args[1])
		return
	}
	if err := c.reg.SetWeight(b, n); err != nil {
		c.printf("%s: %v\n", b, err)
		return
	}
	c.printf("weight(%s) = %d\n", b, max(n, 1))
}

func (c *Console) cmdWeights() {
	snap := c.reg.Snapshot()
	for _, e := range snap.Entries {
		c.printf("%s = %d\n", e.Backend, e.Weight)
	}
}

func (c *Console) cmdMode(args []string) {
	if len(args) != 2 || args[0] != "default" {
		c.printf("usage: mode default <static|dynamic>\n")
		return
	}
	m, ok := contracts.ParseMode(args[1])
	if !ok {
		c.printf("bad mode %q\n", args[1])
		return
	}
	c.reg.SetDefaultMode(m)
	c.printf("default mode = %s\n", m)
}

func (c *Console) cmdSet(args []string) {
	if len(args) != 2 {
		c.printf("usage: set ping <ms> | set maxconn <N>\n")
		return
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		c.printf("bad value %q\n", args[1])
		return
	}
	switch args[0] {
	case "ping":
		applied := c.reg.SetPingInterval(n)
		if c.probes != nil {
			c.probes.Restart(c.ctx, applied)
		}
		c.printf("ping interval = %dms\n", applied)
	case "maxconn":
		if n < 0 {
			n = registry.Unlimited
		}
		c.reg.SetMaxPerBackend(n)
		if n == registry.Unlimited {
			c.printf("max per backend = unlimited\n")
		} else {
			c.printf("max per backend = %d\n", n)
		}
	default:
		c.printf("usage: set ping <ms> | set maxconn <N>\n")
	}
}

func (c *Console) cmdBan(args []string, ban bool) {
	verb := "unban"
	if ban {
		verb = "ban"
	}
	if len(args) != 2 || (args[0] != "ip" && args[0] != "name") {
		c.printf("usage: %s ip <x> | %s name <x>\n", verb, verb)
		return
	}
	switch args[0] {
	case "ip":
		if ban {
			c.reg.BanIP(args[1])
		} else {
			c.reg.UnbanIP(args[1])
		}
	case "name":
		if ban {
			c.reg.BanName(args[1])
		} else {
			c.reg.UnbanName(args[1])
		}
	}
	c.printf("%sned %s %s\n", verb, args[0], args[1])
}

func (c *Console) cmdBans() {
	ips, names := c.reg.Bans()
	sort.Strings(ips)
	sort.Strings(names)
	c.printf("banned ips: %s\n", strings.Join(ips, ", "))
	c.printf("banned names: %s\n", strings.Join(names, ", "))
}

func (c *Console) cmdRemove(args []string) {
	if len(args) != 1 {
		c.printf("usage: remove <h:p>\n")
		return
	}
	b, err := parseBackend(args[0])
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	if err := c.reg.Remove(b); err != nil {
		c.printf("%s: %v\n", b, err)
		return
	}
	c.printf("removed %s\n", b)
}

func parseBackend(s string) (contracts.Backend, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return contracts.Backend{}, fmt.Errorf("bad backend %q, want host:port", s)
	}
	port, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return contracts.Backend{}, fmt.Errorf("bad port in %q", s)
	}
	return contracts.Backend{Address: s[:i], Port: port}, nil
}
