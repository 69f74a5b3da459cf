package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog/log"
)

// NmapProbe checks which cluster nodes have their SSH port open before any
// administrative connection is attempted
type NmapProbe struct {
	port              int
	timeout           time.Duration
	skipHostDiscovery bool
	binaryPath        string
}

// NewNmapProbe creates a probe for the given SSH port
func NewNmapProbe(port int, opts ...NmapOption) *NmapProbe {
	probe := &NmapProbe{
		port:              port,
		timeout:           2 * time.Minute,
		skipHostDiscovery: true, // cluster networks often drop ICMP
	}

	for _, opt := range opts {
		opt(probe)
	}

	return probe
}

// Available checks if the nmap binary can be run
func (n *NmapProbe) Available(ctx context.Context) bool {
	opts := []nmap.Option{
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	}
	if n.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(n.binaryPath))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return false
	}

	_, _, err = scanner.Run()
	return err == nil
}

// Reachable scans addresses and reports whether the SSH port is open on each.
// Addresses nmap did not report on are left out of the map.
func (n *NmapProbe) Reachable(ctx context.Context, addresses []string) (map[string]bool, error) {
	if len(addresses) == 0 {
		return map[string]bool{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	opts := []nmap.Option{
		nmap.WithTargets(addresses...),
		nmap.WithPorts(strconv.Itoa(n.port)),
	}
	if n.skipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}
	if n.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(n.binaryPath))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	log.Debug().Int("targets", len(addresses)).Int("port", n.port).Msg("Nmap: probing SSH port")

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Debug().Strs("warnings", *warnings).Msg("Nmap: scan warnings")
	}

	return n.processResults(result, addresses)
}

// processResults maps scan results back onto the requested addresses
func (n *NmapProbe) processResults(result *nmap.Run, addresses []string) (map[string]bool, error) {
	if result == nil {
		return nil, fmt.Errorf("nil scan result")
	}

	requested := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		requested[strings.ToLower(a)] = true
	}

	reachable := make(map[string]bool, len(addresses))

	for _, host := range result.Hosts {
		open := host.Status.State == "up" && n.portOpen(host.Ports)

		for _, name := range hostKeys(host) {
			if requested[name] {
				reachable[name] = open
			}
		}
	}

	// Restore the caller's spelling of each address
	out := make(map[string]bool, len(reachable))
	for _, a := range addresses {
		if open, ok := reachable[strings.ToLower(a)]; ok {
			out[a] = open
		}
	}

	closed := 0
	for _, open := range out {
		if !open {
			closed++
		}
	}
	log.Info().
		Int("scanned", len(out)).
		Int("closed", closed).
		Msg("Nmap: reachability probe complete")

	return out, nil
}

// portOpen reports whether the probed port is open
func (n *NmapProbe) portOpen(ports []nmap.Port) bool {
	for _, port := range ports {
		if int(port.ID) == n.port && port.State.State == "open" {
			return true
		}
	}
	return false
}

// hostKeys lists every name nmap reported for a host, lowercased
func hostKeys(host nmap.Host) []string {
	var keys []string
	for _, addr := range host.Addresses {
		if addr.AddrType == "mac" {
			continue
		}
		keys = append(keys, strings.ToLower(addr.Addr))
	}
	for _, hn := range host.Hostnames {
		keys = append(keys, strings.ToLower(hn.Name))
	}
	return keys
}
