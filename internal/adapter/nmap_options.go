package adapter

import "time"

// NmapOption is a functional option for configuring NmapProbe
type NmapOption func(*NmapProbe)

// WithTimeout sets the timeout for the entire nmap scan
func WithTimeout(d time.Duration) NmapOption {
	return func(n *NmapProbe) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithSkipHostDiscovery sets whether to skip ping and treat all hosts as online (-Pn)
// Useful for networks that block ICMP
func WithSkipHostDiscovery(skip bool) NmapOption {
	return func(n *NmapProbe) {
		n.skipHostDiscovery = skip
	}
}

// WithBinaryPath points the probe at a specific nmap binary
func WithBinaryPath(path string) NmapOption {
	return func(n *NmapProbe) {
		n.binaryPath = path
	}
}
