package config

import (
	"os"
	"strings"
)

// ResolveLocalID picks the identity of the node running clustercfg.
// Precedence: explicit override, config file, inventory document, short hostname.
func (c *Config) ResolveLocalID(override, fromInventory string) string {
	if override != "" {
		return override
	}
	if c.LocalID != "" {
		return c.LocalID
	}
	if fromInventory != "" {
		return fromInventory
	}
	return shortHostname()
}

var hostname = os.Hostname

func shortHostname() string {
	name, err := hostname()
	if err != nil {
		return ""
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
