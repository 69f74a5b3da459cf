package adapter

import (
	"testing"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNmapProbe_Options(t *testing.T) {
	probe := NewNmapProbe(22)
	assert.Equal(t, 22, probe.port)
	assert.Equal(t, 2*time.Minute, probe.timeout)
	assert.True(t, probe.skipHostDiscovery)

	probe = NewNmapProbe(2222,
		WithTimeout(30*time.Second),
		WithSkipHostDiscovery(false),
		WithBinaryPath("/opt/nmap/bin/nmap"),
	)
	assert.Equal(t, 2222, probe.port)
	assert.Equal(t, 30*time.Second, probe.timeout)
	assert.False(t, probe.skipHostDiscovery)
	assert.Equal(t, "/opt/nmap/bin/nmap", probe.binaryPath)

	probe = NewNmapProbe(22, WithTimeout(0))
	assert.Equal(t, 2*time.Minute, probe.timeout, "zero timeout keeps the default")
}

func TestNmapProbe_ProcessResults(t *testing.T) {
	probe := NewNmapProbe(22)

	result := &nmap.Run{
		Hosts: []nmap.Host{
			{
				Addresses: []nmap.Address{
					{Addr: "10.0.0.1", AddrType: "ipv4"},
					{Addr: "AA:BB:CC:DD:EE:FF", AddrType: "mac"},
				},
				Status: nmap.Status{State: "up"},
				Ports: []nmap.Port{
					{ID: 22, Protocol: "tcp", State: nmap.State{State: "open"}},
				},
			},
			{
				Addresses: []nmap.Address{{Addr: "10.0.0.2", AddrType: "ipv4"}},
				Status:    nmap.Status{State: "up"},
				Ports: []nmap.Port{
					{ID: 22, Protocol: "tcp", State: nmap.State{State: "filtered"}},
				},
			},
			{
				Addresses: []nmap.Address{{Addr: "10.0.0.3", AddrType: "ipv4"}},
				Status:    nmap.Status{State: "down"},
			},
			{
				Addresses: []nmap.Address{{Addr: "10.0.0.4", AddrType: "ipv4"}},
				Hostnames: []nmap.Hostname{{Name: "Slave4.cluster.local"}},
				Status:    nmap.Status{State: "up"},
				Ports: []nmap.Port{
					{ID: 22, Protocol: "tcp", State: nmap.State{State: "open"}},
				},
			},
			{
				Addresses: []nmap.Address{{Addr: "192.168.1.1", AddrType: "ipv4"}},
				Status:    nmap.Status{State: "up"},
			},
		},
	}

	reachable, err := probe.processResults(result, []string{
		"10.0.0.1", "10.0.0.2", "10.0.0.3", "slave4.cluster.local", "10.0.0.9",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{
		"10.0.0.1":             true,
		"10.0.0.2":             false,
		"10.0.0.3":             false,
		"slave4.cluster.local": true,
	}, reachable)
}

func TestNmapProbe_ProcessNilResult(t *testing.T) {
	_, err := NewNmapProbe(22).processResults(nil, []string{"10.0.0.1"})
	assert.Error(t, err)
}
