package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"clustercfg/internal/domain"
)

// DefaultOpsWorksLayer is the layer whose instances form the cluster
const DefaultOpsWorksLayer = "hadoop"

// OpsWorksCodec reads the node attributes document an OpsWorks stack hands to
// each instance
type OpsWorksCodec struct {
	layer string
}

// NewOpsWorksCodec creates a codec reading instances from layer
func NewOpsWorksCodec(layer string) *OpsWorksCodec {
	if layer == "" {
		layer = DefaultOpsWorksLayer
	}
	return &OpsWorksCodec{layer: layer}
}

// Format returns the codec format identifier
func (c *OpsWorksCodec) Format() string {
	return "opsworks"
}

type opsworksDocument struct {
	OpsWorks struct {
		Layers map[string]struct {
			Instances map[string]opsworksInstance `json:"instances"`
		} `json:"layers"`
		Instance struct {
			Hostname string `json:"hostname"`
		} `json:"instance"`
	} `json:"opsworks"`
}

type opsworksInstance struct {
	PrivateIP string `json:"private_ip"`
	PublicDNS string `json:"public_dns_name,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Parse decodes the layer's instances keyed by instance name. The local
// instance hostname becomes Inventory.LocalID.
func (c *OpsWorksCodec) Parse(r io.Reader) (*Inventory, error) {
	var doc opsworksDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OpsWorks attributes: %w", err)
	}

	layer, ok := doc.OpsWorks.Layers[c.layer]
	if !ok {
		return nil, fmt.Errorf("%w: layer %q not found", domain.ErrInvalidMembership, c.layer)
	}

	names := make([]string, 0, len(layer.Instances))
	for name := range layer.Instances {
		names = append(names, name)
	}
	sort.Strings(names)

	inv := &Inventory{
		LocalID: doc.OpsWorks.Instance.Hostname,
		Entries: make([]domain.NodeRecord, 0, len(names)),
	}
	for _, name := range names {
		inv.Entries = append(inv.Entries, domain.NewNodeRecord(name, layer.Instances[name].PrivateIP, c.layer))
	}

	return inv, nil
}
