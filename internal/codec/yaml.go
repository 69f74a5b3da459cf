package codec

import (
	"fmt"
	"io"

	"clustercfg/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles the static YAML inventory and YAML plan output
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlInventory represents the static inventory file
type yamlInventory struct {
	LocalID string     `yaml:"local_id,omitempty"`
	Nodes   []yamlNode `yaml:"nodes"`
}

type yamlNode struct {
	ID      string   `yaml:"id"`
	Address string   `yaml:"address"`
	Groups  []string `yaml:"groups,omitempty"`
}

// Parse decodes a static node list
func (c *YAMLCodec) Parse(r io.Reader) (*Inventory, error) {
	var yi yamlInventory
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&yi); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	inv := &Inventory{
		LocalID: yi.LocalID,
		Entries: make([]domain.NodeRecord, 0, len(yi.Nodes)),
	}
	for _, yn := range yi.Nodes {
		inv.Entries = append(inv.Entries, domain.NewNodeRecord(yn.ID, yn.Address, yn.Groups...))
	}

	return inv, nil
}

// Export writes the plan document as YAML
func (c *YAMLCodec) Export(doc *PlanDocument, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
