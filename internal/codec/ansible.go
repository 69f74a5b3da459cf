package codec

import (
	"fmt"
	"io"
	"slices"
	"sort"

	"clustercfg/internal/domain"

	"gopkg.in/yaml.v3"
)

// AnsibleCodec handles Ansible inventory import and plan export
type AnsibleCodec struct {
	group string
}

// NewAnsibleCodec creates a new Ansible codec. A non-empty group limits
// parsing to hosts in that group.
func NewAnsibleCodec(group string) *AnsibleCodec {
	return &AnsibleCodec{group: group}
}

// Format returns the codec format identifier
func (c *AnsibleCodec) Format() string {
	return "ansible-inventory"
}

// ansibleInventory represents the Ansible inventory structure
type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroupDef `yaml:"children,omitempty"`
	Hosts    map[string]ansibleHost     `yaml:"hosts,omitempty"`
	Vars     map[string]interface{}     `yaml:"vars,omitempty"`
}

type ansibleGroupDef struct {
	Hosts map[string]ansibleHost `yaml:"hosts,omitempty"`
	Vars  map[string]interface{} `yaml:"vars,omitempty"`
}

type ansibleHost struct {
	AnsibleHost string                 `yaml:"ansible_host,omitempty"`
	Vars        map[string]interface{} `yaml:",inline"`
}

// Parse decodes an Ansible inventory into node records. A host listed in several
// groups becomes one record carrying every group name.
func (c *AnsibleCodec) Parse(r io.Reader) (*Inventory, error) {
	var inv ansibleInventory
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&inv); err != nil {
		return nil, fmt.Errorf("failed to parse Ansible inventory: %w", err)
	}

	records := make(map[string]*domain.NodeRecord)

	add := func(hostID, groupName string, host ansibleHost) error {
		addr := host.AnsibleHost
		if addr == "" {
			addr = hostID
		}

		existing, ok := records[hostID]
		if !ok {
			rec := domain.NewNodeRecord(hostID, addr)
			records[hostID] = &rec
			existing = &rec
		} else if host.AnsibleHost != "" && existing.Address != addr {
			if existing.Address != hostID {
				return fmt.Errorf("%w: host %s has conflicting addresses %s and %s",
					domain.ErrInvalidMembership, hostID, existing.Address, addr)
			}
			existing.Address = addr
		}

		if groupName != "" && !existing.InGroup(groupName) {
			existing.Groups = append(existing.Groups, groupName)
		}
		return nil
	}

	// Process all groups in a stable order so conflicts are reported deterministically
	groupNames := make([]string, 0, len(inv.All.Children))
	for name := range inv.All.Children {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	for _, groupName := range groupNames {
		for hostID, host := range inv.All.Children[groupName].Hosts {
			if err := add(hostID, groupName, host); err != nil {
				return nil, err
			}
		}
	}

	// Process hosts in the 'all' group directly
	for hostID, host := range inv.All.Hosts {
		if err := add(hostID, "", host); err != nil {
			return nil, err
		}
	}

	result := &Inventory{}
	for _, rec := range records {
		if c.group != "" && !rec.InGroup(c.group) {
			continue
		}
		sort.Strings(rec.Groups)
		result.Entries = append(result.Entries, *rec)
	}

	if c.group != "" && len(result.Entries) == 0 {
		return nil, fmt.Errorf("%w: no hosts in group %q", domain.ErrInvalidMembership, c.group)
	}

	slices.SortFunc(result.Entries, func(a, b domain.NodeRecord) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	return result, nil
}

// Export writes the plan as an Ansible inventory with coordinator and workers
// groups. Plan values become group vars; quorum membership becomes a host var.
func (c *AnsibleCodec) Export(doc *PlanDocument, w io.Writer) error {
	inv := ansibleInventory{
		All: ansibleGroup{
			Children: make(map[string]ansibleGroupDef),
			Vars: map[string]interface{}{
				"dfs_replication":  int(doc.Replication),
				"zookeeper_quorum": doc.Quorum.String(),
			},
		},
	}

	toHost := func(n domain.NodeRecord) ansibleHost {
		return ansibleHost{
			AnsibleHost: n.Address,
			Vars: map[string]interface{}{
				"zookeeper_member": doc.Quorum.Contains(n.ID),
			},
		}
	}

	inv.All.Children["coordinator"] = ansibleGroupDef{
		Hosts: map[string]ansibleHost{doc.Coordinator.ID: toHost(doc.Coordinator)},
	}

	workers := make(map[string]ansibleHost, len(doc.Workers))
	for _, n := range doc.Workers {
		workers[n.ID] = toHost(n)
	}
	inv.All.Children["workers"] = ansibleGroupDef{Hosts: workers}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&inv); err != nil {
		return fmt.Errorf("failed to encode Ansible inventory: %w", err)
	}

	return nil
}
