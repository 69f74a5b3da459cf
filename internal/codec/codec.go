package codec

import (
	"io"

	"clustercfg/internal/domain"
)

// Inventory is a decoded, unclassified membership listing
type Inventory struct {
	Entries []domain.NodeRecord
	// LocalID is the identity of the node reading the inventory, when the
	// format carries one (OpsWorks does)
	LocalID string
}

// Importer interface for decoding membership from various inventory formats
type Importer interface {
	Parse(r io.Reader) (*Inventory, error)
	Format() string
}

// Exporter interface for writing a derived plan in various formats
type Exporter interface {
	Export(doc *PlanDocument, w io.Writer) error
	Format() string
}

// PlanDocument is the serializable form of a classified snapshot and its plan
type PlanDocument struct {
	Coordinator  domain.NodeRecord              `json:"coordinator" yaml:"coordinator"`
	Workers      []domain.NodeRecord            `json:"workers" yaml:"workers"`
	Replication  domain.ReplicationPlan         `json:"replication" yaml:"replication"`
	Quorum       domain.QuorumSet               `json:"quorum" yaml:"quorum"`
	QuorumTarget int                            `json:"quorum_target" yaml:"quorum_target"`
	Warning      *domain.UnderProvisionedQuorum `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// NewPlanDocument flattens snapshot and plan into a PlanDocument
func NewPlanDocument(snapshot *domain.MembershipSnapshot, plan *domain.PlanResult) *PlanDocument {
	return &PlanDocument{
		Coordinator:  snapshot.Coordinator(),
		Workers:      snapshot.Workers(),
		Replication:  plan.Replication,
		Quorum:       plan.Quorum,
		QuorumTarget: plan.QuorumSize,
		Warning:      plan.Warning,
	}
}

// ForFormat returns the importer for an inventory format name.
// group narrows Ansible and OpsWorks inventories to one group or layer.
func ForFormat(format, group string) (Importer, bool) {
	switch format {
	case "ansible", "ansible-inventory":
		return NewAnsibleCodec(group), true
	case "yaml", "yml":
		return NewYAMLCodec(), true
	case "opsworks":
		return NewOpsWorksCodec(group), true
	}
	return nil, false
}

// ExporterFor returns the exporter for an output format name
func ExporterFor(format string) (Exporter, bool) {
	switch format {
	case "yaml", "yml":
		return NewYAMLCodec(), true
	case "json":
		return NewJSONCodec(), true
	case "ansible", "ansible-inventory":
		return NewAnsibleCodec(""), true
	}
	return nil, false
}
