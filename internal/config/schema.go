package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	LogLevel  string          `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	LocalID   string          `yaml:"local_id,omitempty"` // empty = inventory or hostname
	Inventory InventoryConfig `yaml:"inventory"`
	Topology  TopologyConfig  `yaml:"topology"`
	Hadoop    HadoopConfig    `yaml:"hadoop"`
	SSH       SSHConfig       `yaml:"ssh"`
	Trust     TrustConfig     `yaml:"trust"`
	Render    RenderConfig    `yaml:"render"`
	Database  DatabaseConfig  `yaml:"database"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InventoryConfig locates the membership listing
type InventoryConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=ansible yaml opsworks"`
	Group  string `yaml:"group,omitempty"` // Ansible group or OpsWorks layer
}

// TopologyConfig controls classification and quorum sizing
type TopologyConfig struct {
	CoordinatorPattern string `yaml:"coordinator_pattern,omitempty" validate:"excluded_with=CoordinatorGroup"`
	CoordinatorGroup   string `yaml:"coordinator_group,omitempty"`
	QuorumSize         int    `yaml:"quorum_size" validate:"min=1"`
}

// HadoopConfig holds the values rendered into the Hadoop and HBase artifacts
type HadoopConfig struct {
	Version      string `yaml:"version" validate:"required"`
	NamenodeDir  string `yaml:"namenode_dir" validate:"required"`
	DatanodeDir  string `yaml:"datanode_dir" validate:"required"`
	ZookeeperDir string `yaml:"zookeeper_dir" validate:"required"`
	NamenodePort int    `yaml:"namenode_port" validate:"min=1,max=65535"`
}

// SSHConfig holds the administrative channel settings
type SSHConfig struct {
	User                  string   `yaml:"user" validate:"required"`
	Port                  int      `yaml:"port" validate:"min=1,max=65535"`
	KeyDir                string   `yaml:"key_dir" validate:"required"`
	IdentityFiles         []string `yaml:"identity_files,omitempty"`
	PasswordEnv           string   `yaml:"password_env,omitempty"` // env var holding a first-contact password
	UseAgent              bool     `yaml:"use_agent"`
	KnownHostsFile        string   `yaml:"known_hosts_file,omitempty" validate:"required_without=InsecureIgnoreHostKey"`
	InsecureIgnoreHostKey bool     `yaml:"insecure_ignore_host_key"`
	ConnectTimeout        Duration `yaml:"connect_timeout" validate:"gt=0"`
	CommandTimeout        Duration `yaml:"command_timeout" validate:"gt=0"`
	MaxRetries            int      `yaml:"max_retries" validate:"min=0"`
}

// TrustConfig controls the trust establishment pass
type TrustConfig struct {
	MaxConcurrent     int      `yaml:"max_concurrent" validate:"min=1"`
	NodeTimeout       Duration `yaml:"node_timeout" validate:"gt=0"`
	StagingDir        string   `yaml:"staging_dir" validate:"required"`
	ProbeReachability bool     `yaml:"probe_reachability"`
}

// RenderConfig holds artifact output settings
type RenderConfig struct {
	OutputDir string `yaml:"output_dir" validate:"required"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // empty disables the run ledger
}

// MetricsConfig holds the node_exporter textfile location
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path,omitempty"` // empty disables metrics
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
