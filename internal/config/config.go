// Package config provides configuration management for clustercfg.
//
// Config file locations (priority order):
//  1. $CLUSTERCFG_CONFIG
//  2. ./clustercfg.yaml
//  3. $XDG_CONFIG_HOME/clustercfg/config.yaml
//  4. ~/.config/clustercfg/config.yaml
//  5. /etc/clustercfg/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPasswordEnv names the variable read for a first-contact SSH password
const DefaultPasswordEnv = "CLUSTERCFG_SSH_PASSWORD"

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Topology.CoordinatorPattern == "" && c.Topology.CoordinatorGroup == "" {
		c.Topology.CoordinatorPattern = "master"
	}
	if c.Topology.QuorumSize == 0 {
		c.Topology.QuorumSize = 3
	}

	if c.Hadoop.Version == "" {
		c.Hadoop.Version = "2.4.1"
	}
	if c.Hadoop.NamenodeDir == "" {
		c.Hadoop.NamenodeDir = "/home/hduser/hdfs/namenode"
	}
	if c.Hadoop.DatanodeDir == "" {
		c.Hadoop.DatanodeDir = "/home/hduser/hdfs/datanode"
	}
	if c.Hadoop.ZookeeperDir == "" {
		c.Hadoop.ZookeeperDir = "/home/hduser/zookeeper"
	}
	if c.Hadoop.NamenodePort == 0 {
		c.Hadoop.NamenodePort = 9000
	}

	if c.SSH.User == "" {
		c.SSH.User = "hduser"
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	if c.SSH.KeyDir == "" {
		c.SSH.KeyDir = DefaultKeyDir()
	}
	if c.SSH.PasswordEnv == "" {
		c.SSH.PasswordEnv = DefaultPasswordEnv
	}
	if c.SSH.KnownHostsFile == "" && !c.SSH.InsecureIgnoreHostKey {
		c.SSH.KnownHostsFile = c.SSH.KeyDir + "/known_hosts"
	}
	if c.SSH.ConnectTimeout == 0 {
		c.SSH.ConnectTimeout = Duration(10 * time.Second)
	}
	if c.SSH.CommandTimeout == 0 {
		c.SSH.CommandTimeout = Duration(30 * time.Second)
	}

	if c.Trust.MaxConcurrent == 0 {
		c.Trust.MaxConcurrent = 5
	}
	if c.Trust.NodeTimeout == 0 {
		c.Trust.NodeTimeout = Duration(time.Minute)
	}
	if c.Trust.StagingDir == "" {
		c.Trust.StagingDir = "/tmp"
	}

	if c.Render.OutputDir == "" {
		c.Render.OutputDir = "./conf"
	}
}

// Validate checks field constraints after defaults are applied
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SSHPassword returns the first-contact password from the configured environment variable
func (c *Config) SSHPassword() string {
	if c.SSH.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.SSH.PasswordEnv)
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	rule := "identifier contains " + c.Topology.CoordinatorPattern
	if c.Topology.CoordinatorGroup != "" {
		rule = "member of group " + c.Topology.CoordinatorGroup
	}

	summary := fmt.Sprintf("Inventory: %s (%s)\n", orDash(c.Inventory.Path), orDash(c.Inventory.Format))
	summary += fmt.Sprintf("Coordinator: %s, Quorum target: %d\n", rule, c.Topology.QuorumSize)
	summary += fmt.Sprintf("SSH: %s port %d, Concurrency: %d, Node timeout: %s",
		c.SSH.User, c.SSH.Port, c.Trust.MaxConcurrent, c.Trust.NodeTimeout.Duration())

	return summary
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
