package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clustercfg/internal/adapter"
	"clustercfg/internal/config"
	"clustercfg/internal/inventory"
	"clustercfg/internal/keys"
	"clustercfg/internal/logging"
	"clustercfg/internal/metrics"
	"clustercfg/internal/render"
	"clustercfg/internal/repository/sqlite"
	"clustercfg/internal/service"
	"clustercfg/internal/topology"
	"clustercfg/internal/trust"

	"github.com/rs/zerolog/log"
)

var (
	cfg     *config.Config
	cfgPath string
)

// loadApp reads the config and configures logging for every subcommand
func loadApp() error {
	var err error
	if cfgFile != "" {
		cfg, cfgPath, err = config.LoadFromPath(cfgFile)
	} else {
		cfg, cfgPath, err = config.Load()
	}
	if err != nil {
		return err
	}

	if inventoryPath != "" {
		cfg.Inventory.Path = inventoryPath
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if err := logging.Setup(os.Stderr, level, jsonLogs); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	if cfgPath != "" {
		log.Debug().Str("path", cfgPath).Msg("Config loaded")
	} else {
		log.Debug().Msg("No config file found, using defaults")
	}
	return nil
}

func newSource() (*inventory.FileSource, error) {
	if cfg.Inventory.Path == "" {
		return nil, fmt.Errorf("no inventory configured: set inventory.path or pass --inventory")
	}
	return inventory.NewFileSource(cfg.Inventory.Path, cfg.Inventory.Format, cfg.Inventory.Group)
}

func newClassifier() topology.RoleClassifier {
	if cfg.Topology.CoordinatorGroup != "" {
		return topology.NewGroupClassifier(cfg.Topology.CoordinatorGroup)
	}
	return topology.NewSubstringClassifier(cfg.Topology.CoordinatorPattern)
}

func loadKey(id string) (*keys.KeyPair, error) {
	kp, _, err := keys.LoadOrGenerate(cfg.SSH.KeyDir, keys.Comment(cfg.SSH.User, id))
	return kp, err
}

// channelConfig maps the ssh section of the config onto the SSH channel
func channelConfig() adapter.SSHChannelConfig {
	identities := append([]string{filepath.Join(cfg.SSH.KeyDir, keys.PrivateKeyFile)}, cfg.SSH.IdentityFiles...)

	return adapter.SSHChannelConfig{
		User:                  cfg.SSH.User,
		Port:                  cfg.SSH.Port,
		IdentityFiles:         identities,
		Password:              cfg.SSHPassword(),
		UseAgent:              cfg.SSH.UseAgent,
		KnownHostsFile:        cfg.SSH.KnownHostsFile,
		InsecureIgnoreHostKey: cfg.SSH.InsecureIgnoreHostKey,
		ConnectionTimeout:     cfg.SSH.ConnectTimeout.Duration(),
		CommandTimeout:        cfg.SSH.CommandTimeout.Duration(),
		MaxRetries:            uint64(cfg.SSH.MaxRetries),
	}
}

// newEstablisher builds the SSH-backed trust establisher. The returned
// closer releases the SSH agent connection.
func newEstablisher(events *service.EventBus) (*trust.Establisher, func() error, error) {
	channel, err := adapter.NewSSHChannel(channelConfig())
	if err != nil {
		return nil, nil, err
	}

	establisher := trust.NewEstablisher(channel, trust.Config{
		MaxConcurrent: cfg.Trust.MaxConcurrent,
		NodeTimeout:   cfg.Trust.NodeTimeout.Duration(),
		StagingDir:    cfg.Trust.StagingDir,
	})
	establisher.SetEventPublisher(events)

	if cfg.Trust.ProbeReachability {
		probe := adapter.NewNmapProbe(cfg.SSH.Port)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if probe.Available(ctx) {
			establisher.SetProber(probe)
		} else {
			log.Warn().Msg("nmap not found, reachability probing disabled")
		}
	}

	return establisher, channel.Close, nil
}

func newRenderer() (*render.HadoopRenderer, error) {
	return render.NewHadoopRenderer(cfg.Render.OutputDir, render.HadoopSettings{
		NamenodeDir:  cfg.Hadoop.NamenodeDir,
		DatanodeDir:  cfg.Hadoop.DatanodeDir,
		ZookeeperDir: cfg.Hadoop.ZookeeperDir,
		NamenodePort: cfg.Hadoop.NamenodePort,
	})
}

// buildService wires a RunService for opts. The returned cleanup must be called.
func buildService(opts service.RunOptions) (*service.RunService, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn().Err(err).Msg("Cleanup failed")
			}
		}
	}

	src, err := newSource()
	if err != nil {
		return nil, cleanup, err
	}

	events := service.NewEventBus()
	deps := service.Deps{
		Source:        src,
		Classifier:    newClassifier(),
		QuorumSize:    cfg.Topology.QuorumSize,
		LoadKey:       loadKey,
		Events:        events,
		InventoryName: src.Path(),
		ResolveLocalID: func(fromInventory string) string {
			return cfg.ResolveLocalID(localID, fromInventory)
		},
	}

	if opts.Trust {
		establisher, closeChannel, err := newEstablisher(events)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, closeChannel)
		deps.Establisher = establisher
	}

	if opts.Verify {
		verifier := adapter.NewKeyVerifier(channelConfig(), cfg.Trust.MaxConcurrent)
		verifier.SetNodeTimeout(cfg.Trust.NodeTimeout.Duration())
		verifier.SetEventPublisher(events)
		deps.Verifier = verifier
	}

	if opts.Render {
		renderer, err := newRenderer()
		if err != nil {
			return nil, cleanup, err
		}
		deps.Materializer = renderer
	}

	if opts.Record {
		if cfg.Database.Path != "" {
			repo, err := sqlite.New(cfg.Database.Path)
			if err != nil {
				return nil, cleanup, err
			}
			closers = append(closers, repo.Close)
			deps.Ledger = repo
		}
		if cfg.Metrics.TextfilePath != "" {
			deps.Metrics = metrics.NewRegistry()
			deps.MetricsPath = cfg.Metrics.TextfilePath
		}
	}

	svc, err := service.NewRunService(deps)
	if err != nil {
		return nil, cleanup, err
	}
	return svc, cleanup, nil
}
