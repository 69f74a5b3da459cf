package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"clustercfg/internal/codec"
	"clustercfg/internal/domain"
	"clustercfg/internal/keys"
	"clustercfg/internal/repository/sqlite"
	"clustercfg/internal/service"
	"clustercfg/internal/watcher"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var planFormat string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Classify the inventory and print the derived plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, ok := codec.ExporterFor(planFormat)
		if !ok {
			return fmt.Errorf("unknown output format %q (want yaml, json or ansible)", planFormat)
		}

		report, err := execute(service.RunOptions{})
		if err != nil {
			return err
		}
		return exporter.Export(report.Document(), cmd.OutOrStdout())
	},
}

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Push the coordinator's public key to every node",
	Long: `trust appends this node's public key to ~/.ssh/authorized_keys on every
member of the inventory. It does nothing unless this node is the coordinator.
Nodes that already hold the key are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := execute(service.RunOptions{Trust: true, Record: true})
		if err != nil {
			return err
		}
		return reportTrust(cmd.OutOrStdout(), report)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every node accepts a login with the coordinator key alone",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := execute(service.RunOptions{Verify: true})
		if err != nil {
			return err
		}
		if report.Checks == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Verify skipped: %s is not the coordinator (%s)\n",
				report.Record.LocalID, report.Record.Coordinator)
			return nil
		}
		return reportChecks(cmd.OutOrStdout(), report)
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write slaves, regionservers and the *-site.xml files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := execute(service.RunOptions{Render: true, Record: true})
		if err != nil {
			return err
		}
		printRendered(cmd.OutOrStdout(), report)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan, establish trust and render in one pass",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := execute(service.FullRun)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printRendered(out, report)
		return errors.Join(reportTrust(out, report), reportChecks(out, report))
	},
}

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run once, then again whenever the inventory file changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		svc, cleanup, err := buildService(service.FullRun)
		defer cleanup()
		if err != nil {
			return err
		}

		runOnce := func() {
			if _, err := svc.Run(ctx, service.FullRun); err != nil {
				log.Error().Err(err).Msg("Run failed, waiting for the next inventory change")
			}
		}

		runOnce()
		return watcher.New(cfg.Inventory.Path, runOnce).WithDebounce(watchDebounce).Watch(ctx)
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create this node's key pair if missing and print its public key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := cfg.ResolveLocalID(localID, "")
		kp, created, err := keys.LoadOrGenerate(cfg.SSH.KeyDir, keys.Comment(cfg.SSH.User, id))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if created {
			fmt.Fprintf(out, "Generated %s\n", kp.PrivatePath)
		}
		fmt.Fprintf(out, "Fingerprint: %s\n", kp.Fingerprint())
		_, err = out.Write(kp.AuthorizedKey())
		return err
	},
}

var (
	historyLimit int
	historyPrune int
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or show the trust outcomes of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Path == "" {
			return fmt.Errorf("no run ledger configured: set database.path")
		}

		repo, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer repo.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if historyPrune > 0 {
			removed, err := repo.Prune(ctx, historyPrune)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %d runs\n", removed)
			return nil
		}

		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			run, err := repo.GetRun(ctx, id)
			if err != nil {
				return err
			}
			printRun(out, run)
			return nil
		}

		runs, err := repo.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tCOORDINATOR\tNODES\tREPLICATION\tQUORUM")
		for _, r := range runs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status,
				r.Coordinator, r.MembershipSize, r.Replication, r.Quorum)
		}
		return tw.Flush()
	},
}

func init() {
	planCmd.Flags().StringVarP(&planFormat, "output", "o", "yaml", "output format: yaml, json or ansible")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "wait this long after the last change before running")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
	historyCmd.Flags().IntVar(&historyPrune, "prune", 0, "delete all but the newest N runs")
}

// execute builds a service for opts and performs a single run
func execute(opts service.RunOptions) (*service.RunReport, error) {
	ctx, stop := signalContext()
	defer stop()

	svc, cleanup, err := buildService(opts)
	defer cleanup()
	if err != nil {
		return nil, err
	}
	return svc.Run(ctx, opts)
}

// reportTrust prints the per-node outcome table and fails if any node failed
func reportTrust(out io.Writer, report *service.RunReport) error {
	if report.Trust == nil {
		fmt.Fprintf(out, "Trust skipped: %s is not the coordinator (%s)\n",
			report.Record.LocalID, report.Record.Coordinator)
		return nil
	}

	printTrust(out, report.Trust.Nodes)

	failed := report.Trust.Failures()
	if len(failed) > 0 {
		return fmt.Errorf("trust failed for %d of %d nodes", len(failed), len(report.Trust.Nodes))
	}
	return nil
}

// reportChecks prints the verification table and fails if any node refused the key
func reportChecks(out io.Writer, report *service.RunReport) error {
	if report.Checks == nil {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tADDRESS\tLOGIN\tHOSTNAME\tJAVA\tERROR")
	for _, c := range report.Checks {
		login := "ok"
		if !c.OK {
			login = "refused"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.NodeID, c.Address, login, c.Hostname(), c.Facts["java"], c.ErrorMessage())
	}
	tw.Flush()

	if failed := domain.CheckFailures(report.Checks); len(failed) > 0 {
		return fmt.Errorf("key login failed for %d of %d nodes", len(failed), len(report.Checks))
	}
	return nil
}

func printTrust(out io.Writer, nodes []domain.NodeTrust) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tADDRESS\tSTATE\tTOOK\tERROR")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			n.NodeID, n.Address, n.State, n.Duration.Round(time.Millisecond), n.ErrorMessage())
	}
	tw.Flush()
}

func printRendered(out io.Writer, report *service.RunReport) {
	for _, r := range report.Rendered {
		fmt.Fprintf(out, "%-9s %s\n", r.Status, r.Path)
	}
}

func printRun(out io.Writer, run *domain.RunRecord) {
	fmt.Fprintf(out, "Run %d: %s\n", run.ID, run.Status)
	fmt.Fprintf(out, "  Started:     %s (%s)\n", run.StartedAt.Local().Format(time.DateTime), run.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "  Inventory:   %s\n", run.Inventory)
	fmt.Fprintf(out, "  Local ID:    %s\n", run.LocalID)
	fmt.Fprintf(out, "  Coordinator: %s\n", run.Coordinator)
	fmt.Fprintf(out, "  Replication: %d\n", run.Replication)
	fmt.Fprintf(out, "  Quorum:      %s (target %d)\n", run.Quorum, run.QuorumTarget)
	if run.Warning != "" {
		fmt.Fprintf(out, "  Warning:     %s\n", run.Warning)
	}
	if run.Error != "" {
		fmt.Fprintf(out, "  Error:       %s\n", run.Error)
	}
	if len(run.Trust) > 0 {
		fmt.Fprintln(out)
		printTrust(out, run.Trust)
	} else if run.TrustSkipped {
		fmt.Fprintln(out, "  Trust:       skipped")
	}
}
