// Command drover is the CLI entry point: it reads declarative playbooks
// and drives target hosts toward the described state over SSH or a local
// transport.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/pkg/inventory"
	"github.com/drover-sh/drover/pkg/library"
	"github.com/drover-sh/drover/pkg/output"
	"github.com/drover-sh/drover/pkg/types"
)

var (
	version = "0.3.0"
	commit  = "unknown"
)

// Exit codes: 0 all hosts ok, 1 any host failed, 2 usage error, 3
// inventory empty after filters.
const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitInventory = 3
)

type cliFlags struct {
	playbooks   []string
	inventory   string
	roles       []string
	modules     []string
	user        string
	port        int
	threads     int
	tags        []string
	limitHosts  []string
	limitGroups []string
	batchSize   int
	verbose     int
}

func main() {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "drover",
		Short:         "Playbook-driven configuration management and remote execution",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringArrayVar(&flags.playbooks, "playbook", nil, "playbook file (repeatable)")
	root.PersistentFlags().StringVar(&flags.inventory, "inventory", "", "inventory file")
	root.PersistentFlags().StringArrayVar(&flags.roles, "roles", nil, "role search path (repeatable)")
	root.PersistentFlags().StringArrayVar(&flags.modules, "modules", nil, "module search path (repeatable)")
	root.PersistentFlags().StringVar(&flags.user, "user", os.Getenv("USER"), "default remote user")
	root.PersistentFlags().IntVar(&flags.port, "port", 22, "default SSH port")
	root.PersistentFlags().IntVar(&flags.threads, "threads", 1, "worker pool size")
	root.PersistentFlags().StringSliceVar(&flags.tags, "tags", nil, "run only tasks with these tags")
	root.PersistentFlags().StringSliceVar(&flags.limitHosts, "limit-hosts", nil, "restrict the run to these hosts")
	root.PersistentFlags().StringSliceVar(&flags.limitGroups, "limit-groups", nil, "restrict the run to these groups")
	root.PersistentFlags().IntVar(&flags.batchSize, "batch-size", 0, "hosts per batch (0 = all)")
	root.PersistentFlags().CountVarP(&flags.verbose, "verbose", "v", "increase diagnostic verbosity")

	root.AddCommand(
		runCommand(flags, "local", "Apply playbooks on the local host", library.ConnectionModeLocal, false),
		runCommand(flags, "ssh", "Apply playbooks over SSH", library.ConnectionModeSSH, false),
		runCommand(flags, "check-local", "Dry-run playbooks on the local host", library.ConnectionModeLocal, true),
		runCommand(flags, "check-ssh", "Dry-run playbooks over SSH", library.ConnectionModeSSH, true),
		showCommand(flags),
		versionCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitUsage)
	}
}

func setupLogging(verbose int) {
	level := zerolog.WarnLevel
	switch {
	case verbose >= 2:
		level = zerolog.DebugLevel
	case verbose == 1:
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

func runCommand(flags *cliFlags, name, short string, mode library.ConnectionMode, check bool) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging(flags.verbose)

			if len(flags.playbooks) == 0 {
				fmt.Fprintln(os.Stderr, "error: at least one --playbook is required")
				os.Exit(exitUsage)
			}

			config := library.NewConfig().
				User(flags.user).
				Port(flags.port).
				Threads(flags.threads)
			config.PlaybookPaths = flags.playbooks
			config.RolePaths = flags.roles
			config.ModulePaths = flags.modules
			config.Tags = flags.tags
			config.LimitHosts = flags.limitHosts
			config.LimitGroups = flags.limitGroups
			config.BatchSize = flags.batchSize
			config.Verbosity = flags.verbose
			config.ConnectionMode = mode
			config.CheckMode = check
			if flags.inventory != "" {
				config.Inventory(flags.inventory)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := library.NewRunner(config).
				WithOutputHandler(output.NewConsoleHandler(flags.verbose > 0))

			summary, err := runner.Run(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)

				var invErr *types.InventoryError
				if errors.Is(err, types.ErrEmptyInventory) || errors.As(err, &invErr) {
					os.Exit(exitInventory)
				}
				var parseErr *types.PlaybookError
				if errors.As(err, &parseErr) || summary == nil {
					os.Exit(exitUsage)
				}
			}

			if summary != nil {
				fmt.Printf("\nplays: %d  roles: %d  tasks: %d  changed: %d  failed: %d  skipped: %d\n",
					summary.Plays, summary.Roles, summary.Tasks,
					summary.Changes, summary.Failed, summary.Skipped)
				if summary.Failed > 0 || err != nil {
					os.Exit(exitFailed)
				}
			}
			os.Exit(exitOK)
		},
	}
}

func showCommand(flags *cliFlags) *cobra.Command {
	var groupsMode bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show inventory hosts or groups",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging(flags.verbose)

			inv := inventory.New()
			if flags.inventory != "" {
				if err := inv.Load(flags.inventory); err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
					os.Exit(exitInventory)
				}
			}

			if groupsMode {
				showGroups(inv)
			} else {
				showHosts(inv)
			}
			os.Exit(exitOK)
		},
	}
	cmd.Flags().BoolVar(&groupsMode, "groups", false, "show groups instead of hosts")
	return cmd
}

func showHosts(inv *inventory.Inventory) {
	for _, name := range inv.HostNames() {
		fmt.Println(name)
	}
}

func showGroups(inv *inventory.Inventory) {
	for _, name := range inv.GroupNames() {
		group, _ := inv.GetGroup(name)
		fmt.Printf("%s (%d hosts)\n", name, len(group.Hosts))
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("drover %s (%s)\n", version, commit)
		},
	}
}
