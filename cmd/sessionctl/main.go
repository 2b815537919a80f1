package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sessionctl/internal/chain"
	"sessionctl/internal/config"
	"sessionctl/internal/logging"
	"sessionctl/internal/project"
	"sessionctl/internal/session"
	"sessionctl/internal/tui"
)

const version = "1.0.0"

var (
	flagConfig string
	flagRoot   string
	flagTodos  string
)

func buildStore() (*session.Store, config.Config, error) {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, cfg, err
	}
	if flagRoot != "" {
		cfg.SessionsRoot = flagRoot
	}
	if flagTodos != "" {
		cfg.TodosRoot = flagTodos
	}
	store := session.NewStore(cfg.SessionsRoot, cfg.TodosRoot, logging.Default())
	store.BackupDirName = cfg.BackupDirName
	return store, cfg, nil
}

func main() {
	root := &cobra.Command{
		Use:     "sessionctl",
		Short:   "Inspect and repair session log chains",
		Version: version,
		Long: "sessionctl maintains collections of append-only session logs: it validates\n" +
			"parent-pointer chains, repairs broken links, deletes records together with\n" +
			"their tool pairings, splits sessions in two, resolves cross-file summaries,\n" +
			"and cleans up orphaned sidechain logs and todo files.",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path")
	root.PersistentFlags().StringVar(&flagRoot, "root", "", "sessions root (overrides config)")
	root.PersistentFlags().StringVar(&flagTodos, "todos", "", "todos root (overrides config)")

	root.AddCommand(
		projectsCmd(),
		sessionsCmd(),
		validateCmd(),
		repairCmd(),
		deleteCmd(),
		splitCmd(),
		summariesCmd(),
		orphansCmd(),
		mvCmd(),
		browseCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err.Error()))
		os.Exit(1)
	}
}

func projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects under the sessions root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := buildStore()
			if err != nil {
				return err
			}
			projects, err := store.Projects()
			if err != nil {
				return err
			}
			for _, p := range projects {
				fmt.Println(p)
			}
			return nil
		},
	}
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions <project>",
		Short: "List a project's sessions with chain status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := buildStore()
			if err != nil {
				return err
			}
			infos, err := project.NewScanner(store, cfg.MaxParallelReads).ListSessions(args[0])
			if err != nil {
				return err
			}
			fmt.Print(renderSessions(infos))
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <project> <session>",
		Short: "Check chain, tool pairing, and progress noise of one log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := buildStore()
			if err != nil {
				return err
			}
			records, err := store.ReadLog(store.SessionPath(args[0], args[1]))
			if err != nil {
				return err
			}
			report := chain.Validate(records)
			fmt.Print(renderReport(report))
			if !report.Valid {
				os.Exit(1)
			}
			return nil
		},
	}
}

func repairCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "repair <project> <session>",
		Short: "Auto-repair broken parent links in one log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := buildStore()
			if err != nil {
				return err
			}
			path := store.SessionPath(args[0], args[1])
			records, err := store.ReadLog(path)
			if err != nil {
				return err
			}
			repaired, n, err := chain.AutoRepair(records)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Println(renderOK("chain is intact, nothing to repair"))
				return nil
			}
			if dryRun {
				fmt.Println(renderOK(fmt.Sprintf("%d link(s) would be repaired", n)))
				return nil
			}
			if err := store.WriteLog(path, repaired); err != nil {
				return err
			}
			fmt.Println(renderOK(fmt.Sprintf("repaired %d link(s)", n)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	return cmd
}

func deleteCmd() *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "delete <project> <session> <id>",
		Short: "Delete a record plus its tool pairings, then repair the chain",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := buildStore()
			if err != nil {
				return err
			}
			kind := chain.TargetAny
			switch kindFlag {
			case "":
			case "record":
				kind = chain.TargetRecord
			case "snapshot":
				kind = chain.TargetSnapshot
			default:
				return fmt.Errorf("unknown kind %q (want record or snapshot)", kindFlag)
			}

			path := store.SessionPath(args[0], args[1])
			records, err := store.ReadLog(path)
			if err != nil {
				return err
			}
			res, found, err := chain.DeleteWithRepair(records, args[2], kind)
			if err != nil {
				return err
			}
			if !found {
				fmt.Println(renderError("not found"))
				os.Exit(1)
			}
			if err := store.WriteLog(path, res.Records); err != nil {
				return err
			}
			fmt.Println(renderOK(fmt.Sprintf("deleted 1 record, %d coupled, repaired %d link(s)",
				len(res.Coupled), res.Repaired)))
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "target kind when ids collide: record|snapshot")
	return cmd
}

func splitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <project> <session> <uuid>",
		Short: "Split a session in two at the given record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := buildStore()
			if err != nil {
				return err
			}
			res, err := project.NewSplitter(store).Split(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if !res.Success {
				fmt.Println(renderError(res.Error))
				os.Exit(1)
			}
			fmt.Println(renderOK(fmt.Sprintf("moved %d record(s) to new session %s",
				res.MovedRecords, res.NewSessionID)))
			if res.ContinuationDuplicated {
				fmt.Println(renderOK("continuation marker duplicated"))
			}
			return nil
		},
	}
}

func summariesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summaries <project>",
		Short: "Show which session displays which summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := buildStore()
			if err != nil {
				return err
			}
			buckets, err := project.NewResolver(store).ResolveSummaries(args[0])
			if err != nil {
				return err
			}
			fmt.Print(renderSummaries(buckets))
			return nil
		},
	}
}

func orphansCmd() *cobra.Command {
	var clean, todos bool
	cmd := &cobra.Command{
		Use:   "orphans <project>",
		Short: "Find (and optionally retire) auxiliary logs with no owning session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := buildStore()
			if err != nil {
				return err
			}
			j := project.NewJanitor(store, cfg.HandshakeThreshold)
			orphans, err := j.FindOrphans(args[0])
			if err != nil {
				return err
			}
			if todos {
				todoOrphans, err := j.FindOrphanTodos()
				if err != nil {
					return err
				}
				orphans = append(orphans, todoOrphans...)
			}
			fmt.Print(renderOrphans(orphans))
			if !clean || len(orphans) == 0 {
				return nil
			}
			report, err := j.Cleanup(orphans)
			if err != nil {
				return err
			}
			fmt.Println(renderOK(fmt.Sprintf("deleted %d, backed up %d, pruned %d folder(s)",
				report.Deleted, report.BackedUp, report.FoldersRemoved)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "retire the orphans found")
	cmd.Flags().BoolVar(&todos, "todos", false, "also scan the todos store")
	return cmd
}

func mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from-project> <to-project> <session>",
		Short: "Move a session log between projects",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := buildStore()
			if err != nil {
				return err
			}
			if err := store.MoveSession(args[0], args[1], args[2]); err != nil {
				fmt.Println(renderError(err.Error()))
				os.Exit(1)
			}
			fmt.Println(renderOK("session moved"))
			return nil
		},
	}
}

func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse <project>",
		Short: "Browse a project's sessions interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := buildStore()
			if err != nil {
				return err
			}
			infos, err := project.NewScanner(store, cfg.MaxParallelReads).ListSessions(args[0])
			if err != nil {
				return err
			}
			return tui.Run(store, args[0], infos)
		},
	}
}
