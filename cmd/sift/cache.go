package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/sift/internal/cache"
	"github.com/jward/sift/internal/config"
)

func newFindersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finders",
		Short: "List the available finders and their fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.load(cmd)
			if err != nil {
				return err
			}
			facs, err := loadFactories(cfg, log)
			if err != nil {
				return err
			}
			return writeFactories(cmd.OutOrStdout(), cfg.Output.Format, facs)
		},
	}
	return cmd
}

func newCacheCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached finder results",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", ".", "directory whose repository cache to use")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, c, err := a.openCacheFor(cmd, dir)
			if err != nil {
				return err
			}
			defer c.Close()

			entries, err := c.Backend().Entries()
			if err != nil {
				return err
			}
			return writeCacheEntries(cmd.OutOrStdout(), cfg.Output.Format, entries)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear [project]",
		Short: "Remove cached entries, for one project or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := a.openCacheFor(cmd, dir)
			if err != nil {
				return err
			}
			defer c.Close()

			project := ""
			if len(args) > 0 {
				project = args[0]
			}
			n, err := c.Backend().Clear(project)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
			return nil
		},
	}

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}

// openCacheFor loads config and opens the cache of the repository holding
// dir.
func (a *app) openCacheFor(cmd *cobra.Command, dir string) (*config.Config, *cache.Cache, error) {
	cfg, _, err := a.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	abs, err := resolveTargetDir(dir)
	if err != nil {
		return nil, nil, err
	}
	c, err := openCache(cfg, findRepoRoot(abs))
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}
