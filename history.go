package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phobologic/surveyor/internal/artifact"
	"github.com/phobologic/surveyor/internal/behavior"
	"github.com/phobologic/surveyor/internal/model"
	"github.com/phobologic/surveyor/internal/output"
	"github.com/phobologic/surveyor/internal/storage"
)

func newListCmd(g *globals) *cobra.Command {
	var (
		limit int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List stored scans of a project, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root, cfg, err := g.project(args)
			if err != nil {
				return err
			}
			db, err := openDB(ctx, root, cfg, g.logger(cfg))
			if err != nil {
				return err
			}
			defer db.Close()

			project := root
			if all {
				project = ""
			}
			records, err := storage.NewScanRepository(db).List(ctx, project, limit)
			if err != nil {
				return err
			}
			output.New(g.stdout).Scans(records)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of scans to list (0 for all)")
	cmd.Flags().BoolVar(&all, "all", false, "list scans of every project in the database")
	return cmd
}

func newShowCmd(g *globals) *cobra.Command {
	var (
		path         string
		format       string
		level        string
		fromArtifact bool
	)
	cmd := &cobra.Command{
		Use:   "show <scan-id|latest>",
		Short: "Print a stored scan",
		Long: `Print a stored scan from the scan database. "latest" selects the most recent
scan of the project. With --artifact the argument is an object key in the
configured artifact bucket instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := output.ParseLevel(level)
			if err != nil {
				return err
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			res, err := g.loadScan(cmd.Context(), path, args[0], fromArtifact)
			if err != nil {
				return err
			}
			return render(g.stdout, res, format, lvl)
		},
	}
	cmd.Flags().StringVar(&path, "path", ".", "project root")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or toon")
	cmd.Flags().StringVar(&level, "level", string(output.LevelAll), "summary tier for text output: l0, l1, l2 or all")
	cmd.Flags().BoolVar(&fromArtifact, "artifact", false, "fetch the scan from the artifact bucket by object key")
	return cmd
}

func (g *globals) loadScan(ctx context.Context, path, id string, fromArtifact bool) (*model.ScanResult, error) {
	root, cfg, err := g.project([]string{path})
	if err != nil {
		return nil, err
	}
	logger := g.logger(cfg)

	if fromArtifact {
		if !cfg.Artifacts.Enabled() {
			return nil, errors.New("--artifact needs artifacts.endpoint and artifacts.bucket")
		}
		store, err := artifact.New(ctx, cfg.Artifacts, logger)
		if err != nil {
			return nil, err
		}
		return store.Fetch(ctx, id)
	}

	db, err := openDB(ctx, root, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	repo := storage.NewScanRepository(db)
	if id == "latest" {
		res, err := repo.Latest(ctx, root)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("no scans recorded for %s", root)
		}
		return res, err
	}
	return repo.Get(ctx, id)
}

func newDeleteCmd(g *globals) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "delete <scan-id>",
		Short: "Delete a stored scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root, cfg, err := g.project([]string{path})
			if err != nil {
				return err
			}
			db, err := openDB(ctx, root, cfg, g.logger(cfg))
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.NewScanRepository(db).Delete(ctx, args[0]); err != nil {
				return err
			}
			output.New(g.stderr).Success("deleted scan " + args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", ".", "project root")
	return cmd
}

func newCacheCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the behavioral analysis cache",
	}

	var path string
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Drop cache entries written by another cache version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			root, cfg, err := g.project([]string{path})
			if err != nil {
				return err
			}
			db, err := openDB(ctx, root, cfg, g.logger(cfg))
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := storage.NewAnalysisCache(db).Prune(ctx, behavior.CacheVersion)
			if err != nil {
				return err
			}
			output.New(g.stderr).Success(fmt.Sprintf("pruned %d cache entries", n))
			return nil
		},
	}
	prune.Flags().StringVar(&path, "path", ".", "project root")
	cmd.AddCommand(prune)
	return cmd
}
