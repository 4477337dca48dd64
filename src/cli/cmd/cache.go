package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/cache"
)

var (
	cacheScope string
	cacheDir   string
	cacheSHA   string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and move build-layer cache entries",
}

var cacheKeyCmd = &cobra.Command{
	Use:   "key",
	Short: "Print the exact cache key and what a restore would use",
	RunE:  runCacheKey,
}

var cacheRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the best cache entry for a scope into a directory",
	RunE:  runCacheRestore,
}

var cacheSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a directory as the cache entry for a scope and commit",
	RunE:  runCacheSave,
}

func init() {
	for _, c := range []*cobra.Command{cacheKeyCmd, cacheRestoreCmd, cacheSaveCmd} {
		c.Flags().StringVar(&cacheScope, "scope", "", "cache scope, e.g. buildx-standard (required)")
		c.Flags().StringVar(&cacheSHA, "sha", "", "commit SHA (default: detected)")
		_ = c.MarkFlagRequired("scope")
		cacheCmd.AddCommand(c)
	}
	cacheRestoreCmd.Flags().StringVar(&cacheDir, "dir", "", "destination directory (required)")
	cacheSaveCmd.Flags().StringVar(&cacheDir, "dir", "", "source directory (required)")
	_ = cacheRestoreCmd.MarkFlagRequired("dir")
	_ = cacheSaveCmd.MarkFlagRequired("dir")

	rootCmd.AddCommand(cacheCmd)
}

func cacheSetup(cmd *cobra.Command) (*cache.Manager, string, error) {
	rootDir, err := rootDirFromArgs(nil)
	if err != nil {
		return nil, "", err
	}
	ctx := cmd.Context()

	commit := cacheSHA
	if commit == "" {
		flags := triggerFlags{}
		t, err := flags.detect(rootDir)
		if err != nil {
			return nil, "", err
		}
		commit = t.Commit
	}

	env, err := resolveEnvironment(ctx)
	if err != nil {
		return nil, "", err
	}
	mgr, err := newCacheManager(ctx, rootDir, env)
	if err != nil {
		return nil, "", err
	}
	if mgr == nil {
		return nil, "", errors.New("cache: no backend configured")
	}
	return mgr, commit, nil
}

func runCacheKey(cmd *cobra.Command, _ []string) error {
	mgr, commit, err := cacheSetup(cmd)
	if err != nil {
		return err
	}
	hit, err := mgr.Lookup(cmd.Context(), cacheScope, commit)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "key      %s\n", mgr.Key(cacheScope, commit))
	fmt.Fprintf(w, "prefix   %s\n", cache.Prefix(mgr.OS, cacheScope))
	fmt.Fprintf(w, "restore  %s\n", hit)
	return nil
}

func runCacheRestore(cmd *cobra.Command, _ []string) error {
	mgr, commit, err := cacheSetup(cmd)
	if err != nil {
		return err
	}
	hit, err := mgr.Restore(cmd.Context(), cacheScope, commit, cacheDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cache %s\n", hit)
	return nil
}

func runCacheSave(cmd *cobra.Command, _ []string) error {
	mgr, commit, err := cacheSetup(cmd)
	if err != nil {
		return err
	}
	key, err := mgr.Save(cmd.Context(), cacheScope, commit, cacheDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (backend %s)\n", key, cfg.Cache.Backend)
	return nil
}
