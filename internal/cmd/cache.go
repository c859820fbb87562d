package cmd

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/snowball-gateway/pkg/snowball"
	"github.com/spf13/cobra"
)

var errCacheDisabled = errors.New("response cache is disabled (set XUEQIU_CACHE_ENABLED=true)")

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the Redis response cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge [operation]",
	Short: "Delete cached payloads of one operation, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCachePurge,
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	var operation string
	if len(args) == 1 {
		operation = args[0]
		if _, ok := snowball.Lookup(operation); !ok {
			return fmt.Errorf("%w: %q", snowball.ErrUnknownOperation, operation)
		}
	}
	if !cfg.Cache.Enabled {
		return errCacheDisabled
	}

	stack, err := bootstrap(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	removed, err := stack.cache.Purge(cmd.Context(), operation)
	if err != nil {
		return err
	}

	scope := operation
	if scope == "" {
		scope = "all operations"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached payload(s) for %s\n", removed, scope)
	return err
}
