// Package cachecmd exposes read-only inspection of the completion cache.
// The executor never deletes entries; clearing the cache is an explicit
// filesystem operation left to the operator.
package cachecmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zerotouch/stagecraft/internal/cache"
	"github.com/zerotouch/stagecraft/internal/repo"
)

// Cmd represents the `stagecraft cache` command group.
var Cmd = &cobra.Command{
	Use:           "cache",
	Short:         "Inspect stage completion state",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var lsCmd = &cobra.Command{
	Use:           "ls",
	Short:         "List cached stage completions",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		env := map[string]string{repo.EnvRoot: os.Getenv(repo.EnvRoot)}
		root, err := repo.Root(env)
		if err != nil {
			return err
		}
		store := cache.New(cache.DefaultPath(root))
		entries, err := store.Entries()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stdout, "cache is empty")
			return nil
		}
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\n", k, entries[k])
		}
		return w.Flush()
	},
}

func init() {
	Cmd.AddCommand(lsCmd)
}
