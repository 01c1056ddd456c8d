package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/vmindex/internal/config"
	"github.com/kestrelworks/vmindex/internal/index"
)

var (
	listFilter string
	listWatch  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the machines in the index",
	Long: `List every machine in the shared index. The listing is a snapshot:
it never checks machines out, so it can run alongside other holders.

With --watch, the listing re-renders whenever another process changes
the index, until interrupted.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listFilter, "filter", "", "only show machines whose name matches this glob (e.g. 'web-*')")
	listCmd.Flags().BoolVar(&listWatch, "watch", false, "keep running and re-render when the index changes")
}

func runList(cmd *cobra.Command, args []string) error {
	idx, cleanup, err := openIndex()
	if err != nil {
		return err
	}
	defer cleanup()

	styled := useColor(config.Get().Output.Color)

	render := func() error {
		machines, err := idx.All()
		if err != nil {
			return err
		}
		machines, err = filterMachines(machines, listFilter)
		if err != nil {
			return err
		}
		fmt.Print(renderMachineTable(machines, styled))
		return nil
	}

	if err := render(); err != nil {
		return err
	}
	if !listWatch {
		return nil
	}

	watcher, err := index.NewWatcher(idx.DataDir(), func() {
		fmt.Println()
		if err := render(); err != nil {
			fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
		}
	})
	if err != nil {
		return fmt.Errorf("watch index: %w", err)
	}
	watcher.Start()
	defer watcher.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return nil
}
