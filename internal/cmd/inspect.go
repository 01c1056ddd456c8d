package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/vmindex/internal/errors"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <machine-id>",
	Short: "Show one machine's record",
	Long: `Inspect checks a machine out of the index, prints its record, and
releases it. If another process currently holds the machine, the
command reports it as busy.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	idx, cleanup, err := openIndex()
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := idx.Get(args[0])
	if err != nil {
		if errors.Is(err, errors.ErrMachineLocked) {
			return fmt.Errorf("machine %s is checked out by another process", args[0])
		}
		return err
	}
	if m == nil {
		return errors.NewNotFoundError("machine", args[0])
	}
	defer idx.Release(m)

	fmt.Printf("ID:               %s\n", m.ID())
	fmt.Printf("Name:             %s\n", m.Name)
	fmt.Printf("Provider:         %s\n", m.Provider)
	fmt.Printf("State:            %s\n", m.State)
	fmt.Printf("Vagrantfile path: %s\n", m.VagrantfilePath)
	fmt.Printf("Updated at:       %s\n", m.UpdatedAt())

	extra := m.ExtraFields()
	if len(extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("Extra fields:")
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, string(extra[k]))
	}
	return nil
}
