package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/vmindex/internal/errors"
)

var forgetCmd = &cobra.Command{
	Use:   "forget <machine-id>",
	Short: "Remove a machine from the index",
	Long: `Forget checks the machine out and deletes its record. The machine
itself is untouched; only the registry stops tracking it.`,
	Args: cobra.ExactArgs(1),
	RunE: runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}

func runForget(cmd *cobra.Command, args []string) error {
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

	if err := idx.Delete(m); err != nil {
		idx.Release(m)
		return err
	}

	fmt.Printf("forgot %s (%s)\n", m.ID(), m.Name)
	return nil
}
