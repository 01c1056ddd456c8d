package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/vmindex/internal/errors"
)

var setStateCmd = &cobra.Command{
	Use:   "set-state <machine-id> <state>",
	Short: "Update a machine's state",
	Long: `Set-state checks the machine out, rewrites its state field, and
releases it. The rest of the record, including fields vmindex does not
understand, is carried through unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: runSetState,
}

func init() {
	rootCmd.AddCommand(setStateCmd)
}

func runSetState(cmd *cobra.Command, args []string) error {
	id, state := args[0], args[1]

	idx, cleanup, err := openIndex()
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := idx.Get(id)
	if err != nil {
		if errors.Is(err, errors.ErrMachineLocked) {
			return fmt.Errorf("machine %s is checked out by another process", id)
		}
		return err
	}
	if m == nil {
		return errors.NewNotFoundError("machine", id)
	}
	defer idx.Release(m)

	m.State = state
	updated, err := idx.Set(m)
	if err != nil {
		return err
	}
	defer idx.Release(updated)

	fmt.Printf("%s: state is now %q\n", updated.ID(), updated.State)
	return nil
}
