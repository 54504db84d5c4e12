package cli

import (
	"github.com/spf13/cobra"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <collection>",
		Short: "Save a new empty document and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := opts.server.Links.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printIDs(cmd, opts, []string{id})
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <collection> <id> <field>",
		Short: "Print a document's reference list",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := opts.server.Links.Show(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printIDs(cmd, opts, ids)
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <collection> <id> <field> <target-id>",
		Short: "Add a reference and its back-reference",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := opts.server.Links.Add(cmd.Context(), args[0], args[1], args[2], args[3])
			if err != nil {
				return err
			}
			return printIDs(cmd, opts, ids)
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <collection> <id> <field> <target-id>",
		Short: "Remove a reference and its back-reference",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := opts.server.Links.Remove(cmd.Context(), args[0], args[1], args[2], args[3])
			if err != nil {
				return err
			}
			return printIDs(cmd, opts, ids)
		},
	}
}

// NewSetCommand creates the set command.
func NewSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <collection> <id> <field> [target-id...]",
		Short: "Replace a reference list",
		Long: `Replace a document's reference list.

Every listed target gains a back-reference. Targets no longer listed keep theirs.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := opts.server.Links.Set(cmd.Context(), args[0], args[1], args[2], args[3:])
			if err != nil {
				return err
			}
			return printIDs(cmd, opts, ids)
		},
	}
}
