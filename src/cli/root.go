package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"syndrlinks/src/server"
	"syndrlinks/src/settings"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Settings  *settings.Arguments
	Relations []string
	Format    string // "json" | "text"

	server *server.Server
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the syndrlinks CLI.
func NewRootCommand(args *settings.Arguments) *cobra.Command {
	opts := &RootOptions{Settings: args}

	cmd := &cobra.Command{
		Use:   "syndrlinks",
		Short: "Maintain many-to-many reference lists on both sides",
		Long: `Maintain many-to-many reference lists between document collections.

Every change made to a persisted document's reference list is written to the
referenced documents first and then to the document itself.

Example:
  syndrlinks --relation people:preferences create people
  syndrlinks --relation people:preferences add people <person-id> preference_ids <preference-id>`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  opts.open,
		PersistentPostRunE: opts.close,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&args.ConfigFile, "config", "", "path to a YAML config file")
	flags.StringVar(&args.Backend, "backend", settings.BackendEmbedded, "storage backend (embedded|mongo)")
	flags.StringVar(&args.DataDir, "datadir", "./datafiles", "directory of the embedded backend's data files")
	flags.StringVar(&args.MongoURI, "mongo-uri", "", "MongoDB connection string")
	flags.StringVar(&args.Database, "database", "", "MongoDB database name")
	flags.BoolVar(&args.ObjectIDs, "object-ids", false, "store ids and reference keys as ObjectIDs (mongo backend)")
	flags.IntVar(&args.JournalRetentionDays, "journal-retention", 0, "days of journal files to keep (0 keeps all)")
	flags.StringSliceVar(&opts.Relations, "relation", nil, "relation as owner:target or owner:target:key:inverse_key (repeatable)")
	flags.BoolVarP(&args.Verbose, "verbose", "v", false, "verbose logging")
	flags.BoolVar(&args.Debug, "debug", false, "development logging")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))

	return cmd
}

func (opts *RootOptions) open(cmd *cobra.Command, _ []string) error {
	if !slices.Contains(ValidFormats, opts.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
	}

	args := opts.Settings
	for _, s := range opts.Relations {
		rel, err := settings.ParseRelation(s)
		if err != nil {
			return err
		}
		args.Relations = append(args.Relations, rel)
	}
	if args.ConfigFile != "" {
		if err := args.LoadConfigFile(args.ConfigFile, cmd.Flags().Changed); err != nil {
			return err
		}
	}

	logger, err := server.NewLogger(args)
	if err != nil {
		return err
	}
	srv, err := server.InitServer(cmd.Context(), args, logger)
	if err != nil {
		return err
	}
	opts.server = srv
	return nil
}

func (opts *RootOptions) close(cmd *cobra.Command, _ []string) error {
	if opts.server == nil {
		return nil
	}
	return opts.server.Stop(cmd.Context())
}

// printIDs writes ids one per line, or as a JSON array.
func printIDs(cmd *cobra.Command, opts *RootOptions, ids []string) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if ids == nil {
			ids = []string{}
		}
		return json.NewEncoder(out).Encode(ids)
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := fmt.Fprintln(out, strings.Join(ids, "\n"))
	return err
}
