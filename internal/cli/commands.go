package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheEleventhAvatar/pocket/internal/app"
)

// withApp runs fn with a freshly opened App and closes it afterwards.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(a *app.App, f *OutputFormatter) error) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a, opts.formatter(cmd))
}

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <content>...",
		Short: "Record a new transcript",
		Long: `Record a new unsynced transcript. Multiple arguments are joined with spaces.

Example:
  pocket add "call the plumber at noon"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app.App, f *OutputFormatter) error {
				t, err := a.AddTranscript(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(t)
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transcripts, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app.App, f *OutputFormatter) error {
				ts, err := a.GetTranscripts(cmd.Context())
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(transcriptList(ts))
			})
		},
	}
}

// NewMarkSyncedCommand creates the mark-synced command.
func NewMarkSyncedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-synced <id>",
		Short: "Mark a transcript synced without delivering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return opts.formatter(cmd).Fail(err)
			}
			return withApp(opts, cmd, func(a *app.App, f *OutputFormatter) error {
				if err := a.MarkSynced(cmd.Context(), id); err != nil {
					return f.Fail(err)
				}
				return f.Success(markView{ID: id})
			})
		},
	}
}

// NewCountCommand creates the count command.
func NewCountCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of unsynced transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app.App, f *OutputFormatter) error {
				n, err := a.GetUnsyncedCount(cmd.Context())
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(countView{Unsynced: n})
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the device link status",
		Long: `Print the device link status for this process.

The link always starts disconnected, so outside of "pocket run" this reports
a fresh link.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app.App, f *OutputFormatter) error {
				return f.Success(deviceView(a.GetDeviceStatus()))
			})
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync passes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app.App, f *OutputFormatter) error {
				ps, err := a.RecentPasses(cmd.Context(), limit)
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(passList(ps))
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum passes to show (0 = default)")
	return cmd
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	var connected bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass now",
		Long: `Run one reconciliation pass against the simulated device.

The device link starts disconnected in every process, so without --connected
the pass is skipped.

Example:
  pocket sync --connected`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app.App, f *OutputFormatter) error {
				if connected && !a.GetDeviceStatus().Connected {
					a.ToggleDeviceConnection()
				}
				r, err := a.SimulateSync(cmd.Context())
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(syncView(r))
			})
		},
	}

	cmd.Flags().BoolVar(&connected, "connected", false, "connect the device before syncing")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &app.CommandError{
			Code:    app.CodeInvalidArgument,
			Message: fmt.Sprintf("invalid transcript id %q", s),
			Err:     err,
		}
	}
	return id, nil
}
