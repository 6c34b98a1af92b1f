package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TheEleventhAvatar/pocket/internal/app"
	"github.com/TheEleventhAvatar/pocket/internal/scheduler"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var connected bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a session with background sync",
		Long: `Start a long-running session. The scheduler runs a sync pass every
sync.interval while commands are read line by line from stdin:

  add <content>   record a transcript
  list            list transcripts
  mark <id>       mark a transcript synced
  sync            run one pass now
  status          show the device link
  count           show the unsynced count
  toggle          connect or disconnect the device
  history         show recent passes
  quit            end the session

The session also ends on EOF, SIGINT or SIGTERM.

Example:
  pocket run --db ./pocket.db --connected`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, connected, cmd)
		},
	}

	cmd.Flags().BoolVar(&connected, "connected", false, "start with the device connected")
	return cmd
}

func runSession(opts *RootOptions, connected bool, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error closing app", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if connected {
		a.ToggleDeviceConnection()
	}

	f := opts.formatter(cmd)
	if opts.Verbose {
		sub := a.Status().Subscribe()
		defer a.Status().Unsubscribe(sub)
		go reportStatus(f, sub)
	}

	if err := a.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start scheduler", err)
	}
	slog.Info("session started", "db", a.Config().Database, "interval", a.Scheduler().Interval())

	s := &session{app: a, out: f}
	if err := s.serve(ctx, cmd.InOrStdin()); err != nil {
		return WrapExitError(ExitFailure, "session error", err)
	}

	slog.Info("session ended")
	return nil
}

// reportStatus prints scheduled pass results until sub is closed.
func reportStatus(f *OutputFormatter, sub *scheduler.Subscription) {
	for st := range sub.C {
		if st.Err != nil {
			f.VerboseLog("scheduled pass failed: %v", st.Err)
			continue
		}
		f.VerboseLog("scheduled pass: %s (unsynced=%d)", syncView(st.Result), st.Unsynced)
	}
}

// session executes interactive commands against one App.
type session struct {
	app *app.App
	out *OutputFormatter
}

// serve reads lines from r until quit, EOF or ctx cancellation.
// Command errors are reported and the session continues.
func (s *session) serve(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			quit, err := s.execute(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

// execute runs one command line. Returns quit=true for "quit"/"exit".
// The returned error is only for output failures.
func (s *session) execute(ctx context.Context, line string) (quit bool, err error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "":
		return false, nil

	case "quit", "exit":
		return true, nil

	case "add":
		t, err := s.app.AddTranscript(ctx, rest)
		return false, s.respond(t, err)

	case "list":
		ts, err := s.app.GetTranscripts(ctx)
		return false, s.respond(transcriptList(ts), err)

	case "mark":
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return false, s.respond(nil, &app.CommandError{
				Code:    app.CodeInvalidArgument,
				Message: fmt.Sprintf("usage: mark <id> (got %q)", rest),
			})
		}
		err = s.app.MarkSynced(ctx, id)
		return false, s.respond(markView{ID: id}, err)

	case "sync":
		r, err := s.app.SimulateSync(ctx)
		return false, s.respond(syncView(r), err)

	case "status":
		return false, s.respond(deviceView(s.app.GetDeviceStatus()), nil)

	case "count":
		n, err := s.app.GetUnsyncedCount(ctx)
		return false, s.respond(countView{Unsynced: n}, err)

	case "toggle":
		s.app.ToggleDeviceConnection()
		return false, s.respond(deviceView(s.app.GetDeviceStatus()), nil)

	case "history":
		ps, err := s.app.RecentPasses(ctx, 0)
		return false, s.respond(passList(ps), err)

	default:
		return false, s.respond(nil, &app.CommandError{
			Code:    app.CodeInvalidArgument,
			Message: fmt.Sprintf("unknown command %q", name),
		})
	}
}

// respond writes data, or the command error if err is set.
func (s *session) respond(data any, err error) error {
	if err == nil {
		return s.out.Success(data)
	}
	if failErr := s.out.Fail(err); !IsReported(failErr) {
		return failErr
	}
	return nil
}
