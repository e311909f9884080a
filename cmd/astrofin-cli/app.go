package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"astrofin/internal/api"
	"astrofin/internal/clock"
	"astrofin/internal/config"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
	"astrofin/internal/tui"
	"astrofin/internal/views"
)

var (
	errNotLoggedIn    = errors.New("not logged in; run `astrofin-cli login`")
	errSessionExpired = errors.New("session expired; run `astrofin-cli login`")
)

// cmdError carries the sentence shown to the operator and the error
// behind it.
type cmdError struct {
	msg string
	err error
}

func (e *cmdError) Error() string { return e.msg }
func (e *cmdError) Unwrap() error { return e.err }

type app struct {
	ctx    context.Context
	cfg    *config.Config
	client *api.Client
	logger *applog.Logger
	clock  clock.Clock

	in     *bufio.Reader
	tty    int // stdin descriptor when it is a terminal, else -1
	out    io.Writer
	errOut io.Writer
	render *tui.Renderer
	opts   []views.Option
}

func newApp(ctx context.Context, cfg *config.Config, client *api.Client, logger *applog.Logger, clk clock.Clock, in io.Reader, out, errOut io.Writer) *app {
	tty := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tty = int(f.Fd())
	}
	return &app{
		tty:    tty,
		ctx:    ctx,
		cfg:    cfg,
		client: client,
		logger: logger,
		clock:  clk,
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		render: tui.New(out, cfg.CurrencyPrefix),
		opts:   []views.Option{views.WithLogger(logger), views.WithClock(clk), views.WithCurrency(cfg.CurrencyPrefix)},
	}
}

type command struct {
	name      string
	summary   string
	protected bool
	run       func(a *app, args []string) error
}

func commands() []command {
	return []command{
		{"login", "store a session (--username, --password or prompt)", false, (*app).login},
		{"logout", "forget the stored session", false, (*app).logout},
		{"status", "show who is logged in", false, (*app).status},
		{"summary", "dashboard totals, charts and recent transactions", true, (*app).summary},
		{"income", "list | add | delete ID", true, (*app).income},
		{"expenses", "list | add | delete ID", true, (*app).expenses},
		{"liabilities", "list | add | delete ID | pay ID --amount", true, (*app).liabilities},
		{"clients", "list | show ID | add | update ID | delete ID | pay ID --amount", true, (*app).clients},
		{"employees", "list | add | update ID | delete ID", true, (*app).employees},
		{"payroll", "list | pay --employee ID", true, (*app).payroll},
		{"export-sheets", "append ledger rows to Google Sheets (--dry-run to print)", true, (*app).exportSheets},
		{"events", "print mutation events from the broker", false, (*app).events},
	}
}

func (a *app) run(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		return nil
	}
	for _, c := range commands() {
		if c.name != args[0] {
			continue
		}
		if c.protected && !a.client.Session().Authenticated(a.ctx) {
			return errNotLoggedIn
		}
		return c.run(a, args[1:])
	}
	a.usage()
	return fmt.Errorf("unknown command %q", args[0])
}

func (a *app) usage() {
	fmt.Fprintln(a.errOut, "Usage: astrofin-cli <command> [action] [flags]")
	fmt.Fprintln(a.errOut)
	fmt.Fprintln(a.errOut, "Commands:")
	for _, c := range commands() {
		fmt.Fprintf(a.errOut, "  %-14s %s\n", c.name, c.summary)
	}
}

func (a *app) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *app) today() string {
	return core.DateOf(a.clock.Now()).String()
}

func (a *app) prompt(label string) string {
	fmt.Fprint(a.out, label)
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}

// secret reads a line without echo when stdin is a terminal.
func (a *app) secret(label string) (string, error) {
	if a.tty < 0 {
		return a.prompt(label), nil
	}
	fmt.Fprint(a.out, label)
	b, err := term.ReadPassword(a.tty)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// confirmer asks on the terminal unless yes was given.
func (a *app) confirmer(yes bool) views.Confirmer {
	if yes {
		return views.Confirmed
	}
	return views.ConfirmFunc(func(_ context.Context, prompt string) bool {
		switch strings.ToLower(a.prompt(prompt + " [y/N]: ")) {
		case "y", "yes":
			return true
		}
		return false
	})
}

// viewError reports a failed view operation with the view's own message.
func (a *app) viewError(err error, message string) error {
	if api.IsUnauthorized(err) {
		return errSessionExpired
	}
	if message == "" {
		message = err.Error()
	}
	return &cmdError{msg: message, err: err}
}

// saved checks a mutation's outcome. A change the backend accepted is done
// even when the list could not be fetched again; that only gets a warning.
// Call sites read message in the same argument list, after the mutation.
func (a *app) saved(err error, message string) error {
	if err == nil {
		return nil
	}
	if views.Saved(err) {
		fmt.Fprintf(a.errOut, "Warning: %v\n", err)
		return nil
	}
	return a.viewError(err, message)
}

// action splits an optional leading verb off args.
func action(args []string, def string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return def, args
	}
	return args[0], args[1:]
}

func unknownAction(cmd, act string) error {
	return fmt.Errorf("unknown %s action %q", cmd, act)
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one record ID")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid record ID %q", args[0])
	}
	return id, nil
}

type deleteFunc func(ctx context.Context, id int64, confirm views.Confirmer) error

func (a *app) deleteRecord(cmd string, args []string, del deleteFunc, message func() string) error {
	fs := a.flags(cmd + " delete")
	yes := fs.BoolP("yes", "y", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}
	if err := del(a.ctx, id, a.confirmer(*yes)); err != nil {
		if errors.Is(err, views.ErrDeclined) {
			fmt.Fprintln(a.out, "Cancelled")
			return nil
		}
		if err := a.saved(err, message()); err != nil {
			return err
		}
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}
