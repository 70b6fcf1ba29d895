// Package cli implements the scriptable command-line interface.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/johan-st/dbstudio/internal/api"
	"github.com/johan-st/dbstudio/internal/auth"
	"github.com/johan-st/dbstudio/internal/config"
	"github.com/johan-st/dbstudio/internal/worksheet"
	"golang.org/x/term"
)

// PasswordReader prompts for a secret without echoing it.
type PasswordReader func(prompt string) (string, error)

// Handler handles CLI commands.
type Handler struct {
	auth         *auth.Service
	worksheets   *worksheet.Registry
	config       *config.Config
	logger       *log.Logger
	version      string
	in           io.Reader
	readPassword PasswordReader
	now          func() time.Time
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Auth       *auth.Service
	Worksheets *worksheet.Registry
	Config     *config.Config
	Logger     *log.Logger
	Version    string

	// In is read by commands that take content from stdin. Defaults to os.Stdin.
	In           io.Reader
	// ReadPassword defaults to a terminal prompt on stdin.
	ReadPassword PasswordReader
}

// NewHandler creates a new CLI handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		auth:         deps.Auth,
		worksheets:   deps.Worksheets,
		config:       deps.Config,
		logger:       deps.Logger,
		version:      deps.Version,
		in:           deps.In,
		readPassword: deps.ReadPassword,
		now:          time.Now,
	}
	if h.in == nil {
		h.in = os.Stdin
	}
	if h.logger == nil {
		h.logger = log.New(io.Discard)
	}
	if h.readPassword == nil {
		h.readPassword = terminalPassword(h.in, os.Stderr)
	}
	return h
}

// Run executes args[0] with the remaining args. It returns an error when the
// command exits non-zero.
func (h *Handler) Run(ctx context.Context, args []string, out, errOut io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(out, "No command specified. Run 'help' for usage.")
		return nil
	}

	cmdCtx := &CommandContext{
		Ctx:      ctx,
		Args:     args[1:],
		Out:      out,
		Err:      errOut,
		exitCode: 0,
	}

	h.routeCommand(args[0], cmdCtx)

	if cmdCtx.exitCode != 0 {
		return fmt.Errorf("command failed with exit code %d", cmdCtx.exitCode)
	}
	return nil
}

// IsCommand reports whether name is a CLI command.
func IsCommand(name string) bool {
	_, ok := commands[name]
	return ok
}

var commands = map[string]func(h *Handler, ctx *CommandContext){
	// Account commands
	"login":    (*Handler).cmdLogin,
	"logout":   (*Handler).cmdLogout,
	"register": (*Handler).cmdRegister,
	"verify":   (*Handler).cmdVerify,
	"whoami":   (*Handler).cmdWhoami,
	"accounts": (*Handler).cmdAccounts,

	// Profile commands
	"profile":  (*Handler).cmdProfile,
	"password": (*Handler).cmdPassword,
	"avatar":   (*Handler).cmdAvatar,

	// Organization commands
	"roles":       (*Handler).cmdRoles,
	"role":        (*Handler).cmdRole,
	"permissions": (*Handler).cmdPermissions,
	"can":         (*Handler).cmdCan,
	"users":       (*Handler).cmdUsers,
	"invitations": (*Handler).cmdInvitations,

	// Worksheet commands
	"worksheets": (*Handler).cmdWorksheets,
	"ws":         (*Handler).cmdWorksheets,

	// Utility commands
	"help":        (*Handler).cmdHelp,
	"version":     (*Handler).cmdVersion,
	"init-config": (*Handler).cmdInitConfig,
}

// routeCommand routes a command to its handler.
func (h *Handler) routeCommand(cmd string, ctx *CommandContext) {
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(ctx.Err, "Unknown command: %s\n", cmd)
		fmt.Fprintln(ctx.Err, "Run 'help' for usage.")
		ctx.Exit(1)
		return
	}
	fn(h, ctx)
}

// CommandContext provides context for command execution.
type CommandContext struct {
	Ctx      context.Context
	Args     []string
	Out      io.Writer
	Err      io.Writer
	exitCode int
}

// Exit sets the exit code.
func (c *CommandContext) Exit(code int) {
	c.exitCode = code
}

// RequireArg ensures a positional argument is provided.
func (c *CommandContext) RequireArg(index int, name string) (string, bool) {
	args := c.GetPositionalArgs()
	if index >= len(args) {
		fmt.Fprintf(c.Err, "Missing required argument: %s\n", name)
		c.Exit(1)
		return "", false
	}
	return args[index], true
}

// GetFlag returns a flag value from args (e.g., --format=json).
func (c *CommandContext) GetFlag(name string) string {
	prefix := "--" + name + "="
	shortPrefix := "-" + name + "="
	for _, arg := range c.Args {
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix)
		}
		if strings.HasPrefix(arg, shortPrefix) {
			return strings.TrimPrefix(arg, shortPrefix)
		}
	}
	return ""
}

// HasFlag checks if a boolean flag is present.
func (c *CommandContext) HasFlag(name string) bool {
	flag := "--" + name
	shortFlag := "-" + name
	for _, arg := range c.Args {
		if arg == flag || arg == shortFlag {
			return true
		}
	}
	return false
}

// GetPositionalArgs returns args that are not flags.
func (c *CommandContext) GetPositionalArgs() []string {
	var result []string
	for _, arg := range c.Args {
		if !strings.HasPrefix(arg, "-") {
			result = append(result, arg)
		}
	}
	return result
}

// JSON reports whether --format=json was requested.
func (c *CommandContext) JSON() bool {
	return c.GetFlag("format") == "json"
}

// Fail reports err and sets a non-zero exit code.
func (c *CommandContext) Fail(err error) {
	var apiErr *api.Error
	switch {
	case errors.Is(err, api.ErrNoRefreshToken), errors.Is(err, api.ErrSessionExpired):
		fmt.Fprintln(c.Err, "Session expired. Run 'login' to sign in again.")
	case errors.Is(err, auth.ErrNotAuthenticated):
		fmt.Fprintln(c.Err, "Not logged in. Run 'login' first.")
	case errors.As(err, &apiErr):
		fmt.Fprintf(c.Err, "Error: %s\n", apiErr.Message)
		if apiErr.Details != nil {
			for _, v := range apiErr.Details.ValidationErrors {
				fmt.Fprintf(c.Err, "  %s: %s\n", v.Field, v.Message)
			}
		}
	default:
		fmt.Fprintf(c.Err, "Error: %v\n", err)
	}
	c.Exit(1)
}

// RequireAuth checks that a session is stored.
func (h *Handler) RequireAuth(ctx *CommandContext) bool {
	if !h.auth.IsAuthenticated() {
		ctx.Fail(auth.ErrNotAuthenticated)
		return false
	}
	return true
}

// terminalPassword prompts on the terminal without echo, falling back to a
// plain line read when in is not a terminal.
func terminalPassword(in io.Reader, prompt io.Writer) PasswordReader {
	return func(label string) (string, error) {
		fmt.Fprint(prompt, label)
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(prompt)
			if err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return string(b), nil
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}
