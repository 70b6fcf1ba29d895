package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/johan-st/dbstudio/internal/config"
)

// cmdHelp shows help information.
func (h *Handler) cmdHelp(ctx *CommandContext) {
	args := ctx.GetPositionalArgs()

	if len(args) > 0 {
		h.showCommandHelp(ctx, args[0])
		return
	}

	fmt.Fprintln(ctx.Out, `dbstudio - Database Studio

USAGE:
  dbstudio                         Start the interactive studio
  dbstudio [-config=FILE] command [arguments] [options]

ACCOUNT COMMANDS:
  login [email]                    Sign in (prompts for the password)
  logout                           Sign out and clear the local session
  register <email>                 Create an account
  verify <email> <code>            Verify an account
  whoami [--refresh]               Show the current session
  accounts [ls|forget <email>]     Remembered accounts

PROFILE COMMANDS:
  profile [update]                 Show or update your profile
  password                         Change your password
  avatar set <file> | avatar rm    Manage your profile picture

ORGANIZATION COMMANDS:
  roles [--custom]                 List your roles or the custom roles
  role <id> | update <id> | rm <id>
  permissions [role-id]            Your access per resource, or a role's permissions
  can <permission>                 Check a permission (exit 1 when denied)
  users [--org=ID]                 List organization members
  invitations [ls|create|revoke|resend]

WORKSHEET COMMANDS:
  worksheets ls [--open]           List worksheets (alias: ws)
  worksheets new [name]            Create and open a worksheet
  worksheets open|close <ws>       Open or close a tab
  worksheets rm <ws> --confirm     Delete permanently
  worksheets dup <ws>              Duplicate
  worksheets rename <ws> <name>    Rename
  worksheets mv <ws> <target>      Move to the position of another worksheet
  worksheets connect <ws> <conn>   Set the data source
  worksheets show [ws]             Print the content (default: active tab)
  worksheets edit <ws>             Replace the content from --content or stdin

UTILITY COMMANDS:
  help [command]                   Show help
  version                          Show version
  init-config [path] [--force]     Write a default config file

COMMON OPTIONS:
  --format=json                    Output in JSON format

A worksheet <ws> can be given by id, name or unique id prefix.
Run 'help <command>' for detailed help on a specific command.`)
}

// showCommandHelp shows help for a specific command.
func (h *Handler) showCommandHelp(ctx *CommandContext, command string) {
	help := map[string]string{
		"login": `login - Sign in

USAGE:
  login [email] [--password=SECRET]

Without an email the most recently used account is chosen.
Without --password the password is read from the terminal.

EXAMPLES:
  login ada@example.com
  login --format=json`,

		"worksheets": `worksheets - Manage worksheets

USAGE:
  worksheets <ls|new|open|close|rm|dup|rename|mv|connect|show|edit> [args]

OPTIONS:
  --open              ls: only open tabs
  --content="SQL"     new, edit: worksheet content
  --connection=ID     new: data source (default: editor.default_connection)
  --confirm           rm: required, deletion is permanent

EXAMPLES:
  worksheets new "Daily revenue" --content="SELECT 1"
  worksheets mv "Daily revenue" "Worksheet 2024-03-09 14:30:00"
  cat query.sql | worksheets edit "Daily revenue"`,

		"invitations": `invitations - Manage invitations

USAGE:
  invitations ls
  invitations create <email> [--role=ROLE_ID]
  invitations revoke <id>
  invitations resend <id>`,

		"can": `can - Check a permission

USAGE:
  can <resource:action>

Prints allowed or denied and exits 1 when denied.

EXAMPLE:
  can invitations:create && invitations create new@example.com`,

		"init-config": `init-config - Write a default config file

USAGE:
  init-config [path] [--force]

Writes to the per-user config location unless a path is given.
An existing file is only replaced with --force.`,
	}

	if h, ok := help[command]; ok {
		fmt.Fprintln(ctx.Out, h)
	} else {
		fmt.Fprintf(ctx.Out, "No detailed help available for '%s'\n", command)
	}
}

// cmdVersion shows version information.
func (h *Handler) cmdVersion(ctx *CommandContext) {
	if ctx.JSON() {
		printJSON(ctx.Out, map[string]string{"version": h.version})
		return
	}
	fmt.Fprintf(ctx.Out, "dbstudio %s\n", h.version)
}

// cmdInitConfig writes the default configuration.
func (h *Handler) cmdInitConfig(ctx *CommandContext) {
	path := config.DefaultPath()
	if args := ctx.GetPositionalArgs(); len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !ctx.HasFlag("force") {
		fmt.Fprintf(ctx.Err, "%s already exists, use --force to overwrite\n", path)
		ctx.Exit(1)
		return
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		ctx.Fail(err)
		return
	}
	fmt.Fprintf(ctx.Out, "Wrote %s\n", path)
}

// printJSON writes JSON to a writer.
func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
