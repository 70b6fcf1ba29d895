package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/johan-st/dbstudio/internal/auth"
)

// cmdLogin signs in and stores the session.
func (h *Handler) cmdLogin(ctx *CommandContext) {
	email := ""
	if args := ctx.GetPositionalArgs(); len(args) > 0 {
		email = args[0]
	} else if accounts, err := h.auth.StoredAccounts(); err == nil && len(accounts) > 0 {
		email = accounts[0].Identifier
	}
	if email == "" {
		fmt.Fprintln(ctx.Err, "Missing required argument: email")
		ctx.Exit(1)
		return
	}

	password := ctx.GetFlag("password")
	if password == "" {
		p, err := h.readPassword(fmt.Sprintf("Password for %s: ", email))
		if err != nil {
			ctx.Fail(err)
			return
		}
		password = p
	}

	user, err := h.auth.Login(ctx.Ctx, auth.Credentials{Email: email, Password: password})
	if err != nil {
		ctx.Fail(err)
		return
	}

	if ctx.JSON() {
		printJSON(ctx.Out, user)
		return
	}
	fmt.Fprintf(ctx.Out, "Logged in as %s\n", user.DisplayName())
}

// cmdLogout ends the session. It always succeeds locally.
func (h *Handler) cmdLogout(ctx *CommandContext) {
	if err := h.auth.Logout(ctx.Ctx); err != nil {
		ctx.Fail(err)
		return
	}
	fmt.Fprintln(ctx.Out, "Logged out")
}

// cmdRegister creates an account.
func (h *Handler) cmdRegister(ctx *CommandContext) {
	email, ok := ctx.RequireArg(0, "email")
	if !ok {
		return
	}

	password := ctx.GetFlag("password")
	if password == "" {
		p, err := h.readPassword("Choose a password: ")
		if err != nil {
			ctx.Fail(err)
			return
		}
		password = p
	}

	user, err := h.auth.Register(ctx.Ctx, auth.Registration{
		Email:            email,
		Password:         password,
		FirstName:        ctx.GetFlag("first-name"),
		LastName:         ctx.GetFlag("last-name"),
		OrganizationName: ctx.GetFlag("org"),
		InvitationToken:  ctx.GetFlag("invitation"),
	})
	if err != nil {
		ctx.Fail(err)
		return
	}

	if ctx.JSON() {
		printJSON(ctx.Out, user)
		return
	}
	fmt.Fprintf(ctx.Out, "Registered %s. Check your email for a verification code, then run 'verify %s <code>'.\n", email, email)
}

// cmdVerify confirms an account with its emailed code.
func (h *Handler) cmdVerify(ctx *CommandContext) {
	email, ok := ctx.RequireArg(0, "email")
	if !ok {
		return
	}
	code, ok := ctx.RequireArg(1, "code")
	if !ok {
		return
	}

	if err := h.auth.VerifyAccount(ctx.Ctx, auth.Verification{Email: email, Code: code}); err != nil {
		ctx.Fail(err)
		return
	}
	fmt.Fprintf(ctx.Out, "Account %s verified\n", email)
}

// cmdWhoami shows the current session.
func (h *Handler) cmdWhoami(ctx *CommandContext) {
	if !h.auth.IsAuthenticated() {
		fmt.Fprintln(ctx.Out, "Not authenticated")
		return
	}

	st := h.auth.State()
	if ctx.HasFlag("refresh") {
		user, err := h.auth.Profile(ctx.Ctx)
		if err != nil {
			ctx.Fail(err)
			return
		}
		st.User = user
	}

	if ctx.JSON() {
		info := map[string]any{
			"authenticated":   true,
			"organization_id": h.auth.OrganizationID(),
			"base_url":        h.config.GetBaseURL(),
		}
		if st.User != nil {
			info["user"] = st.User
		}
		printJSON(ctx.Out, info)
		return
	}

	if st.User != nil {
		fmt.Fprintf(ctx.Out, "User:\t%s\n", st.User.DisplayName())
		fmt.Fprintf(ctx.Out, "Email:\t%s\n", st.User.Email)
	}
	fmt.Fprintf(ctx.Out, "Organization:\t%s\n", h.auth.OrganizationID())
	fmt.Fprintf(ctx.Out, "Server:\t%s\n", h.config.GetBaseURL())
}

// cmdAccounts lists or forgets remembered accounts.
func (h *Handler) cmdAccounts(ctx *CommandContext) {
	args := ctx.GetPositionalArgs()
	sub := "ls"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "ls", "list":
		accounts, err := h.auth.StoredAccounts()
		if err != nil {
			ctx.Fail(err)
			return
		}
		if ctx.JSON() {
			printJSON(ctx.Out, accounts)
			return
		}
		if len(accounts) == 0 {
			fmt.Fprintln(ctx.Out, "No remembered accounts")
			return
		}
		fmt.Fprintln(ctx.Out, "ACCOUNT\tNAME\tORGANIZATION\tLAST USED")
		for _, a := range accounts {
			fmt.Fprintf(ctx.Out, "%s\t%s\t%s\t%s\n",
				a.Identifier, a.DisplayName, a.OrganizationID, humanize.RelTime(a.LastUsedAt, h.now(), "ago", "from now"))
		}

	case "forget", "rm":
		id, ok := ctx.RequireArg(1, "account")
		if !ok {
			return
		}
		removed, err := h.auth.ForgetAccount(id)
		if err != nil {
			ctx.Fail(err)
			return
		}
		if !removed {
			fmt.Fprintf(ctx.Err, "No remembered account %s\n", id)
			ctx.Exit(1)
			return
		}
		fmt.Fprintf(ctx.Out, "Forgot %s\n", id)

	default:
		fmt.Fprintf(ctx.Err, "Unknown accounts command: %s\n", sub)
		ctx.Exit(1)
	}
}
