package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/johan-st/dbstudio/internal/auth"
)

// resources whose access level the permissions summary shows.
var resources = []string{"users", "roles", "invitations", "worksheets", "connections"}

// cmdRoles lists the user's roles, or the organization's custom roles.
func (h *Handler) cmdRoles(ctx *CommandContext) {
	if !h.RequireAuth(ctx) {
		return
	}

	var (
		roles []auth.Role
		err   error
	)
	if ctx.HasFlag("custom") {
		roles, err = h.auth.CustomRoles(ctx.Ctx)
	} else {
		roles, err = h.auth.MyRoles(ctx.Ctx)
	}
	if err != nil {
		ctx.Fail(err)
		return
	}

	if ctx.JSON() {
		printJSON(ctx.Out, roles)
		return
	}
	if len(roles) == 0 {
		fmt.Fprintln(ctx.Out, "No roles")
		return
	}
	fmt.Fprintln(ctx.Out, "ID\tNAME\tCUSTOM\tDESCRIPTION")
	for _, r := range roles {
		fmt.Fprintf(ctx.Out, "%s\t%s\t%v\t%s\n", r.ID, r.Name, r.IsCustom, r.Description)
	}
}

// cmdRole shows, updates or deletes a role.
func (h *Handler) cmdRole(ctx *CommandContext) {
	if !h.RequireAuth(ctx) {
		return
	}
	args := ctx.GetPositionalArgs()
	if len(args) == 0 {
		fmt.Fprintln(ctx.Err, "Missing required argument: role id")
		ctx.Exit(1)
		return
	}

	switch args[0] {
	case "update":
		id, ok := ctx.RequireArg(1, "role id")
		if !ok {
			return
		}
		upd := auth.RoleUpdate{
			Name:        ctx.GetFlag("name"),
			Description: ctx.GetFlag("description"),
			Permissions: splitList(ctx.GetFlag("permissions")),
		}
		role, err := h.auth.UpdateCustomRole(ctx.Ctx, id, upd)
		if err != nil {
			ctx.Fail(err)
			return
		}
		fmt.Fprintf(ctx.Out, "Role %s updated\n", role.Name)

	case "rm", "delete":
		id, ok := ctx.RequireArg(1, "role id")
		if !ok {
			return
		}
		if !ctx.HasFlag("confirm") && !ctx.HasFlag("force") {
			fmt.Fprintln(ctx.Err, "Deleting a role requires --confirm")
			ctx.Exit(1)
			return
		}
		if err := h.auth.DeleteCustomRole(ctx.Ctx, id); err != nil {
			ctx.Fail(err)
			return
		}
		fmt.Fprintf(ctx.Out, "Role %s deleted\n", id)

	default:
		role, err := h.auth.Role(ctx.Ctx, args[0])
		if err != nil {
			ctx.Fail(err)
			return
		}
		if ctx.JSON() {
			printJSON(ctx.Out, role)
			return
		}
		fmt.Fprintf(ctx.Out, "ID:\t%s\n", role.ID)
		fmt.Fprintf(ctx.Out, "Name:\t%s\n", role.Name)
		fmt.Fprintf(ctx.Out, "Custom:\t%v\n", role.IsCustom)
		if role.Description != "" {
			fmt.Fprintf(ctx.Out, "Description:\t%s\n", role.Description)
		}
		if len(role.Permissions) > 0 {
			fmt.Fprintf(ctx.Out, "Permissions:\t%s\n", strings.Join(role.Permissions, ", "))
		}
	}
}

// cmdPermissions lists a role's permissions, or summarizes the current user's.
func (h *Handler) cmdPermissions(ctx *CommandContext) {
	if !h.RequireAuth(ctx) {
		return
	}

	if args := ctx.GetPositionalArgs(); len(args) > 0 {
		perms, err := h.auth.RolePermissions(ctx.Ctx, args[0])
		if err != nil {
			ctx.Fail(err)
			return
		}
		if ctx.JSON() {
			printJSON(ctx.Out, perms)
			return
		}
		fmt.Fprintln(ctx.Out, "PERMISSION\tDESCRIPTION")
		for _, p := range perms {
			fmt.Fprintf(ctx.Out, "%s\t%s\n", p.Key(), p.Description)
		}
		return
	}

	set, err := h.auth.Permissions(ctx.Ctx)
	if err != nil {
		ctx.Fail(err)
		return
	}

	if ctx.JSON() {
		levels := make(map[string]string, len(resources))
		for _, r := range resources {
			levels[r] = set.Level(r).String()
		}
		printJSON(ctx.Out, map[string]any{"patterns": set.Patterns(), "levels": levels})
		return
	}

	fmt.Fprintln(ctx.Out, "RESOURCE\tACCESS")
	for _, r := range resources {
		fmt.Fprintf(ctx.Out, "%s\t%s\n", r, set.Level(r))
	}
}

// cmdCan checks a single permission. It exits 1 when denied.
func (h *Handler) cmdCan(ctx *CommandContext) {
	perm, ok := ctx.RequireArg(0, "permission")
	if !ok {
		return
	}
	if !h.RequireAuth(ctx) {
		return
	}

	set, err := h.auth.Permissions(ctx.Ctx)
	if err != nil {
		ctx.Fail(err)
		return
	}

	allowed := set.Allows(perm)
	if ctx.JSON() {
		printJSON(ctx.Out, map[string]any{"permission": perm, "allowed": allowed})
	} else if allowed {
		fmt.Fprintf(ctx.Out, "allowed: %s\n", perm)
	} else {
		fmt.Fprintf(ctx.Out, "denied: %s\n", perm)
	}
	if !allowed {
		ctx.Exit(1)
	}
}

// cmdUsers lists organization members.
func (h *Handler) cmdUsers(ctx *CommandContext) {
	if !h.RequireAuth(ctx) {
		return
	}

	users, err := h.auth.OrgUsers(ctx.Ctx, ctx.GetFlag("org"))
	if err != nil {
		ctx.Fail(err)
		return
	}

	if ctx.JSON() {
		printJSON(ctx.Out, users)
		return
	}
	if len(users) == 0 {
		fmt.Fprintln(ctx.Out, "No users")
		return
	}
	fmt.Fprintln(ctx.Out, "ID\tEMAIL\tNAME\tROLE\tSTATUS\tJOINED")
	for _, u := range users {
		joined := ""
		if !u.JoinedAt.IsZero() {
			joined = humanize.Time(u.JoinedAt)
		}
		fmt.Fprintf(ctx.Out, "%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Email, strings.TrimSpace(u.FirstName+" "+u.LastName), u.Role, u.Status, joined)
	}
}

// cmdInvitations manages organization invitations.
func (h *Handler) cmdInvitations(ctx *CommandContext) {
	if !h.RequireAuth(ctx) {
		return
	}

	args := ctx.GetPositionalArgs()
	sub := "ls"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "ls", "list":
		invs, err := h.auth.Invitations(ctx.Ctx)
		if err != nil {
			ctx.Fail(err)
			return
		}
		if ctx.JSON() {
			printJSON(ctx.Out, invs)
			return
		}
		if len(invs) == 0 {
			fmt.Fprintln(ctx.Out, "No invitations")
			return
		}
		fmt.Fprintln(ctx.Out, "ID\tEMAIL\tROLE\tSTATUS\tEXPIRES")
		for _, inv := range invs {
			expires := ""
			if !inv.ExpiresAt.IsZero() {
				expires = humanize.RelTime(inv.ExpiresAt, h.now(), "ago", "from now")
			}
			fmt.Fprintf(ctx.Out, "%s\t%s\t%s\t%s\t%s\n", inv.ID, inv.Email, inv.RoleID, inv.Status, expires)
		}

	case "create", "new":
		email, ok := ctx.RequireArg(1, "email")
		if !ok {
			return
		}
		inv, err := h.auth.CreateInvitation(ctx.Ctx, auth.InvitationRequest{Email: email, RoleID: ctx.GetFlag("role")})
		if err != nil {
			ctx.Fail(err)
			return
		}
		if ctx.JSON() {
			printJSON(ctx.Out, inv)
			return
		}
		fmt.Fprintf(ctx.Out, "Invited %s (%s)\n", inv.Email, inv.ID)

	case "revoke", "rm":
		id, ok := ctx.RequireArg(1, "invitation id")
		if !ok {
			return
		}
		if err := h.auth.RevokeInvitation(ctx.Ctx, id); err != nil {
			ctx.Fail(err)
			return
		}
		fmt.Fprintf(ctx.Out, "Invitation %s revoked\n", id)

	case "resend":
		id, ok := ctx.RequireArg(1, "invitation id")
		if !ok {
			return
		}
		if err := h.auth.ResendInvitation(ctx.Ctx, id); err != nil {
			ctx.Fail(err)
			return
		}
		fmt.Fprintf(ctx.Out, "Invitation %s resent\n", id)

	default:
		fmt.Fprintf(ctx.Err, "Unknown invitations command: %s\n", sub)
		ctx.Exit(1)
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
