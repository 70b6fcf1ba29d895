package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/johan-st/dbstudio/internal/auth"
)

// maxPictureSize bounds profile picture uploads.
const maxPictureSize = 5 << 20

// cmdProfile shows or updates the profile.
func (h *Handler) cmdProfile(ctx *CommandContext) {
	if !h.RequireAuth(ctx) {
		return
	}

	args := ctx.GetPositionalArgs()
	if len(args) > 0 && args[0] == "update" {
		upd := auth.ProfileUpdate{
			FirstName: ctx.GetFlag("first-name"),
			LastName:  ctx.GetFlag("last-name"),
			Username:  ctx.GetFlag("username"),
		}
		if upd == (auth.ProfileUpdate{}) {
			fmt.Fprintln(ctx.Err, "Nothing to update. Use --first-name, --last-name or --username.")
			ctx.Exit(1)
			return
		}
		user, err := h.auth.UpdateProfile(ctx.Ctx, upd)
		if err != nil {
			ctx.Fail(err)
			return
		}
		fmt.Fprintf(ctx.Out, "Profile updated: %s\n", user.DisplayName())
		return
	}

	user, err := h.auth.Profile(ctx.Ctx)
	if err != nil {
		ctx.Fail(err)
		return
	}
	if ctx.JSON() {
		printJSON(ctx.Out, user)
		return
	}

	fmt.Fprintf(ctx.Out, "Name:\t%s\n", user.DisplayName())
	fmt.Fprintf(ctx.Out, "Email:\t%s\n", user.Email)
	if user.Username != "" {
		fmt.Fprintf(ctx.Out, "Username:\t%s\n", user.Username)
	}
	fmt.Fprintf(ctx.Out, "Verified:\t%v\n", user.IsVerified)
	if user.ProfilePictureURL != "" {
		fmt.Fprintf(ctx.Out, "Picture:\t%s\n", user.ProfilePictureURL)
	}
	if !user.CreatedAt.IsZero() {
		fmt.Fprintf(ctx.Out, "Member since:\t%s\n", humanize.Time(user.CreatedAt))
	}
}

// cmdPassword changes the password.
func (h *Handler) cmdPassword(ctx *CommandContext) {
	if !h.RequireAuth(ctx) {
		return
	}

	current, err := h.readPassword("Current password: ")
	if err != nil {
		ctx.Fail(err)
		return
	}
	next, err := h.readPassword("New password: ")
	if err != nil {
		ctx.Fail(err)
		return
	}
	confirm, err := h.readPassword("Repeat new password: ")
	if err != nil {
		ctx.Fail(err)
		return
	}
	if next != confirm {
		fmt.Fprintln(ctx.Err, "Passwords do not match")
		ctx.Exit(1)
		return
	}

	if err := h.auth.ChangePassword(ctx.Ctx, auth.PasswordChange{CurrentPassword: current, NewPassword: next}); err != nil {
		ctx.Fail(err)
		return
	}
	fmt.Fprintln(ctx.Out, "Password changed")
}

// cmdAvatar sets or removes the profile picture.
func (h *Handler) cmdAvatar(ctx *CommandContext) {
	if !h.RequireAuth(ctx) {
		return
	}
	sub, ok := ctx.RequireArg(0, "set|rm")
	if !ok {
		return
	}

	switch sub {
	case "set":
		path, ok := ctx.RequireArg(1, "file")
		if !ok {
			return
		}
		info, err := os.Stat(path)
		if err != nil {
			ctx.Fail(err)
			return
		}
		if info.Size() > maxPictureSize {
			fmt.Fprintf(ctx.Err, "Picture is %s, the limit is %s\n",
				humanize.Bytes(uint64(info.Size())), humanize.Bytes(maxPictureSize))
			ctx.Exit(1)
			return
		}
		f, err := os.Open(path)
		if err != nil {
			ctx.Fail(err)
			return
		}
		defer f.Close()

		url, err := h.auth.UploadProfilePicture(ctx.Ctx, filepath.Base(path), f)
		if err != nil {
			ctx.Fail(err)
			return
		}
		fmt.Fprintf(ctx.Out, "Uploaded %s (%s)\n", url, humanize.Bytes(uint64(info.Size())))

	case "rm", "remove":
		if err := h.auth.RemoveProfilePicture(ctx.Ctx); err != nil {
			ctx.Fail(err)
			return
		}
		fmt.Fprintln(ctx.Out, "Profile picture removed")

	default:
		fmt.Fprintf(ctx.Err, "Unknown avatar command: %s\n", sub)
		ctx.Exit(1)
	}
}
