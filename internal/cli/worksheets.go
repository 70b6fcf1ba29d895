package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/johan-st/dbstudio/internal/worksheet"
)

// cmdWorksheets manages the saved worksheets and open tabs.
func (h *Handler) cmdWorksheets(ctx *CommandContext) {
	args := ctx.GetPositionalArgs()
	sub := "ls"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "ls", "list":
		h.worksheetsList(ctx)
	case "new", "add":
		h.worksheetsNew(ctx, args[1:])
	case "open":
		h.withWorksheet(ctx, func(ws worksheet.Worksheet) {
			h.worksheets.SetActive(ws.ID)
			fmt.Fprintf(ctx.Out, "Opened %s\n", ws.Name)
		})
	case "close":
		h.withWorksheet(ctx, func(ws worksheet.Worksheet) {
			if h.worksheets.Close(ws.ID) {
				fmt.Fprintf(ctx.Out, "Closed %s\n", ws.Name)
			}
		})
	case "rm", "delete":
		if !ctx.HasFlag("confirm") && !ctx.HasFlag("force") {
			fmt.Fprintln(ctx.Err, "Deleting a worksheet is permanent and requires --confirm")
			ctx.Exit(1)
			return
		}
		h.withWorksheet(ctx, func(ws worksheet.Worksheet) {
			if h.worksheets.Delete(ws.ID) {
				fmt.Fprintf(ctx.Out, "Deleted %s\n", ws.Name)
			}
		})
	case "dup", "duplicate":
		h.withWorksheet(ctx, func(ws worksheet.Worksheet) {
			if dup, ok := h.worksheets.Duplicate(ws.ID); ok {
				fmt.Fprintf(ctx.Out, "Created %s (%s)\n", dup.Name, dup.ID)
			}
		})
	case "rename":
		name := strings.Join(argsFrom(args, 2), " ")
		if name == "" {
			fmt.Fprintln(ctx.Err, "Missing required argument: name")
			ctx.Exit(1)
			return
		}
		h.withWorksheet(ctx, func(ws worksheet.Worksheet) {
			h.worksheets.Rename(ws.ID, name)
			fmt.Fprintf(ctx.Out, "Renamed %s to %s\n", ws.Name, name)
		})
	case "mv", "move":
		h.worksheetsMove(ctx)
	case "connect":
		conn, ok := ctx.RequireArg(2, "connection id")
		if !ok {
			return
		}
		h.withWorksheet(ctx, func(ws worksheet.Worksheet) {
			h.worksheets.SetConnection(ws.ID, conn)
			fmt.Fprintf(ctx.Out, "%s now uses connection %s\n", ws.Name, conn)
		})
	case "show", "cat":
		h.worksheetsShow(ctx)
	case "edit":
		h.worksheetsEdit(ctx)
	default:
		fmt.Fprintf(ctx.Err, "Unknown worksheets command: %s\n", sub)
		ctx.Exit(1)
	}
}

func (h *Handler) worksheetsList(ctx *CommandContext) {
	list := h.worksheets.List()
	if ctx.HasFlag("open") {
		list = h.worksheets.Open()
	}

	if ctx.JSON() {
		printJSON(ctx.Out, map[string]any{
			"worksheets": list,
			"open_ids":   h.worksheets.OpenIDs(),
			"active_id":  h.worksheets.ActiveID(),
		})
		return
	}

	if len(list) == 0 {
		fmt.Fprintln(ctx.Out, "No worksheets")
		return
	}

	st := h.worksheets.Snapshot()
	fmt.Fprintln(ctx.Out, "ID\tNAME\tTAB\tCONNECTION\tUPDATED")
	for _, ws := range list {
		tab := ""
		switch {
		case ws.ID == st.ActiveID:
			tab = "active"
		case st.IsOpen(ws.ID):
			tab = "open"
		}
		fmt.Fprintf(ctx.Out, "%s\t%s\t%s\t%s\t%s\n",
			ws.ID, ws.Name, tab, ws.ConnectionID, humanize.RelTime(ws.UpdatedAt, h.now(), "ago", "from now"))
	}
}

func (h *Handler) worksheetsNew(ctx *CommandContext, nameArgs []string) {
	conn := ctx.GetFlag("connection")
	if conn == "" && h.config != nil {
		conn = h.config.GetDefaultConnection()
	}

	ws := h.worksheets.Add(worksheet.Partial{
		Name:         strings.Join(nameArgs, " "),
		Content:      ctx.GetFlag("content"),
		ConnectionID: conn,
	})

	if ctx.JSON() {
		printJSON(ctx.Out, ws)
		return
	}
	fmt.Fprintf(ctx.Out, "Created %s (%s)\n", ws.Name, ws.ID)
}

func (h *Handler) worksheetsMove(ctx *CommandContext) {
	src, ok := h.resolveArg(ctx, 1, "worksheet")
	if !ok {
		return
	}
	tgt, ok := h.resolveArg(ctx, 2, "target worksheet")
	if !ok {
		return
	}
	h.worksheets.Reorder(src.ID, tgt.ID)
	fmt.Fprintf(ctx.Out, "Moved %s to the position of %s\n", src.Name, tgt.Name)
}

func (h *Handler) worksheetsShow(ctx *CommandContext) {
	var ws worksheet.Worksheet
	if len(ctx.GetPositionalArgs()) > 1 {
		var ok bool
		if ws, ok = h.resolveArg(ctx, 1, "worksheet"); !ok {
			return
		}
	} else {
		active, ok := h.worksheets.Active()
		if !ok {
			fmt.Fprintln(ctx.Err, "No active worksheet")
			ctx.Exit(1)
			return
		}
		ws = active
	}

	if ctx.JSON() {
		printJSON(ctx.Out, ws)
		return
	}
	fmt.Fprint(ctx.Out, ws.Content)
	if ws.Content != "" && !strings.HasSuffix(ws.Content, "\n") {
		fmt.Fprintln(ctx.Out)
	}
}

// worksheetsEdit replaces a worksheet's content with --content or stdin.
func (h *Handler) worksheetsEdit(ctx *CommandContext) {
	ws, ok := h.resolveArg(ctx, 1, "worksheet")
	if !ok {
		return
	}

	content := ctx.GetFlag("content")
	if content == "" {
		data, err := io.ReadAll(h.in)
		if err != nil {
			ctx.Fail(fmt.Errorf("failed to read content: %w", err))
			return
		}
		content = string(data)
	}

	h.worksheets.UpdateContent(ws.ID, content)
	fmt.Fprintf(ctx.Out, "Updated %s (%s)\n", ws.Name, humanize.Bytes(uint64(len(content))))
}

func (h *Handler) withWorksheet(ctx *CommandContext, fn func(worksheet.Worksheet)) {
	ws, ok := h.resolveArg(ctx, 1, "worksheet")
	if !ok {
		return
	}
	fn(ws)
}

func (h *Handler) resolveArg(ctx *CommandContext, index int, name string) (worksheet.Worksheet, bool) {
	ref, ok := ctx.RequireArg(index, name)
	if !ok {
		return worksheet.Worksheet{}, false
	}
	ws, err := resolveWorksheet(h.worksheets.List(), ref)
	if err != nil {
		fmt.Fprintln(ctx.Err, err)
		ctx.Exit(1)
		return worksheet.Worksheet{}, false
	}
	return ws, true
}

// resolveWorksheet finds a worksheet by id, then by name, then by unique id
// prefix.
func resolveWorksheet(list []worksheet.Worksheet, ref string) (worksheet.Worksheet, error) {
	for _, ws := range list {
		if ws.ID == ref {
			return ws, nil
		}
	}

	var matches []worksheet.Worksheet
	for _, ws := range list {
		if strings.EqualFold(ws.Name, ref) {
			matches = append(matches, ws)
		}
	}
	if len(matches) == 0 {
		for _, ws := range list {
			if strings.HasPrefix(ws.ID, ref) {
				matches = append(matches, ws)
			}
		}
	}

	switch len(matches) {
	case 0:
		return worksheet.Worksheet{}, fmt.Errorf("no worksheet matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return worksheet.Worksheet{}, fmt.Errorf("%q matches %d worksheets, use the id", ref, len(matches))
	}
}

func argsFrom(args []string, i int) []string {
	if i >= len(args) {
		return nil
	}
	return args[i:]
}
