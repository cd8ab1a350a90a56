// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/iris/internal/model"
	"github.com/jeranaias/iris/internal/storage"
	"github.com/jeranaias/iris/internal/util"
)

// shortIDLength is how much of a conversation ID the list shows.
const shortIDLength = 8

// =============================================================================
// LIST
// =============================================================================

// ConversationJSON is the --json form of a listed conversation.
type ConversationJSON struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HandleList prints conversations, most recently updated first.
func HandleList(ctx context.Context, rt *Runtime, args Args) error {
	metas, err := rt.Manager.Conversations(ctx)
	if err != nil {
		return err
	}
	if args.Limit > 0 && len(metas) > args.Limit {
		metas = metas[:args.Limit]
	}

	if args.JSON {
		out := make([]ConversationJSON, len(metas))
		for i, m := range metas {
			out[i] = ConversationJSON{
				ID:           m.ID,
				Title:        m.Title,
				MessageCount: m.MessageCount,
				Preview:      m.Preview,
				CreatedAt:    m.CreatedAt,
				UpdatedAt:    m.UpdatedAt,
			}
		}
		return outputJSON(rt.Out, out)
	}

	if len(metas) == 0 {
		fmt.Fprintln(rt.Out, DimStyle.Render("No conversations yet. Start one with 'iris chat'."))
		return nil
	}

	width := GetTerminalWidth()
	if !isTerminalWriter(rt.Out) {
		width = DefaultTerminalWidth
	}
	fmt.Fprint(rt.Out, renderConversationTable(metas, width, time.Now()))
	return nil
}

// renderConversationTable lays out one row per conversation. Titles are
// truncated by display width so wide characters keep the columns aligned.
func renderConversationTable(metas []storage.ConversationMeta, width int, now time.Time) string {
	const (
		countWidth   = 10
		updatedWidth = 12
		gaps         = 3
	)
	titleWidth := width - shortIDLength - countWidth - updatedWidth - gaps*2
	if titleWidth < 10 {
		titleWidth = 10
	}

	var sb strings.Builder
	row := func(id, title, count, updated string) {
		sb.WriteString(util.PadWidth(id, shortIDLength))
		sb.WriteString("   ")
		sb.WriteString(util.PadWidth(util.TruncateWidth(title, titleWidth), titleWidth))
		sb.WriteString("   ")
		sb.WriteString(util.PadWidth(count, countWidth))
		sb.WriteString(updated)
		sb.WriteString("\n")
	}

	header := &strings.Builder{}
	row("ID", "TITLE", "MESSAGES", "UPDATED")
	header.WriteString(TitleStyle.Render(strings.TrimRight(sb.String(), "\n")))
	header.WriteString("\n")
	sb.Reset()

	for _, m := range metas {
		row(shortID(m.ID), m.Title, fmt.Sprintf("%d", m.MessageCount), util.RelativeTime(m.UpdatedAt, now))
	}
	return header.String() + sb.String()
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

// =============================================================================
// NEW
// =============================================================================

// HandleNew creates an empty conversation and prints its ID.
func HandleNew(ctx context.Context, rt *Runtime, args Args) error {
	conv, err := rt.Manager.NewConversation(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return outputJSON(rt.Out, conversationJSON(conv))
	}
	if args.Quiet {
		fmt.Fprintln(rt.Out, conv.ID)
		return nil
	}
	fmt.Fprintf(rt.Out, "%s %s\n", SuccessStyle.Render("Created"), conv.ID)
	return nil
}

// =============================================================================
// SHOW
// =============================================================================

// MessageJSON is the --json form of a message.
type MessageJSON struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationDetailJSON is the --json form of a whole conversation.
type ConversationDetailJSON struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []MessageJSON `json:"messages"`
}

func conversationJSON(conv *model.Conversation) ConversationDetailJSON {
	out := ConversationDetailJSON{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		Messages:  make([]MessageJSON, len(conv.Messages)),
	}
	for i, m := range conv.Messages {
		out.Messages[i] = MessageJSON{ID: m.ID, Role: m.Role.String(), Content: m.Content, Timestamp: m.Timestamp}
	}
	return out
}

// HandleShow prints every message of a conversation.
func HandleShow(ctx context.Context, rt *Runtime, args Args) error {
	if args.ConversationID == "" {
		return usageError(CmdShow, "conversation ID required")
	}
	id, err := rt.ResolveConversation(ctx, args.ConversationID)
	if err != nil {
		return err
	}
	conv, err := rt.Manager.Conversation(ctx, id)
	if err != nil {
		return err
	}

	if args.JSON {
		return outputJSON(rt.Out, conversationJSON(conv))
	}

	r := newRenderer(rt.Out, rt.Config.UI.Markdown)
	fmt.Fprintln(rt.Out, TitleStyle.Render(conv.Title))
	fmt.Fprintln(rt.Out, DimStyle.Render(fmt.Sprintf("%s  %s", conv.ID, pluralize(conv.MessageCount(), "message"))))
	for _, msg := range conv.Messages {
		fmt.Fprintln(rt.Out)
		printMessage(rt, r, msg)
	}
	return nil
}

func printMessage(rt *Runtime, r *renderer, msg *model.Message) {
	label := PromptStyle.Render(msg.Role.DisplayName())
	if msg.IsAssistant() {
		label = AssistantStyle.Render(msg.Role.DisplayName())
	}
	fmt.Fprintf(rt.Out, "%s %s\n", label, DimStyle.Render(msg.FormatTime()))
	if msg.IsAssistant() {
		fmt.Fprint(rt.Out, r.Render(msg.Content))
		return
	}
	fmt.Fprintln(rt.Out, msg.Content)
}

// =============================================================================
// DELETE
// =============================================================================

// HandleDelete deletes a conversation and its messages. Without --force the
// user is asked to confirm.
func HandleDelete(ctx context.Context, rt *Runtime, args Args) error {
	if args.ConversationID == "" {
		return usageError(CmdDelete, "conversation ID required")
	}
	id, err := rt.ResolveConversation(ctx, args.ConversationID)
	if err != nil {
		return err
	}

	if !args.Force {
		conv, err := rt.Manager.Conversation(ctx, id)
		if err != nil {
			return err
		}
		prompt := fmt.Sprintf("Delete %q (%s)? [y/N] ", conv.Title, pluralize(conv.MessageCount(), "message"))
		if !confirm(rt, prompt) {
			fmt.Fprintln(rt.Out, DimStyle.Render("Cancelled."))
			return nil
		}
	}

	if err := rt.Manager.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if !args.Quiet {
		fmt.Fprintf(rt.Out, "%s %s\n", SuccessStyle.Render("Deleted"), id)
	}
	return nil
}

// confirm asks a yes/no question on rt.In. Anything but y/yes is no.
func confirm(rt *Runtime, prompt string) bool {
	fmt.Fprint(rt.Out, prompt)
	line, err := bufio.NewReader(rt.In).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
