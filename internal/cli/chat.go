// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/jeranaias/iris/internal/config"
	"github.com/jeranaias/iris/internal/session"
	"github.com/jeranaias/iris/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history, readable by the owner only.
func (c *ChatCLI) SaveHistory() {
	_ = util.WriteFileAtomic(c.historyFile, util.PrivatePerms, func(w io.Writer) error {
		_, err := c.line.WriteHistory(w)
		return err
	})
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// chatSession is the state of one "iris chat" run.
type chatSession struct {
	rt      *Runtime
	input   lineReader
	updates <-chan session.Update
	quiet   bool

	mu        sync.Mutex
	convID    string
	streaming bool
}

func (s *chatSession) conversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convID
}

func (s *chatSession) setConversation(id string) {
	s.mu.Lock()
	s.convID = id
	s.mu.Unlock()
}

func (s *chatSession) setStreaming(v bool) {
	s.mu.Lock()
	s.streaming = v
	s.mu.Unlock()
}

// interrupt cancels the reply being streamed, if any. It reports whether
// there was one.
func (s *chatSession) interrupt() bool {
	s.mu.Lock()
	id, streaming := s.convID, s.streaming
	s.mu.Unlock()
	if !streaming || id == "" {
		return false
	}
	s.rt.Manager.Cancel(id)
	return true
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the interactive chat REPL. With --conversation it resumes
// that conversation; otherwise a new one is created on the first prompt.
// Ctrl+C while a reply streams stops the reply; at the prompt it exits.
func HandleChat(ctx context.Context, rt *Runtime, args Args) error {
	var convID string
	if args.ConversationID != "" {
		id, err := rt.ResolveConversation(ctx, args.ConversationID)
		if err != nil {
			return err
		}
		convID = id
	}

	input := NewChatCLI()
	defer input.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	return runChat(ctx, rt, input, convID, args.Quiet, sigCh)
}

// runChat is the REPL loop. Signals received on sigCh cancel the current reply.
func runChat(ctx context.Context, rt *Runtime, input lineReader, convID string, quiet bool, sigCh <-chan os.Signal) error {
	updates, unsubscribe := rt.Manager.Subscribe()
	defer unsubscribe()

	s := &chatSession{rt: rt, input: input, updates: updates, quiet: quiet, convID: convID}

	sigDone := make(chan struct{})
	defer close(sigDone)
	go func() {
		for {
			select {
			case <-sigCh:
				if s.interrupt() {
					fmt.Fprintln(rt.Err, "\n"+WarningStyle.Render("[Cancelled]"))
				}
			case <-sigDone:
				return
			}
		}
	}()

	if !quiet {
		s.printWelcome(ctx)
	}

	for {
		line, err := input.ReadInput(PromptStyle.Render("iris> "))
		if err != nil {
			fmt.Fprintln(rt.Out)
			if isPromptAborted(err) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			cont, err := s.handleSlashCommand(ctx, line)
			if err != nil {
				DisplayError(rt.Err, err, false)
			}
			if !cont {
				return nil
			}
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		if err := s.send(ctx, line); err != nil {
			DisplayError(rt.Err, err, false)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *chatSession) printWelcome(ctx context.Context) {
	out := s.rt.Out
	fmt.Fprintln(out, TitleStyle.Render("iris chat"))

	avail := s.rt.Manager.Availability()
	if avail.IsAvailable() {
		model := s.rt.Config.Gateway.Model
		if model == "" {
			model = "server default"
		}
		fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("Model: %s (%s)", model, s.rt.Config.Gateway.Backend)))
	} else {
		fmt.Fprintf(out, "%s %s\n", WarningStyle.Render("[!] AI Model Unavailable:"), avail.Description())
		fmt.Fprintln(out, DimStyle.Render("Use /retry to check again."))
	}

	if id := s.conversation(); id != "" {
		if conv, err := s.rt.Manager.Conversation(ctx, id); err == nil {
			fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("Resuming %q (%s)", conv.Title, pluralize(conv.MessageCount(), "message"))))
		}
	}
	fmt.Fprintln(out, DimStyle.Render("Type /help for commands. Ctrl+C stops a reply, Ctrl+D exits."))
	fmt.Fprintln(out)
}

// =============================================================================
// SENDING
// =============================================================================

// send submits prompt and prints the reply as it streams.
func (s *chatSession) send(ctx context.Context, prompt string) error {
	if a := s.rt.Manager.Availability(); !a.IsAvailable() {
		return &session.Error{Kind: session.KindUnavailable, Message: a.Description(), Availability: a}
	}

	convID := s.conversation()
	if convID == "" {
		conv, err := s.rt.Manager.NewConversation(ctx)
		if err != nil {
			return err
		}
		convID = conv.ID
		s.setConversation(convID)
	}

	s.setStreaming(true)
	defer s.setStreaming(false)

	ex, err := s.rt.Manager.Submit(ctx, convID, prompt)
	if err != nil {
		if ex != nil {
			// The exchange already ended; consume its updates so the next
			// reply does not pick them up.
			s.follow(ctx, ex, io.Discard, &deltaPrinter{})
		}
		return err
	}

	fmt.Fprintln(s.rt.Out)
	fmt.Fprintln(s.rt.Out, AssistantStyle.Render("Assistant"))
	printer := &deltaPrinter{}
	if err := s.follow(ctx, ex, s.rt.Out, printer); err != nil {
		return err
	}

	outcome, err := ex.Wait(ctx)
	if err != nil {
		return err
	}
	if outcome.Status == session.StatusCompleted && outcome.Message != nil && outcome.Message.Content != printer.Shown() {
		printer.Print(s.rt.Out, outcome.Message.Content)
	}
	empty := printer.Shown() == ""
	printer.Finish(s.rt.Out)
	fmt.Fprintln(s.rt.Out)

	switch outcome.Status {
	case session.StatusFailed:
		return outcome.Err
	case session.StatusCompleted:
		if empty {
			fmt.Fprintln(s.rt.Out, DimStyle.Render("(empty response)"))
		}
	}
	return nil
}

// follow prints snapshots of ex until it ends. A terminal status only counts
// once ex is done: the manager publishes it in the same step that settles
// the exchange, so one seen earlier belongs to a previous exchange.
func (s *chatSession) follow(ctx context.Context, ex *session.Exchange, w io.Writer, printer *deltaPrinter) error {
	for {
		select {
		case u, ok := <-s.updates:
			if !ok {
				return session.ErrClosed
			}
			if u.ConversationID != ex.ConversationID {
				continue
			}
			switch {
			case u.Kind == session.UpdatePartial:
				printer.Print(w, u.Content)
			case u.Kind == session.UpdateStatus && u.Status.IsTerminal() && exchangeDone(ex):
				return nil
			}
		case <-ctx.Done():
			s.rt.Manager.Cancel(ex.ConversationID)
			return ctx.Err()
		}
	}
}

func exchangeDone(ex *session.Exchange) bool {
	select {
	case <-ex.Done():
		return true
	default:
		return false
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const chatHelp = `Commands:
  /help, /h          Show this help
  /new               Start a new conversation
  /list, /ls         List conversations
  /open ID           Switch to a conversation (ID may be a prefix)
  /history           Print the current conversation
  /retry             Check the model's availability again
  /quit, /q          Exit chat
`

// handleSlashCommand runs one slash command. It returns false when the REPL
// should exit.
func (s *chatSession) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	out := s.rt.Out

	switch cmd {
	case "/help", "/h", "/?":
		fmt.Fprint(out, chatHelp)

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new":
		conv, err := s.rt.Manager.NewConversation(ctx)
		if err != nil {
			return true, err
		}
		s.setConversation(conv.ID)
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("New conversation"), shortID(conv.ID))

	case "/list", "/ls":
		return true, HandleList(ctx, s.rt, Args{Limit: 20})

	case "/open":
		if arg == "" {
			return true, usageError(CmdChat, "usage: /open ID")
		}
		id, err := s.rt.ResolveConversation(ctx, arg)
		if err != nil {
			return true, err
		}
		s.setConversation(id)
		conv, err := s.rt.Manager.Conversation(ctx, id)
		if err != nil {
			return true, err
		}
		fmt.Fprintf(out, "%s %q (%s)\n", SuccessStyle.Render("Opened"), conv.Title, pluralize(conv.MessageCount(), "message"))

	case "/history":
		id := s.conversation()
		if id == "" {
			fmt.Fprintln(out, DimStyle.Render("No messages yet."))
			return true, nil
		}
		return true, HandleShow(ctx, s.rt, Args{ConversationID: id})

	case "/retry":
		avail := s.rt.Manager.CheckAvailability(ctx)
		if avail.IsAvailable() {
			fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("[OK]"), avail.Description())
		} else {
			fmt.Fprintf(out, "%s %s\n", WarningStyle.Render("[!]"), avail.Description())
		}

	default:
		return true, fmt.Errorf("unknown command %s (type /help)", cmd)
	}
	return true, nil
}

// isPromptAborted reports whether err came from Ctrl+C at the prompt or
// the end of input.
func isPromptAborted(err error) bool {
	return errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF)
}
