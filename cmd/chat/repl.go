package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/deepfinance/chat-client/internal/api"
	"github.com/deepfinance/chat-client/internal/channel"
	"github.com/deepfinance/chat-client/internal/credstore"
	"github.com/deepfinance/chat-client/internal/models"
	"github.com/deepfinance/chat-client/internal/session"
	"go.uber.org/zap"
)

type repl struct {
	sync    *session.Synchronizer
	client  *api.Client
	manager *channel.Manager
	creds   credstore.Store
	logger  *zap.Logger
	in      io.Reader
}

func newREPL(sync *session.Synchronizer, client *api.Client, manager *channel.Manager, creds credstore.Store, logger *zap.Logger) *repl {
	r := &repl{
		sync:    sync,
		client:  client,
		manager: manager,
		creds:   creds,
		logger:  logger,
		in:      os.Stdin,
	}

	sync.OnIncoming(func(msg models.Message) {
		printMessage(msg)
	})
	sync.OnHistory(func(threadID string, messages []models.Message) {
		fmt.Printf("--- %d message(s) in thread %s ---\n", len(messages), threadID)
		for _, msg := range messages {
			printMessage(msg)
		}
	})

	return r
}

func printMessage(msg models.Message) {
	prefix := "assistant"
	if msg.Sender == models.SenderUser {
		prefix = "you"
	}
	fmt.Printf("[%s] %s\n", prefix, msg.Content)
}

// run processes input lines until EOF, /quit or context cancellation. The
// scanner blocks on its own goroutine so a cancelled context stops the REPL
// without waiting for another input line.
func (r *repl) run(ctx context.Context) error {
	fmt.Println("Commands: /login <email> <password>, /logout, /threads, /open <n>, /new, /connect, /quit")
	fmt.Println("Anything else is sent as a chat message.")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line := <-lines:
			if quit := r.handleLine(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

// handleLine dispatches one input line; it reports true when the REPL
// should exit.
func (r *repl) handleLine(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if err := r.sync.Send(ctx, line); err != nil {
			fmt.Println("! send failed:", err)
		}
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/login":
		if len(fields) != 3 {
			fmt.Println("usage: /login <email> <password>")
			return false
		}
		r.login(ctx, fields[1], fields[2])
	case "/logout":
		r.logout()
	case "/threads":
		r.listThreads(ctx)
	case "/open":
		if len(fields) != 2 {
			fmt.Println("usage: /open <n>")
			return false
		}
		r.openThread(fields[1])
	case "/new":
		r.sync.ResetThread()
		fmt.Println("Started a new conversation; the next message creates a thread.")
	case "/connect":
		r.connect(ctx)
	case "/quit":
		return true
	default:
		fmt.Println("Unknown command:", fields[0])
	}
	return false
}

func (r *repl) login(ctx context.Context, email, password string) {
	result, err := r.client.Login(ctx, email, password)
	if err != nil {
		fmt.Println("! login failed:", err)
		return
	}
	if err := r.creds.SaveToken(result.Token); err != nil {
		r.logger.Error("Failed to persist token", zap.Error(err))
	}
	r.client.SetToken(result.Token)

	// A fresh token supersedes any live channel.
	if err := r.manager.Connect(ctx, result.Token); err != nil {
		fmt.Println("! channel connect failed:", err)
	}
	if err := r.sync.RefreshThreads(ctx); err != nil {
		fmt.Println("! thread refresh failed:", err)
	}
	fmt.Println("Logged in.")
}

// logout drops the stored token and everything fetched under it: the client
// credential, the live channel and the session state.
func (r *repl) logout() {
	if err := r.creds.Clear(); err != nil {
		r.logger.Error("Failed to clear stored token", zap.Error(err))
	}
	r.client.SetToken("")
	if err := r.manager.Close(); err != nil {
		r.logger.Error("Failed to close channel", zap.Error(err))
	}
	r.sync.Reset()
	fmt.Println("Logged out.")
}

func (r *repl) listThreads(ctx context.Context) {
	if err := r.sync.RefreshThreads(ctx); err != nil {
		fmt.Println("! thread refresh failed:", err)
		return
	}
	snap := r.sync.Snapshot()
	if len(snap.Threads) == 0 {
		fmt.Println("No conversations yet.")
		return
	}
	for i, t := range snap.Threads {
		marker := " "
		if t.ID == snap.ActiveThreadID {
			marker = "*"
		}
		title := t.Title
		if title == "" {
			title = "Conversation"
		}
		fmt.Printf("%s %2d. %s\n", marker, i+1, title)
	}
}

func (r *repl) openThread(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		fmt.Println("usage: /open <n>")
		return
	}
	snap := r.sync.Snapshot()
	if n > len(snap.Threads) {
		fmt.Printf("No such thread; %d listed.\n", len(snap.Threads))
		return
	}
	r.sync.ActivateThread(snap.Threads[n-1].ID)
}

func (r *repl) connect(ctx context.Context) {
	token, err := r.creds.Token()
	if err != nil {
		fmt.Println("Not authenticated; use /login first.")
		return
	}
	if err := r.manager.Connect(ctx, token); err != nil {
		fmt.Println("! channel connect failed:", err)
		return
	}
	fmt.Println("Channel open.")
}
