package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/namikmesic/chatstream/internal/chat"
	"github.com/namikmesic/chatstream/internal/client"
	"github.com/namikmesic/chatstream/internal/store"
	"github.com/namikmesic/chatstream/internal/stream"
	"github.com/namikmesic/chatstream/internal/transcript"
)

var (
	askConversation string
	askDump         string
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the reply as it streams",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.OutOrStdout(), cmd.ErrOrStderr(), strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "Conversation id (default: a new uuid)")
	askCmd.Flags().StringVar(&askDump, "dump", "", "Write the raw event stream to this file")
}

func runAsk(out, errOut io.Writer, message string) error {
	cl, err := client.New(cfg.APIBaseURL, cfg.StreamPath)
	if err != nil {
		return fmt.Errorf("chat client: %w", err)
	}

	var opener chat.Opener = cl
	if askDump != "" {
		opener = dumpingOpener(cl, askDump)
	}

	conversationID := askConversation
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	mem := store.NewMemory()
	printer := &replyPrinter{out: out, errOut: errOut, printed: make(map[string]int)}
	unsubscribe := mem.Subscribe(printer.observe)
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := chat.New(opener, mem, controllerOptions(cfg)...)
	outcome, err := ctrl.Submit(ctx, chat.TurnInput{ConversationID: conversationID, Message: message})
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	if outcome == chat.OutcomeCancelled {
		fmt.Fprintln(errOut, "cancelled")
	}
	return nil
}

// dumpingOpener tees each opened body into path.
func dumpingOpener(next chat.Opener, path string) chat.Opener {
	return chat.OpenerFunc(func(ctx context.Context, req chat.Request) (io.ReadCloser, error) {
		body, err := next.Open(ctx, req)
		if err != nil {
			return nil, err
		}
		f, err := os.Create(path)
		if err != nil {
			body.Close()
			return nil, fmt.Errorf("create dump file: %w", err)
		}
		return stream.TeeBody(body, f), nil
	})
}

// replyPrinter writes the growth of each assistant entry's text to out, and
// tool starts and turn errors to errOut.
type replyPrinter struct {
	out     io.Writer
	errOut  io.Writer
	printed map[string]int
	tools   map[string]bool
}

func (p *replyPrinter) observe(e transcript.Entry, deleted bool) {
	if deleted || e.Role != transcript.RoleAssistant || e.State == nil {
		return
	}
	if p.tools == nil {
		p.tools = make(map[string]bool)
	}
	for _, tc := range e.State.ToolCalls {
		if !p.tools[tc.ID] {
			p.tools[tc.ID] = true
			fmt.Fprintf(p.errOut, "[tool %s]\n", tc.Name)
		}
	}

	text := e.State.Text
	if n := p.printed[e.ID]; len(text) > n {
		fmt.Fprint(p.out, text[n:])
		p.printed[e.ID] = len(text)
	}
	if e.Error != "" && e.Final {
		fmt.Fprintf(p.errOut, "\nerror: %s\n", e.Error)
	}
}
