package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/connect-chat/backend/internal/config"
	"github.com/zhouzirui/connect-chat/backend/internal/logging"
	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
	"github.com/zhouzirui/connect-chat/backend/internal/service/relay"
	"github.com/zhouzirui/connect-chat/backend/internal/service/session"
	"github.com/zhouzirui/connect-chat/backend/internal/service/stream"
)

type options struct {
	firstName        string
	lastName         string
	participantToken string
	relayURL         string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a contact centre agent through the relay",
		Long: "Starts a chat session through the relay and streams agent messages to the terminal.\n" +
			"Type a line to send it, /leave to end the session, /start <first> <last> to begin\n" +
			"a new one and /quit to leave and exit.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.firstName, "first", "", "visitor first name")
	cmd.Flags().StringVar(&opts.lastName, "last", "", "visitor last name")
	cmd.Flags().StringVar(&opts.participantToken, "participant-token", "", "rejoin an existing contact with this participant token")
	cmd.Flags().StringVar(&opts.relayURL, "relay-url", "", "relay base URL (defaults to RELAY_URL)")

	return cmd
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded")
	}

	relayURL := cfg.Client.RelayURL
	if opts.relayURL != "" {
		relayURL = opts.relayURL
	}

	dialOpts := stream.DefaultOptions()
	dialOpts.Topic = cfg.Client.StreamTopic

	ctrl := session.NewController(
		relay.NewHTTPClient(relayURL, cfg.Client.HTTPTimeout),
		session.WebsocketOpener{Dialer: stream.NewDialer(dialOpts)},
		newTerminalSink(out),
		&session.Options{
			RefreshMargin:  cfg.Client.RefreshMargin,
			RequestTimeout: cfg.Client.HTTPTimeout,
			Topic:          cfg.Client.StreamTopic,
		},
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctrl.Disconnect(shutdownCtx)
	}()

	if opts.firstName != "" || opts.lastName != "" {
		if opts.participantToken != "" {
			err = ctrl.Rejoin(ctx, opts.firstName, opts.lastName, opts.participantToken)
		} else {
			err = ctrl.Start(ctx, opts.firstName, opts.lastName)
		}
		report(out, err)
	} else {
		fmt.Fprintln(out, "Type /start <first> <last> to begin.")
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, ctrl, out, line); quit {
				return nil
			}
		}
	}
}

// chatSession is the part of the controller the input loop drives.
type chatSession interface {
	Start(ctx context.Context, firstName, lastName string) error
	Send(ctx context.Context, text string) error
	Leave(ctx context.Context)
}

// handleLine dispatches one line of user input and reports whether to exit.
func handleLine(ctx context.Context, s chatSession, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "/quit":
		s.Leave(ctx)
		return true
	case "/leave":
		s.Leave(ctx)
	case "/start":
		var first, last string
		if len(fields) > 1 {
			first = fields[1]
		}
		if len(fields) > 2 {
			last = strings.Join(fields[2:], " ")
		}
		report(out, s.Start(ctx, first, last))
	default:
		report(out, s.Send(ctx, line))
	}
	return false
}

func report(out io.Writer, err error) {
	if err == nil {
		return
	}
	if chat.IsValidation(err) {
		fmt.Fprintf(out, "! %v\n", err)
		return
	}
	fmt.Fprintf(out, "! request failed: %v\n", err)
}
