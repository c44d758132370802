package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws/coder"
	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws/gorilla"
)

const pollInterval = 10 * time.Millisecond

var ErrFaulty = errors.New("websocket session ended faulty")

type connectOptions struct {
	params    ws.ConnectionParams
	transport string
	texts     []string
	binaries  []string
	timeout   time.Duration
	wait      time.Duration
	harsh     bool
}

func newConnectCmd(g *globalFlags) *cobra.Command {
	o := &connectOptions{}

	cmd := &cobra.Command{
		Use:   "connect <uri>",
		Short: "Connect, exchange messages and disconnect",
		Example: `  wsprobe connect wss://example.test/socket --send ping --wait 2s
  wsprobe connect ws://localhost:8080/ws --subprotocols v2.chat,v1.chat --login bob --password secret
  wsprobe connect ws://localhost:8080/ws --transport coder --send-binary cafebabe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.params.ServerURI = args[0]

			store, err := g.settings()
			if err != nil {
				return err
			}

			logger := g.logger(cmd)

			transport, err := newTransport(o.transport, logger)
			if err != nil {
				return err
			}

			conn, err := ws.NewConnectionConfig(o.params)
			if err != nil {
				return err
			}

			cfg := ws.DefaultClientConfig(conn, transport)
			cfg.Settings = store
			cfg.Logger = logger

			client, err := ws.NewClient(cfg)
			if err != nil {
				return err
			}

			return runProbe(cmd.Context(), client, o, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.params.Subprotocols, "subprotocols", "", "Comma-separated list of preferred subprotocols")
	f.StringVar(&o.params.Login, "login", "", "Login for HTTP Basic authentication")
	f.StringVar(&o.params.Password, "password", "", "Password for HTTP Basic authentication")
	f.StringVar(&o.params.KeyStorePath, "keystore", "", "Client keystore path (overrides settings)")
	f.StringVar(&o.params.KeyStorePassword, "keystore-password", "", "Client keystore password")
	f.StringVar(&o.params.KeyStoreType, "keystore-type", "", "Client keystore type (PKCS12, PEM)")
	f.StringVar(&o.transport, "transport", "gorilla", "WebSocket library (gorilla, coder)")
	f.StringArrayVar(&o.texts, "send", nil, "Text message to send, repeatable")
	f.StringArrayVar(&o.binaries, "send-binary", nil, "Hex-encoded binary message to send, repeatable")
	f.DurationVar(&o.timeout, "timeout", 30*time.Second, "Time allowed for each connect or send step")
	f.DurationVar(&o.wait, "wait", time.Second, "How long to collect incoming messages")
	f.BoolVar(&o.harsh, "harsh", false, "Drop the connection with PROTOCOL_ERROR instead of NORMAL_CLOSURE")

	return cmd
}

func newTransport(name string, logger *slog.Logger) (ws.Transport, error) {
	switch name {
	case "gorilla", "":
		opts := gorilla.DefaultOptions()
		opts.Logger = logger
		return gorilla.New(opts), nil
	case "coder":
		opts := coder.DefaultOptions()
		opts.Logger = logger
		return coder.New(opts), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}

func (o *connectOptions) messages() ([]ws.Message, error) {
	msgs := make([]ws.Message, 0, len(o.texts)+len(o.binaries))

	for _, t := range o.texts {
		msgs = append(msgs, ws.TextMessage(t))
	}

	for _, b := range o.binaries {
		data, err := hex.DecodeString(b)
		if err != nil {
			return nil, fmt.Errorf("invalid --send-binary %q: %w", b, err)
		}

		msgs = append(msgs, ws.BinaryMessage(data))
	}

	return msgs, nil
}

// runProbe ведёт клиента так же, как шаги теста: выдаёт команду и опрашивает
// состояние, пока не наступит исход или не истечёт собственный таймаут.
func runProbe(ctx context.Context, client *ws.Client, o *connectOptions, out io.Writer) error {
	defer client.Dispose()

	msgs, err := o.messages()
	if err != nil {
		return err
	}

	client.Connect()

	if err := step(ctx, client, o.timeout, func(c *ws.Client) bool {
		return c.IsConnected() || c.IsFaulty()
	}); err != nil {
		return err
	}

	if !client.IsConnected() {
		return faultError(client)
	}

	fmt.Fprintln(out, "connected")

	for _, m := range msgs {
		client.SendMessage(m)

		if err := step(ctx, client, o.timeout, func(c *ws.Client) bool {
			return c.IsAvailable() || c.IsFaulty()
		}); err != nil {
			return err
		}

		if client.IsFaulty() {
			return faultError(client)
		}

		fmt.Fprintf(out, "> %s\n", m)
	}

	deadline := time.After(o.wait)

collect:
	for {
		for {
			m, ok := client.NextMessage()
			if !ok {
				break
			}

			fmt.Fprintf(out, "< %s\n", m)
		}

		if !client.IsConnected() {
			break
		}

		select {
		case <-ctx.Done():
			break collect
		case <-deadline:
			break collect
		case <-time.After(pollInterval):
		}
	}

	client.Disconnect(o.harsh)

	if client.IsFaulty() {
		return faultError(client)
	}

	fmt.Fprintln(out, "disconnected")

	return nil
}

// step ждёт cond; по истечении таймаута отменяет незавершённую операцию.
func step(ctx context.Context, client *ws.Client, timeout time.Duration, cond func(*ws.Client) bool) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Await(stepCtx, pollInterval, cond); err != nil {
		client.Cancel()
		return fmt.Errorf("step timed out after %s: %w", timeout, err)
	}

	return nil
}

func faultError(client *ws.Client) error {
	if err := client.LastError(); err != nil {
		return fmt.Errorf("%w: %w", ErrFaulty, err)
	}

	return ErrFaulty
}
