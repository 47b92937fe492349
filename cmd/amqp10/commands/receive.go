package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcastelli/amqp10/internal/frames"
	"github.com/mcastelli/amqp10/internal/logger"
	"github.com/mcastelli/amqp10/pkg/engine"
)

var (
	receiveSource   string
	receiveLinkName string
	receiveCredit   uint32
	receiveCount    int
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receive messages from an AMQP node",
	Long: `Open a connection, begin a session, attach a receiver link with the
given credit, and print each received message to stdout.

With --count the command exits after that many messages; otherwise it
runs until interrupted.

Examples:
  # Drain ten messages
  amqp10 receive --source orders --count 10

  # Follow a node until Ctrl+C
  amqp10 receive --source logs --credit 500`,
	RunE: runReceive,
}

func init() {
	receiveCmd.Flags().StringVar(&receiveSource, "source", "", "Source node address (required)")
	receiveCmd.Flags().StringVar(&receiveLinkName, "link", "", "Link name (default: generated)")
	receiveCmd.Flags().Uint32Var(&receiveCredit, "credit", 100, "Link credit to grant the peer")
	receiveCmd.Flags().IntVar(&receiveCount, "count", 0, "Exit after this many messages (0 = run until interrupted)")
	_ = receiveCmd.MarkFlagRequired("source")
}

func runReceive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer env.shutdown()

	s, err := beginSession(env, 10*time.Second, engine.SessionHandlers{})
	if err != nil {
		return err
	}

	var received atomic.Int64
	done := make(chan struct{})

	_, err = s.AttachLink(engine.LinkOptions{
		Name:   receiveLinkName,
		Role:   frames.RoleReceiver,
		Source: receiveSource,
		Credit: receiveCredit,
		OnMessage: func(l *engine.Link, msg *frames.Message) {
			printMessage(msg)

			n := received.Add(1)
			if receiveCount > 0 && n >= int64(receiveCount) {
				select {
				case <-done:
				default:
					close(done)
				}
				return
			}

			// Replenish window and credit as we consume so a
			// long-running receive never stalls.
			if l.Credit() == 0 {
				if err := s.AddWindow(receiveCredit, engine.FlowOptions{}); err != nil {
					logger.Warn("window top-up failed", logger.Err(err))
				}
				if err := s.IssueCredit(l, receiveCredit); err != nil {
					logger.Warn("credit top-up failed", logger.Err(err))
				}
			}
		},
	})
	if err != nil {
		return fmt.Errorf("attach receiver: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := s.End(nil); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Received %d message(s) from %q\n", received.Load(), receiveSource)
	return nil
}

// printMessage writes one message body to stdout: raw bytes for data
// sections, the Go rendering for amqp-value sections.
func printMessage(msg *frames.Message) {
	switch {
	case msg.Data != nil:
		os.Stdout.Write(msg.Data)
		if len(msg.Data) == 0 || msg.Data[len(msg.Data)-1] != '\n' {
			fmt.Println()
		}
	case msg.Value != "":
		fmt.Println(msg.Value)
	default:
		fmt.Println("(empty message)")
	}
}
