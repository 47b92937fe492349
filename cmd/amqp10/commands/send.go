package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcastelli/amqp10/internal/frames"
	"github.com/mcastelli/amqp10/internal/logger"
	"github.com/mcastelli/amqp10/pkg/engine"
)

var (
	sendTarget     string
	sendLinkName   string
	sendCount      int
	sendSettled    bool
	sendWaitSettle time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send [message...]",
	Short: "Send messages to an AMQP node",
	Long: `Open a connection, begin a session, attach a sender link, and transfer
one message per argument to the target node. Without arguments a single
empty message is sent.

Unless --settled is given, the command waits for the peer's dispositions
before ending the session.

Examples:
  # Send one message
  amqp10 send --target orders '{"id": 1}'

  # Send the same payload 100 times
  amqp10 send --target orders --count 100 "ping"

  # Fire and forget
  amqp10 send --target logs --settled "audit line"`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendTarget, "target", "", "Target node address (required)")
	sendCmd.Flags().StringVar(&sendLinkName, "link", "", "Link name (default: generated)")
	sendCmd.Flags().IntVar(&sendCount, "count", 1, "Send each message this many times")
	sendCmd.Flags().BoolVar(&sendSettled, "settled", false, "Send pre-settled (no dispositions expected)")
	sendCmd.Flags().DurationVar(&sendWaitSettle, "settle-timeout", 30*time.Second, "How long to wait for dispositions")
	_ = sendCmd.MarkFlagRequired("target")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer env.shutdown()

	// Settlement tracking: every settled disposition may cover a range,
	// so count ids, not events.
	var (
		mu      sync.Mutex
		settled int
		allDone = make(chan struct{})
		total   int
	)

	handlers := engine.SessionHandlers{
		DispositionReceived: func(ev engine.DispositionEvent) {
			if !ev.Settled {
				return
			}
			mu.Lock()
			settled += int(ev.Last-ev.First) + 1
			done := total > 0 && settled >= total
			mu.Unlock()
			if done {
				select {
				case <-allDone:
				default:
					close(allDone)
				}
			}
		},
	}

	s, err := beginSession(env, 10*time.Second, handlers)
	if err != nil {
		return err
	}

	l, err := s.AttachLink(engine.LinkOptions{
		Name:   sendLinkName,
		Role:   frames.RoleSender,
		Target: sendTarget,
	})
	if err != nil {
		return fmt.Errorf("attach sender: %w", err)
	}

	payloads := args
	if len(payloads) == 0 {
		payloads = []string{""}
	}

	sent := 0
	for i := 0; i < sendCount; i++ {
		for _, p := range payloads {
			id, err := s.Send(l, &frames.Message{Data: []byte(p)}, engine.SendOptions{
				Settled: sendSettled,
			})
			if err != nil {
				return fmt.Errorf("send delivery %d: %w", id, err)
			}
			sent++
		}
	}

	mu.Lock()
	total = sent
	done := sendSettled || settled >= total
	mu.Unlock()

	if !done {
		logger.Info("waiting for dispositions", "sent", sent)
		select {
		case <-allDone:
		case <-ctx.Done():
			logger.Warn("interrupted while waiting for dispositions")
		case <-time.After(sendWaitSettle):
			logger.Warn("settle timeout reached", "unsettled", s.InFlight())
		}
	}

	if err := s.End(nil); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Sent %d message(s) to %q\n", sent, sendTarget)
	return nil
}
