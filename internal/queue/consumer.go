package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	auditQueueName  = "payments.audit"
	auditRoutingKey = "payment.updated"
	auditFileName   = "payments.log"
)

// DeclareExchange declares the durable topic exchange table events go to.
func DeclareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
}

// StartPaymentAuditConsumer binds the payments.audit queue to settled
// payment events and appends one line per payment to <dir>/payments.log.
// It reconnects with backoff until ctx is cancelled, which is the only
// way it returns.
func StartPaymentAuditConsumer(ctx context.Context, url, dir string) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("payment-audit: failed to dial broker", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, dir)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("payment-audit: consume loop ended; reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		slog.Warn("payment-audit: set QoS failed", "error", err)
	}
	if err := DeclareExchange(ch); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(auditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(auditQueueName, auditRoutingKey, Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(auditQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(dir, d.Body); err != nil {
				slog.Error("payment-audit: handle message failed", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage appends an audit line for one payment.updated envelope.
func handleMessage(dir string, body []byte) error {
	var ev TableEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	var p PaymentSettled
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal payment: %w", err)
	}
	if p.ID == "" {
		return errors.New("payment without id")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, auditFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	items := make([]string, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		items = append(items, fmt.Sprintf("%s:%d", a.OrderItemID, a.AmountCents))
	}
	shares := "-"
	if p.SharesPaid != nil {
		shares = fmt.Sprint(*p.SharesPaid)
	}
	line := fmt.Sprintf("[%s] Payment %s | payment_id=%s | session_id=%s | mode=%s | amount=%d cents | base=%d | tip=%d | shares=%s | allocations=[%s]\n",
		ev.OccurredAt, strings.ToLower(p.Status), p.ID, p.SessionID, p.Mode, p.AmountCents, p.BaseCents, p.TipCents,
		shares, strings.Join(items, ","))

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
