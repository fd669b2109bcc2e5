package pgmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Client runs pgmq queue functions over a pgx pool.
type Client struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

// Message is one pgmq message. ReadCount starts at 1 on the first read.
type Message struct {
	ID        int64
	ReadCount int
	Data      []byte
}

// Send pushes a JSON payload into queue and returns the message id.
func (c *Client) Send(ctx context.Context, queue string, payload []byte) (int64, error) {
	if !json.Valid(payload) {
		return 0, fmt.Errorf("pgmq send to %s: payload is not JSON", queue)
	}
	var id int64
	if err := c.pool.QueryRow(ctx, "SELECT pgmq.send($1, $2::jsonb, 0)", queue, string(payload)).Scan(&id); err != nil {
		return 0, fmt.Errorf("pgmq send to %s: %w", queue, err)
	}
	return id, nil
}

// SendJSON marshals v and sends it.
func (c *Client) SendJSON(ctx context.Context, queue string, v any) (int64, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("pgmq marshal for %s: %w", queue, err)
	}
	return c.Send(ctx, queue, payload)
}

// ReadWithPoll reads up to maxMessages from the queue, waiting up to
// timeoutSec seconds for the first one. Read messages stay invisible for
// visibilitySec seconds.
func (c *Client) ReadWithPoll(ctx context.Context, queue string, visibilitySec, timeoutSec, maxMessages int) ([]*Message, error) {
	const q = "SELECT msg_id, read_ct, message FROM pgmq.read_with_poll($1, $2, $3, $4)"
	rows, err := c.pool.Query(ctx, q, queue, visibilitySec, maxMessages, timeoutSec)
	if err != nil {
		return nil, fmt.Errorf("pgmq read_with_poll on %s: %w", queue, err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.ReadCount, &m.Data); err != nil {
			return nil, fmt.Errorf("pgmq read scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmq read rows: %w", err)
	}
	return msgs, nil
}

// Delete removes messages by id from queue.
func (c *Client) Delete(ctx context.Context, queue string, msgIDs []int64) error {
	if len(msgIDs) == 0 {
		return nil
	}
	if _, err := c.pool.Exec(ctx, "SELECT pgmq.delete($1, $2::bigint[])", queue, msgIDs); err != nil {
		return fmt.Errorf("pgmq delete on %s: %w", queue, err)
	}
	return nil
}
