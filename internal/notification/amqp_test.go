// AngelaMos | 2026
// amqp_test.go

package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
)

type storeFunc func(ctx context.Context, ev Event) error

func (f storeFunc) Store(ctx context.Context, ev Event) error { return f(ctx, ev) }

func eventBody(t *testing.T, ev Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestConsumerHandleOutcomes(t *testing.T) {
	valid := Event{ID: "e1", UserID: "u1", Category: CategoryBilling, Title: "t", Message: "m"}

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		storeErr    error
		want        outcome
	}{
		{name: "stored", body: eventBody(t, valid), want: outcomeAck},
		{name: "malformed json", body: []byte("{"), want: outcomeDrop},
		{
			name: "unknown category",
			body: eventBody(t, Event{ID: "e2", UserID: "u1", Category: "x"}),
			want: outcomeDrop,
		},
		{
			name:     "transient store failure",
			body:     eventBody(t, valid),
			storeErr: errors.New("db down"),
			want:     outcomeRequeue,
		},
		{
			name:        "failure after redelivery",
			body:        eventBody(t, valid),
			storeErr:    errors.New("db down"),
			redelivered: true,
			want:        outcomeDrop,
		},
		{
			name:     "user gone",
			body:     eventBody(t, valid),
			storeErr: core.ErrNotFound,
			want:     outcomeDrop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConsumer(
				config.AMQPConfig{Queue: "notifications.created"},
				storeFunc(func(context.Context, Event) error { return tt.storeErr }),
				quietLogger(),
			)

			got := c.handle(context.Background(), tt.body, tt.redelivered)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewConsumerDefaultsPrefetch(t *testing.T) {
	c := NewConsumer(config.AMQPConfig{}, nil, quietLogger())
	assert.Equal(t, 20, c.prefetch)
}
