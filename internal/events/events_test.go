package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	exchange, key string
	body          []byte
}

type fakeSender struct {
	msgs []sent
	err  error
}

func (f *fakeSender) Publish(_ context.Context, exchange, key string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, sent{exchange, key, body})
	return nil
}

func TestAMQPPublisherEncodesEvent(t *testing.T) {
	sender := &fakeSender{}
	p := NewAMQPPublisher(sender, "")

	require.NoError(t, p.Publish(context.Background(), OrderChanged(4, 2, 9)))
	require.Len(t, sender.msgs, 1)
	assert.Equal(t, Exchange, sender.msgs[0].exchange)
	assert.Equal(t, "table.4", sender.msgs[0].key)

	var got Event
	require.NoError(t, json.Unmarshal(sender.msgs[0].body, &got))
	assert.Equal(t, IssueChanged, got.Type)
	assert.Equal(t, int64(4), got.TableID)
	assert.Equal(t, int64(2), got.BranchID)
	assert.Equal(t, int64(9), got.OrderID)
}

func TestEmitSwallowsErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("broker down")}
	p := NewAMQPPublisher(sender, "x")

	assert.Error(t, p.Publish(context.Background(), OrderChanged(1, 1, 1)))
	assert.NotPanics(t, func() {
		Emit(context.Background(), p, OrderChanged(1, 1, 1))
		Emit(context.Background(), nil, OrderChanged(1, 1, 1))
	})
}
