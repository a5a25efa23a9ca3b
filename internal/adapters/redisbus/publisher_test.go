package redisbus_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/valuebot/internal/adapters/redisbus"
	"github.com/alejandrodnm/valuebot/internal/application/broadcast"
)

type published struct {
	channel string
	payload []byte
}

type fakeClient struct {
	sent []published
	err  error
}

func (f *fakeClient) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.sent = append(f.sent, published{channel: channel, payload: message.([]byte)})
	return redis.NewIntResult(1, nil)
}

func TestPublish(t *testing.T) {
	fc := &fakeClient{}
	p := redisbus.NewPublisher(fc, "")

	msg := broadcast.Message{
		PresetID:      "p1",
		Opportunities: []broadcast.OpportunityView{{RowID: "ev1_sxbet_h2h_home", Price: 2.2}},
		OddsIncreased: []string{"ev1_sxbet_h2h_home"},
		OddsDecreased: []string{},
	}
	require.NoError(t, p.Publish(context.Background(), msg))

	require.Len(t, fc.sent, 1)
	assert.Equal(t, "valuebot:preset:p1", fc.sent[0].channel)

	var got broadcast.Message
	require.NoError(t, json.Unmarshal(fc.sent[0].payload, &got))
	assert.Equal(t, "p1", got.PresetID)
	require.Len(t, got.Opportunities, 1)
	assert.Equal(t, "ev1_sxbet_h2h_home", got.Opportunities[0].RowID)
	assert.Equal(t, []string{"ev1_sxbet_h2h_home"}, got.OddsIncreased)
}

func TestPublish_CustomPrefix(t *testing.T) {
	p := redisbus.NewPublisher(&fakeClient{}, "staging")
	assert.Equal(t, "staging:preset:abc", p.Channel("abc"))
}

func TestPublish_Error(t *testing.T) {
	down := errors.New("connection refused")
	p := redisbus.NewPublisher(&fakeClient{err: down}, "")
	err := p.Publish(context.Background(), broadcast.Message{PresetID: "p1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "valuebot:preset:p1")
}
