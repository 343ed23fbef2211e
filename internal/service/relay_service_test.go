package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tron-wallet-core/internal/model"
)

type fakeProducer struct {
	published []string // topics
	fail      bool
}

func (p *fakeProducer) Publish(_ context.Context, topic string, _ string, _ []byte) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, topic)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestRelayDeliversPendingMessages(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{}
	relay := NewRelayService(db, producer)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := model.CreateOutboxMessage(tx, TopicDepositCredited, map[string]string{"a": "1"}); err != nil {
			return err
		}
		return model.CreateOutboxMessage(tx, TopicWithdrawalSettled, map[string]string{"b": "2"})
	}))

	require.NoError(t, relay.RelayOnce(context.Background()))

	assert.Equal(t, []string{TopicDepositCredited, TopicWithdrawalSettled}, producer.published)
	var pending int64
	db.Model(&model.OutboxMessage{}).Where("status = ?", "PENDING").Count(&pending)
	assert.EqualValues(t, 0, pending)
}

func TestRelayKeepsMessageOnPublishFailure(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{fail: true}
	relay := NewRelayService(db, producer)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return model.CreateOutboxMessage(tx, TopicDepositCredited, map[string]string{"a": "1"})
	}))

	require.NoError(t, relay.RelayOnce(context.Background()))

	// 投递失败的消息留在 PENDING, 下一轮重发 (至少一次语义)
	var pending int64
	db.Model(&model.OutboxMessage{}).Where("status = ?", "PENDING").Count(&pending)
	assert.EqualValues(t, 1, pending)

	producer.fail = false
	require.NoError(t, relay.RelayOnce(context.Background()))
	db.Model(&model.OutboxMessage{}).Where("status = ?", "PENDING").Count(&pending)
	assert.EqualValues(t, 0, pending)
}

func TestRunLatchSkipsOverlap(t *testing.T) {
	var l runLatch
	require.True(t, l.TryLock())
	assert.False(t, l.TryLock())
	l.Unlock()
	assert.True(t, l.TryLock())
}
