package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tron-wallet-core/internal/model"
	"tron-wallet-core/internal/service/mq"
	"tron-wallet-core/pkg/logger"
)

const relayBatchSize = 50

// RelayService 把本地消息表 (Outbox) 的待发消息搬运到 MQ。
// 先发后标 SENT: 标记失败时消息会重发，投递语义是至少一次，
// 消费端需要幂等。
type RelayService struct {
	db       *gorm.DB
	producer mq.Producer

	latch runLatch
}

func NewRelayService(db *gorm.DB, producer mq.Producer) *RelayService {
	return &RelayService{db: db, producer: producer}
}

// RelayOnce 搬运一批 PENDING 消息
func (s *RelayService) RelayOnce(ctx context.Context) error {
	if !s.latch.TryLock() {
		return nil
	}
	defer s.latch.Unlock()

	var messages []model.OutboxMessage
	err := s.db.WithContext(ctx).
		Where("status = ?", "PENDING").
		Order("id asc").Limit(relayBatchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	for i := range messages {
		msg := &messages[i]
		if err := s.producer.Publish(ctx, msg.Topic, "", msg.Payload); err != nil {
			logger.Error("消息投递失败", zap.Uint64("id", msg.ID), zap.String("topic", msg.Topic), zap.Error(err))
			continue
		}
		if err := s.db.WithContext(ctx).Model(msg).Update("status", "SENT").Error; err != nil {
			logger.Error("更新消息状态失败", zap.Uint64("id", msg.ID), zap.Error(err))
		}
	}
	return nil
}
