package mq

import "context"

// Message 一条出站业务事件 (入账/结算等)
type Message struct {
	ID      string // 消息 ID (例如 Redis Stream ID)
	Topic   string
	Key     string // 分区键 (例如 UserID), Kafka 按它保序
	Payload []byte // JSON
}

// Producer 生产者接口。Outbox Relay 只依赖这一个方法，
// Kafka 和 Redis Stream 各有一个实现，按配置切换。
type Producer interface {
	// Publish 发送消息。key 为空表示随机分区。
	Publish(ctx context.Context, topic string, key string, payload []byte) error

	Close() error
}
