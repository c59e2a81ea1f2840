// Package mq 提供基于 Kafka 的跨节点广播总线
// 每个进程使用独立的消费组，保证每条广播都能到达所有节点
package mq

import (
	"context"
	"errors"
	"sync"
	"time"

	"realtime_chat_server/internal/config"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// broadcastKey 所有广播使用同一个 key，Hash 分区后落在同一分区，保持全局顺序
var broadcastKey = []byte("broadcast")

// KafkaBroker Kafka 模式的广播总线
type KafkaBroker struct {
	writer *kafka.Writer
	reader *kafka.Reader

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewKafkaBroker 创建 Kafka 广播总线
// 消费组名带上进程唯一后缀，新节点从最新位置开始消费
func NewKafkaBroker(conf config.KafkaConfig) *KafkaBroker {
	timeout := conf.Timeout * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaBroker{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(conf.HostPort),
			Topic:                  conf.BroadcastTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           timeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        []string{conf.HostPort},
			Topic:          conf.BroadcastTopic,
			CommitInterval: timeout,
			GroupID:        "realtime_chat_" + uuid.NewString(),
			StartOffset:    kafka.LastOffset,
		}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// CreateTopic 创建广播主题，已存在时忽略
func CreateTopic(conf config.KafkaConfig) error {
	conn, err := kafka.Dial("tcp", conf.HostPort)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             conf.BroadcastTopic,
		NumPartitions:     conf.Partition,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return err
	}
	return nil
}

// Publish 写入一条广播
func (k *KafkaBroker) Publish(ctx context.Context, msg []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   broadcastKey,
		Value: msg,
	})
}

// Start 阻塞消费广播，Close 后返回
func (k *KafkaBroker) Start(handler func(msg []byte)) {
	for {
		m, err := k.reader.ReadMessage(k.ctx)
		if err != nil {
			if k.ctx.Err() != nil {
				return
			}
			zap.L().Error("kafka read broadcast failed", zap.Error(err))
			select {
			case <-k.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		zap.L().Debug("kafka broadcast received",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset))
		handler(m.Value)
	}
}

// Close 停止消费并关闭读写端
func (k *KafkaBroker) Close() error {
	var errs []error
	k.closeOnce.Do(func() {
		k.cancel()
		if err := k.writer.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := k.reader.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
