package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/jimlawless/whereami"
	"github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type Producer struct {
	writer *kafka.Writer
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) (*Producer, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("Kafka producer error: %s", err.Error())
			}
		},
	}

	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// WriteRawMessage публикует готовое событие. Ключом сообщения служит идентификатор предмета,
// поэтому события одного предмета попадают в одну партицию по порядку.
func (p *Producer) WriteRawMessage(ctx context.Context, req *usecase.WriteRawMessageReq) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(req.ItemID.String()),
		Value: req.Payload,
	})
}

func (p *Producer) EnsureTopic(timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		err := conn.CreateTopics(kafka.TopicConfig{
			Topic:             p.cfg.Topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", p.cfg.Topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, p.cfg.Topic))
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// EventEncoder кодирует события эталонов в protobuf Struct.
type EventEncoder struct{}

func (EventEncoder) EncodeEnrollmentEvent(event *usecase.EnrollmentEvent) ([]byte, error) {
	msg, err := toProtoEvent(event)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	return proto.Marshal(msg)
}

// DecodeEnrollmentEvent разбирает событие, закодированное EncodeEnrollmentEvent.
func DecodeEnrollmentEvent(payload []byte) (map[string]any, error) {
	msg := &structpb.Struct{}
	if err := proto.Unmarshal(payload, msg); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	return msg.AsMap(), nil
}

func toProtoEvent(event *usecase.EnrollmentEvent) (*structpb.Struct, error) {
	ids := make([]any, len(event.EmbeddingIDs))
	for i, id := range event.EmbeddingIDs {
		ids[i] = id.String()
	}

	urls := make([]any, len(event.ImageURLs))
	for i, u := range event.ImageURLs {
		urls[i] = u
	}

	return structpb.NewStruct(map[string]any{
		"event_id":        event.EventID.String(),
		"event_type":      string(event.Type),
		"item_id":         event.ItemID.String(),
		"backend":         event.Backend,
		"embedding_ids":   ids,
		"image_urls":      urls,
		"occurred_at":     event.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
}

var (
	_ usecase.MessageProducer = (*Producer)(nil)
	_ usecase.EventEncoder    = EventEncoder{}
)
