package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"polls-service/internal/models"

	"github.com/IBM/sarama"
	kafkago "github.com/segmentio/kafka-go"
)

// InitKafkaProducer builds a synchronous producer that waits for all in-sync
// replicas and hashes messages onto partitions by key.
func InitKafkaProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Version = sarama.V2_0_0_0
	config.ClientID = clientID
	config.Producer.MaxMessageBytes = 1000000

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return producer, nil
}

// VoteProducer publishes VoteCast events keyed by poll id so that events of
// one poll keep their order.
type VoteProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewVoteProducer(producer sarama.SyncProducer, topic string) *VoteProducer {
	return &VoteProducer{producer: producer, topic: topic}
}

func (p *VoteProducer) PublishVote(ctx context.Context, msg models.VoteMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal vote event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(msg.PollID), 10)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(VoteCastEvent)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send vote event: %w", err)
	}

	slog.Debug("Vote event sent", "event_id", msg.EventID, "partition", partition, "offset", offset)
	return nil
}

func (p *VoteProducer) Close() error {
	return p.producer.Close()
}

const VoteCastEvent = "VoteCast"

// NewVoteReader returns a consumer-group reader for the vote topic.
func NewVoteReader(brokers []string, topic, groupID string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// DecodeVote parses a message produced by VoteProducer.
func DecodeVote(m kafkago.Message) (models.VoteMessage, error) {
	var msg models.VoteMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return msg, fmt.Errorf("invalid vote event at offset %d: %w", m.Offset, err)
	}
	return msg, nil
}
