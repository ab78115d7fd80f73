package producer

import (
	"context"
	"errors"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/evanfeinberg/deepchem/api/types"
)

// KafkaProducer is a Producer implementation for delivering sample batches through the
// topic the service's consumer reads
type KafkaProducer struct {
	source  string
	timeout time.Duration
	writer  *kafka.Writer
}

// NewKafkaProducer checks the provided addresses and creates a Kafka producer
func NewKafkaProducer(conf Config) (*KafkaProducer, error) {
	if !oneUp(conf.Addresses, conf.Timeout) {
		return nil, errors.New("none of the provided Kafka broker endpoints are usable")
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  conf.Addresses,
		Topic:    conf.Topic,
		Balancer: kafka.Murmur2Balancer{},
	})
	return &KafkaProducer{source: conf.Source, timeout: conf.Timeout, writer: writer}, nil
}

// Close shuts down the underlying Kafka writer
func (kp *KafkaProducer) Close() {
	kp.writer.Close()
}

// Send wraps the batch in its event envelope and writes it to the configured topic,
// keyed by model ID so all the batches for one model land on the same partition
func (kp *KafkaProducer) Send(subject string, sb *types.SampleBatch) error {
	raw, err := envelope(kp.source, subject, sb)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), kp.timeout)
	defer cancel()
	return kp.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sb.ModelID),
		Value: raw,
	})
}
