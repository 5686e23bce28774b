package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Message header keys.
const (
	HeaderDatabase = "database"
	HeaderTable    = "table"
	HeaderRecordID = "record_id"
)

// KafkaWriter is the subset of *kafka.Writer used for loading.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDialer opens broker connections.
type KafkaDialer interface {
	DialContext(ctx context.Context, network, address string) (KafkaConn, error)
}

// KafkaConn is the subset of *kafka.Conn used for topic management.
type KafkaConn interface {
	Controller() (kafka.Broker, error)
	CreateTopics(topics ...kafka.TopicConfig) error
	Close() error
}

// RealKafkaDialer adapts *kafka.Dialer to KafkaDialer.
type RealKafkaDialer struct{ *kafka.Dialer }

func (d *RealKafkaDialer) DialContext(ctx context.Context, network, address string) (KafkaConn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// KafkaProvisioner makes sure the database topic exists. Tables are carried
// as message keys, so every EnsureTable call after the first is a no-op.
type KafkaProvisioner struct {
	dialer            KafkaDialer
	brokers           []string
	topic             string
	partitions        int
	replicationFactor int
	logger            *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewKafkaProvisioner creates a provisioner for topic on brokers.
func NewKafkaProvisioner(dialer KafkaDialer, brokers []string, topic string, logger *slog.Logger) *KafkaProvisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaProvisioner{
		dialer:            dialer,
		brokers:           brokers,
		topic:             topic,
		partitions:        4,
		replicationFactor: 1,
		logger:            logger,
	}
}

// EnsureTable ensures the topic exists. An existing topic is success.
func (p *KafkaProvisioner) EnsureTable(ctx context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ready {
		return nil
	}
	if err := p.createTopic(ctx); err != nil {
		return err
	}
	p.ready = true
	return nil
}

func (p *KafkaProvisioner) createTopic(ctx context.Context) error {
	var conn KafkaConn
	var err error
	for _, addr := range p.brokers {
		conn, err = p.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
	}
	if conn == nil {
		if err == nil {
			err = errors.New("no brokers configured")
		}
		return fmt.Errorf("dial brokers: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := p.dialer.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", controllerAddr, err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             p.topic,
		NumPartitions:     p.partitions,
		ReplicationFactor: p.replicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}

	p.logger.Info("topic ready", "topic", p.topic, "created", err == nil)
	return nil
}

// KafkaLoader publishes one message per record to the database topic.
type KafkaLoader struct {
	w     KafkaWriter
	newID func() uuid.UUID
}

// NewKafkaLoader creates a loader. The writer must not have a fixed Topic;
// each message names its own.
func NewKafkaLoader(w KafkaWriter) *KafkaLoader {
	return &KafkaLoader{w: w, newID: uuid.New}
}

// NewKafkaWriter returns a writer for brokers that waits for all in-sync
// replicas and keys partitions by table.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Load writes recs as messages keyed by table with a CSV body.
func (l *KafkaLoader) Load(ctx context.Context, target Target, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(recs))
	for _, rec := range recs {
		var buf bytes.Buffer
		if err := rec.WriteCSV(&buf); err != nil {
			return fmt.Errorf("encode record for %s: %w", target, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: target.Database,
			Key:   []byte(target.Table),
			Value: buf.Bytes(),
			Headers: []kafka.Header{
				{Key: HeaderDatabase, Value: []byte(target.Database)},
				{Key: HeaderTable, Value: []byte(target.Table)},
				{Key: HeaderRecordID, Value: []byte(l.newID().String())},
			},
		})
	}

	if err := l.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write messages to %s: %w", target.Database, err)
	}
	return nil
}

// Close closes the underlying writer.
func (l *KafkaLoader) Close() error {
	return l.w.Close()
}
