package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/Skyrin/go-migrate/e"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
)

const (
	ECode080001 = e.Code0800 + "01"
	ECode080002 = e.Code0800 + "02"
	ECode080003 = e.Code0800 + "03"
	ECode080004 = e.Code0800 + "04"
	ECode080005 = e.Code0800 + "05"
	ECode080006 = e.Code0800 + "06"
	ECode080007 = e.Code0800 + "07"
	ECode080008 = e.Code0800 + "08"
	ECode080009 = e.Code0800 + "09"

	// DefaultPartitions partitions used when the events topic has to be created
	DefaultPartitions = 3
	// DefaultReplicationFactor replication used when the events topic has to be created
	DefaultReplicationFactor = 1
	// WriterBatchTimeout upper bound a writer waits to fill a batch. Writes
	// are synchronous, so this is added to every WriteMessages call.
	WriterBatchTimeout = 5 * time.Millisecond
)

// ConnectionConfig for NewConn
type ConnectionConfig struct {
	AddressList   []string
	Context       context.Context
	NoTLS         bool
	SASLMechanism sasl.Mechanism
	Timeout       *time.Duration
	TLS           *tls.Config
}

// Connection a kafka connection with pre-initialized address list, dialer,
// transport and SASL mechanism. It is used to publish migration events and to
// follow them from another process.
type Connection struct {
	Context context.Context

	addressList []string
	conn        *kafka.Conn
	dialer      *kafka.Dialer
	transport   *kafka.Transport
}

// NewConn create a new Kafka connection. Without a SASL mechanism the
// connection is plain text, as used against a local broker.
func NewConn(conf ConnectionConfig) (c *Connection, err error) {
	if len(conf.AddressList) == 0 {
		return nil, e.N(ECode080001, "no address")
	}

	c = &Connection{
		addressList: conf.AddressList,
		Context:     conf.Context,
	}
	if c.Context == nil {
		c.Context = context.Background()
	}

	if conf.SASLMechanism != nil {
		c.dialer = &kafka.Dialer{
			DualStack:     true,
			Timeout:       10 * time.Second,
			SASLMechanism: conf.SASLMechanism,
		}
		c.transport = &kafka.Transport{SASL: conf.SASLMechanism}

		if conf.Timeout != nil {
			c.dialer.Timeout = *conf.Timeout
		}
		if conf.TLS != nil {
			c.dialer.TLS = conf.TLS
			c.transport.TLS = conf.TLS
		} else if !conf.NoTLS {
			c.dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
			c.transport.TLS = c.dialer.TLS
		}
	} else {
		c.dialer = kafka.DefaultDialer
		c.transport = &kafka.Transport{}
	}

	if err := c.Connect(); err != nil {
		return c, e.W(err, ECode080002)
	}
	return c, nil
}

// Connect opens a connection to one of the brokers, picked at random
func (c *Connection) Connect() (err error) {
	if c.conn != nil {
		return e.N(ECode080003, "already connected")
	}

	idx := rand.Intn(len(c.addressList))
	c.conn, err = c.dialer.DialContext(c.Context, "tcp", c.addressList[idx])
	if err != nil {
		return e.W(err, ECode080004)
	}

	return nil
}

// Close closes the connection
func (c *Connection) Close() (err error) {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return e.W(err, ECode080005)
		}

		c.conn = nil
	}

	return nil
}

// EnsureTopic creates the topic on the controller unless it already exists
func (c *Connection) EnsureTopic(topic string, partitions int) (err error) {
	if partitions <= 0 {
		partitions = DefaultPartitions
	}

	broker, err := c.conn.Controller()
	if err != nil {
		return e.W(err, ECode080006)
	}

	cc, err := c.dialer.DialContext(c.Context, "tcp",
		net.JoinHostPort(broker.Host, strconv.Itoa(broker.Port)))
	if err != nil {
		return e.W(err, ECode080007)
	}
	defer func() {
		if err := cc.Close(); err != nil {
			log.Warn().Err(err).Msgf("[%s]failed to close connection", ECode080008)
		}
	}()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: DefaultReplicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return e.W(err, ECode080009, "topic: "+topic)
	}

	return nil
}

// NewWriter returns a writer for the topic using this connection's address
// list and transport. Messages are balanced by key, so every event of a run
// lands on the same partition and keeps its order. Each message is sent as
// its own batch so a progress event is on the topic when the write returns.
func (c *Connection) NewWriter(topic string) (w *kafka.Writer) {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.addressList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    1,
		BatchTimeout: WriterBatchTimeout,
		Transport:    c.transport,
	}
}

// NewReader returns a reader for the topic using this connection's address
// list and dialer. Without a group id the reader starts at the last offset.
func (c *Connection) NewReader(topic, groupID string) (r *kafka.Reader) {
	rc := kafka.ReaderConfig{
		Brokers: c.addressList,
		Topic:   topic,
		GroupID: groupID,
		Dialer:  c.dialer,
	}
	if groupID == "" {
		rc.StartOffset = kafka.LastOffset
	}

	return kafka.NewReader(rc)
}
