package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
)

const (
	DefaultKey     = "vault:snapshot"
	DefaultChannel = "vault:snapshots"
)

// Message is what replicas exchange over Redis.
type Message struct {
	ReplicaID string          `json:"replicaId"`
	Snapshot  engine.Snapshot `json:"snapshot"`
}

func EncodeMessage(replicaID string, snap engine.Snapshot) ([]byte, error) {
	return json.Marshal(Message{ReplicaID: replicaID, Snapshot: snap})
}

func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode replication message: %w", err)
	}
	if m.ReplicaID == "" {
		return Message{}, errors.New("replication message without replica id")
	}
	return m, nil
}

// =============================================================================
// SINK
// =============================================================================

// RedisSink stores the latest snapshot under Key and announces it on Channel.
type RedisSink struct {
	client    *redis.Client
	replicaID string
	Key       string
	Channel   string
}

func NewRedisSink(client *redis.Client, replicaID string) *RedisSink {
	return &RedisSink{client: client, replicaID: replicaID, Key: DefaultKey, Channel: DefaultChannel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, snap engine.Snapshot) error {
	payload, err := EncodeMessage(s.replicaID, snap)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.Key, payload, 0)
		pipe.Publish(ctx, s.Channel, payload)
		return nil
	})
	return err
}

// FetchLatest returns the last snapshot any replica stored. ok is false
// when nothing was stored yet.
func (s *RedisSink) FetchLatest(ctx context.Context) (msg Message, ok bool, err error) {
	val, err := s.client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, err
	}
	msg, err = DecodeMessage(val)
	return msg, err == nil, err
}

// =============================================================================
// SUBSCRIBER
// =============================================================================

// Importer is the part of the engine a subscriber drives.
type Importer interface {
	Import(ctx context.Context, state ledger.State, origin engine.Origin) (engine.Snapshot, error)
}

// Subscriber applies snapshots published by other replicas. Last writer wins.
type Subscriber struct {
	client    *redis.Client
	replicaID string
	channel   string
	target    Importer
	log       logrus.FieldLogger
}

func NewSubscriber(client *redis.Client, replicaID string, target Importer, log logrus.FieldLogger) *Subscriber {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Subscriber{
		client:    client,
		replicaID: replicaID,
		channel:   DefaultChannel,
		target:    target,
		log:       log.WithField("component", "subscriber"),
	}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.log.WithField("channel", s.channel).Info("listening for remote snapshots")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}
			if err := s.Handle(ctx, []byte(msg.Payload)); err != nil {
				s.log.WithError(err).Warn("dropped remote snapshot")
			}
		}
	}
}

// Handle applies one raw message. Messages from this replica are ignored.
func (s *Subscriber) Handle(ctx context.Context, payload []byte) error {
	msg, err := DecodeMessage(payload)
	if err != nil {
		return err
	}
	if msg.ReplicaID == s.replicaID {
		return nil
	}
	snap, err := s.target.Import(ctx, msg.Snapshot.State, engine.OriginRemote)
	if err != nil {
		return fmt.Errorf("import from %s: %w", msg.ReplicaID, err)
	}
	s.log.WithFields(logrus.Fields{
		"from":           msg.ReplicaID,
		"remote_version": msg.Snapshot.Version,
		"version":        snap.Version,
	}).Info("applied remote snapshot")
	return nil
}
