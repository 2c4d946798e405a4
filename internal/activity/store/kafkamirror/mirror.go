// Package kafkamirror decorates a destination store with a fire-and-forget
// Kafka feed of system-destination records, for SIEM and alerting
// pipelines. Mirroring never affects the append outcome: a produce failure
// is logged and dropped.
package kafkamirror

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"libris/internal/activity"
)

// DefaultTopic carries mirrored system-destination records.
const DefaultTopic = "libris.activity.system"

type Mirror struct {
	next   activity.Store
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

var _ activity.Store = (*Mirror)(nil)

// New wraps next. Records appended to the system destination are also
// produced to topic after the underlying append succeeds.
func New(next activity.Store, client *kgo.Client, topic string, log *slog.Logger) *Mirror {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Mirror{next: next, client: client, topic: topic, log: log}
}

func (m *Mirror) Append(ctx context.Context, path string, doc activity.Fields) error {
	if err := m.next.Append(ctx, path, doc); err != nil {
		return err
	}
	if path != activity.SystemDestination {
		return nil
	}

	value, err := json.Marshal(activity.ResolveServerTimestamps(doc, time.Now().UTC()))
	if err != nil {
		m.log.WarnContext(ctx, "mirror: encode record", "error", err)
		return nil
	}
	m.client.Produce(ctx, &kgo.Record{
		Topic: m.topic,
		Key:   []byte(path),
		Value: value,
	}, func(_ *kgo.Record, err error) {
		if err != nil {
			m.log.WarnContext(ctx, "mirror: produce failed", "topic", m.topic, "error", err)
		}
	})
	return nil
}

// EnsureTopic creates the mirror topic when missing. Existing topics are
// fine; any other creation failure is returned.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	if topic == "" {
		topic = DefaultTopic
	}
	adm := kadm.NewClient(client)
	responses, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return err
	}
	for _, resp := range responses {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return resp.Err
		}
	}
	return nil
}
