// Package notify mirrors dashboard state changes to an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"path"

	"battery_dashboard/internal/logger"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/repository"
)

const outgoingQueue = 64

// State is the read side the mirror publishes from.
type State interface {
	Dashboard() models.Dashboard
}

// Mirror publishes retained telemetry, relay and mode documents plus one
// message per new activity entry under a topic prefix.
type Mirror struct {
	pub      Publisher
	notifier *repository.Notifier
	state    State
	prefix   string
	qos      byte
	log      *logger.Logger

	lastEntry string
}

func NewMirror(pub Publisher, n *repository.Notifier, state State, prefix string, qos byte, log *logger.Logger) *Mirror {
	if log == nil {
		log = logger.Nop()
	}
	return &Mirror{pub: pub, notifier: n, state: state, prefix: prefix, qos: qos, log: log}
}

// Run subscribes to state changes and publishes until ctx is done.
// Entries recorded before Run are not replayed.
func (m *Mirror) Run(ctx context.Context) {
	sub := m.notifier.Subscribe()
	defer sub.Close()

	outgoing := make(chan Message, outgoingQueue)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.senderWorker(ctx, outgoing)
	}()
	defer func() { <-done }()

	d := m.state.Dashboard()
	if len(d.Activity) > 0 {
		m.lastEntry = d.Activity[0].ID
	}
	m.publishDocs(ctx, outgoing, d, repository.TopicRelay, repository.TopicMode, repository.TopicTelemetry)

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-sub.C():
			if !ok {
				return
			}
			m.publishDocs(ctx, outgoing, m.state.Dashboard(), t)
		}
	}
}

func (m *Mirror) publishDocs(ctx context.Context, out chan<- Message, d models.Dashboard, topics ...repository.Topic) {
	for _, t := range topics {
		switch t {
		case repository.TopicTelemetry:
			if d.HasTelemetry {
				m.enqueue(ctx, out, "telemetry", d.Telemetry, true)
			}
		case repository.TopicRelay:
			m.enqueue(ctx, out, "relay", d.Relay, true)
		case repository.TopicMode:
			m.enqueue(ctx, out, "mode", map[string]models.OperatingMode{"mode": d.Mode}, true)
		case repository.TopicActivity:
			for _, e := range m.newEntries(d.Activity) {
				m.enqueue(ctx, out, "activity", e, false)
			}
		}
	}
}

// newEntries returns entries recorded since the last call, oldest first.
// If the previous newest entry was already evicted the whole log is new.
func (m *Mirror) newEntries(list []models.ActivityEntry) []models.ActivityEntry {
	var fresh []models.ActivityEntry
	for _, e := range list {
		if e.ID == m.lastEntry {
			break
		}
		fresh = append(fresh, e)
	}
	if len(list) > 0 {
		m.lastEntry = list[0].ID
	}
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}
	return fresh
}

func (m *Mirror) enqueue(ctx context.Context, out chan<- Message, name string, v any, retain bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		m.log.Errorw("mqtt_encode_failed", "topic", name, "err", err)
		return
	}
	msg := Message{Topic: path.Join(m.prefix, name), Payload: payload, QoS: m.qos, Retain: retain}
	select {
	case out <- msg:
	case <-ctx.Done():
	default:
		m.log.Warnw("mqtt_queue_full", "topic", msg.Topic)
	}
}

// senderWorker publishes queued messages one at a time.
func (m *Mirror) senderWorker(ctx context.Context, in <-chan Message) {
	m.log.Infow("mqtt_sender_started", "prefix", m.prefix)
	for {
		select {
		case msg := <-in:
			if err := m.pub.Publish(ctx, msg); err != nil && ctx.Err() == nil {
				m.log.Warnw("mqtt_publish_failed", "topic", msg.Topic, "err", err)
			}
		case <-ctx.Done():
			m.log.Infow("mqtt_sender_stopped")
			return
		}
	}
}
