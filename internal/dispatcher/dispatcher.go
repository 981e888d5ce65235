// Package dispatcher fans client events out to the webhook subscribers that
// asked for them.
package dispatcher

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/NinoCoelho/WhatsAppBridge/internal/config"
	"github.com/NinoCoelho/WhatsAppBridge/internal/formatter"
	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
	"github.com/NinoCoelho/WhatsAppBridge/internal/metrics"
	"github.com/NinoCoelho/WhatsAppBridge/internal/models"
)

// Matcher yields the subscriptions interested in an event kind.
type Matcher interface {
	Matching(event string) []models.Subscription
}

// Sink receives every dispatched envelope alongside the webhooks.
type Sink interface {
	Publish(env models.Envelope, payload []byte)
}

type Dispatcher struct {
	subs        Matcher
	sender      *Sender
	concurrency int
	log         zerolog.Logger
	now         func() time.Time

	sinkMu sync.RWMutex
	sinks  []Sink

	attach sync.Once

	// closeMu orders inflight.Go against Close so no dispatch is added
	// once Close has started waiting.
	closeMu  sync.Mutex
	closed   bool
	inflight conc.WaitGroup
}

func New(subs Matcher, cfg config.WebhooksConfig, log zerolog.Logger) *Dispatcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		subs:        subs,
		sender:      NewSender(cfg.Timeout, cfg.UserAgent),
		concurrency: concurrency,
		log:         log.With().Str("component", "dispatcher").Logger(),
		now:         time.Now,
	}
}

func (d *Dispatcher) AddSink(s Sink) {
	d.sinkMu.Lock()
	d.sinks = append(d.sinks, s)
	d.sinkMu.Unlock()
}

// Attach subscribes to the webhook event kinds on bus. Only the first call
// has any effect, so repeated initialization never duplicates deliveries.
func (d *Dispatcher) Attach(bus *messaging.Bus) {
	d.attach.Do(func() {
		kinds := make(map[messaging.EventKind]struct{}, len(messaging.WebhookEvents))
		for _, k := range messaging.WebhookEvents {
			kinds[k] = struct{}{}
		}
		bus.Subscribe(func(evt messaging.Event) {
			if _, ok := kinds[evt.Kind]; !ok {
				return
			}
			d.closeMu.Lock()
			defer d.closeMu.Unlock()
			if d.closed {
				return
			}
			d.inflight.Go(func() {
				d.Dispatch(context.Background(), string(evt.Kind), evt.Args...)
			})
		})
		d.log.Info().Int("kinds", len(kinds)).Msg("attached to client events")
	})
}

// Dispatch formats the event once and POSTs it to every matching
// subscriber. It returns after all deliveries have finished; failures are
// reported in the results and never returned as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, args ...any) []models.DeliveryResult {
	subs := d.subs.Matching(event)

	env := models.Envelope{Event: event, Data: formatter.FormatAt(d.now(), event, args...)}
	payload, err := json.Marshal(env)
	if err != nil {
		d.log.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return nil
	}
	metrics.EventsDispatched.WithLabelValues(event).Inc()

	d.publish(env, payload)

	if len(subs) == 0 {
		return nil
	}

	p := pool.NewWithResults[models.DeliveryResult]().WithMaxGoroutines(d.concurrency)
	for _, sub := range subs {
		sub := sub
		p.Go(func() models.DeliveryResult {
			return d.deliver(ctx, sub, event, payload)
		})
	}
	return p.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, sub models.Subscription, event string, payload []byte) models.DeliveryResult {
	id := models.NewID("dlv")
	result := d.sender.Send(ctx, sub.URL, sub.Secret, id, payload)

	res := models.DeliveryResult{
		ID:         id,
		URL:        sub.URL,
		Event:      event,
		StatusCode: result.StatusCode,
		LatencyMs:  result.LatencyMs,
		Error:      result.Error,
	}

	if result.OK() {
		res.Status = models.DeliverySuccess
		d.log.Debug().
			Str("delivery_id", id).
			Str("url", sub.URL).
			Str("event", event).
			Int("status_code", result.StatusCode).
			Int64("latency_ms", result.LatencyMs).
			Msg("webhook delivered")
	} else {
		res.Status = models.DeliveryFailed
		d.log.Warn().
			Str("delivery_id", id).
			Str("url", sub.URL).
			Str("event", event).
			Int("status_code", result.StatusCode).
			Str("error", result.Error).
			Str("response", result.ResponseBody).
			Msg("webhook delivery failed")
	}

	metrics.WebhookDeliveries.WithLabelValues(event, string(res.Status)).Inc()
	metrics.WebhookLatency.WithLabelValues(event).Observe(float64(result.LatencyMs))
	return res
}

func (d *Dispatcher) publish(env models.Envelope, payload []byte) {
	d.sinkMu.RLock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.sinkMu.RUnlock()

	for _, s := range sinks {
		s.Publish(env, payload)
	}
}

// Close stops accepting events and waits for in-flight dispatches.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	d.closed = true
	d.closeMu.Unlock()

	if r := d.inflight.WaitAndRecover(); r != nil {
		d.log.Error().Str("panic", r.String()).Msg("dispatch panicked")
	}
}
