// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mqtt publishes messages to the broker through a persistent disk
// queue. Messages are only dequeued after the broker acknowledged them, so
// a broker outage delays delivery instead of losing data.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beeker1121/goque"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/heptiolabs/healthcheck"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/config"
	"github.com/nic0lette/LilaWeltWeather/internal"
	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

// publishTimeout bounds how long one publish attempt may wait for its ack,
// so a half dead connection cannot stall the caller.
const publishTimeout = 10 * time.Second

// Prometheus metrics
var (
	publishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathertomqtt_published_total",
			Help: "The total number of messages published to the broker",
		},
		[]string{"leaf"},
	)
	dedupedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weathertomqtt_deduplicated_total",
			Help: "The total number of messages skipped as unchanged",
		},
	)
	publishErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weathertomqtt_publish_errors_total",
			Help: "The total number of failed or rejected publishes",
		},
	)
	mqttConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weathertomqtt_up",
			Help: "Connection with MQTT broker",
		},
	)
)

type Publisher struct {
	client     MQTT.Client
	queue      *goque.Queue
	qos        byte
	prefix     string
	retryDelay time.Duration

	shuttingDown atomic.Bool
	drainStopped chan bool

	published     atomic.Uint64
	skipped       atomic.Uint64
	publishErrors atomic.Uint64
	lastProgress  atomic.Int64
}

var publisher *Publisher
var once sync.Once

// GetOrInit opens the disk queue, connects to the broker and starts the
// drain loop. A connection failure at startup is fatal, the orchestrator
// restarts us until the broker is reachable. With an empty buffer_dir the
// queue stays closed and messages go out directly, dropped on failure.
func GetOrInit(cfg *config.Config) *Publisher {
	once.Do(func() {
		var queue *goque.Queue
		if cfg.MQTT.BufferDir != "" {
			var err error
			queue, err = setupQueue(cfg.MQTT.BufferDir)
			if err != nil {
				zap.S().Fatalf("Failed to open publish queue at %s: %s", cfg.MQTT.BufferDir, err)
			}
		} else {
			zap.S().Warnf("Publish buffering is disabled, messages are dropped while the broker is unreachable")
		}

		publisher = &Publisher{
			queue:        queue,
			qos:          byte(cfg.MQTT.QoS),
			prefix:       cfg.MQTT.TopicPrefix,
			retryDelay:   internal.FiveSeconds,
			drainStopped: make(chan bool),
		}
		publisher.lastProgress.Store(time.Now().UTC().Unix())

		opts := MQTT.NewClientOptions()
		opts.AddBroker(cfg.MQTT.BrokerURL())
		if cfg.MQTT.User != "" {
			opts.SetUsername(cfg.MQTT.User)
		}
		if cfg.MQTT.Password != "" {
			opts.SetPassword(cfg.MQTT.Password)
		}

		if cfg.MQTT.SSL {
			opts.SetClientID(clientID(cfg.MQTT.ClientID)).SetTLSConfig(newTLSConfig())
		} else {
			opts.SetClientID(clientID(cfg.MQTT.ClientID))
		}

		opts.SetAutoReconnect(true)
		opts.SetOnConnectHandler(publisher.onConnect)
		opts.SetConnectionLostHandler(onConnectionLost)
		opts.SetOrderMatters(false)

		// The broker flips the retained status to offline when we vanish
		// without a clean disconnect.
		opts.SetWill(TopicStatus(publisher.prefix), datamodel.AvailabilityOffline, publisher.qos, true)

		publisher.client = MQTT.NewClient(opts)
		if token := publisher.client.Connect(); token.Wait() && token.Error() != nil {
			zap.S().Fatalf("Failed to connect to MQTT broker %s: %s", cfg.MQTT.BrokerURL(), token.Error())
		}

		if publisher.queue != nil {
			go publisher.drainQueue()
		}
	})
	return publisher
}

// clientID derives a stable per-host client ID. Two clients with the same
// ID keep disconnecting each other, the hostname hash keeps replicas apart
// without changing across restarts.
func clientID(base string) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	hasher := sha3.New256()
	hasher.Write([]byte(hostname))
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(hasher.Sum(nil))[:8])
}

// newTLSConfig returns the TLS config for the broker connection. The CA and
// the optional client certificate pair are mounted under /SSL_certs/mqtt.
func newTLSConfig() *tls.Config {

	certpool := x509.NewCertPool()
	pemCerts, err := os.ReadFile("/SSL_certs/mqtt/ca.crt")
	if err == nil {
		certpool.AppendCertsFromPEM(pemCerts)
	}

	/* #nosec G402 -- Remote verification is not yet implemented*/
	tlsConfig := &tls.Config{
		RootCAs:            certpool,
		InsecureSkipVerify: true,
	}

	cert, err := tls.LoadX509KeyPair("/SSL_certs/mqtt/tls.crt", "/SSL_certs/mqtt/tls.key")
	if err != nil {
		zap.S().Infof("No client certificate loaded: %s", err)
		return tlsConfig
	}
	tlsConfig.Certificates = []tls.Certificate{cert}

	return tlsConfig
}

// onConnect announces availability. This runs on every reconnect, so the
// retained status flips back to online after an outage.
func (p *Publisher) onConnect(c MQTT.Client) {
	optionsReader := c.OptionsReader()
	zap.S().Infof("Connected to MQTT broker as %s", optionsReader.ClientID())
	mqttConnected.Inc()
	c.Publish(TopicStatus(p.prefix), p.qos, true, []byte(datamodel.AvailabilityOnline))
}

// onConnectionLost outputs warn message. The drain loop keeps the messages
// queued until the auto reconnect succeeds.
func onConnectionLost(_ MQTT.Client, err error) {
	zap.S().Warnf("Connection to MQTT broker lost: %s", err)
	mqttConnected.Dec()
}

// Publish queues one message for at-least-once delivery. A payload already
// seen on the same topic within the dedup window is dropped, as is anything
// that does not parse as one of our topics.
func (p *Publisher) Publish(topic string, payload []byte, retain bool) {
	info := GetTopicInfoCached(topic)
	if info == nil || info.Prefix != p.prefix {
		p.publishErrors.Add(1)
		publishErrorsTotal.Inc()
		zap.S().Errorf("Refusing to publish to invalid topic %s", topic)
		return
	}

	cacheKey := fmt.Sprintf("mqtt-dedup-%s-%x", topic, internal.AsXXHash(payload))
	if _, found := internal.GetMemcached(cacheKey); found {
		p.skipped.Add(1)
		dedupedTotal.Inc()
		zap.S().Debugf("Skipping duplicate message for topic %s", topic)
		return
	}

	if p.queue == nil {
		// Only delivered payloads count as seen, a dropped one must go
		// out on the next attempt.
		if p.publishDirect(topic, payload, retain, info.Leaf) {
			internal.SetMemcached(cacheKey, nil)
		}
		return
	}

	if _, err := p.queue.EnqueueObject(queueObject{Topic: topic, Payload: payload, Retain: retain}); err != nil {
		p.publishErrors.Add(1)
		publishErrorsTotal.Inc()
		zap.S().Errorf("Failed to enqueue message for topic %s: %s", topic, err)
		return
	}
	internal.SetMemcached(cacheKey, nil)
}

// publishDirect is the unbuffered path: one attempt, failures are dropped.
func (p *Publisher) publishDirect(topic string, payload []byte, retain bool, leaf string) bool {
	token := p.client.Publish(topic, p.qos, retain, payload)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		p.publishErrors.Add(1)
		publishErrorsTotal.Inc()
		zap.S().Warnf("Dropping message for %s, buffering is disabled: %v", topic, token.Error())
		return false
	}
	p.published.Add(1)
	publishedTotal.WithLabelValues(leaf).Inc()
	p.lastProgress.Store(time.Now().UTC().Unix())
	return true
}

// drainQueue moves messages from the disk queue to the broker, element by
// element. A failed publish stays at the head and is retried with growing
// backoff.
func (p *Publisher) drainQueue() {
	defer close(p.drainStopped)

	var loopsWithError int64
	for {
		if p.shuttingDown.Load() {
			return
		}

		if p.queue.Length() == 0 {
			p.lastProgress.Store(time.Now().UTC().Unix())
			time.Sleep(1 * time.Millisecond) // wait 1 ms to avoid high cpu usage
			continue
		}

		topElement, err := p.queue.Peek()
		if err != nil {
			if errors.Is(err, goque.ErrDBClosed) {
				return
			}
			if errors.Is(err, goque.ErrEmpty) {
				continue
			}
			zap.S().Errorf("Error peeking first element: %s", err)
			time.Sleep(internal.OneSecond)
			continue
		}

		var msg queueObject
		err = topElement.ToObject(&msg)
		if err != nil {
			zap.S().Fatalf("Error decoding first element: %s", err)
			return
		}

		token := p.client.Publish(msg.Topic, p.qos, msg.Retain, msg.Payload)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			p.publishErrors.Add(1)
			publishErrorsTotal.Inc()
			loopsWithError++
			zap.S().Warnf("Failed to publish to %s, keeping message queued: %v", msg.Topic, token.Error())
			internal.SleepBackedOff(loopsWithError, p.retryDelay, time.Minute)
			continue
		}
		loopsWithError = 0

		if _, err = p.queue.Dequeue(); err != nil {
			if errors.Is(err, goque.ErrDBClosed) {
				return
			}
			zap.S().Fatalf("Error dequeuing element: %s", err)
			return
		}

		p.published.Add(1)
		if info := GetTopicInfoCached(msg.Topic); info != nil {
			publishedTotal.WithLabelValues(info.Leaf).Inc()
		}
		p.lastProgress.Store(time.Now().UTC().Unix())
	}
}

// Stats returns the publish counters for the stats message.
func (p *Publisher) Stats() (published uint64, skipped uint64, publishErrors uint64, queueLength uint64) {
	return p.published.Load(), p.skipped.Load(), p.publishErrors.Load(), p.QueueLength()
}

// QueueLength returns the number of buffered messages, zero when buffering
// is disabled.
func (p *Publisher) QueueLength() uint64 {
	if p.queue == nil {
		return 0
	}
	return p.queue.Length()
}

// Connected reports whether the broker connection is up.
func (p *Publisher) Connected() bool {
	return p.client.IsConnectionOpen()
}

// GetLivenessCheck fails when the drain loop made no progress for five
// minutes while messages are waiting.
func (p *Publisher) GetLivenessCheck() healthcheck.Check {
	return func() error {
		if p.queue == nil {
			return nil
		}
		if time.Now().UTC().Unix()-p.lastProgress.Load() > 300 {
			return fmt.Errorf("no publish progress in 5 minutes (%d queued)", p.queue.Length())
		}
		return nil
	}
}

// GetReadinessCheck reports whether the broker connection is up.
func (p *Publisher) GetReadinessCheck() healthcheck.Check {
	return func() error {
		if !p.client.IsConnectionOpen() {
			return errors.New("not connected to MQTT broker")
		}
		return nil
	}
}

// Shutdown drains the queue as far as the broker allows, marks the bridge
// offline and closes queue and connection.
func (p *Publisher) Shutdown() error {
	if p.queue != nil {
		zap.S().Infof("Draining publish queue, %d elements left", p.queue.Length())

		deadline := time.Now().Add(internal.TenSeconds)
		for p.queue.Length() > 0 && time.Now().Before(deadline) && p.client.IsConnectionOpen() {
			time.Sleep(100 * time.Millisecond)
		}

		p.shuttingDown.Store(true)
		select {
		case <-p.drainStopped:
		case <-time.After(internal.TenSeconds):
			zap.S().Warnf("Drain loop did not stop in time")
		}
	}

	if p.client.IsConnectionOpen() {
		token := p.client.Publish(TopicStatus(p.prefix), p.qos, true, []byte(datamodel.AvailabilityOffline))
		token.WaitTimeout(internal.FiveSeconds)
	}
	p.client.Disconnect(1000)

	if p.queue == nil {
		return nil
	}
	return closeQueue(p.queue)
}
