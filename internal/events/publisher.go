// Package events publishes domain events to NATS. Without a configured URL
// the publisher drops events so the site runs standalone.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const subjectPrefix = "ordersite."

type Publisher struct {
	conn *nats.Conn
	log  *logrus.Entry
}

// Connect dials NATS. An empty url yields a no-op publisher.
func Connect(url string) (*Publisher, error) {
	log := logrus.WithField("component", "events")
	if url == "" {
		log.Info("NATS_URL not set, events disabled")
		return &Publisher{log: log}, nil
	}

	conn, err := nats.Connect(url,
		nats.Name("ordersite"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(10*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.WithField("url", url).Info("connected to NATS")
	return &Publisher{conn: conn, log: log}, nil
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.conn != nil
}

// Publish sends payload as JSON on ordersite.<subject>.
func (p *Publisher) Publish(subject string, payload interface{}) error {
	if !p.Enabled() {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := p.conn.Publish(subjectPrefix+subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.Enabled() {
		if err := p.conn.Drain(); err != nil {
			p.log.WithError(err).Warn("NATS drain failed")
		}
	}
}
