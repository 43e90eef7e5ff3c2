package delivery

import (
	"fmt"
	"scanq/internal/config"
	"scanq/internal/ports"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Open builds the SendFunc for the configured sink. The returned close
// function releases any connection it made. An HTTP sink without a URL
// yields a nil SendFunc: scans can be queued but not flushed.
func Open(cfg config.Sink) (ports.SendFunc, func(), error) {
	switch cfg.Kind {
	case config.SinkNATS:
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("scanq"),
			nats.Timeout(cfg.Timeout),
			nats.RetryOnFailedConnect(true),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		log.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("delivering scans over nats")
		return NewNATSSender(nc, cfg.NATSSubject).Send, nc.Close, nil
	case config.SinkHTTP, "":
		if cfg.URL == "" {
			log.Warn().Msg("no delivery url configured, flushing disabled")
			return nil, func() {}, nil
		}
		if err := ValidateURL(cfg.URL); err != nil {
			return nil, nil, err
		}
		log.Info().Str("url", cfg.URL).Msg("delivering scans over http")
		return NewHTTPSender(cfg.URL, cfg.Token, cfg.Timeout).Send, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Kind)
	}
}
