package feed

import (
	"bytes"
	"compress/gzip"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog/log"

	"github.com/crossingcast/crossingcast/pkg/tracker"
)

// StompClient subscribes to the Darwin Push Port topic and feeds normalised
// updates into the tracker queue. Connection lifecycle lives entirely here;
// the rest of the core only ever sees delivered messages.
type StompClient struct {
	Address   string
	Username  string
	Password  string
	QueueName string
	ClientID  string

	Normalizer *Normalizer
	Queue      *BatchProcessingQueue

	connected atomic.Bool
}

// Connected reports whether the subscription is currently live, for health.
func (s *StompClient) Connected() bool {
	return s.connected.Load()
}

// Run connects, consumes and reconnects forever. Each drop restarts the
// exponential backoff from scratch once a connection has succeeded.
func (s *StompClient) Run(t *tracker.Tracker) {
	s.Queue.Process(t)

	for {
		retryBackoff := backoff.NewExponentialBackOff()
		retryBackoff.MaxElapsedTime = 0

		err := backoff.Retry(func() error {
			return s.consume()
		}, retryBackoff)

		if err != nil {
			log.Error().Err(err).Msg("Feed consumer stopped")
		}

		time.Sleep(10 * time.Second)
	}
}

func (s *StompClient) consume() error {
	var stompOptions []func(*stomp.Conn) error = []func(*stomp.Conn) error{
		stomp.ConnOpt.Login(s.Username, s.Password),
		stomp.ConnOpt.Header("client-id", s.ClientID),
		stomp.ConnOpt.HeartBeat(10*time.Second, 10*time.Second),
	}
	conn, err := stomp.Dial("tcp", s.Address, stompOptions...)

	if err != nil {
		log.Error().Err(err).Str("address", s.Address).Msg("Cannot connect to feed")
		return err
	}
	defer conn.Disconnect()

	sub, err := conn.Subscribe(s.QueueName, stomp.AckAuto,
		stomp.SubscribeOpt.Header("activemq.subscriptionName", s.ClientID))
	if err != nil {
		log.Error().Str("queue", s.QueueName).Err(err).Msg("Cannot subscribe to queue")
		return err
	}

	log.Info().Str("queue", s.QueueName).Msg("Subscribed to Darwin Push Port")
	s.connected.Store(true)
	defer s.connected.Store(false)

	for msg := range sub.C {
		if msg.Err != nil {
			log.Error().Err(msg.Err).Msg("Feed subscription error")
			return msg.Err
		}

		s.handleMessage(msg.Body)
	}

	return nil
}

// handleMessage decodes one frame. Malformed frames are dropped without
// error - a single bad message must never stall ingestion.
func (s *StompClient) handleMessage(body []byte) {
	b := bytes.NewReader(body)
	gzipDecoder, err := gzip.NewReader(b)
	if err != nil {
		log.Debug().Err(err).Msg("Cannot decode gzip stream")
		return
	}
	defer gzipDecoder.Close()

	message, err := ParsePushPort(gzipDecoder)
	if err != nil {
		log.Debug().Err(err).Msg("Cannot parse push port message")
		return
	}

	for _, item := range s.Normalizer.Normalize(message) {
		s.Queue.Add(item)
	}
}
