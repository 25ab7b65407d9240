// Package chat implements two-party rooms, message storage and per-user
// contact lists on top of a store.Store.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pliu/pairchat/internal/metrics"
	"github.com/pliu/pairchat/internal/models"
	"github.com/pliu/pairchat/internal/store"
)

const DefaultNotifyTimeout = 5 * time.Second

// Notifier is told about every newly stored message. It runs detached from the
// request that stored the message.
type Notifier interface {
	Dispatch(ctx context.Context, msg models.Message, room models.Room) string
}

// Listener receives newly stored messages synchronously, after the write. It
// must not block.
type Listener interface {
	MessageStored(msg models.Message, room models.Room)
}

type Service struct {
	store    store.Store
	notifier Notifier
	log      zerolog.Logger
	metrics  *metrics.Metrics

	// NotifyTimeout bounds each background dispatch.
	NotifyTimeout time.Duration

	listenersLock sync.RWMutex
	listeners     []Listener

	inflight sync.WaitGroup
}

func NewService(st store.Store, notifier Notifier, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:         st,
		notifier:      notifier,
		log:           log.With().Str("component", "chat").Logger(),
		metrics:       m,
		NotifyTimeout: DefaultNotifyTimeout,
	}
}

func (s *Service) AddListener(l Listener) {
	s.listenersLock.Lock()
	s.listeners = append(s.listeners, l)
	s.listenersLock.Unlock()
}

// Wait blocks until all background notifications have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) afterStore(ctx context.Context, msg models.Message, room models.Room) {
	s.listenersLock.RLock()
	for _, l := range s.listeners {
		l.MessageStored(msg, room)
	}
	s.listenersLock.RUnlock()

	if s.notifier == nil {
		return
	}
	// The request context is cancelled once the response is written, so the
	// dispatch keeps its values but not its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.NotifyTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		result := s.notifier.Dispatch(ctx, msg, room)
		s.log.Debug().Str("message_id", msg.ID).Str("result", result).Msg("Notification dispatch finished")
	}()
}
