package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pliu/pairchat/internal/models"
)

const (
	DefaultPollInterval = 3 * time.Second
	// DefaultSettleWindow is how far the poll cursor trails the newest
	// message. Postgres allocates seq before commit, so a lower seq can become
	// visible after a higher one.
	DefaultSettleWindow = 30 * time.Second
)

type MessageSource interface {
	Messages(ctx context.Context, roomID string, afterSeq int64) ([]models.Message, error)
}

// Syncer keeps a local copy of one room by polling. Messages are reconciled by
// id, so overlapping or repeated fetches never duplicate anything.
type Syncer struct {
	source   MessageSource
	roomID   string
	interval time.Duration
	log      zerolog.Logger

	// SettleWindow bounds how late a message may commit and still be
	// picked up.
	SettleWindow time.Duration

	lock     sync.Mutex
	seen     map[string]struct{}
	messages []models.Message
	cursor   int64
	newest   time.Time
}

func NewSyncer(source MessageSource, roomID string, interval time.Duration, log zerolog.Logger) *Syncer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Syncer{
		source:   source,
		roomID:   roomID,
		interval: interval,
		log:      log.With().Str("component", "sync").Str("room_id", roomID).Logger(),
		seen:     make(map[string]struct{}),

		SettleWindow: DefaultSettleWindow,
	}
}

// Record adds messages the caller already has, such as the response to its
// own send, so a later poll doesn't report them again. It returns the ones
// that were new, in the given order. The poll cursor is left alone since
// earlier messages from the other participant may still be unseen.
func (s *Syncer) Record(messages ...models.Message) []models.Message {
	return s.merge(messages, false)
}

func (s *Syncer) merge(messages []models.Message, advance bool) []models.Message {
	s.lock.Lock()
	defer s.lock.Unlock()
	var added []models.Message
	for _, msg := range messages {
		if _, ok := s.seen[msg.ID]; ok {
			continue
		}
		s.seen[msg.ID] = struct{}{}
		i := sort.Search(len(s.messages), func(i int) bool { return s.messages[i].Seq > msg.Seq })
		s.messages = append(s.messages, models.Message{})
		copy(s.messages[i+1:], s.messages[i:])
		s.messages[i] = msg
		added = append(added, msg)
	}
	if advance {
		s.advance(messages)
	}
	return added
}

// advance moves the cursor past the fetched messages that are older than the
// settle window. Everything newer is fetched again on the next poll and
// deduplicated by id.
func (s *Syncer) advance(fetched []models.Message) {
	for _, msg := range fetched {
		if msg.CreatedAt.After(s.newest) {
			s.newest = msg.CreatedAt
		}
	}
	settled := s.newest.Add(-s.SettleWindow)
	for _, msg := range fetched {
		if msg.Seq > s.cursor && !msg.CreatedAt.After(settled) {
			s.cursor = msg.Seq
		}
	}
}

// Poll fetches once and returns the messages not seen before, in server
// order.
func (s *Syncer) Poll(ctx context.Context) ([]models.Message, error) {
	s.lock.Lock()
	after := s.cursor
	s.lock.Unlock()

	fetched, err := s.source.Messages(ctx, s.roomID, after)
	if err != nil {
		return nil, err
	}
	return s.merge(fetched, true), nil
}

// Messages returns a copy of everything synced so far, in seq order.
func (s *Syncer) Messages() []models.Message {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Run polls until ctx is done, passing each batch of new messages to onNew.
// Fetch errors are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context, onNew func([]models.Message)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		added, err := s.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("Failed to poll messages")
		} else if len(added) > 0 {
			s.log.Debug().Int("count", len(added)).Msg("Received new messages")
			onNew(added)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
