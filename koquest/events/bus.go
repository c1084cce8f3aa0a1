package events

import (
	"log/slog"
	"sync"

	"github.com/hanchul-app/koquest/koquest/database/models"
)

// Event is one gamification happening pushed to the presentation layer.
// Delivery is at-least-once to currently subscribed listeners; there is no
// replay buffer, so subscribers must attach before triggering actions.
type Event any

type ExperienceEarned struct {
	UserID string
	Amount int64
	Source string
}

type LevelUp struct {
	UserID   string
	NewLevel int
}

type AchievementUnlocked struct {
	UserID      string
	Achievement *models.AchievementDefinition
}

type QuestCompleted struct {
	UserID   string
	QuestID  string
	RewardXP int
}

type QuestProgressChanged struct {
	UserID   string
	QuestID  string
	Progress int
	Target   int
}

const subscriberBuffer = 64

type subscriber struct {
	ch chan Event
}

// Bus is a small in-process publish/subscribe channel. Publish never blocks:
// a subscriber whose buffer is full misses the event and a warning is logged.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a listener. The returned cancel func must be called to
// release the subscription; the channel is closed afterwards.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			slog.Warn("Event dropped for slow subscriber",
				slog.String("type", "sys"),
				slog.Any("event", evt))
		}
	}
}

// Close drops every subscription and closes their channels. Publishing
// after Close is a silent no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
