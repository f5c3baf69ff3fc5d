package services

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Publisher publie un message sur un canal (Redis en production)
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscription est un abonnement ouvert ; Messages est fermé après Close
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}

func NotificationChannel(userID string) string { return "notifications:" + userID }

func CartChannel(userID string) string { return "cart:" + userID }

// =============================================
// REDIS
// =============================================

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

type RedisSubscriber struct {
	client *redis.Client
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	ps := s.client.Subscribe(ctx, channels...)
	// Receive attend la confirmation : une erreur ici signifie Redis injoignable
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps, out: make(chan []byte, localBuffer), done: make(chan struct{})}
	go forward(ps.Channel(), sub.out, sub.done)
	return sub, nil
}

// forward relaie jusqu'à la fermeture de in ou de done, puis ferme out
func forward(in <-chan *redis.Message, out chan<- []byte, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case <-done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-done:
				return
			}
		}
	}
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (r *redisSubscription) Messages() <-chan []byte { return r.out }

func (r *redisSubscription) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.ps.Close()
	})
	return err
}

// =============================================
// LOCAL (un seul processus, sans Redis)
// =============================================

const localBuffer = 16

// LocalBroker relaie les publications en mémoire : STORE_DRIVER=memory et tests.
// Un abonné trop lent perd des messages plutôt que de bloquer l'émetteur.
type LocalBroker struct {
	mu   sync.Mutex
	subs map[string]map[*localSubscription]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[*localSubscription]struct{})}
}

func (b *LocalBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[channel] {
		select {
		case sub.out <- append([]byte(nil), payload...):
		default:
			log.Printf("⚠️ Abonné %s saturé, message ignoré", channel)
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, channels ...string) (Subscription, error) {
	sub := &localSubscription{broker: b, channels: channels, out: make(chan []byte, localBuffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range channels {
		if b.subs[ch] == nil {
			b.subs[ch] = make(map[*localSubscription]struct{})
		}
		b.subs[ch][sub] = struct{}{}
	}
	return sub, nil
}

func (b *LocalBroker) remove(sub *localSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range sub.channels {
		delete(b.subs[ch], sub)
		if len(b.subs[ch]) == 0 {
			delete(b.subs, ch)
		}
	}
}

type localSubscription struct {
	broker   *LocalBroker
	channels []string
	out      chan []byte
	once     sync.Once
}

func (s *localSubscription) Messages() <-chan []byte { return s.out }

func (s *localSubscription) Close() error {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.out)
	})
	return nil
}
