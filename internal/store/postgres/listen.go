package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/shwanortho/site/internal/store"
)

const (
	listenMinReconnect = 10 * time.Second
	listenMaxReconnect = time.Minute
	listenPingInterval = 90 * time.Second
)

// Subscribe registers fn. The LISTEN connection is opened with the first subscription that
// finds the database reachable.
func (s *Store) Subscribe(ctx context.Context, fn func(store.Change)) (*store.Subscription, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}

	s.listenMu.Lock()
	if !s.listening {
		if err := s.listen(); err != nil {
			s.listenMu.Unlock()
			return nil, err
		}
		s.listening = true
	}
	s.listenMu.Unlock()

	return s.hub.Subscribe(ctx, fn)
}

func (s *Store) listen() error {
	listener := pq.NewListener(s.dsn, listenMinReconnect, listenMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.log.Warn().Err(err).Int("event", int(ev)).Msg("content listener event")
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return store.Wrap("listen", err)
	}

	go s.pump(listener)
	return nil
}

func (s *Store) pump(listener *pq.Listener) {
	defer listener.Close()

	for {
		select {
		case <-s.stop:
			return
		case n := <-listener.Notify:
			if n == nil {
				// 重连后可能漏掉通知，发一个整体刷新提示
				s.hub.Publish(store.Change{Table: store.TableContent, Type: store.ChangeUpdate})
				continue
			}
			change, err := decodeNotification(n.Extra)
			if err != nil {
				s.log.Warn().Err(err).Str("payload", n.Extra).Msg("ignoring malformed change notification")
				continue
			}
			s.hub.Publish(change)
		case <-time.After(listenPingInterval):
			go func() {
				if err := listener.Ping(); err != nil {
					s.log.Warn().Err(err).Msg("content listener ping failed")
				}
			}()
		}
	}
}

func decodeNotification(payload string) (store.Change, error) {
	var change store.Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return store.Change{}, err
	}
	if change.Table == "" {
		change.Table = store.TableContent
	}
	change.At = time.Now().UTC()
	return change, nil
}
