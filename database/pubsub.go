package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Listener handles a single notification payload.
type Listener func(ctx context.Context, payload []byte)

// Pubsub is the change-notification channel of the event store. Subscribers
// receive the JSON payloads emitted by the insert triggers on scan_events and
// form_submissions.
type Pubsub interface {
	Subscribe(channel string, listener Listener) (cancel func(), err error)
	Publish(channel string, payload []byte) error
	Close() error
}

type pgPubsub struct {
	pgListener *pq.Listener
	db         *sql.DB
	mut        sync.Mutex
	listeners  map[string]map[uuid.UUID]Listener
}

func (p *pgPubsub) Subscribe(channel string, listener Listener) (cancel func(), err error) {
	p.mut.Lock()
	defer p.mut.Unlock()

	err = p.pgListener.Listen(channel)
	if errors.Is(err, pq.ErrChannelAlreadyOpen) {
		// another subscriber already opened it
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	channelListeners, ok := p.listeners[channel]
	if !ok {
		channelListeners = map[uuid.UUID]Listener{}
		p.listeners[channel] = channelListeners
	}

	id := uuid.New()
	channelListeners[id] = listener

	return func() {
		p.mut.Lock()
		defer p.mut.Unlock()
		listeners := p.listeners[channel]
		delete(listeners, id)

		if len(listeners) == 0 {
			_ = p.pgListener.Unlisten(channel)
		}
	}, nil
}

func (p *pgPubsub) Publish(channel string, payload []byte) error {
	// pg_notify does not accept the channel name as a bind parameter,
	// QuoteLiteral keeps this safe
	_, err := p.db.ExecContext(context.Background(),
		`SELECT pg_notify(`+pq.QuoteLiteral(channel)+`, $1)`, payload)
	if err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

func (p *pgPubsub) Close() error {
	return p.pgListener.Close()
}

func (p *pgPubsub) listen(ctx context.Context) {
	defer p.pgListener.Close()
	for {
		var notif *pq.Notification
		var ok bool
		select {
		case <-ctx.Done():
			return
		case notif, ok = <-p.pgListener.Notify:
			if !ok {
				return
			}
		}
		// a nil notification is dispatched when the underlying connection
		// reconnects
		if notif == nil {
			continue
		}
		p.dispatch(ctx, notif)
	}
}

func (p *pgPubsub) dispatch(ctx context.Context, notif *pq.Notification) {
	p.mut.Lock()
	defer p.mut.Unlock()
	listeners, ok := p.listeners[notif.Channel]
	if !ok {
		return
	}
	payload := []byte(notif.Extra)
	for _, listener := range listeners {
		go listener(ctx, payload)
	}
}

// NewPubsub opens a dedicated LISTEN connection against the same database.
func NewPubsub(ctx context.Context, db *sql.DB, connectURL string) (Pubsub, error) {
	errCh := make(chan error)
	listener := pq.NewListener(connectURL, time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		// the first event reports whether the initial connection succeeded
		select {
		case <-errCh:
			return
		default:
			errCh <- err
			close(errCh)
		}
	})
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("create pq listener: %w", err)
		}
	case <-ctx.Done():
		_ = listener.Close()
		return nil, ctx.Err()
	}

	ps := &pgPubsub{
		db:         db,
		pgListener: listener,
		listeners:  make(map[string]map[uuid.UUID]Listener),
	}
	go ps.listen(ctx)

	return ps, nil
}
