package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/opsdesk/internal/domain"
)

type redisTicketRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisTicketRepository stores each kind as one hash of JSON documents keyed by id.
func NewRedisTicketRepository(client *redis.Client, prefix string) TicketRepository {
	if prefix == "" {
		prefix = "opsdesk"
	}
	return &redisTicketRepository{client: client, prefix: prefix}
}

func (r *redisTicketRepository) key(kind domain.TicketKind) string {
	return r.prefix + ":tickets:" + string(kind)
}

func (r *redisTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	doc, err := encodeTicket(ticket)
	if err != nil {
		return err
	}
	created, err := r.client.HSetNX(ctx, r.key(ticket.Kind), ticket.ID, doc).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrDuplicateID
	}
	return nil
}

func (r *redisTicketRepository) GetByID(ctx context.Context, kind domain.TicketKind, id string) (*domain.Ticket, error) {
	doc, err := r.client.HGet(ctx, r.key(kind), id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeTicket(doc)
}

func (r *redisTicketRepository) List(ctx context.Context, kind domain.TicketKind) ([]domain.Ticket, error) {
	docs, err := r.client.HVals(ctx, r.key(kind)).Result()
	if err != nil {
		return nil, err
	}
	result := make([]domain.Ticket, 0, len(docs))
	for _, doc := range docs {
		ticket, err := decodeTicket([]byte(doc))
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	sortByCreation(result)
	return result, nil
}

func (r *redisTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	key := r.key(ticket.Kind)
	doc, err := encodeTicket(ticket)
	if err != nil {
		return err
	}
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, ticket.ID).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		stored, err := decodeTicket(current)
		if err != nil {
			return err
		}
		if stored.Version != ticket.Version-1 {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, ticket.ID, doc)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

func (r *redisTicketRepository) Delete(ctx context.Context, kind domain.TicketKind, id string) error {
	removed, err := r.client.HDel(ctx, r.key(kind), id).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *redisTicketRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return errors.New("redis client not configured")
	}
	return r.client.Ping(ctx).Err()
}
