package redis

import (
	"context"
	"encoding/json"
	"time"

	repository "github.com/ds124wfegd/roombooker/internal/database/postgres"
	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const roomKeyPrefix = "room:"

// RoomCache is a read-through cache in front of a RoomRepository. Cache
// failures are logged and fall back to the underlying repository.
type RoomCache struct {
	next   repository.RoomRepository
	client *redis.Client
	ttl    time.Duration
}

func NewRoomCache(next repository.RoomRepository, client *redis.Client, ttl time.Duration) *RoomCache {
	return &RoomCache{
		next:   next,
		client: client,
		ttl:    ttl,
	}
}

var _ repository.RoomRepository = (*RoomCache)(nil)

func (c *RoomCache) Create(ctx context.Context, room *entity.Room) error {
	if err := c.next.Create(ctx, room); err != nil {
		return err
	}
	c.set(ctx, room)
	return nil
}

func (c *RoomCache) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	data, err := c.client.Get(ctx, roomKeyPrefix+id).Bytes()
	if err == nil {
		var room entity.Room
		if err := json.Unmarshal(data, &room); err == nil {
			return &room, nil
		}
		logrus.WithField("room_id", id).Warn("Dropping unreadable cached room")
	} else if err != redis.Nil {
		logrus.WithError(err).WithField("room_id", id).Warn("Room cache read failed")
	}

	room, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, room)
	return room, nil
}

// List always goes to the repository; only single rooms are cached.
func (c *RoomCache) List(ctx context.Context, filter entity.RoomFilter) ([]*entity.Room, error) {
	return c.next.List(ctx, filter)
}

func (c *RoomCache) Update(ctx context.Context, room *entity.Room) error {
	if err := c.next.Update(ctx, room); err != nil {
		return err
	}
	c.Invalidate(ctx, room.ID)
	return nil
}

func (c *RoomCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, roomKeyPrefix+id).Err(); err != nil {
		logrus.WithError(err).WithField("room_id", id).Warn("Room cache invalidation failed")
	}
}

func (c *RoomCache) set(ctx context.Context, room *entity.Room) {
	data, err := json.Marshal(room)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, roomKeyPrefix+room.ID, data, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Warn("Room cache write failed")
	}
}
