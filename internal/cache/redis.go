package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appLog "eventdesk/internal/log"
	"eventdesk/internal/model"
)

// NewRedisClient connects to url (a redis:// URL or a plain host:port) and
// checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.PoolSize = 10
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	appLog.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

// SnapshotCache keeps the last event snapshot fetched successfully, so a
// restart during a backend outage still has something to check against.
type SnapshotCache struct {
	Redis *redis.Client
	key   string
	ttl   time.Duration
	now   func() time.Time
}

// NewSnapshotCache stores the snapshot under "<prefix>:snapshot".
func NewSnapshotCache(client *redis.Client, prefix string, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		Redis: client,
		key:   prefix + ":snapshot",
		ttl:   ttl,
		now:   time.Now,
	}
}

// Key returns the redis key holding the snapshot.
func (c *SnapshotCache) Key() string {
	return c.key
}

// cachedEvent is the stored form of model.Event.
type cachedEvent struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	LocationMode string    `json:"location_mode"`
	Room         string    `json:"room,omitempty"`
	AuthorName   string    `json:"author_name,omitempty"`
	Sector       string    `json:"sector,omitempty"`
}

type snapshotDoc struct {
	SavedAt time.Time     `json:"saved_at"`
	Events  []cachedEvent `json:"events"`
}

// Save overwrites the cached snapshot.
func (c *SnapshotCache) Save(ctx context.Context, events []model.Event) error {
	data, err := c.encode(events)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, c.key, data, c.ttl).Err()
}

func (c *SnapshotCache) encode(events []model.Event) ([]byte, error) {
	doc := snapshotDoc{
		SavedAt: c.now().UTC(),
		Events:  make([]cachedEvent, 0, len(events)),
	}
	for _, ev := range events {
		doc.Events = append(doc.Events, cachedEvent{
			ID:           string(ev.ID),
			Kind:         string(ev.Kind),
			Title:        ev.Title,
			Start:        ev.Start,
			End:          ev.End,
			LocationMode: string(ev.LocationMode),
			Room:         string(ev.Room),
			AuthorName:   ev.AuthorName,
			Sector:       ev.Sector,
		})
	}

	return json.Marshal(doc)
}

// Load returns the cached snapshot. ok is false when nothing is cached.
func (c *SnapshotCache) Load(ctx context.Context) ([]model.Event, bool, error) {
	data, err := c.Redis.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("cache: corrupt snapshot: %w", err)
	}

	events := make([]model.Event, 0, len(doc.Events))
	for _, ce := range doc.Events {
		events = append(events, model.Event{
			ID:           model.EventID(ce.ID),
			Kind:         model.ParseKind(ce.Kind),
			Title:        ce.Title,
			Start:        ce.Start,
			End:          ce.End,
			LocationMode: model.ParseLocationMode(ce.LocationMode),
			Room:         model.ParseRoom(ce.Room),
			AuthorName:   ce.AuthorName,
			Sector:       ce.Sector,
		})
	}
	appLog.Debug("cache: loaded snapshot", "count", len(events), "saved_at", doc.SavedAt.Format(time.RFC3339))
	return events, true, nil
}

// HealthCheck pings redis with a short timeout.
func (c *SnapshotCache) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
