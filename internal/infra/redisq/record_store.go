package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"scanq/internal/domain"
	"scanq/internal/ports"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var (
	_ ports.RecordStore     = (*Client)(nil)
	_ ports.AttemptRecorder = (*Client)(nil)
	_ ports.Opener          = (*Client)(nil)
)

// Keys:
//
//	<prefix>:seq     INCR counter handing out ids
//	<prefix>:order   ZSET of ids scored by id
//	<prefix>:records HASH id -> JSON record
const (
	keySeq     = "seq"
	keyOrder   = "order"
	keyRecords = "records"
)

// addScript assigns the id, stores the body and indexes it in one step.
// An explicit id pushes seq forward so later assigned ids never collide
// with it. Returns -1 when the id is taken.
//
//	KEYS[1] records, KEYS[2] order, KEYS[3] seq
//	ARGV[1] id (0 to assign), ARGV[2] body
var addScript = redis.NewScript(`
local id = tonumber(ARGV[1])
if id == 0 then
  id = redis.call('INCR', KEYS[3])
elseif tonumber(redis.call('GET', KEYS[3]) or '0') < id then
  redis.call('SET', KEYS[3], id)
end
if redis.call('HSETNX', KEYS[1], id, ARGV[2]) == 0 then
  return -1
end
redis.call('ZADD', KEYS[2], id, id)
return id
`)

// replaceScript overwrites a body only if it is still there.
var replaceScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
  return redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
return 0
`)

func (c *Client) Add(ctx context.Context, rec domain.QueuedScan) (int64, error) {
	if err := c.Open(ctx); err != nil {
		return 0, err
	}

	// the hash field holds the id; the body is stored without it
	id := rec.ID
	rec.ID = 0
	b, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("marshal queued scan: %w", err)
	}

	keys := []string{c.key(keyRecords), c.key(keyOrder), c.key(keySeq)}
	got, err := addScript.Run(ctx, c.Rdb, keys, id, b).Int64()
	if err != nil {
		return 0, fmt.Errorf("store queued scan: %w", err)
	}
	if got < 0 {
		return 0, domain.ErrDuplicateID
	}
	return got, nil
}

func (c *Client) GetAll(ctx context.Context) ([]domain.QueuedScan, error) {
	if err := c.Open(ctx); err != nil {
		return nil, err
	}

	ids, err := c.Rdb.ZRange(ctx, c.key(keyOrder), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list queued scans: %w", err)
	}

	out := []domain.QueuedScan{}
	if len(ids) == 0 {
		return out, nil
	}

	vals, err := c.Rdb.HMGet(ctx, c.key(keyRecords), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load queued scans: %w", err)
	}

	var dangling []any
	for i, v := range vals {
		if v == nil {
			dangling = append(dangling, ids[i])
			continue
		}
		rec, err := decode(ids[i], v)
		if err != nil {
			return nil, fmt.Errorf("decode queued scan %s: %w", ids[i], err)
		}
		out = append(out, rec)
	}

	// drop index entries whose body is gone so Count agrees with GetAll
	if len(dangling) > 0 {
		if err := c.Rdb.ZRem(ctx, c.key(keyOrder), dangling...).Err(); err != nil {
			return nil, fmt.Errorf("prune queued scan index: %w", err)
		}
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.Open(ctx); err != nil {
		return err
	}

	fields := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		fields[i] = strconv.FormatInt(id, 10)
		members[i] = fields[i]
	}

	_, err := c.Rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, c.key(keyRecords), fields...)
		p.ZRem(ctx, c.key(keyOrder), members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete queued scans: %w", err)
	}
	return nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	if err := c.Open(ctx); err != nil {
		return 0, err
	}

	n, err := c.Rdb.ZCard(ctx, c.key(keyOrder)).Result()
	if err != nil {
		return 0, fmt.Errorf("count queued scans: %w", err)
	}
	return int(n), nil
}

func (c *Client) SetAttempts(ctx context.Context, id int64, attempts int) error {
	if err := c.Open(ctx); err != nil {
		return err
	}

	field := strconv.FormatInt(id, 10)
	raw, err := c.Rdb.HGet(ctx, c.key(keyRecords), field).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load queued scan %d: %w", id, err)
	}

	rec, err := decode(field, raw)
	if err != nil {
		return err
	}
	rec.ID = 0
	rec.Attempts = attempts

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal queued scan: %w", err)
	}
	// a concurrent Delete must not resurrect the body
	if err := replaceScript.Run(ctx, c.Rdb, []string{c.key(keyRecords)}, field, b).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("update queued scan %d: %w", id, err)
	}
	return nil
}

func decode(field string, v any) (domain.QueuedScan, error) {
	var rec domain.QueuedScan
	id, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return rec, fmt.Errorf("bad record id %q: %w", field, err)
	}

	switch raw := v.(type) {
	case string:
		err = json.Unmarshal([]byte(raw), &rec)
	case []byte:
		err = json.Unmarshal(raw, &rec)
	default:
		err = fmt.Errorf("unexpected record type: %T", v)
	}
	if err != nil {
		return rec, err
	}
	rec.ID = id
	return rec, nil
}
