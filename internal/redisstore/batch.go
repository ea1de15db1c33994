package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"notifier/internal/models"
)

// addOrderScript appends one serialized order to the pending batch as a single
// atomic unit: push, trim to the cap, bump the running total, stamp the
// last-updated key and reapply the TTL to all three keys. The total is an
// independent accumulator, so trimming the list never changes it.
//
// KEYS: [1] orders list, [2] total, [3] last-updated
// ARGV: [1] payload, [2] amount, [3] max list length, [4] timestamp, [5] ttl seconds
var addOrderScript = redis.NewScript(`
local len = redis.call('RPUSH', KEYS[1], ARGV[1])
local max = tonumber(ARGV[3])
if len > max then
  redis.call('LTRIM', KEYS[1], len - max, -1)
  len = max
end
local total = redis.call('INCRBYFLOAT', KEYS[2], ARGV[2])
redis.call('SET', KEYS[3], ARGV[4])
local ttl = tonumber(ARGV[5])
redis.call('EXPIRE', KEYS[1], ttl)
redis.call('EXPIRE', KEYS[2], ttl)
redis.call('EXPIRE', KEYS[3], ttl)
return {len, total}
`)

// flushAndPublishScript drains the pending batch atomically: read everything,
// keep only the newest maxOrdersToSend entries for the payload (count stays
// the full pre-truncation length), publish the batch event and delete the
// three keys. An absent or empty list returns false, which the client sees
// as "nothing to do".
//
// KEYS: [1] orders list, [2] total, [3] last-updated, [4] pub/sub channel
// ARGV: [1] max orders to send, [2] timestamp
var flushAndPublishScript = redis.NewScript(`
local count = redis.call('LLEN', KEYS[1])
if count == 0 then
  return false
end
local entries = redis.call('LRANGE', KEYS[1], 0, -1)
local total = redis.call('GET', KEYS[2])
if not total then
  total = '0'
end
local max = tonumber(ARGV[1])
if count > max then
  local kept = {}
  for i = count - max + 1, count do
    kept[#kept + 1] = entries[i]
  end
  entries = kept
end
local orders = {}
for i = 1, #entries do
  orders[i] = cjson.decode(entries[i])
end
local message = cjson.encode({
  ['type'] = 'batch',
  count = count,
  totalRevenue = tonumber(total),
  orders = orders,
  timestamp = ARGV[2],
})
redis.call('PUBLISH', KEYS[4], message)
redis.call('DEL', KEYS[1], KEYS[2], KEYS[3])
local reply = {count, total}
for i = 1, #entries do
  reply[#reply + 1] = entries[i]
end
return reply
`)

// AddOrder accumulates one serialized order summary into the pending batch.
// It returns the post-trim list length and the post-increment total.
// Duplicate payloads are accepted; dedup belongs to the poller.
func (s *Store) AddOrder(ctx context.Context, payload []byte, amount float64) (int64, float64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	keys := []string{s.keys.Pending, s.keys.PendingTotal, s.keys.PendingLast}
	res, err := addOrderScript.Run(
		ctx, s.client, keys,
		payload, amount, s.maxListLen, now, int(s.pendingExpiry.Seconds()),
	).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to add order to pending batch: %w", err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, 0, fmt.Errorf("unexpected add-order reply: %v", res)
	}
	length, ok := reply[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected add-order length: %v", reply[0])
	}
	totalStr, ok := reply[1].(string)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected add-order total: %v", reply[1])
	}
	total, err := strconv.ParseFloat(totalStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse batch total %q: %w", totalStr, err)
	}

	return length, total, nil
}

// FlushAndPublish drains the pending batch, publishes the batch event on
// channel and deletes the three batch keys, all in one atomic unit. A nil
// result with a nil error means there was nothing to flush.
func (s *Store) FlushAndPublish(ctx context.Context, channel string, maxOrdersToSend int) (*models.FlushResult, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	keys := []string{s.keys.Pending, s.keys.PendingTotal, s.keys.PendingLast, channel}
	res, err := flushAndPublishScript.Run(ctx, s.client, keys, maxOrdersToSend, now).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to flush pending batch: %w", err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) < 2 {
		return nil, fmt.Errorf("unexpected flush reply: %v", res)
	}
	count, ok := reply[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected flush count: %v", reply[0])
	}
	totalStr, ok := reply[1].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected flush total: %v", reply[1])
	}
	total, err := strconv.ParseFloat(totalStr, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch total %q: %w", totalStr, err)
	}

	orders := make([]json.RawMessage, 0, len(reply)-2)
	for _, raw := range reply[2:] {
		entry, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected flush entry: %v", raw)
		}
		orders = append(orders, json.RawMessage(entry))
	}

	return &models.FlushResult{Count: int(count), Total: total, Orders: orders}, nil
}
