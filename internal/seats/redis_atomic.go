package seats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"boxoffice/internal/shared/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisHoldStore keeps one hash per held seat plus a per-session index set.
// Every multi-seat write is a single Lua script, so it is atomic on the server.
// Redis does not take part in the relational unit of work.
type RedisHoldStore struct {
	redis *redis.Client
}

func NewRedisHoldStore(redisClient *redis.Client) *RedisHoldStore {
	return &RedisHoldStore{redis: redisClient}
}

func (s *RedisHoldStore) Transactional() bool { return false }

// KEYS[1..n]  = seat hold hashes, KEYS[n+1] = session index
// ARGV[1] = session_id, ARGV[2] = event_id, ARGV[3] = now (ms), ARGV[4] = expires_at (ms)
// ARGV[3+2i] = seat_id i, ARGV[4+2i] = ticket_type_id i ("" when absent)
var acquireScript = redis.NewScript(`
local n = #KEYS - 1
local session = ARGV[1]
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4]) - now

local lost = {}
for i = 1, n do
    local fields = redis.call("HMGET", KEYS[i], "session_id", "expires_at")
    local exp = tonumber(fields[2])
    if fields[1] and fields[1] ~= session and exp and exp > now then
        table.insert(lost, ARGV[3 + 2 * i])
    end
end
if #lost > 0 then
    return lost
end

for i = 1, n do
    if redis.call("HGET", KEYS[i], "session_id") ~= session then
        redis.call("HSET", KEYS[i], "created_at", ARGV[3])
    end
    redis.call("HSET", KEYS[i],
        "seat_id", ARGV[3 + 2 * i],
        "event_id", ARGV[2],
        "session_id", session,
        "ticket_type_id", ARGV[4 + 2 * i],
        "expires_at", ARGV[4])
    redis.call("PEXPIRE", KEYS[i], ttl)
    redis.call("SADD", KEYS[n + 1], ARGV[3 + 2 * i])
end
if redis.call("PTTL", KEYS[n + 1]) < ttl then
    redis.call("PEXPIRE", KEYS[n + 1], ttl)
end
return lost
`)

// KEYS[1..n] = seat hold hashes, KEYS[n+1] = session index
// ARGV[1] = session_id, ARGV[2] = now (ms), ARGV[3] = new expires_at (ms), ARGV[3+i] = seat_id i
var extendScript = redis.NewScript(`
local n = #KEYS - 1
local now = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3]) - now

local missing = {}
for i = 1, n do
    local fields = redis.call("HMGET", KEYS[i], "session_id", "expires_at")
    local exp = tonumber(fields[2])
    if fields[1] ~= ARGV[1] or not exp or exp <= now then
        table.insert(missing, ARGV[3 + i])
    end
end
if #missing > 0 then
    return missing
end

for i = 1, n do
    redis.call("HSET", KEYS[i], "expires_at", ARGV[3])
    redis.call("PEXPIRE", KEYS[i], ttl)
end
if redis.call("PTTL", KEYS[n + 1]) < ttl then
    redis.call("PEXPIRE", KEYS[n + 1], ttl)
end
return missing
`)

// KEYS[1..n] = seat hold hashes, KEYS[n+1] = session index
// ARGV[1] = session_id, ARGV[1+i] = seat_id i
var releaseScript = redis.NewScript(`
local n = #KEYS - 1
local released = {}
for i = 1, n do
    if redis.call("HGET", KEYS[i], "session_id") == ARGV[1] then
        redis.call("DEL", KEYS[i])
        redis.call("SREM", KEYS[n + 1], ARGV[1 + i])
        table.insert(released, ARGV[1 + i])
    end
end
return released
`)

// KEYS = seat hold hashes
// ARGV[1] = session index prefix, ARGV[1+i] = seat_id i
var releaseSeatsScript = redis.NewScript(`
for i = 1, #KEYS do
    local holder = redis.call("HGET", KEYS[i], "session_id")
    if holder then
        redis.call("SREM", ARGV[1] .. holder, ARGV[1 + i])
        redis.call("DEL", KEYS[i])
    end
end
return #KEYS
`)

// KEYS = seat hold hashes
// ARGV[1] = session index prefix, ARGV[2] = now (ms), ARGV[3] = new expires_at (ms)
var extendSeatsScript = redis.NewScript(`
local ttl = tonumber(ARGV[3]) - tonumber(ARGV[2])
for i = 1, #KEYS do
    local holder = redis.call("HGET", KEYS[i], "session_id")
    if holder then
        redis.call("HSET", KEYS[i], "expires_at", ARGV[3])
        redis.call("PEXPIRE", KEYS[i], ttl)
        local index = ARGV[1] .. holder
        if redis.call("PTTL", index) < ttl then
            redis.call("PEXPIRE", index, ttl)
        end
    end
end
return #KEYS
`)

// KEYS = seat hold hashes
// ARGV[1] = now (ms), ARGV[2] = session index prefix, ARGV[2+i] = seat_id i
var purgeScript = redis.NewScript(`
local purged = 0
for i = 1, #KEYS do
    local fields = redis.call("HMGET", KEYS[i], "session_id", "expires_at")
    local exp = tonumber(fields[2])
    if exp and exp <= tonumber(ARGV[1]) then
        if fields[1] then
            redis.call("SREM", ARGV[2] .. fields[1], ARGV[2 + i])
        end
        redis.call("DEL", KEYS[i])
        purged = purged + 1
    end
end
return purged
`)

func (s *RedisHoldStore) Acquire(ctx context.Context, holds []SeatHold, now time.Time) ([]uuid.UUID, error) {
	holds = uniqueHolds(holds)
	if len(holds) == 0 {
		return nil, nil
	}

	sessionID := holds[0].SessionID
	keys := make([]string, 0, len(holds)+1)
	args := []interface{}{sessionID, holds[0].EventID.String(), now.UnixMilli(), holds[0].ExpiresAt.UnixMilli()}
	for _, h := range holds {
		if h.SessionID != sessionID {
			return nil, fmt.Errorf("acquire: holds span more than one session")
		}
		keys = append(keys, seatHoldKey(h.SeatID))
		ticketType := ""
		if h.TicketTypeID != nil {
			ticketType = h.TicketTypeID.String()
		}
		args = append(args, h.SeatID.String(), ticketType)
	}
	keys = append(keys, sessionHoldsKey(sessionID))

	result, err := acquireScript.Run(ctx, s.redis, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to execute atomic seat hold: %w", err)
	}
	return parseSeatList(result)
}

func (s *RedisHoldStore) Active(ctx context.Context, seatIDs []uuid.UUID, now time.Time) ([]SeatHold, error) {
	holds, err := s.load(ctx, uniqueIDs(seatIDs))
	if err != nil {
		return nil, err
	}

	var out []SeatHold
	for _, h := range holds {
		if h.Live(now) {
			out = append(out, h)
		}
	}
	sortHolds(out)
	return out, nil
}

func (s *RedisHoldStore) Extend(ctx context.Context, seatIDs []uuid.UUID, sessionID string, now, until time.Time) ([]uuid.UUID, error) {
	seatIDs = uniqueIDs(seatIDs)
	if len(seatIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(seatIDs)+1)
	args := []interface{}{sessionID, now.UnixMilli(), until.UnixMilli()}
	for _, id := range seatIDs {
		keys = append(keys, seatHoldKey(id))
		args = append(args, id.String())
	}
	keys = append(keys, sessionHoldsKey(sessionID))

	result, err := extendScript.Run(ctx, s.redis, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to execute atomic hold extend: %w", err)
	}
	return parseSeatList(result)
}

func (s *RedisHoldStore) Release(ctx context.Context, seatIDs []uuid.UUID, sessionID string) ([]uuid.UUID, error) {
	seatIDs = uniqueIDs(seatIDs)
	if len(seatIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(seatIDs)+1)
	args := []interface{}{sessionID}
	for _, id := range seatIDs {
		keys = append(keys, seatHoldKey(id))
		args = append(args, id.String())
	}
	keys = append(keys, sessionHoldsKey(sessionID))

	result, err := releaseScript.Run(ctx, s.redis, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to execute atomic seat release: %w", err)
	}
	return parseSeatList(result)
}

func (s *RedisHoldStore) ReleaseSeats(ctx context.Context, seatIDs []uuid.UUID) error {
	seatIDs = uniqueIDs(seatIDs)
	if len(seatIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(seatIDs))
	args := []interface{}{constants.KEY_SESSION_HOLDS}
	for _, id := range seatIDs {
		keys = append(keys, seatHoldKey(id))
		args = append(args, id.String())
	}

	if err := releaseSeatsScript.Run(ctx, s.redis, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to release seat holds: %w", err)
	}
	return nil
}

func (s *RedisHoldStore) ExtendSeats(ctx context.Context, seatIDs []uuid.UUID, now, until time.Time) error {
	seatIDs = uniqueIDs(seatIDs)
	if len(seatIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		keys = append(keys, seatHoldKey(id))
	}

	err := extendSeatsScript.Run(ctx, s.redis, keys, constants.KEY_SESSION_HOLDS, now.UnixMilli(), until.UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("failed to extend seat holds: %w", err)
	}
	return nil
}

func (s *RedisHoldStore) ListBySession(ctx context.Context, sessionID string, eventID uuid.UUID, now time.Time) ([]SeatHold, error) {
	members, err := s.redis.SMembers(ctx, sessionHoldsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session holds: %w", err)
	}

	seatIDs := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if id, err := uuid.Parse(m); err == nil {
			seatIDs = append(seatIDs, id)
		}
	}

	holds, err := s.load(ctx, seatIDs)
	if err != nil {
		return nil, err
	}

	owned := make(map[uuid.UUID]struct{}, len(holds))
	var out []SeatHold
	for _, h := range holds {
		if h.SessionID != sessionID {
			continue
		}
		owned[h.SeatID] = struct{}{}
		if h.EventID == eventID && h.Live(now) {
			out = append(out, h)
		}
	}

	// Drop index entries for seats this session no longer holds.
	var stale []interface{}
	for _, id := range seatIDs {
		if _, ok := owned[id]; !ok {
			stale = append(stale, id.String())
		}
	}
	if len(stale) > 0 {
		s.redis.SRem(ctx, sessionHoldsKey(sessionID), stale...)
	}

	sortHolds(out)
	return out, nil
}

func (s *RedisHoldStore) PurgeExpired(ctx context.Context, now time.Time, seatIDs ...uuid.UUID) (int64, error) {
	if len(seatIDs) > 0 {
		return s.purge(ctx, now, uniqueIDs(seatIDs))
	}

	var total int64
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, constants.KEY_SEAT_HOLD+"*", 200).Result()
		if err != nil {
			return total, fmt.Errorf("failed to scan seat holds: %w", err)
		}

		batch := make([]uuid.UUID, 0, len(keys))
		for _, k := range keys {
			if id, err := uuid.Parse(strings.TrimPrefix(k, constants.KEY_SEAT_HOLD)); err == nil {
				batch = append(batch, id)
			}
		}
		if len(batch) > 0 {
			n, err := s.purge(ctx, now, batch)
			total += n
			if err != nil {
				return total, err
			}
		}

		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func (s *RedisHoldStore) purge(ctx context.Context, now time.Time, seatIDs []uuid.UUID) (int64, error) {
	keys := make([]string, 0, len(seatIDs))
	args := []interface{}{now.UnixMilli(), constants.KEY_SESSION_HOLDS}
	for _, id := range seatIDs {
		keys = append(keys, seatHoldKey(id))
		args = append(args, id.String())
	}

	n, err := purgeScript.Run(ctx, s.redis, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired holds: %w", err)
	}
	return n, nil
}

// load reads the hold hashes of seatIDs in one pipeline. Missing seats are skipped.
func (s *RedisHoldStore) load(ctx context.Context, seatIDs []uuid.UUID) ([]SeatHold, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(seatIDs))
	for i, id := range seatIDs {
		cmds[i] = pipe.HGetAll(ctx, seatHoldKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read seat holds: %w", err)
	}

	holds := make([]SeatHold, 0, len(seatIDs))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		h, err := decodeHold(fields)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, nil
}

func decodeHold(fields map[string]string) (SeatHold, error) {
	var h SeatHold
	var err error
	if h.SeatID, err = uuid.Parse(fields["seat_id"]); err != nil {
		return h, fmt.Errorf("corrupt seat hold: %w", err)
	}
	if h.EventID, err = uuid.Parse(fields["event_id"]); err != nil {
		return h, fmt.Errorf("corrupt seat hold %s: %w", h.SeatID, err)
	}
	h.SessionID = fields["session_id"]
	if tt := fields["ticket_type_id"]; tt != "" {
		if id, err := uuid.Parse(tt); err == nil {
			h.TicketTypeID = &id
		}
	}
	h.ExpiresAt = parseMillis(fields["expires_at"])
	h.CreatedAt = parseMillis(fields["created_at"])
	h.UpdatedAt = h.CreatedAt
	return h, nil
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func parseSeatList(result interface{}) ([]uuid.UUID, error) {
	items, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result format from Lua script")
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("invalid seat id in Lua script result")
		}
		id, err := uuid.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("invalid seat id in Lua script result: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PreloadScripts loads the Lua scripts into Redis so the first request skips the EVAL fallback.
func (s *RedisHoldStore) PreloadScripts(ctx context.Context) error {
	for _, script := range []*redis.Script{acquireScript, extendScript, releaseScript, releaseSeatsScript, extendSeatsScript, purgeScript} {
		if err := script.Load(ctx, s.redis).Err(); err != nil {
			return fmt.Errorf("failed to load hold script: %w", err)
		}
	}
	return nil
}

func seatHoldKey(seatID uuid.UUID) string {
	return constants.BuildSeatHoldKey(seatID)
}

func sessionHoldsKey(sessionID string) string {
	return constants.BuildSessionHoldsKey(sessionID)
}
