// Package session persists payment-session records in Redis.
//
// Records live in a hash per session: the encoded blob, the optimistic
// revision, and the current challenge status. Updates go through a Lua
// compare-and-swap so a racing poll and authenticate cannot silently lose a
// write, and so a terminal status is never regressed by a late update.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no record exists under the key.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned when creating a session id that is already taken.
	ErrExists = errors.New("session already exists")
	// ErrBackend is returned when Redis is unreachable or misbehaving.
	ErrBackend = errors.New("session store backend unavailable")
	// ErrRevisionConflict is returned when an update carries a stale revision.
	ErrRevisionConflict = errors.New("session revision conflict")
	// ErrTerminalStatus is returned when an update would overwrite a terminal
	// challenge status with a different one.
	ErrTerminalStatus = errors.New("session status already terminal")
)

const defaultTTL = 30 * time.Minute

const updateScript = `
local rev = redis.call("HGET", KEYS[1], "rev")
if not rev then
  return 0
end
if rev ~= ARGV[1] then
  return 1
end
local status = redis.call("HGET", KEYS[1], "status")
if (status == "Succeeded" or status == "Failed" or status == "Cancelled"
    or status == "TimedOut" or status == "InternalServerError")
    and status ~= ARGV[3] then
  return 2
end
redis.call("HSET", KEYS[1], "data", ARGV[2], "rev", tostring(tonumber(ARGV[1]) + 1), "status", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 3
`

const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "data", ARGV[1], "rev", "1", "status", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`

var (
	updateLua = redis.NewScript(updateScript)
	createLua = redis.NewScript(createScript)
)

const (
	updateStatusNotFound int64 = 0
	updateStatusConflict int64 = 1
	updateStatusTerminal int64 = 2
	updateStatusOK       int64 = 3
)

// Store is a Redis-backed session store. Safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore builds a Store. prefix defaults to "ps" and ttl to 30 minutes.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "ps"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{redis: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) derivedKey(instrumentID string) string {
	return s.prefix + ":pi:" + instrumentID
}

// Create persists a new record under its session id. The record's revision
// becomes 1.
func (s *Store) Create(ctx context.Context, rec *Record) error {
	rec.CreatedAt = time.Now().Unix()
	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	res, err := createLua.Run(ctx, s.redis,
		[]string{s.key(rec.ID)},
		encoded, rec.ChallengeStatus, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if res == 0 {
		return ErrExists
	}
	rec.Revision = 1
	return nil
}

// Get fetches a record by session id. The returned record carries the current
// revision for a later Update.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	vals, err := s.redis.HMGet(ctx, s.key(sessionID), "data", "rev").Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	data, _ := vals[0].(string)
	revStr, _ := vals[1].(string)
	if data == "" {
		return nil, ErrNotFound
	}

	rec, err := decodeRecord([]byte(data))
	if err != nil {
		return nil, err
	}
	rec.Revision, _ = strconv.ParseInt(revStr, 10, 64)
	return rec, nil
}

// Update rewrites the record, advancing the revision. The record must carry
// the revision obtained from Get or Create; a stale revision yields
// ErrRevisionConflict. An attempt to replace a terminal challenge status with
// a different status yields ErrTerminalStatus and leaves the record intact.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().Unix()
	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	res, err := updateLua.Run(ctx, s.redis,
		[]string{s.key(rec.ID)},
		strconv.FormatInt(rec.Revision, 10), encoded, rec.ChallengeStatus, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	switch res {
	case updateStatusNotFound:
		return ErrNotFound
	case updateStatusConflict:
		return ErrRevisionConflict
	case updateStatusTerminal:
		return ErrTerminalStatus
	case updateStatusOK:
		rec.Revision++
		return nil
	default:
		return fmt.Errorf("%w: unexpected script result %d", ErrBackend, res)
	}
}

// PutDerived writes the instrument-scoped index record for a session.
func (s *Store) PutDerived(ctx context.Context, rec *DerivedRecord) error {
	encoded, err := encodeDerived(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.derivedKey(rec.InstrumentID), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// GetDerived fetches the instrument-scoped index record, if any.
func (s *Store) GetDerived(ctx context.Context, instrumentID string) (*DerivedRecord, error) {
	data, err := s.redis.Get(ctx, s.derivedKey(instrumentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return decodeDerived(data)
}

// Delete removes a session record. Deleting an absent record is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}
