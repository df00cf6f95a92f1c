// Package session persists session records in Redis: one JSON blob per
// session, a per-user id set for bulk invalidation, and a global expiry
// index (sorted set scored by expiry time) that the reaper walks. Index
// members carry the owning user id alongside the session id so the reaper
// can prune every index entry even after the blob itself is gone.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id does not resolve to a record.
var ErrNotFound = errors.New("session not found")

// ErrExpired is returned when the record exists but its expiry has passed.
// The record is left for the reaper to remove.
var ErrExpired = errors.New("session expired")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Blobs carry a backstop TTL well past the session expiry so that a stalled
// reaper cannot leak keys forever. The reaper remains the authority for
// removal and for the removed-row counts it reports.
const backstopFactor = 2

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
redis.call("SREM", KEYS[2], ARGV[1])
redis.call("ZREM", KEYS[3], ARGV[2])
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store reads and writes session records. All methods are safe for
// concurrent use.
type Store struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewStore creates a Store namespaced by prefix. A nil now falls back to
// the wall clock.
func NewStore(rdb *redis.Client, prefix string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		rdb:    rdb,
		prefix: prefix,
		now:    now,
	}
}

func (s *Store) sessionKey(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *Store) expiryKey() string {
	return s.prefix + ":x"
}

// expiryMember is the sorted-set member form: "<userID>/<sessionID>". The
// separator does not occur in UUIDs or base64url session ids.
func expiryMember(userID, sessionID string) string {
	return userID + "/" + sessionID
}

// Save persists sess and indexes it by user and by expiry.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	lifetime := time.Unix(sess.ExpiresAt, 0).Sub(s.now())
	if lifetime <= 0 {
		lifetime = time.Second
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sess.SessionID), data, backstopFactor*lifetime)
	pipe.SAdd(ctx, s.userKey(sess.UserID), sess.SessionID)
	pipe.ZAdd(ctx, s.expiryKey(), redis.Z{
		Score:  float64(sess.ExpiresAt),
		Member: expiryMember(sess.UserID, sess.SessionID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapRedisErr(err)
	}
	return nil
}

// Get returns the live session for sessionID. Expired-but-unreaped records
// surface as ErrExpired.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.rdb.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, wrapRedisErr(err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, ErrNotFound
	}
	if sess.ExpiresAt <= s.now().Unix() {
		return nil, ErrExpired
	}
	return &sess, nil
}

// Touch extends the session expiry to now+lifetime and reindexes it.
func (s *Store) Touch(ctx context.Context, sessionID string, lifetime time.Duration) (*Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.ExpiresAt = s.now().Add(lifetime).Unix()
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes the session and its index entries, reporting whether the
// record actually existed. Deleting an absent session is not an error; any
// index entries it left behind are pruned by the reaper.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	userID, err := s.ownerOf(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	keys := []string{
		s.sessionKey(sessionID),
		s.userKey(userID),
		s.expiryKey(),
	}
	existed, err := deleteSessionLua.Run(ctx, s.rdb, keys, sessionID, expiryMember(userID, sessionID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, wrapRedisErr(err)
	}
	return existed == 1, nil
}

// DeleteAllForUser removes every session belonging to userID.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	sessionIDs, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return wrapRedisErr(err)
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range sessionIDs {
		pipe.Del(ctx, s.sessionKey(sid))
		pipe.ZRem(ctx, s.expiryKey(), expiryMember(userID, sid))
	}
	pipe.Del(ctx, s.userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapRedisErr(err)
	}
	return nil
}

// DeleteExpired removes every session whose expiry is at or before now and
// returns the number of records removed. Index entries whose blob is
// already gone (backstop TTL) are pruned from both the user set and the
// expiry index without affecting the count.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	members, err := s.rdb.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, wrapRedisErr(err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	removed := 0
	for _, member := range members {
		userID, sessionID, ok := strings.Cut(member, "/")
		if !ok {
			// Unreadable member; drop it from the index.
			_ = s.rdb.ZRem(ctx, s.expiryKey(), member).Err()
			continue
		}

		keys := []string{
			s.sessionKey(sessionID),
			s.userKey(userID),
			s.expiryKey(),
		}
		existed, err := deleteSessionLua.Run(ctx, s.rdb, keys, sessionID, member).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return removed, wrapRedisErr(err)
		}
		if existed == 1 {
			removed++
		}
	}

	return removed, nil
}

// ownerOf reads only the user id out of the session blob.
func (s *Store) ownerOf(ctx context.Context, sessionID string) (string, error) {
	data, err := s.rdb.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", wrapRedisErr(err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return "", ErrNotFound
	}
	return sess.UserID, nil
}

func wrapRedisErr(err error) error {
	return errors.Join(ErrRedisUnavailable, err)
}
