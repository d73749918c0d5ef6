package authstack

import (
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskhive/authstack/internal"
)

// otpChallengeStore keeps one pending email verification challenge per
// address in Redis. Records hold only the SHA-256 of the code plus an
// attempt counter; issuing a new challenge overwrites any pending one.
type otpChallengeStore struct {
	rdb         redis.UniversalClient
	ttl         time.Duration
	maxAttempts int
}

// Challenge record layout, version 1:
//
//	[0]      version byte
//	[1:33]   code hash
//	[33:35]  attempts used, big-endian uint16
//	[35:43]  issued at, unix seconds
const otpRecordVersion = 1

var errCorruptChallenge = errors.New("authstack: corrupt otp record")

func (s *otpChallengeStore) key(email string) string {
	return "otp:" + strings.ToLower(email)
}

// Save issues a challenge for email, replacing any pending one and
// restarting the TTL.
func (s *otpChallengeStore) Save(ctx context.Context, email, code string) error {
	hash := internal.HashCode(code)

	buf := make([]byte, 43)
	buf[0] = otpRecordVersion
	copy(buf[1:33], hash[:])
	binary.BigEndian.PutUint16(buf[33:35], 0)
	binary.BigEndian.PutUint64(buf[35:43], uint64(time.Now().Unix()))

	if err := s.rdb.Set(ctx, s.key(email), buf, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Consume checks code against the pending challenge for email. A match
// deletes the challenge; a miss burns one attempt, and exhausting the
// attempt budget deletes the challenge too. The attempt counter is bumped
// under WATCH so concurrent guesses cannot share a slot.
func (s *otpChallengeStore) Consume(ctx context.Context, email, code string) error {
	key := s.key(email)

	for i := 0; i < 16; i++ {
		var matched bool
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrOTPInvalid
			}
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			if len(raw) != 43 || raw[0] != otpRecordVersion {
				tx.Del(ctx, key)
				return errCorruptChallenge
			}

			want := internal.HashCode(code)
			matched = subtle.ConstantTimeCompare(raw[1:33], want[:]) == 1
			attempts := binary.BigEndian.Uint16(raw[33:35])

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if matched {
					pipe.Del(ctx, key)
					return nil
				}
				attempts++
				if int(attempts) >= s.maxAttempts {
					pipe.Del(ctx, key)
					return nil
				}
				next := append([]byte(nil), raw...)
				binary.BigEndian.PutUint16(next[33:35], attempts)
				pipe.Set(ctx, key, next, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			if matched {
				return nil
			}
			return ErrOTPInvalid
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, errCorruptChallenge):
			return ErrOTPInvalid
		case errors.Is(err, ErrOTPInvalid) || errors.Is(err, ErrStoreUnavailable):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return fmt.Errorf("%w: otp transaction contention", ErrStoreUnavailable)
}
