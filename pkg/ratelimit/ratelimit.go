// Package ratelimit tracks per-key weekly usage against a byte/call
// budget, backed by bbolt. It guards a publicly reachable apply
// endpoint from being flooded with giant or repeated SEARCH/REPLACE
// payloads the same way this codebase's upload endpoint guards against
// giant or repeated file uploads.
package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// ErrLimitsExceeded is returned by Check when key has exceeded limits
// for the current period.
var ErrLimitsExceeded = errors.New("ratelimit: limits exceeded")

// Limits bounds how much a single key may consume per period.
type Limits struct {
	MaxBytes uint64
	MaxCalls uint64
}

type usageStat struct {
	Period   string `json:"p"`
	NumBytes uint64 `json:"nb"`
	NumCalls uint64 `json:"nc"`
}

// Limiter enforces Limits per key per seven-day period (periods are
// counted from January 1 of each UTC year), persisting counters in a
// dedicated bolt bucket.
type Limiter struct {
	DB     *bbolt.DB
	Bucket []byte
	Limits Limits

	err  error
	once sync.Once
}

func (l *Limiter) init() error {
	l.once.Do(l._init)
	return l.err
}

func (l *Limiter) _init() {
	err := l.DB.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(l.Bucket)
		return err
	})
	if err != nil {
		l.err = fmt.Errorf("ratelimit: bucket init: %w", err)
	}
}

// Check adds numBytes/one call to key's running total for the current
// week and returns ErrLimitsExceeded if the updated total is now over
// budget. The increment is applied regardless of whether the limit was
// exceeded, so a caller that keeps hammering past the limit doesn't get
// to silently reset its own counter.
func (l *Limiter) Check(key string, numBytes uint64) error {
	if err := l.init(); err != nil {
		return err
	}

	now := time.Now().UTC()
	period := weekPeriod(now)

	exceeded := false
	err := l.DB.Batch(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(l.Bucket)
		val := bk.Get([]byte(key))

		var stat usageStat
		if len(val) != 0 {
			if err := json.Unmarshal(val, &stat); err != nil {
				return err
			}
		}

		if stat.Period == period {
			stat.NumCalls++
			stat.NumBytes += numBytes
		} else {
			stat = usageStat{Period: period, NumCalls: 1, NumBytes: numBytes}
		}

		encoded, err := json.Marshal(stat)
		if err != nil {
			return err
		}
		if err := bk.Put([]byte(key), encoded); err != nil {
			return err
		}

		// Returning an error here would roll the Put back, so the verdict
		// is reported only after the transaction commits.
		exceeded = stat.NumBytes > l.Limits.MaxBytes || stat.NumCalls > l.Limits.MaxCalls
		return nil
	})
	if err != nil {
		return err
	}
	if exceeded {
		return ErrLimitsExceeded
	}
	return nil
}

func weekPeriod(t time.Time) string {
	weekNum := (t.YearDay() - 1) / 7
	return fmt.Sprintf("%d/%d", t.Year(), weekNum)
}
