package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
)

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			// if not exists in map, append it, otherwise do nothing
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// ChunkSlice splits a slice into groups of at most size elements.
// The last chunk may be shorter. size must be > 0.
func ChunkSlice[T any](slice []T, size int) [][]T {
	if size <= 0 {
		return nil
	}
	var chunks [][]T
	for size < len(slice) {
		chunks = append(chunks, slice[:size:size])
		slice = slice[size:]
	}
	if len(slice) > 0 {
		chunks = append(chunks, slice)
	}
	return chunks
}

// ParseLenientDecimal parses wholesaler-formatted numbers.
// Accepts "4.10", "4,10", "1.234,56", "€ 12,00"; anything unparsable
// normalizes to zero so a bad cell never aborts an import.
func ParseLenientDecimal(value string) decimal.Decimal {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// "1.234,56": dots are thousands separators.
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return dec
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"01/2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// ParseLenientDate parses wholesaler-formatted dates (expiry, last-cost date).
// Returns nil when no known layout matches; unparsable dates never abort an import.
func ParseLenientDate(value string) *time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// FindOldestDate returns the oldest (earliest) date among the provided dates.
func FindOldestDate(dates ...*time.Time) *time.Time {
	var oldest *time.Time
	for _, date := range dates {
		if date == nil {
			continue
		}
		if oldest == nil || date.Before(*oldest) {
			oldest = date
		}
	}
	return oldest
}

// ImportLock serializes pipeline stages per import id across instances.
// The returned release func is nil-safe to defer.
func ImportLock(ctx context.Context, importId string, stage string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", importId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", stage, importId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for import", importId, err)
		return nil, errors.New("could not obtain lock for import")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for import", importId, err)
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
