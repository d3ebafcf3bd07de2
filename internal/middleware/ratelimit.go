package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/pkg/errors"
	"github.com/charlesng35/mentorhub/pkg/response"
)

// RateStore counts hits for a key within a fixed window.
type RateStore interface {
	Increment(key string, window time.Duration) (count int, resetIn time.Duration)
}

type memoryCounter struct {
	count     int
	windowEnd time.Time
}

// MemoryRateStore is a process-local RateStore suitable for single-instance deployments.
type MemoryRateStore struct {
	mu    sync.Mutex
	data  map[string]*memoryCounter
	clock func() time.Time
}

// NewMemoryRateStore constructs an in-memory rate store.
func NewMemoryRateStore() *MemoryRateStore {
	return &MemoryRateStore{data: make(map[string]*memoryCounter), clock: time.Now}
}

// Increment records one hit for key and returns the count within the current window.
func (s *MemoryRateStore) Increment(key string, window time.Duration) (int, time.Duration) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Expired windows are swept lazily on access.
	for k, v := range s.data {
		if now.After(v.windowEnd) {
			delete(s.data, k)
		}
	}

	counter, ok := s.data[key]
	if !ok {
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}
	counter.count++
	return counter.count, counter.windowEnd.Sub(now)
}

// RateLimit limits requests per (user or client IP, route) within a fixed window.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		subject := c.GetString(CtxUserIDKey)
		if subject == "" {
			subject = c.ClientIP()
		}
		count, resetIn := store.Increment(subject+"|"+c.FullPath(), window)

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, maxRequests-count)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}
