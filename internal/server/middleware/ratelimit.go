package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/iudanet/cropscan/internal/server/handlers"
)

// Default limits
const (
	DefaultGlobalRate   = 100
	DefaultGlobalWindow = 15 * time.Minute
	DefaultAuthRate     = 5
	DefaultAuthWindow   = time.Hour

	MsgTooManyRequests     = "Too many requests, please try again later."
	MsgTooManyAuthAttempts = "Too many auth attempts, please try again in an hour."
)

// RateLimiter ограничивает число запросов с одного IP в фиксированном окне
type RateLimiter struct {
	buckets  map[string]*bucket
	logger   *slog.Logger
	cleanupC chan struct{}
	now      func() time.Time
	message  string
	rate     int
	window   time.Duration
	mu       sync.RWMutex
	stopOnce sync.Once
}

// bucket представляет bucket для конкретного IP/ключа
type bucket struct {
	windowStart time.Time
	tokens      int
	mu          sync.Mutex
}

// NewRateLimiter создает новый rate limiter
// rate - максимальное количество запросов в окне window
// message - текст ответа 429
func NewRateLimiter(rate int, window time.Duration, message string, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		window:   window,
		message:  message,
		logger:   logger,
		now:      time.Now,
		cleanupC: make(chan struct{}),
	}

	// Запускаем периодическую очистку старых buckets
	go rl.cleanup()

	return rl
}

// cleanup периодически удаляет неактивные buckets для экономии памяти
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupOldBuckets()
		case <-rl.cleanupC:
			return
		}
	}
}

// cleanupOldBuckets удаляет buckets, окно которых давно истекло
func (rl *RateLimiter) cleanupOldBuckets() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.windowStart) > rl.window*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// Stop останавливает cleanup goroutine, повторный вызов безопасен
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.cleanupC)
	})
}

// Allow проверяет, разрешен ли запрос для данного ключа (обычно IP адрес)
// Возвращает остаток запросов в окне и момент сброса
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// мог появиться, пока ждали блокировку
		if b, exists = rl.buckets[key]; !exists {
			b = &bucket{
				tokens:      rl.rate,
				windowStart: rl.now(),
			}
			rl.buckets[key] = b
		}
		rl.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	if now.Sub(b.windowStart) >= rl.window {
		b.tokens = rl.rate
		b.windowStart = now
	}

	reset := b.windowStart.Add(rl.window)

	if b.tokens > 0 {
		b.tokens--
		return true, b.tokens, reset
	}

	return false, 0, reset
}

// Middleware отклоняет запросы сверх лимита с 429
// Заголовки RateLimit-* по draft-ietf-httpapi-ratelimit-headers
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)

		allowed, remaining, reset := rl.Allow(key)

		resetSeconds := int(math.Ceil(reset.Sub(rl.now()).Seconds()))
		if resetSeconds < 0 {
			resetSeconds = 0
		}

		w.Header().Set("RateLimit-Limit", strconv.Itoa(rl.rate))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if !allowed {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
				slog.String("ip", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			w.Header().Set("Retry-After", strconv.Itoa(resetSeconds))
			handlers.SendError(rl.logger, w, rl.message, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP извлекает IP адрес клиента из запроса
// X-Forwarded-For и X-Real-IP уже учтены chi RealIP в RemoteAddr
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
