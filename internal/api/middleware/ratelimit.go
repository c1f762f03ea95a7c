// ratelimit.go — ограничение частоты запросов конвертации по IP клиента.
// Token bucket на каждый IP (golang.org/x/time/rate), неактивные записи
// периодически удаляются.
package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apierrors "github.com/bigkaa/goartstore/converter/internal/api/errors"
)

const (
	// limiterIdleTTL — через сколько неактивный IP удаляется из таблицы
	limiterIdleTTL = 10 * time.Minute
	// limiterCleanupInterval — период очистки таблицы
	limiterCleanupInterval = 5 * time.Minute
)

// ipLimiter — token bucket одного IP и время последнего обращения.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter — таблица per-IP ограничителей.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	r        rate.Limit
	b        int

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter создаёт ограничитель на requestsPerMinute запросов в минуту
// с одного IP и запускает фоновую очистку. requestsPerMinute <= 0 — без ограничений.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		r:        rate.Limit(float64(requestsPerMinute) / 60.0),
		b:        requestsPerMinute,
		stopCh:   make(chan struct{}),
	}
	if requestsPerMinute > 0 {
		go rl.cleanup()
	}
	return rl
}

// Enabled сообщает, включено ли ограничение.
func (rl *RateLimiter) Enabled() bool {
	return rl.b > 0
}

// Stop останавливает фоновую очистку. Повторный вызов безопасен.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware возвращает HTTP middleware. Запрос сверх лимита получает
// 429 с заголовком Retry-After. Если переданы paths, ограничиваются только
// POST-запросы к этим путям, остальные проходят без учёта.
func (rl *RateLimiter) Middleware(paths ...string) func(http.Handler) http.Handler {
	limited := make(map[string]bool, len(paths))
	for _, p := range paths {
		limited[p] = true
	}

	return func(next http.Handler) http.Handler {
		if !rl.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(limited) > 0 && (r.Method != http.MethodPost || !limited[r.URL.Path]) {
				next.ServeHTTP(w, r)
				return
			}

			reservation := rl.get(clientIP(r)).Reserve()
			if d := reservation.Delay(); d > 0 {
				// Токен возвращается: запрос отклонён
				reservation.Cancel()
				retryAfter := int(math.Ceil(d.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				apierrors.TooManyRequests(w, "Too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// get возвращает ограничитель для IP, создавая его при первом обращении.
func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rl.r, rl.b)}
		rl.limiters[ip] = l
	}
	l.lastSeen = time.Now()
	return l.limiter
}

// cleanup периодически удаляет неактивные записи до вызова Stop.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for ip, l := range rl.limiters {
				if time.Since(l.lastSeen) > limiterIdleTTL {
					delete(rl.limiters, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// clientIP извлекает IP клиента из RemoteAddr. Заголовки прокси
// не учитываются: их может подделать клиент.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
