package server

import (
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Brownie44l1/minihttp/internal/request"
	"github.com/Brownie44l1/minihttp/internal/response"
)

// RequestIDHeader carries the request identifier in both directions
const RequestIDHeader = "X-Request-ID"

// RequestID gives every request an identifier. One supplied by the client is
// kept. The identifier is echoed on the response.
func RequestID() Middleware {
	return Middleware{
		Before: func(req *request.Request) *response.Response {
			if req.Header(RequestIDHeader) == "" {
				req.Headers.Set(RequestIDHeader, ulid.Make().String())
			}
			return nil
		},
		After: func(req *request.Request, resp *response.Response) {
			if id := req.Header(RequestIDHeader); id != "" {
				resp.SetHeader(RequestIDHeader, id)
			}
		},
	}
}

// AccessLog logs every exchange once its response is final
func AccessLog(logger *zap.Logger) AfterFunc {
	return func(req *request.Request, resp *response.Response) {
		fields := []zap.Field{
			zap.String("method", truncate(req.Method)),
			zap.String("path", truncate(req.Path)),
			zap.Int("status", int(resp.StatusCode)),
			zap.Int("bytes", len(resp.Body)),
			zap.String("remoteAddr", req.RemoteAddr),
		}
		if id := req.Header(RequestIDHeader); id != "" {
			fields = append(fields, zap.String("requestID", truncate(id)))
		}
		switch {
		case resp.StatusCode.IsServerError():
			logger.Warn("Request failed", fields...)
		case resp.StatusCode.IsClientError():
			logger.Info("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}

// CORSConfig configures CORS middleware
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig returns a permissive CORS config (for development)
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:         12 * time.Hour,
	}
}

// CORS answers preflight requests from allowed origins and adds the
// Access-Control headers to their other responses.
func CORS(cfg CORSConfig) Middleware {
	setHeaders := func(origin string, resp *response.Response) {
		resp.SetHeader("Access-Control-Allow-Origin", origin)
		resp.SetHeader("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
		resp.SetHeader("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
		if cfg.AllowCredentials {
			resp.SetHeader("Access-Control-Allow-Credentials", "true")
		}
		if cfg.MaxAge > 0 {
			resp.SetHeader("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
		}
	}

	return Middleware{
		Before: func(req *request.Request) *response.Response {
			origin := req.Header("Origin")
			if req.Method != "OPTIONS" || !isAllowedOrigin(origin, cfg.AllowedOrigins) {
				return nil
			}
			resp := response.New(response.StatusNoContent, nil, response.ContentTypeText)
			setHeaders(origin, resp)
			return resp
		},
		After: func(req *request.Request, resp *response.Response) {
			if origin := req.Header("Origin"); isAllowedOrigin(origin, cfg.AllowedOrigins) {
				setHeaders(origin, resp)
			}
		},
	}
}

func isAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// defaultLimiterIdle is how long an unused bucket is kept
const defaultLimiterIdle = 5 * time.Minute

// NewRateLimiter allows each client rps requests per second with the given
// burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     defaultLimiterIdle,
		now:      time.Now,
	}
}

// Allow reports whether a request from key may proceed and, if not, how long
// the client should wait
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now

	if cl.limiter.AllowN(now, 1) {
		return true, 0
	}
	reservation := cl.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return false, delay
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// sweep drops buckets idle for longer than rl.idle. It runs at most once per
// idle period.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idle {
		return
	}
	rl.lastSweep = now
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > rl.idle {
			delete(rl.limiters, key)
		}
	}
}

// RateLimit rejects requests from clients exceeding limiter with 429
func RateLimit(limiter *RateLimiter) BeforeFunc {
	return func(req *request.Request) *response.Response {
		ok, delay := limiter.Allow(clientIP(req.RemoteAddr))
		if ok {
			return nil
		}
		retry := max(1, int(delay.Round(time.Second)/time.Second))
		return response.Error(response.StatusTooManyRequests).
			WithHeader("Retry-After", strconv.Itoa(retry))
	}
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
