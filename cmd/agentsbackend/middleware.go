package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/agentsbackend/api/handlers"
	"github.com/BaSui01/agentsbackend/config"
	"github.com/BaSui01/agentsbackend/internal/ctxkeys"
	"github.com/BaSui01/agentsbackend/internal/metrics"
	"github.com/BaSui01/agentsbackend/internal/ratelimit"
	"github.com/BaSui01/agentsbackend/internal/telemetry"
	"github.com/BaSui01/agentsbackend/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// requestIDHeader 请求 ID 头
const requestIDHeader = "X-Request-ID"

// maxRequestIDLength 客户端提供的请求 ID 最大长度
const maxRequestIDLength = 128

// errHandlerPanic 处理器 panic 时交给 ErrorResponder 的错误，渲染为 500 INTERNAL_SERVER_ERROR
var errHandlerPanic = errors.New("handler panicked")

// Middleware 类型定义
type Middleware func(http.Handler) http.Handler

// Chain 将多个中间件串联，第一个中间件位于最外层
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// =============================================================================
// Recovery / RequestID / SecurityHeaders / RequestLogger
// =============================================================================

// Recovery panic 恢复中间件，响应头未写出时输出统一错误信封
func Recovery(responder *handlers.ErrorResponder, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := handlers.NewResponseWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				requestID, _ := ctxkeys.RequestID(r.Context())
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID),
					zap.ByteString("stack", debug.Stack()),
				)
				if !rw.Written {
					responder.Respond(rw, r, errHandlerPanic)
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// RequestID 为每个请求分配 ID（保留客户端提供的合法 X-Request-ID），
// 写入响应头与请求上下文
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithRequestID(r.Context(), id)))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// SecurityHeaders adds common security response headers to every request.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger 请求日志中间件
func RequestLogger(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			requestID, _ := ctxkeys.RequestID(r.Context())
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.StatusCode),
				zap.Int64("bytes", rw.Bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", clientIP(r)),
				zap.String("request_id", requestID),
			)
		})
	}
}

// =============================================================================
// MetricsMiddleware / OTelTracing
// =============================================================================

// knownRoutes 指标中使用的路由标签，未知路径统一记为 "other" 以限制基数
var knownRoutes = map[string]struct{}{
	"/":                            {},
	"/health":                      {},
	"/ready":                       {},
	"/version":                     {},
	"/api/v1/chat/research":        {},
	"/api/v1/chat/research/stream": {},
}

func routeLabel(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return "other"
}

// MetricsMiddleware records HTTP request duration, status, size and in-flight count.
func MetricsMiddleware(collector *metrics.Collector) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			done := collector.TrackInFlight()
			defer done()

			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			collector.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), rw.StatusCode, time.Since(start), rw.Bytes)
		})
	}
}

// OTelTracing creates a server span for each request using the global tracer.
// Incoming trace context is extracted from the request headers.
func OTelTracing() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			route := routeLabel(r.URL.Path)
			ctx, span := telemetry.Tracer(telemetry.ScopeHTTP).Start(ctx, r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRoute(route),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if requestID, ok := ctxkeys.RequestID(ctx); ok {
				span.SetAttributes(attribute.String("request.id", requestID))
			}

			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(semconv.HTTPResponseStatusCode(rw.StatusCode))
			if rw.StatusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.StatusCode))
			}
		})
	}
}

// =============================================================================
// CORS / MaxBodySize
// =============================================================================

// CORS 跨域中间件。来源列表包含 "*" 时允许所有来源但不允许携带凭证；
// 否则只回显白名单内的来源并允许凭证。列表为空时不设置任何 CORS 头。
func CORS(allowedOrigins []string) Middleware {
	allowAll := false
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := false

			if origin != "" {
				h := w.Header()
				h.Add("Vary", "Origin")
				switch {
				case allowAll:
					h.Set("Access-Control-Allow-Origin", "*")
					allowed = true
				default:
					if _, ok := originSet[origin]; ok {
						h.Set("Access-Control-Allow-Origin", origin)
						h.Set("Access-Control-Allow-Credentials", "true")
						allowed = true
					}
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				h := w.Header()
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				}
				h.Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize 限制请求体大小，超限时由请求解码返回 413
func MaxBodySize(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// Authenticate — API Key / JWT Bearer
// =============================================================================

// Authenticate 认证中间件。请求可携带 X-API-Key，或在启用 JWT 时携带
// Authorization: Bearer <token>。认证失败返回 401 AUTHENTICATION_REQUIRED，
// JWT 缺少 RequiredRole 时返回 403 FORBIDDEN。
// 未配置任何 API Key 且未启用 JWT 时不做认证。只包裹受保护的路由，
// 公开端点与未知路径不经过此中间件。
func Authenticate(cfg config.AuthConfig, responder *handlers.ErrorResponder, logger *zap.Logger) Middleware {
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	jwtEnabled := cfg.JWT.Enabled()

	if len(keys) == 0 && !jwtEnabled {
		return func(next http.Handler) http.Handler { return next }
	}

	parser := jwt.NewParser(jwtParserOptions(cfg.JWT)...)
	secret := []byte(cfg.JWT.Secret)
	keyFunc := func(token *jwt.Token) (any, error) {
		return secret, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" {
				if !matchAPIKey(keys, key) {
					logger.Debug("api key rejected", zap.String("path", r.URL.Path))
					responder.Respond(w, r, types.NewAuthenticationError("Invalid API key"))
					return
				}
				ctx := ctxkeys.WithPrincipal(r.Context(), ctxkeys.Principal{Subject: "apikey:" + fingerprint(key)})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			tokenStr, hasBearer := bearerToken(r)
			if !jwtEnabled || !hasBearer {
				responder.Respond(w, r, types.NewAuthenticationError("Authentication required"))
				return
			}

			claims := &researchClaims{}
			if _, err := parser.ParseWithClaims(tokenStr, claims, keyFunc); err != nil {
				logger.Debug("JWT validation failed", zap.Error(err))
				responder.Respond(w, r, types.NewAuthenticationError("Invalid or expired token"))
				return
			}

			principal := ctxkeys.Principal{Subject: claims.Subject, Roles: claims.roles()}
			if cfg.JWT.RequiredRole != "" && !principal.HasRole(cfg.JWT.RequiredRole) {
				responder.Respond(w, r, types.NewAuthorizationError("").
					WithExtra("required_role", cfg.JWT.RequiredRole))
				return
			}

			next.ServeHTTP(w, r.WithContext(ctxkeys.WithPrincipal(r.Context(), principal)))
		})
	}
}

// researchClaims JWT 载荷：标准声明 + roles（数组）或 role（字符串）
type researchClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
	Role  string   `json:"role,omitempty"`
}

func (c *researchClaims) roles() []string {
	if c.Role == "" {
		return c.Roles
	}
	return append(append([]string{}, c.Roles...), c.Role)
}

func jwtParserOptions(cfg config.JWTConfig) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return opts
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

func matchAPIKey(keys [][]byte, candidate string) bool {
	c := []byte(candidate)
	matched := 0
	for _, k := range keys {
		matched |= subtle.ConstantTimeCompare(k, c)
	}
	return matched == 1
}

// fingerprint 返回 API Key 的短摘要，用于日志与限流 key，不暴露原文
func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}

// =============================================================================
// RateLimiter
// =============================================================================

// RateLimitRecorder 记录限流拒绝
type RateLimitRecorder interface {
	RecordRateLimited(path string)
}

// RateLimiter 限流中间件。已认证请求按调用方限流，匿名请求按客户端 IP。
// 限流器出错时放行请求并记录告警。预检请求不计数。
func RateLimiter(limiter ratelimit.Limiter, responder *handlers.ErrorResponder, recorder RateLimitRecorder, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := rateLimitKey(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				allowed = true
			}
			if !allowed {
				if recorder != nil {
					recorder.RecordRateLimited(routeLabel(r.URL.Path))
				}
				w.Header().Set("Retry-After", strconv.Itoa(1))
				responder.Respond(w, r, types.NewRateLimitError(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if p, ok := ctxkeys.PrincipalFrom(r.Context()); ok && p.Subject != "" {
		return "principal:" + p.Subject
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// describeMiddleware 用于启动日志
func describeMiddleware(cfg *config.Config) string {
	auth := "off"
	switch {
	case len(cfg.Auth.APIKeys) > 0 && cfg.Auth.JWT.Enabled():
		auth = "api_key+jwt"
	case len(cfg.Auth.APIKeys) > 0:
		auth = "api_key"
	case cfg.Auth.JWT.Enabled():
		auth = "jwt"
	}
	rl := "off"
	if cfg.Server.RateLimitRPS > 0 {
		rl = fmt.Sprintf("%.0f rps/%d burst", cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	}
	return fmt.Sprintf("auth=%s rate_limit=%s", auth, rl)
}
