package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type (
	ContextKey        string
	missingFieldError string
)

const (
	RequestIDPrefix      string     = "r"
	ContextRequestID     ContextKey = "request.id"
	ContextRequestNumber ContextKey = "request.number"
	ContextConn          ContextKey = "http-conn"
)

// Headers set by the upstream identity gateway.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
)

func (m missingFieldError) Error() string {
	return string(m) + " is required"
}

// GetValueFromContext returns the value of a given key in the context
// if this key is not available, it returns an empty string.
func GetValueFromContext(ctx context.Context, contextKey ContextKey) string {
	if val, ok := ctx.Value(contextKey).(string); ok {
		return val
	}
	return ""
}

// GetRequestNumberFromContext returns the request number set in
// the context. if not previously set then it returns 0.
func GetRequestNumberFromContext(ctx context.Context) uint64 {
	if val, ok := ctx.Value(ContextRequestNumber).(uint64); ok {
		return val
	}
	return 0
}

// GetCallerFromRequest builds the calling user from the identity headers.
// A missing user id means the request is anonymous.
func GetCallerFromRequest(r *http.Request) (User, error) {
	user := User{
		ID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Name: strings.TrimSpace(r.Header.Get(HeaderUserName)),
		Role: Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))),
	}
	if user.ID == "" {
		return user, missingFieldError(HeaderUserID)
	}
	if user.Role == "" {
		user.Role = RoleReader
	}
	if user.Role != RoleReader && user.Role != RoleLibrarian {
		return user, errors.New("unknown user role " + string(user.Role))
	}
	return user, nil
}

// DecodeRequestBody reads the json content of a request into v.
func DecodeRequestBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("empty request body")
	}
	return codec.NewDecoder(r.Body).Decode(v)
}

// GetPageParamsFromRequest reads the `page` and `pageSize` query values.
// Absent values fall back to defaults, malformed ones are rejected.
func GetPageParamsFromRequest(r *http.Request) (PageParams, error) {
	var params PageParams
	q := r.URL.Query()
	for key, dst := range map[string]*int{"page": &params.Page, "pageSize": &params.PageSize} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return params, errors.New(key + " must be a positive integer")
		}
		*dst = n
	}
	if params.PageSize > MaxPageSize {
		return params, fmt.Errorf("pageSize must not exceed %d", MaxPageSize)
	}
	return params.Normalize(), nil
}

// ParseDate reads a calendar date in the wire layout.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// GetRequestSourceIP helps find the source IP of the caller.
func GetRequestSourceIP(r *http.Request) string {
	// Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip
	}

	// Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	for _, ip := range strings.Split(ips, ",") {
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	// Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	if net.ParseIP(ip) != nil {
		return ip
	}
	return ""
}

// IsAppRunningInDocker checks the existence of the .dockerenv
// file at the root directory and returns a boolean result.
func IsAppRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

// SaveConnInContext is the hook used by the server under ConnContext.
// It sets the underlying connection into the request context for later
// use by ReadDeadline or WriteDeadline method on *CustomResponseWriter.
func SaveConnInContext(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, ContextConn, c)
}

// GetConnFromContext returns the connection saved into the context or nil.
func GetConnFromContext(ctx context.Context) net.Conn {
	if c, ok := ctx.Value(ContextConn).(net.Conn); ok {
		return c
	}
	return nil
}
