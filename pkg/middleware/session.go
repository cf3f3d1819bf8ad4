package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fkhayef/tablepay/pkg/response"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// DinerIDKey is the context key for the diner bound to the browser session
	DinerIDKey ContextKey = "diner_id"
	// EmployeeIDKey is the context key for the staff member operating the dashboard
	EmployeeIDKey ContextKey = "employee_id"
)

// Session headers set by the web front end, which owns the cookie session
const (
	DinerHeader    = "X-Diner-ID"
	EmployeeHeader = "X-Employee-ID"
)

// SessionMiddleware copies the diner and employee identities carried by the
// front end into the request context. Missing or malformed headers are ignored;
// handlers that need an identity use RequireDiner or RequireEmployee.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id, ok := parseID(r.Header.Get(DinerHeader)); ok {
			ctx = context.WithValue(ctx, DinerIDKey, id)
		}
		if id, ok := parseID(r.Header.Get(EmployeeHeader)); ok {
			ctx = context.WithValue(ctx, EmployeeIDKey, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireDiner rejects requests that are not bound to a diner
func RequireDiner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetDinerID(r.Context()); !ok {
			response.Unauthorized(w, "Join the table first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireEmployee rejects requests that do not come from a staff session
func RequireEmployee(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetEmployeeID(r.Context()); !ok {
			response.Unauthorized(w, "Staff session required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetDinerID extracts the diner ID from the request context
func GetDinerID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(DinerIDKey).(int64)
	return id, ok
}

// GetEmployeeID extracts the employee ID from the request context
func GetEmployeeID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(EmployeeIDKey).(int64)
	return id, ok
}

// WithDinerID returns a context bound to the given diner
func WithDinerID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, DinerIDKey, id)
}

// WithEmployeeID returns a context bound to the given employee
func WithEmployeeID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, EmployeeIDKey, id)
}

func parseID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
