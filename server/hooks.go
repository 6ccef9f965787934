package server

import (
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Failure makes a route fail. A zero Status drops the connection without a
// response, which a client sees as a network error.
type Failure struct {
	Status  int
	Code    string
	Message string
}

type hooks struct {
	lock      sync.Mutex
	calls     map[string]int
	failures  map[string]Failure
	onRequest func(method, path string)
}

func newHooks() *hooks {
	return &hooks{
		calls:    make(map[string]int),
		failures: make(map[string]Failure),
	}
}

func routeKey(method, path string) string {
	return method + " " + path
}

// record counts the call and returns what the request should go through.
func (h *hooks) record(method, path string) (func(method, path string), Failure, bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	key := routeKey(method, path)
	h.calls[key]++
	failure, failing := h.failures[key]
	return h.onRequest, failure, failing
}

// Calls is the number of requests received by a route, path relative to APIPrefix.
func (s *Server) Calls(method, path string) int {
	s.hooks.lock.Lock()
	defer s.hooks.lock.Unlock()
	return s.hooks.calls[routeKey(method, path)]
}

// TotalCalls is the number of requests received by every API route.
func (s *Server) TotalCalls() int {
	s.hooks.lock.Lock()
	defer s.hooks.lock.Unlock()

	total := 0
	for _, n := range s.hooks.calls {
		total += n
	}
	return total
}

// FailRoute makes every request to the route fail until ClearFailure.
func (s *Server) FailRoute(method, path string, failure Failure) {
	s.hooks.lock.Lock()
	defer s.hooks.lock.Unlock()
	s.hooks.failures[routeKey(method, path)] = failure
}

func (s *Server) ClearFailure(method, path string) {
	s.hooks.lock.Lock()
	defer s.hooks.lock.Unlock()
	delete(s.hooks.failures, routeKey(method, path))
}

// OnRequest runs fn before every API request is handled, on the request's
// goroutine. Blocking in fn holds the request open.
func (s *Server) OnRequest(fn func(method, path string)) {
	s.hooks.lock.Lock()
	defer s.hooks.lock.Unlock()
	s.hooks.onRequest = fn
}

// ResetToken returns the pending password reset token of email, the value a
// real API would deliver by mail.
func (s *Server) ResetToken(email string) (string, bool) {
	return s.grants.pendingReset(email)
}

// ActiveRefreshTokens is the number of unrevoked refresh tokens of a user.
func (s *Server) ActiveRefreshTokens(userID string) int {
	return s.grants.activeRefresh(userID)
}

func (s *Server) HooksMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method
		path := strings.TrimPrefix(c.Path(), APIPrefix)

		onRequest, failure, failing := s.hooks.record(method, path)
		if onRequest != nil {
			onRequest(method, path)
		}
		if !failing {
			return next(c)
		}

		if failure.Status == 0 {
			return dropConnection(c)
		}
		code := failure.Code
		if code == "" {
			code = "INJECTED_FAILURE"
		}
		return newAPIError(failure.Status, code, failure.Message)
	}
}

func dropConnection(c echo.Context) error {
	conn, _, err := c.Response().Hijack()
	if err != nil {
		return errors.Wrap(err, "[dropConnection] Hijack")
	}
	_ = conn.Close()
	return nil
}
