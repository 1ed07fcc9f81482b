package httptransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	identityhandler "policardmed/internal/identity/handler"
	identityservice "policardmed/internal/identity/service"
	"policardmed/internal/identity/store/attempts"
	"policardmed/internal/identity/store/revocation"
	"policardmed/internal/identity/token"
	memberhandler "policardmed/internal/member/handler"
	memberservice "policardmed/internal/member/service"
	memberstore "policardmed/internal/member/store/member"
	"policardmed/internal/platform/metrics"
	"policardmed/pkg/platform/middleware/metadata"
	"policardmed/pkg/testutil"
)

type session struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	Subject     string `json:"subject"`
}

type RouterSuite struct {
	suite.Suite
	router   http.Handler
	checkErr error
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.checkErr = nil
	s.router = s.newRouter(nil)
}

func (s *RouterSuite) newRouter(trusted []netip.Prefix) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memberstore.NewInMemory()

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	s.Require().NoError(err)
	creds, err := identityservice.NewAdminCredentials("admin@policardmed.com", string(hash), "")
	s.Require().NoError(err)

	identity := identityservice.New(store,
		token.NewJWTService("router-test-key", "policardmed", "policardmed-web"),
		revocation.NewInMemoryTRL(), creds,
		identityservice.WithLogger(logger),
		identityservice.WithTokenTTL(time.Hour),
		identityservice.WithLoginThrottle(attempts.NewInMemory(), 2, time.Minute),
	)
	members := memberservice.New(store, memberservice.WithLogger(logger))

	return NewRouter(Deps{
		Logger:   logger,
		Metrics:  metrics.New(),
		Tokens:   identity,
		Identity: identityhandler.New(identity, logger),
		Members:  memberhandler.New(members, logger),
		Checks: map[string]HealthCheck{
			"store": func(context.Context) error { return s.checkErr },
		},
		OpsToken: "ops-secret",

		TrustedProxies: trusted,
	})
}

func (s *RouterSuite) login(path string, body any) session {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path, body))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[session](s.T(), rr)
}

func (s *RouterSuite) TestHealth() {
	s.Run("ok", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		testutil.AssertStatusOK(s.T(), rr)
		s.NotEmpty(rr.Header().Get("X-Request-ID"))
		testutil.AssertJSONContains(s.T(), rr, "status", "ok")
	})

	s.Run("degraded when a dependency fails", func() {
		s.checkErr = errors.New("connection refused")
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		s.Equal(http.StatusServiceUnavailable, rr.Code)
		s.Contains(rr.Body.String(), "connection refused")
		testutil.AssertJSONHasKey(s.T(), rr, "checks")
	})
}

func (s *RouterSuite) TestMetricsRequiresOpsToken() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	s.Equal(http.StatusUnauthorized, rr.Code)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/metrics")
	req.Header.Set("X-Ops-Token", "ops-secret")
	rr = testutil.DoRequest(s.router, req)
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "policardmed_http_request_duration_seconds")
}

func (s *RouterSuite) TestRoleGuards() {
	s.Run("admin routes reject anonymous callers", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/members"))
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	admin := s.login("/auth/admin/login", map[string]string{
		"username": "admin@policardmed.com",
		"password": "admin123",
	})
	s.Equal("admin", admin.Role)

	create := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/members", map[string]any{
		"primaryMemberName": "Maria Souza",
		"cpf":               "111.222.333-44",
		"planDetails":       map[string]any{"type": "consulta", "numberOfLives": 1},
	})
	rr := testutil.DoRequest(s.router, testutil.WithBearer(create, admin.AccessToken))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	s.Run("admin cannot use associate routes", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/associate/me")
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, admin.AccessToken))
		s.Equal(http.StatusForbidden, rr.Code)
	})

	associate := s.login("/auth/associate/login", map[string]string{"cpf": " 111.222.333-44 "})
	s.Equal("associate", associate.Role)

	s.Run("associate reads own record", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/associate/me")
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, associate.AccessToken))
		s.Equal(http.StatusOK, rr.Code)
		s.Contains(rr.Body.String(), "Maria Souza")
	})

	s.Run("associate cannot use admin routes", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/dashboard")
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, associate.AccessToken))
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("logout revokes the session", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/auth/logout")
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, associate.AccessToken))
		s.Require().Equal(http.StatusNoContent, rr.Code)

		req = testutil.NewRequest(s.T(), http.MethodGet, "/associate/me")
		rr = testutil.DoRequest(s.router, testutil.WithBearer(req, associate.AccessToken))
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *RouterSuite) TestUnknownLoginPayload() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/auth/associate/login", `{"cpf":`)
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusBadRequest, rr.Code)
	s.True(strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json"))
}

func (s *RouterSuite) associateLogin(router http.Handler, cpf, remote, forwardedFor string) int {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/associate/login", map[string]string{"cpf": cpf})
	return testutil.DoRequest(router, testutil.FromPeer(req, remote, forwardedFor)).Code
}

func (s *RouterSuite) TestThrottleClientAddress() {
	s.Run("rotating forwarded header from a direct peer is still throttled", func() {
		router := s.newRouter(nil)
		codes := make([]int, 0, 6)
		for i := range 6 {
			codes = append(codes, s.associateLogin(router, fmt.Sprintf("000.000.000-%02d", i), "198.51.100.20:4000", fmt.Sprintf("10.0.0.%d", i)))
		}
		s.Equal([]int{404, 404, 429, 429, 429, 429}, codes)
	})

	s.Run("clients behind a trusted proxy are counted separately", func() {
		proxies, err := metadata.ParseTrustedProxies([]string{"10.0.0.0/8"})
		s.Require().NoError(err)
		router := s.newRouter(proxies)

		for range 2 {
			s.Equal(http.StatusNotFound, s.associateLogin(router, "999", "10.0.0.1:4000", "203.0.113.1"))
		}
		s.Equal(http.StatusTooManyRequests, s.associateLogin(router, "999", "10.0.0.1:4000", "203.0.113.1"))
		s.Equal(http.StatusNotFound, s.associateLogin(router, "999", "10.0.0.1:4000", "203.0.113.2"))
	})

	s.Run("spoofed entries ahead of the proxy hop are ignored", func() {
		proxies, err := metadata.ParseTrustedProxies([]string{"10.0.0.0/8"})
		s.Require().NoError(err)
		router := s.newRouter(proxies)

		codes := make([]int, 0, 4)
		for i := range 4 {
			codes = append(codes, s.associateLogin(router, "999", "10.0.0.1:4000", fmt.Sprintf("1.1.1.%d, 203.0.113.9", i)))
		}
		s.Equal([]int{404, 404, 429, 429}, codes)
	})
}

func TestLoginThrottling(t *testing.T) {
	s := new(RouterSuite)
	s.SetT(t)
	s.SetupTest()

	badLogin := func() *http.Request {
		return testutil.NewJSONRequest(t, http.MethodPost, "/auth/admin/login", map[string]string{
			"username": "admin@policardmed.com",
			"password": "guess",
		})
	}

	testutil.Given(t, "two failed admin logins from one address", func(t *testing.T) {
		for range 2 {
			testutil.AssertStatusAndError(t, testutil.DoRequest(s.router, badLogin()), http.StatusUnauthorized, "unauthorized")
		}

		testutil.When(t, "the same address tries again", func(t *testing.T) {
			rr := testutil.DoRequest(s.router, badLogin())

			testutil.Then(t, "the login is refused as rate limited", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
			})

			testutil.And(t, "another address still gets a credential check", func(t *testing.T) {
				other := testutil.DoRequest(s.router, testutil.FromPeer(badLogin(), "198.51.100.77:4000", ""))
				testutil.AssertStatusAndError(t, other, http.StatusUnauthorized, "unauthorized")
			})
		})
	})
}
