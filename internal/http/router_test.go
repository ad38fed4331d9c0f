package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yachttime/qbconnect/internal/auth"
	"github.com/yachttime/qbconnect/internal/config"
	"github.com/yachttime/qbconnect/internal/custody"
	"github.com/yachttime/qbconnect/internal/domain"
	qbdomain "github.com/yachttime/qbconnect/internal/domain/quickbooks"
	qbhttp "github.com/yachttime/qbconnect/internal/http"
	"github.com/yachttime/qbconnect/internal/http/handler"
	httpmiddleware "github.com/yachttime/qbconnect/internal/http/middleware"
	"github.com/yachttime/qbconnect/internal/quickbooks"
	"github.com/yachttime/qbconnect/internal/repository"
	"github.com/yachttime/qbconnect/internal/service"
)

const testJWTSecret = "router-test-secret"

func signBearer(t *testing.T, subject string) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(testJWTSecret)}, nil)
	require.NoError(t, err)
	raw, err := jwt.Signed(signer).Claims(jwt.Claims{
		Subject: subject,
		Expiry:  jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).Serialize()
	require.NoError(t, err)
	return raw
}

type routerFixture struct {
	router   *gin.Engine
	provider *stubProvider
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		ServiceName:    "qbconnect-test",
		QBClientID:     "client-id",
		QBClientSecret: "client-secret",
		QBRedirectURI:  "https://app.test/quickbooks/callback",
		QBScopes:       []string{"com.intuit.quickbooks.accounting"},
	}

	verifier := auth.NewVerifier(testJWTSecret)
	vault := custody.NewVault("router-vault-secret")
	provider := &stubProvider{}

	svc := service.NewQuickBooksService(
		stubConnRepo{},
		stubNotificationRepo{},
		provider,
		custody.NewLocal(vault, verifier),
		cfg,
		zap.NewNop(),
	)

	router := qbhttp.NewRouter(
		cfg,
		handler.NewQuickBooksHandler(svc, zap.NewNop()),
		custody.NewHandler(vault, verifier, zap.NewNop()),
		&httpmiddleware.Gate{
			Verifier: verifier,
			Profiles: stubProfileRepo{},
			Logger:   zap.NewNop(),
		},
	)
	return &routerFixture{router: router, provider: provider}
}

func (f *routerFixture) do(t *testing.T, bearer, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/quickbooks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func TestQuickBooksRequiresAuthorizationHeader(t *testing.T) {
	f := newRouterFixture(t)

	rec, payload := f.do(t, "", `{"action":"get_auth_url"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "authorization header required", payload["error"])
}

func TestQuickBooksRejectsMalformedHeader(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/quickbooks", strings.NewReader(`{"action":"get_auth_url"}`))
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "bearer token required")
}

func TestQuickBooksRejectsInvalidToken(t *testing.T) {
	f := newRouterFixture(t)

	rec, payload := f.do(t, "not-a-jwt", `{"action":"get_auth_url"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid authorization", payload["error"])
}

func TestQuickBooksRejectsNonAdmin(t *testing.T) {
	f := newRouterFixture(t)

	rec, payload := f.do(t, signBearer(t, "tech-1"), `{"action":"get_auth_url"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "only authorized users can connect/manage this integration", payload["error"])
	require.Zero(t, f.provider.exchangeCalls, "no provider traffic for rejected callers")
}

func TestQuickBooksGetAuthURL(t *testing.T) {
	f := newRouterFixture(t)

	rec, payload := f.do(t, signBearer(t, "admin-1"), `{"action":"get_auth_url"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, payload["success"])
	authURL, _ := payload["auth_url"].(string)
	require.True(t, strings.HasPrefix(authURL, quickbooks.FallbackEndpoints.AuthorizationEndpoint))
	require.Contains(t, authURL, "state=user_admin-1_company_42_")
}

func TestQuickBooksUnknownAction(t *testing.T) {
	f := newRouterFixture(t)

	rec, payload := f.do(t, signBearer(t, "admin-1"), `{"action":"frobnicate"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unknown action", payload["error"])
}

func TestQuickBooksMissingAction(t *testing.T) {
	f := newRouterFixture(t)

	rec, payload := f.do(t, signBearer(t, "admin-1"), `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "action is required", payload["error"])
}

func TestCORSPreflight(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/quickbooks", nil)
	req.Header.Set("Origin", "https://portal.yard.test")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

// --- stubs ---

type stubProfileRepo struct{}

var _ repository.ProfileRepository = stubProfileRepo{}

func (stubProfileRepo) GetByUserID(ctx context.Context, userID string) (domain.Profile, error) {
	role := domain.RoleTechnician
	if strings.HasPrefix(userID, "admin-") {
		role = domain.RoleAdmin
	}
	return domain.Profile{UserID: userID, CompanyID: 42, Role: role}, nil
}

type stubConnRepo struct{}

var _ repository.ConnectionRepository = stubConnRepo{}

func (stubConnRepo) GetActiveByCompany(ctx context.Context, companyID int64) (domain.Connection, error) {
	return domain.Connection{}, repository.ErrNotFound
}

func (stubConnRepo) GetByRealmID(ctx context.Context, realmID string) (domain.Connection, error) {
	return domain.Connection{}, repository.ErrNotFound
}

func (stubConnRepo) Insert(ctx context.Context, conn domain.Connection) (domain.Connection, error) {
	conn.ID = 1
	return conn, nil
}

func (stubConnRepo) UpdateForReconnect(ctx context.Context, conn domain.Connection) (domain.Connection, error) {
	return domain.Connection{}, repository.ErrNotFound
}

func (stubConnRepo) DeactivateForCompany(ctx context.Context, companyID int64) error { return nil }

func (stubConnRepo) Deactivate(ctx context.Context, connectionID int64) error { return nil }

func (stubConnRepo) UpdateExpiry(ctx context.Context, connectionID int64, conn domain.Connection) error {
	return nil
}

type stubNotificationRepo struct{}

var _ repository.NotificationRepository = stubNotificationRepo{}

func (stubNotificationRepo) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	return n, nil
}

type stubProvider struct {
	exchangeCalls int
}

var _ service.ProviderClient = (*stubProvider)(nil)

func (s *stubProvider) Endpoints(ctx context.Context) qbdomain.EndpointSet {
	return quickbooks.FallbackEndpoints
}

func (s *stubProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (qbdomain.TokenResponse, error) {
	s.exchangeCalls++
	return qbdomain.TokenResponse{}, errors.New("unexpected exchange call")
}

func (s *stubProvider) Refresh(ctx context.Context, refreshToken string) (qbdomain.TokenResponse, error) {
	return qbdomain.TokenResponse{}, errors.New("unexpected refresh call")
}

func (s *stubProvider) CompanyInfo(ctx context.Context, accessToken, realmID string) (qbdomain.CompanyInfo, error) {
	return qbdomain.CompanyInfo{}, errors.New("unexpected company info call")
}

func (s *stubProvider) Revoke(ctx context.Context, token string) error { return nil }
