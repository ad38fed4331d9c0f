package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yachttime/qbconnect/internal/config"
	"github.com/yachttime/qbconnect/internal/custody"
	"github.com/yachttime/qbconnect/internal/domain"
	qbdomain "github.com/yachttime/qbconnect/internal/domain/quickbooks"
	"github.com/yachttime/qbconnect/internal/quickbooks"
	"github.com/yachttime/qbconnect/internal/repository"
)

const placeholderCompanyName = "QuickBooks Company"

// ProviderClient is the slice of the QuickBooks client this service uses.
// *quickbooks.Client implements it; tests substitute fakes.
type ProviderClient interface {
	Endpoints(ctx context.Context) qbdomain.EndpointSet
	ExchangeCode(ctx context.Context, code, redirectURI string) (qbdomain.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (qbdomain.TokenResponse, error)
	CompanyInfo(ctx context.Context, accessToken, realmID string) (qbdomain.CompanyInfo, error)
	Revoke(ctx context.Context, token string) error
}

// Caller is the authenticated identity performing an operation. The bearer
// travels with it because custody calls reuse the caller's credential.
type Caller struct {
	Bearer  string
	Profile domain.Profile
}

// ExchangeInput carries the provider callback parameters.
type ExchangeInput struct {
	Code    string
	RealmID string
	State   string
	Origin  string
}

// ExchangeResult is returned on a successful connect.
type ExchangeResult struct {
	CompanyName      string
	EncryptedSession string
}

// RefreshResult carries the replacement session blob; the previous blob is
// stale once this is returned.
type RefreshResult struct {
	ExpiresAt        time.Time
	EncryptedSession string
}

// QuickBooksService implements the connection lifecycle: building the
// consent URL, exchanging the authorization code, refreshing tokens, and
// disconnecting. Raw tokens only ever pass through request memory and the
// custody boundary; the repositories see metadata.
type QuickBooksService struct {
	connections   repository.ConnectionRepository
	notifications repository.NotificationRepository
	qb            ProviderClient
	custodian     custody.Custodian
	cfg           config.Config
	logger        *zap.Logger
	now           func() time.Time
}

// NewQuickBooksService wires the connection service.
func NewQuickBooksService(
	connections repository.ConnectionRepository,
	notifications repository.NotificationRepository,
	qb ProviderClient,
	custodian custody.Custodian,
	cfg config.Config,
	logger *zap.Logger,
) *QuickBooksService {
	return &QuickBooksService{
		connections:   connections,
		notifications: notifications,
		qb:            qb,
		custodian:     custodian,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// GetAuthURL builds the Intuit consent URL for the caller's company. The
// state parameter encodes the caller and company for CSRF verification on
// the way back, and prompt=consent forces the account picker so a user can
// deliberately switch realms.
func (s *QuickBooksService) GetAuthURL(ctx context.Context, caller Caller, origin string) (string, error) {
	ctx, span := s.startSpan(ctx, "QuickBooksService.GetAuthURL")
	defer span.End()

	endpoints := s.qb.Endpoints(ctx)
	authURL, err := url.Parse(endpoints.AuthorizationEndpoint)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("parse authorization endpoint: %w", err)
	}

	state := fmt.Sprintf("%s_%s", s.statePrefix(caller), uuid.NewString())

	params := authURL.Query()
	params.Set("client_id", s.cfg.QBClientID)
	params.Set("scope", strings.Join(s.cfg.QBScopes, " "))
	params.Set("redirect_uri", s.redirectURI(origin))
	params.Set("response_type", "code")
	params.Set("state", state)
	params.Set("prompt", "consent")
	authURL.RawQuery = params.Encode()

	s.log().Info("built quickbooks auth url",
		zap.Int64("company_id", caller.Profile.CompanyID),
		zap.String("user_id", caller.Profile.UserID))
	return authURL.String(), nil
}

// ExchangeToken completes the OAuth round trip: CSRF check, code exchange,
// company-name enrichment, token custody, and metadata persistence.
func (s *QuickBooksService) ExchangeToken(ctx context.Context, caller Caller, in ExchangeInput) (*ExchangeResult, error) {
	ctx, span := s.startSpan(ctx, "QuickBooksService.ExchangeToken")
	defer span.End()

	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.RealmID) == "" {
		return nil, NewServiceError(CodeValidation, "code and realmId are required")
	}
	if !strings.HasPrefix(in.State, s.statePrefix(caller)) {
		s.log().Warn("state mismatch on token exchange",
			zap.Int64("company_id", caller.Profile.CompanyID),
			zap.String("user_id", caller.Profile.UserID))
		return nil, NewServiceError(CodeSecurity, "possible CSRF attack detected")
	}

	tokenResp, err := s.qb.ExchangeCode(ctx, in.Code, s.redirectURI(in.Origin))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, quickbooks.ErrInvalidGrant) {
			return nil, NewServiceError(CodeUpstream, "authorization code expired or already used, please retry connecting")
		}
		var upstream *quickbooks.UpstreamError
		if errors.As(err, &upstream) {
			return nil, NewServiceError(CodeUpstream, "QuickBooks rejected the connection: "+upstream.Body)
		}
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	companyName := placeholderCompanyName
	if info, err := s.qb.CompanyInfo(ctx, tokenResp.AccessToken, in.RealmID); err != nil {
		// Cosmetic lookup; connecting must still succeed.
		s.log().Warn("company info fetch failed, using placeholder",
			zap.String("realm_id", in.RealmID), zap.Error(err))
	} else if info.CompanyName != "" {
		companyName = info.CompanyName
	}

	encryptedSession, err := s.custodian.Encrypt(ctx, caller.Bearer, domain.TokenPair{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	})
	if err != nil {
		span.RecordError(err)
		s.log().Error("token custody encrypt failed", zap.Error(err))
		return nil, NewServiceError(CodeCustody, "failed to secure connection tokens")
	}

	conn := domain.Connection{
		CompanyID:      caller.Profile.CompanyID,
		RealmID:        in.RealmID,
		QBCompanyName:  companyName,
		TokenExpiresAt: tokenResp.ExpiresAt(s.now()),
		CreatedBy:      caller.Profile.UserID,
	}
	if err := s.persistConnection(ctx, conn); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.log().Info("quickbooks connected",
		zap.Int64("company_id", caller.Profile.CompanyID),
		zap.String("realm_id", in.RealmID),
		zap.String("qb_company", companyName))
	return &ExchangeResult{CompanyName: companyName, EncryptedSession: encryptedSession}, nil
}

// persistConnection enforces at most one active connection per company:
// every other active row is deactivated before the realm row is upserted.
func (s *QuickBooksService) persistConnection(ctx context.Context, conn domain.Connection) error {
	if err := s.connections.DeactivateForCompany(ctx, conn.CompanyID); err != nil {
		return fmt.Errorf("deactivate previous connections: %w", err)
	}

	_, err := s.connections.UpdateForReconnect(ctx, conn)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("reconnect existing realm: %w", err)
	}

	if _, err := s.connections.Insert(ctx, conn); err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

// RefreshToken rotates the token pair held in the caller's session blob.
// A provider-side rejection is irrecoverable for this connection: the row
// is deactivated and an administrator alert is raised so a human can run
// the connect flow again.
func (s *QuickBooksService) RefreshToken(ctx context.Context, caller Caller, encryptedSession string) (*RefreshResult, error) {
	ctx, span := s.startSpan(ctx, "QuickBooksService.RefreshToken")
	defer span.End()

	if strings.TrimSpace(encryptedSession) == "" {
		return nil, NewServiceError(CodeValidation, "encrypted_session is required")
	}

	pair, err := s.custodian.Decrypt(ctx, caller.Bearer, encryptedSession)
	if err != nil {
		span.RecordError(err)
		s.log().Warn("token custody decrypt failed",
			zap.Int64("company_id", caller.Profile.CompanyID), zap.Error(err))
		return nil, NewServiceError(CodeAuthentication, "stored session is invalid, please reconnect")
	}

	conn, err := s.connections.GetActiveByCompany(ctx, caller.Profile.CompanyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(CodeNotFound, "no active QuickBooks connection")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("load active connection: %w", err)
	}

	tokenResp, err := s.qb.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		span.RecordError(err)
		var upstream *quickbooks.UpstreamError
		if errors.Is(err, quickbooks.ErrInvalidGrant) || errors.As(err, &upstream) {
			s.handleRevokedConnection(ctx, conn, err)
			return nil, NewServiceError(CodeUpstream, "QuickBooks authorization expired, please reconnect")
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	newSession, err := s.custodian.Encrypt(ctx, caller.Bearer, domain.TokenPair{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	})
	if err != nil {
		span.RecordError(err)
		s.log().Error("token custody encrypt failed on refresh", zap.Error(err))
		return nil, NewServiceError(CodeCustody, "failed to secure refreshed tokens")
	}

	expiresAt := tokenResp.ExpiresAt(s.now())
	conn.TokenExpiresAt = expiresAt
	if err := s.connections.UpdateExpiry(ctx, conn.ID, conn); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update connection expiry: %w", err)
	}

	s.log().Info("quickbooks tokens refreshed",
		zap.Int64("company_id", conn.CompanyID),
		zap.String("realm_id", conn.RealmID),
		zap.Time("expires_at", expiresAt))
	return &RefreshResult{ExpiresAt: expiresAt, EncryptedSession: newSession}, nil
}

// handleRevokedConnection flips the connection inactive and alerts the
// administrators. Failures here are logged, not returned: the caller
// already gets the reconnect error.
func (s *QuickBooksService) handleRevokedConnection(ctx context.Context, conn domain.Connection, cause error) {
	s.log().Error("quickbooks refresh rejected, deactivating connection",
		zap.Int64("company_id", conn.CompanyID),
		zap.String("realm_id", conn.RealmID),
		zap.Error(cause))

	if err := s.connections.Deactivate(ctx, conn.ID); err != nil {
		s.log().Error("failed to deactivate connection", zap.Int64("connection_id", conn.ID), zap.Error(err))
	}

	if _, err := s.notifications.Create(ctx, domain.Notification{
		CompanyID:    conn.CompanyID,
		Type:         domain.NotificationSystemAlert,
		Title:        "QuickBooks connection expired",
		Message:      fmt.Sprintf("The QuickBooks connection for %q (realm %s) is no longer valid and must be reconnected.", conn.QBCompanyName, conn.RealmID),
		ConnectionID: conn.ID,
	}); err != nil {
		s.log().Error("failed to create admin notification", zap.Int64("connection_id", conn.ID), zap.Error(err))
	}
}

// Disconnect marks the company's connection inactive. When the caller still
// holds a session blob the tokens are revoked at the provider best-effort.
// Calling with nothing active is a no-op success.
func (s *QuickBooksService) Disconnect(ctx context.Context, caller Caller, encryptedSession string) error {
	ctx, span := s.startSpan(ctx, "QuickBooksService.Disconnect")
	defer span.End()

	conn, err := s.connections.GetActiveByCompany(ctx, caller.Profile.CompanyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("load active connection: %w", err)
	}

	if encryptedSession != "" {
		if pair, err := s.custodian.Decrypt(ctx, caller.Bearer, encryptedSession); err != nil {
			s.log().Warn("could not decrypt session for revocation", zap.Error(err))
		} else if err := s.qb.Revoke(ctx, pair.RefreshToken); err != nil {
			s.log().Warn("provider-side revocation failed",
				zap.String("realm_id", conn.RealmID), zap.Error(err))
		}
	}

	if err := s.connections.Deactivate(ctx, conn.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deactivate connection: %w", err)
	}

	s.log().Info("quickbooks disconnected",
		zap.Int64("company_id", conn.CompanyID),
		zap.String("realm_id", conn.RealmID))
	return nil
}

func (s *QuickBooksService) statePrefix(caller Caller) string {
	return fmt.Sprintf("user_%s_company_%d", caller.Profile.UserID, caller.Profile.CompanyID)
}

func (s *QuickBooksService) redirectURI(origin string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(origin), "/")
	if trimmed == "" {
		return s.cfg.QBRedirectURI
	}
	return trimmed + "/quickbooks/callback"
}

func (s *QuickBooksService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("qbconnect/service").Start(ctx, name)
}

func (s *QuickBooksService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
