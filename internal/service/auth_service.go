package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orderline/orders-bff/internal/auth"
	"github.com/orderline/orders-bff/internal/cache"
	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/crm"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/scope"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

// Credentials identify a contact at login.
type Credentials struct {
	Email string
	Phone string
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuthService coordinates login, refresh and hyperlink flows against the CRM contact directory.
type AuthService struct {
	directory     ContactDirectory
	opportunities OpportunityReader
	filter        *scope.Filter
	tokenMgr      *auth.TokenManager
	contacts      *cache.JSONCache[domain.Contact]
	hyperlinkBase string
	logger        *zap.Logger
}

// AuthDependencies groups the collaborators of AuthService.
type AuthDependencies struct {
	Directory     ContactDirectory
	Opportunities OpportunityReader
	Filter        *scope.Filter
	// Cache may be nil, which disables contact caching.
	Cache  cache.Store
	Logger *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	filter := deps.Filter
	if filter == nil {
		filter = scope.NewFilter(cfg.CRM)
	}
	minutes := func(n int) time.Duration { return time.Duration(n) * time.Minute }
	return &AuthService{
		directory:     deps.Directory,
		opportunities: deps.Opportunities,
		filter:        filter,
		tokenMgr: auth.NewTokenManager(
			cfg.Auth.JWTSecret,
			minutes(cfg.Auth.AccessTokenTTLMinutes),
			minutes(cfg.Auth.RefreshTokenTTLMinutes),
			minutes(cfg.Auth.HyperlinkTokenTTLMinutes),
		),
		contacts:      cache.NewJSONCache[domain.Contact](deps.Cache, cfg.App.Name+":contact:", cfg.Cache.ContactTTL(), logger),
		hyperlinkBase: cfg.App.HyperlinkBaseURL,
		logger:        logger,
	}
}

// TokenManager exposes token manager for middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login authenticates a contact by email and phone and issues a token pair.
func (s *AuthService) Login(ctx context.Context, creds Credentials) (*TokenPair, error) {
	contact, err := s.authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.issuePair(subjectOf(contact, creds.Email, creds.Phone))
}

// Refresh exchanges a refresh token for a new pair once the contact is confirmed to still exist.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.NewValidationError("refreshToken is required", map[string]any{"field": "refreshToken"})
	}
	claims, err := s.tokenMgr.ParseToken(refreshToken)
	if err != nil || claims.Type != auth.TokenTypeRefresh {
		return nil, apperrors.NewUnauthorized("invalid refresh token")
	}

	s.contacts.Invalidate(ctx, contactKey(claims.Email, claims.Phone))
	contact, err := s.ResolveContact(ctx, claims.Email, claims.Phone)
	if err != nil {
		if errors.Is(err, auth.ErrContactGone) {
			return nil, apperrors.NewUnauthorized("user no longer exists")
		}
		return nil, err
	}
	if contact.Role() == "" {
		return nil, apperrors.NewForbidden("contact has no recognised role")
	}
	return s.issuePair(subjectOf(contact, claims.Email, claims.Phone))
}

// Hyperlink issues a token scoped to one opportunity and returns the link that carries it.
// The requesting contact must be allowed to see the opportunity under its own role.
func (s *AuthService) Hyperlink(ctx context.Context, creds Credentials, opportunityID string) (string, error) {
	opportunityID = strings.TrimSpace(opportunityID)
	if opportunityID == "" {
		return "", apperrors.NewValidationError("opportunity id is required", map[string]any{"field": "opportunityId"})
	}
	contact, err := s.authenticate(ctx, creds)
	if err != nil {
		return "", err
	}
	if err := s.authorizeHyperlink(ctx, contact, opportunityID); err != nil {
		return "", err
	}
	token, _, err := s.tokenMgr.Issue(subjectOf(contact, creds.Email, creds.Phone), auth.TokenTypeHyperlink, opportunityID)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	s.logger.Info("hyperlink issued", zap.String("contact_id", contact.ID), zap.String("opportunity_id", opportunityID))
	return s.hyperlinkBase + "/order/" + url.PathEscape(opportunityID) + "/view?token=" + url.QueryEscape(token), nil
}

func (s *AuthService) authorizeHyperlink(ctx context.Context, contact *domain.Contact, opportunityID string) error {
	if s.opportunities == nil {
		return apperrors.NewInternalError(errors.New("hyperlink issuance has no opportunity reader"))
	}
	opp, err := s.opportunities.FetchOpportunity(ctx, opportunityID)
	if err != nil {
		return opportunityError(err, opportunityID)
	}
	caller := scope.Caller{Role: contact.Role(), ContactID: contact.ID, CustomFields: contact.CustomFields}
	if !s.filter.CanAccess(*opp, caller) {
		s.logger.Warn("hyperlink denied", zap.String("contact_id", contact.ID), zap.String("opportunity_id", opportunityID))
		return apperrors.NewForbidden("access denied")
	}
	return nil
}

// ResolveContact returns the contact for a token's credentials, consulting the cache first.
// auth.ErrContactGone is returned when the CRM no longer knows the contact.
func (s *AuthService) ResolveContact(ctx context.Context, email, phone string) (*domain.Contact, error) {
	key := contactKey(email, phone)
	if contact, ok := s.contacts.Get(ctx, key); ok {
		return &contact, nil
	}
	contacts, err := s.directory.SearchContacts(ctx, email, phone)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, auth.ErrContactGone
	}
	contact := contacts[0]
	s.contacts.Set(ctx, key, contact)
	return &contact, nil
}

func (s *AuthService) authenticate(ctx context.Context, creds Credentials) (*domain.Contact, error) {
	email := strings.TrimSpace(creds.Email)
	phone := strings.TrimSpace(creds.Phone)
	if email == "" || phone == "" {
		return nil, apperrors.NewValidationError("email and phone are required", nil)
	}
	contacts, err := s.directory.SearchContacts(ctx, email, phone)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	contact := contacts[0]
	if contact.Role() == "" {
		return nil, apperrors.NewForbidden("contact has no recognised role")
	}
	s.contacts.Set(ctx, contactKey(email, phone), contact)
	return &contact, nil
}

func (s *AuthService) issuePair(subject auth.Subject) (*TokenPair, error) {
	access, accessExp, err := s.tokenMgr.Issue(subject, auth.TokenTypeAccess, "")
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	refresh, refreshExp, err := s.tokenMgr.Issue(subject, auth.TokenTypeRefresh, "")
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// subjectOf carries the login credentials into the token; revalidation searches with them.
func subjectOf(contact *domain.Contact, email, phone string) auth.Subject {
	return auth.Subject{
		ContactID: contact.ID,
		Email:     strings.TrimSpace(email),
		Phone:     strings.TrimSpace(phone),
		Role:      contact.Role(),
	}
}

func contactKey(email, phone string) string {
	return cache.DigestKey(strings.ToLower(strings.TrimSpace(email)), crm.NormalizePhone(strings.TrimSpace(phone)))
}
