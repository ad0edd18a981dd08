package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/bookclubapp/bookclub-server/internal/auth"
	"github.com/bookclubapp/bookclub-server/internal/domain"
	apperrors "github.com/bookclubapp/bookclub-server/internal/errors"
	"github.com/bookclubapp/bookclub-server/internal/id"
	"github.com/bookclubapp/bookclub-server/internal/storage"
	"github.com/bookclubapp/bookclub-server/internal/store"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
)

// PendingApprovalMessage is returned to freshly registered members who
// still need admin approval before they can sign in.
const PendingApprovalMessage = "Account created. An admin must approve your account before you can sign in."

// RegisterResult reports the outcome of a registration. Token is empty
// when the account still requires approval.
type RegisterResult struct {
	User             *domain.User
	Token            string
	RequiresApproval bool
}

// AuthService handles registration, login, profile management, and the
// admin approval workflow.
type AuthService struct {
	store         *sqlite.Store
	catalog       *CatalogService
	tokens        *auth.TokenService
	profileImages *storage.ImageStore
	adminEmail    string
	logger        *slog.Logger
}

// NewAuthService creates a new auth service. adminEmail, when set,
// grants the matching account the admin role on registration and login.
func NewAuthService(store *sqlite.Store, catalog *CatalogService, tokens *auth.TokenService, profileImages *storage.ImageStore, adminEmail string, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:         store,
		catalog:       catalog,
		tokens:        tokens,
		profileImages: profileImages,
		adminEmail:    strings.ToLower(strings.TrimSpace(adminEmail)),
		logger:        logger,
	}
}

// Register creates a new account and seeds its starter catalog. The
// first account, or the configured admin email, becomes an approved
// admin; everyone else waits for approval.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*RegisterResult, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	role := domain.RoleMember
	if count == 0 || (s.adminEmail != "" && s.adminEmail == email) {
		role = domain.RoleAdmin
	}

	user := &domain.User{
		ID:           id.MustGenerate(id.PrefixUser),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsApproved:   role == domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperrors.Conflict("An account with that email already exists.")
		}
		return nil, err
	}

	if err := s.catalog.SeedStarterCatalog(ctx, user.ID); err != nil {
		s.logger.Error("failed to seed starter catalog", "user", user.ID, "error", err)
	}

	if !user.IsApproved {
		return &RegisterResult{User: user, RequiresApproval: true}, nil
	}

	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}
	return &RegisterResult{User: user, Token: token}, nil
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", apperrors.InvalidCredentials("Invalid email or password.")
		}
		return nil, "", err
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, "", fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, "", apperrors.InvalidCredentials("Invalid email or password.")
	}

	user, err = s.syncConfiguredAdmin(ctx, user)
	if err != nil {
		return nil, "", err
	}
	if !user.IsApproved {
		return nil, "", apperrors.Forbidden("Your account is pending admin approval.")
	}

	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("generating access token: %w", err)
	}
	return user, token, nil
}

// VerifyAccessToken validates a token and loads its account. Tokens for
// deleted or since-unapproved accounts are rejected.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("Invalid or expired token")
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("Invalid or expired token")
	}
	if !user.IsApproved {
		return nil, nil, apperrors.Forbidden("Your account is pending admin approval.")
	}
	return user, claims, nil
}

// Me loads the current account.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.syncConfiguredAdmin(ctx, user)
}

// syncConfiguredAdmin keeps the configured admin email's account in the
// admin role even if it registered before the setting existed.
func (s *AuthService) syncConfiguredAdmin(ctx context.Context, user *domain.User) (*domain.User, error) {
	if s.adminEmail == "" || strings.ToLower(user.Email) != s.adminEmail {
		return user, nil
	}
	if user.IsAdmin() && user.IsApproved {
		return user, nil
	}
	if err := s.store.SetUserRole(ctx, user.ID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	user.Role = domain.RoleAdmin
	user.IsApproved = true
	return user, nil
}

// UpdateProfile renames the account.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 80 {
		return nil, apperrors.Validation("Name must be between 2 and 80 characters.")
	}
	if err := s.store.UpdateUserName(ctx, userID, name); err != nil {
		return nil, err
	}
	return s.store.GetUserByID(ctx, userID)
}

// SetProfileImage stores a new profile picture and removes the previous
// one from disk.
func (s *AuthService) SetProfileImage(ctx context.Context, userID string, data []byte, mimeType string) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.profileImages.Save(fmt.Sprintf("%s-%s", userID, uuid.NewString()), data, mimeType)
	if err != nil {
		return nil, apperrors.Validation("Unsupported image format.")
	}

	if err := s.store.SetUserProfileImage(ctx, userID, &url); err != nil {
		s.profileImages.Remove(url)
		return nil, err
	}
	if user.ProfileImageURL != nil {
		s.profileImages.Remove(*user.ProfileImageURL)
	}

	user.ProfileImageURL = &url
	return user, nil
}

// RemoveProfileImage clears the profile picture and deletes the stored
// file.
func (s *AuthService) RemoveProfileImage(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetUserProfileImage(ctx, userID, nil); err != nil {
		return nil, err
	}
	if user.ProfileImageURL != nil {
		s.profileImages.Remove(*user.ProfileImageURL)
	}
	user.ProfileImageURL = nil
	return user, nil
}

// ListPending lists accounts waiting for approval.
func (s *AuthService) ListPending(ctx context.Context) ([]*domain.User, error) {
	return s.store.ListPendingUsers(ctx)
}

// Approve unlocks a pending account.
func (s *AuthService) Approve(ctx context.Context, userID string) (*domain.User, error) {
	if err := s.store.ApproveUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.GetUserByID(ctx, userID)
}

// Deny deletes a pending account. Approved accounts cannot be denied.
func (s *AuthService) Deny(ctx context.Context, userID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsApproved {
		return apperrors.Validation("Only pending users can be denied.")
	}
	return s.store.DeleteUser(ctx, userID)
}

// Promote grants an approved member the admin role.
func (s *AuthService) Promote(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsApproved {
		return nil, apperrors.Validation("Approve this account before granting admin access.")
	}
	if err := s.store.SetUserRole(ctx, userID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	user.Role = domain.RoleAdmin
	return user, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return apperrors.Validation("Password must be at least 8 characters.")
	}
	if len(password) > 128 {
		return apperrors.Validation("Password must not exceed 128 characters.")
	}
	hasLetter, hasDigit := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return apperrors.Validation("Password must include at least one letter.")
	}
	if !hasDigit {
		return apperrors.Validation("Password must include at least one number.")
	}
	return nil
}
