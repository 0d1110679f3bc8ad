package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"itembook/internal/auth"
	"itembook/internal/database"
	"itembook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

const minPasswordLen = 8

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
	Role     models.Role
}

// UserService handles accounts, credentials and roles.
type UserService struct {
	users  UserRepository
	tokens *auth.TokenManager
	logger zerolog.Logger
	now    func() time.Time
}

func NewUserService(users UserRepository, tokens *auth.TokenManager, logger *zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		logger: logger.With().Str("component", "user_service").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func userNotFound(email string) error {
	return &models.NotFoundError{Resource: "user", ID: email}
}

// Register creates an account. Any role other than user must be granted by a super-admin caller.
func (s *UserService) Register(ctx context.Context, caller *models.Actor, in RegisterInput) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() {
		return nil, models.NewValidationError("invalid role %q", in.Role)
	}
	if in.Role != models.RoleUser && (caller == nil || caller.Role != models.RoleSuperAdmin) {
		return nil, models.NewAuthorizationError("only a super-admin can register %s accounts", in.Role)
	}
	if in.Name == "" {
		return nil, models.NewValidationError("name is required")
	}
	email := models.NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, models.NewValidationError("invalid email address")
	}
	if len(in.Password) < minPasswordLen {
		return nil, models.NewValidationError("password must be at least %d characters", minPasswordLen)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u := &models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: hash,
		Phone:        in.Phone,
		Address:      in.Address,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, models.NewValidationError("email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("user registered")
	return u, nil
}

// Login checks credentials and returns the user with a signed token.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &models.NotFoundError{Resource: "user", ID: id}
	}
	return u, err
}

func (s *UserService) RoleOf(ctx context.Context, email string) (models.Role, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return "", userNotFound(email)
	}
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// UpdateRole changes a user's role. Admins may only demote to or keep user;
// granting admin or super-admin takes a super-admin.
func (s *UserService) UpdateRole(ctx context.Context, actor models.Actor, email string, role models.Role) error {
	target, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return userNotFound(email)
	}
	if err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if (role.IsAdmin() || target.Role.IsAdmin()) && actor.Role != models.RoleSuperAdmin {
		return models.NewAuthorizationError("only a super-admin can change admin roles")
	}
	if !role.Valid() {
		return models.NewValidationError("invalid role %q", role)
	}
	if err := s.users.UpdateUserRole(ctx, email, role); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return userNotFound(email)
		}
		return fmt.Errorf("update role: %w", err)
	}
	s.logger.Info().Str("email", target.Email).Str("role", string(role)).Str("by", actor.UserID).Msg("role updated")
	return nil
}

func (s *UserService) List(ctx context.Context, actor models.Actor) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx)
}

// Delete removes a user and their booking requests.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, email string) error {
	target, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return userNotFound(email)
	}
	if err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if target.ID == actor.UserID {
		return models.NewValidationError("cannot delete your own account")
	}
	if target.Role.IsAdmin() && actor.Role != models.RoleSuperAdmin {
		return models.NewAuthorizationError("only a super-admin can delete admin accounts")
	}
	if err := s.users.DeleteUserByEmail(ctx, email); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return userNotFound(email)
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info().Str("email", target.Email).Str("by", actor.UserID).Msg("user deleted")
	return nil
}
