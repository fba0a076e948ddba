package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"formsapi/internal/auth"
	"formsapi/internal/model"
	"formsapi/internal/policy"
	"formsapi/internal/repository"
)

const (
	minPasswordLength = 8
	// maxPasswordLength is the most bytes bcrypt will hash.
	maxPasswordLength = 72
)

// RegisterInput is a self-service sign up.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserUpdate is a partial profile update. Nil members are left unchanged.
type UserUpdate struct {
	Username  *string     `json:"username"`
	Email     *string     `json:"email"`
	FirstName *string     `json:"first_name"`
	LastName  *string     `json:"last_name"`
	Role      *model.Role `json:"role"`
}

// Session is an issued access token and the user it belongs to.
type Session struct {
	Token     string      `json:"token"`
	ExpiresIn int         `json:"expires_in"`
	User      *model.User `json:"user"`
}

// UserListResult is the service-level DTO for paginated users.
type UserListResult struct {
	Items []model.User `json:"data"`
	Total int          `json:"total"`
}

// UserService defines account use cases.
type UserService interface {
	// Register creates a viewer account and signs it in.
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Me(ctx context.Context, id policy.Identity) (*model.User, error)
	// ChangePassword verifies the old password and returns a fresh session.
	ChangePassword(ctx context.Context, id policy.Identity, oldPassword, newPassword string) (*Session, error)

	List(ctx context.Context, id policy.Identity, limit, offset int) (*UserListResult, error)
	Get(ctx context.Context, id policy.Identity, userID string) (*model.User, error)
	Update(ctx context.Context, id policy.Identity, userID string, in UserUpdate) (*model.User, error)
	Delete(ctx context.Context, id policy.Identity, userID string) error
}

type userService struct {
	users  repository.UserRepository
	issuer *auth.Issuer
	policy policy.UserPolicy
	cost   int
	now    func() time.Time
}

// NewUserService constructs a new UserService.
func NewUserService(users repository.UserRepository, issuer *auth.Issuer, pol policy.UserPolicy) UserService {
	return &userService{
		users:  users,
		issuer: issuer,
		policy: pol,
		cost:   bcrypt.DefaultCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *userService) authorize(id policy.Identity, op policy.Operation, target string) error {
	if id.Anonymous() {
		return ErrUnauthenticated
	}
	if !s.policy.AllowUser(id, op, target) {
		return ErrForbidden
	}
	return nil
}

func (s *userService) session(u *model.User) (*Session, error) {
	token, err := s.issuer.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresIn: int(s.issuer.TTL().Seconds()), User: u}, nil
}

func checkPassword(pw, confirm string) error {
	if pw != confirm {
		return ErrPasswordMismatch
	}
	return checkPasswordLength(pw)
}

func checkPasswordLength(pw string) error {
	switch {
	case len(pw) < minPasswordLength:
		return ErrPasswordTooShort
	case len(pw) > maxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return nil, ErrUsernameRequired
	}
	if in.Email == "" {
		return nil, ErrEmailRequired
	}
	if err := checkPassword(in.Password, in.Password2); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, &model.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         model.RoleViewer,
		PasswordHash: string(hash),
		DateJoined:   s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	return s.session(u)
}

func (s *userService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *userService) find(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrIDRequired
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *userService) Me(ctx context.Context, id policy.Identity) (*model.User, error) {
	if id.Anonymous() {
		return nil, ErrUnauthenticated
	}
	return s.find(ctx, id.UserID)
}

func (s *userService) ChangePassword(ctx context.Context, id policy.Identity, oldPassword, newPassword string) (*Session, error) {
	u, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return nil, ErrWrongPassword
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, string(hash)); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.session(u)
}

func (s *userService) List(ctx context.Context, id policy.Identity, limit, offset int) (*UserListResult, error) {
	if err := s.authorize(id, policy.ListUsers, ""); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.users.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &UserListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *userService) Get(ctx context.Context, id policy.Identity, userID string) (*model.User, error) {
	if err := s.authorize(id, policy.ViewUser, userID); err != nil {
		return nil, err
	}
	return s.find(ctx, userID)
}

func (s *userService) Update(ctx context.Context, id policy.Identity, userID string, in UserUpdate) (*model.User, error) {
	if err := s.authorize(id, policy.UpdateUser, userID); err != nil {
		return nil, err
	}
	if in.Role != nil {
		if err := s.authorize(id, policy.ChangeRole, userID); err != nil {
			return nil, err
		}
		if !in.Role.Valid() {
			return nil, ErrInvalidRole
		}
	}
	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		if strings.TrimSpace(*in.Username) == "" {
			return nil, ErrUsernameRequired
		}
		u.Username = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		if strings.TrimSpace(*in.Email) == "" {
			return nil, ErrEmailRequired
		}
		u.Email = strings.TrimSpace(*in.Email)
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Role != nil {
		u.Role = *in.Role
	}

	out, err := s.users.Update(ctx, u)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrUserExists
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return out, nil
}

func (s *userService) Delete(ctx context.Context, id policy.Identity, userID string) error {
	if err := s.authorize(id, policy.DeleteUser, userID); err != nil {
		return err
	}
	if userID == "" {
		return ErrIDRequired
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
