// Package users handles registration, login and account administration.
package users

import (
	"context"
	"errors"
	"strings"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/policy"
	"shopfloor-ops-backend/internal/store"
)

const minPasswordLength = 6

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(u *model.User) (string, error)
}

type Service struct {
	store  store.Store
	tokens TokenIssuer
}

func NewService(s store.Store, tokens TokenIssuer) *Service {
	return &Service{store: s, tokens: tokens}
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  *model.User
	Token string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

type CreateInput struct {
	Name          string
	Email         string
	Password      string
	Role          model.Role
	Department    string
	ContactNumber string
	IsActive      *bool
}

// Patch is a partial account update. Nil fields are left unchanged.
type Patch struct {
	Name          *string
	Email         *string
	Password      *string
	Role          *model.Role
	Department    *string
	ContactNumber *string
	IsActive      *bool
}

// ProfilePatch holds the fields a user may change on their own account.
type ProfilePatch struct {
	Name          *string
	Password      *string
	Department    *string
	ContactNumber *string
}

type ListQuery struct {
	Role     string
	IsActive *bool
	Search   string
	Page     int
	Limit    int
}

// Register creates a self service account. Only user and technician may be
// requested; anything else becomes user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	role := model.RoleUser
	if in.Role == model.RoleTechnician {
		role = model.RoleTechnician
	}

	u, err := s.create(ctx, in.Name, in.Email, in.Password, role)
	if err != nil {
		return nil, err
	}
	u.IsActive = true
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().Uint("user_id", u.ID).Str("role", string(u.Role)).Msg("user registered")
	return s.session(u)
}

// Login checks credentials. Unknown accounts, deactivated accounts and wrong
// passwords are all Unauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Unauthorized("your account has been deactivated, please contact an administrator")
	}
	if !u.CheckPassword(password) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return s.session(u)
}

func (s *Service) Me(ctx context.Context, actor policy.Actor) (*model.User, error) {
	return s.store.GetUser(ctx, actor.ID)
}

// UpdateProfile changes the caller's own name, password or contact details.
// Empty values keep the current ones.
func (s *Service) UpdateProfile(ctx context.Context, actor policy.Actor, p ProfilePatch) (*model.User, error) {
	u, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	keep := func(dst *string, src *string) {
		if src != nil && strings.TrimSpace(*src) != "" {
			*dst = strings.TrimSpace(*src)
		}
	}
	keep(&u.Name, p.Name)
	keep(&u.Department, p.Department)
	keep(&u.ContactNumber, p.ContactNumber)
	if p.Password != nil && *p.Password != "" {
		if err := setPassword(u, *p.Password); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, actor policy.Actor, q ListQuery) (*store.Page[model.User], error) {
	if err := policy.Evaluate(actor, policy.UserList, nil); err != nil {
		return nil, err
	}
	role := model.Role(q.Role)
	if role != "" && !role.Valid() {
		return nil, apperr.Validation("invalid role filter %q", q.Role)
	}
	return s.store.ListUsers(ctx, store.UserQuery{
		Role:       role,
		IsActive:   q.IsActive,
		Search:     q.Search,
		Pagination: store.Pagination{Page: q.Page, Limit: q.Limit},
	})
}

func (s *Service) Get(ctx context.Context, actor policy.Actor, id uint) (*model.User, error) {
	if err := policy.Evaluate(actor, policy.UserView, nil); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, id)
}

// Create adds an account of any role on behalf of an admin.
func (s *Service) Create(ctx context.Context, actor policy.Actor, in CreateInput) (*model.User, error) {
	if err := policy.Evaluate(actor, policy.UserCreate, nil); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, apperr.Validation("invalid role %q", in.Role)
	}

	u, err := s.create(ctx, in.Name, in.Email, in.Password, role)
	if err != nil {
		return nil, err
	}
	u.Department = strings.TrimSpace(in.Department)
	u.ContactNumber = strings.TrimSpace(in.ContactNumber)
	u.IsActive = in.IsActive == nil || *in.IsActive
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Update(ctx context.Context, actor policy.Actor, id uint, p Patch) (*model.User, error) {
	if err := policy.Evaluate(actor, policy.UserUpdate, nil); err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil && strings.TrimSpace(*p.Email) != "" {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		taken, err := s.store.EmailTaken(ctx, email, u.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Conflict("email already registered")
		}
		u.Email = email
	}
	if p.Role != nil && *p.Role != "" {
		if !p.Role.Valid() {
			return nil, apperr.Validation("invalid role %q", *p.Role)
		}
		u.Role = *p.Role
	}
	if p.Password != nil && *p.Password != "" {
		if err := setPassword(u, *p.Password); err != nil {
			return nil, err
		}
	}
	if p.Department != nil {
		u.Department = strings.TrimSpace(*p.Department)
	}
	if p.ContactNumber != nil {
		u.ContactNumber = strings.TrimSpace(*p.ContactNumber)
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}

	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes an account. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.Evaluate(actor, policy.UserDelete, &policy.Record{SubjectUserID: id}); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().Uint("user_id", id).Uint("by", actor.ID).Msg("user deleted")
	return nil
}

// create validates the common fields and returns an unsaved user.
func (s *Service) create(ctx context.Context, name, email, password string, role model.Role) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email is required")
	}

	taken, err := s.store.EmailTaken(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("user already exists")
	}

	u := &model.User{Name: name, Email: email, Role: role}
	if err := setPassword(u, password); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) session(u *model.User) (*Session, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token}, nil
}

func setPassword(u *model.User, password string) error {
	if len(password) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	return u.SetPassword(password)
}
