// Package auth verifies credentials, issues session tokens and gates
// privileged user mutations behind a capability check.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ecosystem-api/internal/apperr"
	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// Capability and resource class checked before creating users.
const (
	CapabilityManage = "Manage"
	ResourceSystem   = "System"
)

// Caller-facing messages. Login failures share one message so callers cannot
// tell an unknown user from a wrong password.
const (
	msgNotSignedUp       = "User not signed up"
	msgNotAuthenticated  = "Not authenticated, login first"
	msgNotAuthorized     = "You are not authorized"
	msgPasswordIncorrect = "password is incorrect"
)

// Login failure reasons, used for logs and metrics only.
const (
	reasonNoSuchUser    = "no_such_user"
	reasonWrongPassword = "wrong_password"
	reasonNoResource    = "no_resource"
	reasonStoreError    = "store_error"
	reasonTokenError    = "token_error"
)

// UserStore is the subset of the record store the gate depends on.
type UserStore interface {
	UserByName(ctx context.Context, userName string) (store.Record, error)
	ResourceIDs(ctx context.Context, userID interface{}) ([]interface{}, error)
	CapabilityCount(ctx context.Context, capability, resource string, userID interface{}) (int, error)
	CreateUser(ctx context.Context, cuID interface{}, userName, passwordHash string) (store.Record, error)
	ChangePassword(ctx context.Context, userName, passwordHash string) (store.Record, error)
}

// SecurityRecorder receives authentication outcomes. Implementations must be
// safe for concurrent use.
type SecurityRecorder interface {
	RecordLogin(ctx context.Context, success bool, reason string)
	RecordCapabilityDenied(ctx context.Context, capability, resource string)
}

// Session is the result of a successful login.
type Session struct {
	User  store.Record
	Token string
}

// NewUser is the input to CreateUser.
type NewUser struct {
	CuID     string
	UserName string
	Password string
}

// PasswordChange is the input to ChangePassword.
type PasswordChange struct {
	UserName    string
	Password    string
	NewPassword string
}

// Gate implements login and the privileged user mutations.
type Gate struct {
	users      UserStore
	signer     *Signer
	bcryptCost int
	recorder   SecurityRecorder
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithBcryptCost sets the cost used when hashing new passwords.
func WithBcryptCost(cost int) GateOption {
	return func(g *Gate) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			g.bcryptCost = cost
		}
	}
}

// WithSecurityRecorder reports login outcomes and capability denials.
func WithSecurityRecorder(r SecurityRecorder) GateOption {
	return func(g *Gate) {
		g.recorder = r
	}
}

// NewGate creates a gate over users, signing sessions with signer.
func NewGate(users UserStore, signer *Signer, opts ...GateOption) *Gate {
	g := &Gate{
		users:      users,
		signer:     signer,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login verifies userName and password and returns the public user with a
// signed token. Every failure yields the same authentication error.
func (g *Gate) Login(ctx context.Context, userName, password string) (*Session, error) {
	session, reason, err := g.login(ctx, userName, password)
	if err != nil {
		logging.FromContext(ctx).Debug("login rejected",
			slog.String("user_name", userName),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		g.recordLogin(ctx, false, reason)
		return nil, apperr.Authentication(msgNotSignedUp, nil)
	}
	g.recordLogin(ctx, true, "")
	return session, nil
}

func (g *Gate) login(ctx context.Context, userName, password string) (*Session, string, error) {
	user, err := g.users.UserByName(ctx, userName)
	if err != nil {
		return nil, reasonStoreError, err
	}
	if user == nil {
		// Keep the unknown-user path as slow as a real comparison.
		_ = bcrypt.CompareHashAndPassword(placeholderHash(), []byte(password))
		return nil, reasonNoSuchUser, errors.New("no such user")
	}
	hash, _ := user["password"].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, reasonWrongPassword, err
	}

	resources, err := g.users.ResourceIDs(ctx, user["id"])
	if err != nil {
		return nil, reasonStoreError, err
	}
	cuID, ok := firstNonNil(resources)
	if !ok {
		return nil, reasonNoResource, apperr.NotFound("no resource assigned to user %v", user["id"])
	}

	actor := Actor{
		ID:       fmt.Sprint(user["id"]),
		CuID:     fmt.Sprint(cuID),
		UserName: fmt.Sprint(user["userName"]),
	}
	token, err := g.signer.Issue(actor)
	if err != nil {
		return nil, reasonTokenError, err
	}
	return &Session{
		User: store.Record{
			"id":       user["id"],
			"cuId":     cuID,
			"userName": user["userName"],
		},
		Token: token,
	}, "", nil
}

// CreateUser creates a user on behalf of an actor holding the Manage
// capability on System.
func (g *Gate) CreateUser(ctx context.Context, input NewUser) (store.Record, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, apperr.Authentication(msgNotAuthenticated, nil)
	}
	count, err := g.users.CapabilityCount(ctx, CapabilityManage, ResourceSystem, actor.ID)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		logging.FromContext(ctx).WithActor(actor.ID).Warn("capability denied",
			slog.String("capability", CapabilityManage),
			slog.String("resource", ResourceSystem),
		)
		if g.recorder != nil {
			g.recorder.RecordCapabilityDenied(ctx, CapabilityManage, ResourceSystem)
		}
		return nil, apperr.Authentication(msgNotAuthorized, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), g.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := g.users.CreateUser(ctx, input.CuID, input.UserName, string(hash))
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithActor(actor.ID).Info("user created",
		slog.String("user_name", input.UserName),
	)
	return user, nil
}

// ChangePassword replaces a user's password after re-verifying the old one.
// A valid session never bypasses the old-password check.
func (g *Gate) ChangePassword(ctx context.Context, input PasswordChange) (store.Record, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, apperr.Authentication(msgNotAuthenticated, nil)
	}
	user, err := g.users.UserByName(ctx, input.UserName)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Authentication(msgPasswordIncorrect, nil)
	}
	hash, _ := user["password"].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)); err != nil {
		logging.FromContext(ctx).WithActor(actor.ID).Warn("password change rejected",
			slog.String("user_name", input.UserName),
		)
		return nil, apperr.Authentication(msgPasswordIncorrect, nil)
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), g.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return g.users.ChangePassword(ctx, input.UserName, string(newHash))
}

func (g *Gate) recordLogin(ctx context.Context, success bool, reason string) {
	if g.recorder != nil {
		g.recorder.RecordLogin(ctx, success, reason)
	}
}

func firstNonNil(values []interface{}) (interface{}, bool) {
	for _, v := range values {
		if v != nil {
			return v, true
		}
	}
	return nil, false
}

var (
	placeholderOnce sync.Once
	placeholder     []byte
)

func placeholderHash() []byte {
	placeholderOnce.Do(func() {
		placeholder, _ = bcrypt.GenerateFromPassword([]byte("placeholder"), bcrypt.DefaultCost)
	})
	return placeholder
}
