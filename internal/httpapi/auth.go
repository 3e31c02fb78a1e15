package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"

	tokenIssuer      = "posledger"
	userStoreTimeout = 3 * time.Second
	// Staff accounts created on another instance show up after at most this long,
	// or on the first login naming them.
	accountRefreshEvery = 30 * time.Second
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUsernameTaken      = errors.New("username already exists")
)

// AuthManager issues and verifies bearer tokens for register staff. Accounts
// live in the UserStore; a copy of their password hashes is kept in memory.
type AuthManager struct {
	secret     []byte
	tokenTTL   time.Duration
	managerPIN string
	userStore  UserStore

	mu       sync.RWMutex
	accounts map[string]staffAccount
	loadedAt time.Time
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type staffAccount struct {
	hash    string
	role    string
	active  bool
	created time.Time
}

type staffClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	a := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		accounts:  make(map[string]staffAccount),
	}
	// An unset PIN stays empty and never validates.
	if pin := strings.TrimSpace(managerPIN); pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[auth] WARN: failed to hash manager pin: %v", err)
		} else {
			a.managerPIN = string(hash)
		}
	}
	a.loadAccounts(context.Background())
	return a
}

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (a *AuthManager) account(ctx context.Context, username string) (staffAccount, bool) {
	a.mu.RLock()
	acc, ok := a.accounts[username]
	stale := time.Since(a.loadedAt) > accountRefreshEvery
	a.mu.RUnlock()
	if ok && !stale {
		return acc, true
	}

	a.loadAccounts(ctx)
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok = a.accounts[username]
	return acc, ok
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := normalizeUsername(req.Username)
	acc, ok := a.account(ctx, username)
	if !ok || !matchesHash(acc.hash, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !acc.active {
		return domain.LoginResponse{}, ErrInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, acc.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        acc.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// ParseToken accepts only HS256 tokens this service issued.
func (a *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	var claims staffClaims
	_, err := jwtlib.ParseWithClaims(raw, &claims, func(*jwtlib.Token) (any, error) {
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithIssuer(tokenIssuer), jwtlib.WithExpirationRequired())
	if err != nil || claims.Subject == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{Username: claims.Subject, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username string, role string, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, staffClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: role,
	}).SignedString(a.secret)
}

// ValidateManagerPIN lets a cashier perform a supervised action, such as a
// points adjustment.
func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	return matchesHash(a.managerPIN, strings.TrimSpace(pin))
}

func (a *AuthManager) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	username := normalizeUsername(req.Username)
	switch {
	case len(username) < 4:
		return domain.CashierUser{}, fmt.Errorf("%w: username must be at least 4 characters", store.ErrValidation)
	case strings.ContainsAny(username, " \t\r\n"):
		return domain.CashierUser{}, fmt.Errorf("%w: username must not contain spaces", store.ErrValidation)
	case len(strings.TrimSpace(req.Password)) < 6:
		return domain.CashierUser{}, fmt.Errorf("%w: password must be at least 6 characters", store.ErrValidation)
	}
	if _, taken := a.account(ctx, username); taken {
		return domain.CashierUser{}, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.CashierUser{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	if a.userStore != nil {
		storeCtx, cancel := context.WithTimeout(ctx, userStoreTimeout)
		defer cancel()
		if err := a.userStore.CreateUser(storeCtx, domain.UserAccount{
			Username:  username,
			Password:  string(hash),
			Role:      RoleCashier,
			Active:    true,
			CreatedAt: now,
		}); err != nil {
			return domain.CashierUser{}, err
		}
	}

	a.mu.Lock()
	a.accounts[username] = staffAccount{hash: string(hash), role: RoleCashier, active: true, created: now}
	a.mu.Unlock()
	return domain.CashierUser{Username: username, Role: RoleCashier, Active: true, CreatedAt: now}, nil
}

func (a *AuthManager) ListCashiers(ctx context.Context) []domain.CashierUser {
	a.loadAccounts(ctx)

	a.mu.RLock()
	out := make([]domain.CashierUser, 0, len(a.accounts))
	for username, acc := range a.accounts {
		if acc.role == RoleCashier {
			out = append(out, domain.CashierUser{Username: username, Role: acc.role, Active: acc.active, CreatedAt: acc.created})
		}
	}
	a.mu.RUnlock()

	slices.SortFunc(out, func(x, y domain.CashierUser) int { return strings.Compare(x.Username, y.Username) })
	return out
}

// loadAccounts copies the user store into memory. Plain-text passwords left
// by older seeds are rehashed and written back.
func (a *AuthManager) loadAccounts(ctx context.Context) {
	if a.userStore == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, userStoreTimeout)
	defer cancel()

	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		log.Printf("[auth] WARN: failed to load users: %v", err)
		return
	}

	loaded := make(map[string]staffAccount, len(users))
	for _, user := range users {
		username := normalizeUsername(user.Username)
		if username == "" {
			continue
		}
		hash := user.Password
		if !isBcryptHash(hash) {
			upgraded, err := bcrypt.GenerateFromPassword([]byte(hash), bcrypt.DefaultCost)
			if err != nil {
				log.Printf("[auth] WARN: failed to hash legacy password for %s: %v", username, err)
				continue
			}
			hash = string(upgraded)
			if err := a.userStore.UpdateUserPassword(ctx, username, hash); err != nil {
				log.Printf("[auth] WARN: failed to upgrade password for %s: %v", username, err)
			}
		}
		loaded[username] = staffAccount{hash: hash, role: user.Role, active: user.Active, created: user.CreatedAt}
	}

	a.mu.Lock()
	for username, acc := range loaded {
		a.accounts[username] = acc
	}
	a.loadedAt = time.Now()
	a.mu.Unlock()
}

func matchesHash(hash string, input string) bool {
	if strings.TrimSpace(input) == "" || !isBcryptHash(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(input)) == nil
}

func isBcryptHash(value string) bool {
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}
