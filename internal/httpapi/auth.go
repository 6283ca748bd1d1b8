package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"habibdukan/backend/internal/domain"
)

const tokenIssuer = "habibdukan"

var errInvalidCredentials = errors.New("invalid credentials")

// Account is a login configured at startup. Password may be plain text or
// an existing bcrypt hash.
type Account struct {
	Username string
	Password string
	Role     string
}

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	users     map[string]credential
	dummyHash string
	now       func() time.Time
}

type credential struct {
	passwordHash string
	role         string
}

type shopClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

// NewAuthManager hashes every configured password once. Accounts with an
// empty username or password are ignored, so an unset cashier login simply
// does not exist.
func NewAuthManager(secret string, tokenTTL time.Duration, accounts ...Account) (*AuthManager, error) {
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    make(map[string]credential, len(accounts)),
		now:      time.Now,
	}
	for _, account := range accounts {
		username := strings.ToLower(strings.TrimSpace(account.Username))
		if username == "" || account.Password == "" {
			continue
		}
		if account.Role != domain.RoleOwner && account.Role != domain.RoleCashier {
			return nil, fmt.Errorf("unknown role %q for user %s", account.Role, username)
		}
		if _, exists := manager.users[username]; exists {
			return nil, fmt.Errorf("user %s configured twice", username)
		}

		hash := account.Password
		if !isPasswordHash(hash) {
			var err error
			if hash, err = hashPassword(account.Password); err != nil {
				return nil, fmt.Errorf("hash password for %s: %w", username, err)
			}
		}
		manager.users[username] = credential{passwordHash: hash, role: account.Role}
	}
	if len(manager.users) == 0 {
		return nil, errors.New("at least one user account is required")
	}

	dummy, err := hashPassword("unknown-user-placeholder")
	if err != nil {
		return nil, err
	}
	manager.dummyHash = dummy
	return manager, nil
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	cred, ok := a.users[username]
	if !ok {
		// Unknown users take as long as wrong passwords.
		_ = verifyPassword(a.dummyHash, req.Password)
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !verifyPassword(cred.passwordHash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, cred.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &shopClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	if _, ok := a.users[sub]; !ok {
		return domain.Actor{}, errors.New("unknown user")
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := shopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
