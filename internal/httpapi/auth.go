package httpapi

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"supermart/internal/domain"
)

// Directory resolves accounts for login and token checks.
type Directory interface {
	Login(email string, password string) (domain.PublicUser, error)
	User(id string) (domain.PublicUser, bool)
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    Directory
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users Directory) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
	}
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	user, err := a.users.Login(req.Email, req.Password)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return a.Issue(user)
}

// Issue signs an access token for an already authenticated user.
func (a *AuthManager) Issue(user domain.PublicUser) (domain.LoginResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		User:        user,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// ParseToken validates the token and resolves the account it was issued to.
// The role comes from the directory, so role changes apply to live tokens and
// removed accounts lose access immediately.
func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	user, ok := a.users.User(sub)
	if !ok {
		return domain.Actor{}, errors.New("account no longer exists")
	}
	return domain.Actor{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

func (a *AuthManager) sign(user domain.PublicUser, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "supermart",
		},
		Email: user.Email,
		Role:  user.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
