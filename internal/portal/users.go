package portal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"supermart/internal/domain"
	"supermart/internal/store"
	"supermart/internal/xid"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Register creates a STAFF account for a new email address.
func (p *Portal) Register(ctx context.Context, req domain.RegisterRequest) (domain.PublicUser, error) {
	return p.addUser(ctx, domain.UserCreateRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.RoleStaff,
	})
}

// AddUser creates an account with an explicit role on behalf of an admin.
func (p *Portal) AddUser(ctx context.Context, req domain.UserCreateRequest) (domain.PublicUser, error) {
	return p.addUser(ctx, req)
}

func (p *Portal) addUser(ctx context.Context, req domain.UserCreateRequest) (domain.PublicUser, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleStaff
	}

	if name == "" {
		return domain.PublicUser{}, fmt.Errorf("%w: name is required", store.ErrInvalidTransaction)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.PublicUser{}, fmt.Errorf("%w: invalid email address", store.ErrInvalidTransaction)
	}
	if len(req.Password) < 6 {
		return domain.PublicUser{}, fmt.Errorf("%w: password must be at least 6 characters", store.ErrInvalidTransaction)
	}
	if role != domain.RoleAdmin && role != domain.RoleStaff {
		return domain.PublicUser{}, fmt.Errorf("%w: unsupported role %q", store.ErrInvalidTransaction, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.hashCost)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.indexByEmail(email) >= 0 {
		return domain.PublicUser{}, fmt.Errorf("%w: email already registered", store.ErrConflict)
	}

	user := domain.UserAccount{
		ID:          xid.New("u"),
		Name:        name,
		Email:       email,
		Role:        role,
		AvatarColor: avatarColors[len(p.users)%len(avatarColors)],
		JoinedAt:    p.now(),
		Password:    string(hash),
	}
	next := append(slices.Clone(p.users), user)
	if err := p.saveUsers(ctx, next); err != nil {
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}

// Authenticate checks an email and password against the stored accounts.
func (p *Portal) Authenticate(email string, password string) (domain.PublicUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p.mu.RLock()
	idx := p.indexByEmail(email)
	var user domain.UserAccount
	if idx >= 0 {
		user = p.users[idx]
	}
	p.mu.RUnlock()

	if idx < 0 || strings.TrimSpace(password) == "" {
		return domain.PublicUser{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return domain.PublicUser{}, ErrInvalidCredentials
	}
	return user.Public(), nil
}

func (p *Portal) Users() []domain.PublicUser {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.PublicUser, 0, len(p.users))
	for _, u := range p.users {
		out = append(out, u.Public())
	}
	return out
}

func (p *Portal) User(id string) (domain.PublicUser, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx := p.index(id)
	if idx < 0 {
		return domain.PublicUser{}, false
	}
	return p.users[idx].Public(), true
}

// RemoveUser deletes an account. An actor cannot remove themself.
func (p *Portal) RemoveUser(ctx context.Context, actorID string, id string) error {
	if actorID == id {
		return fmt.Errorf("%w: you cannot remove your own account", store.ErrInvalidTransaction)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.index(id)
	if idx < 0 {
		return store.ErrNotFound
	}
	next := slices.Delete(slices.Clone(p.users), idx, idx+1)
	return p.saveUsers(ctx, next)
}

// ToggleRole flips an account between ADMIN and STAFF. An actor cannot change
// their own role.
func (p *Portal) ToggleRole(ctx context.Context, actorID string, id string) (domain.PublicUser, error) {
	if actorID == id {
		return domain.PublicUser{}, fmt.Errorf("%w: you cannot change your own role", store.ErrInvalidTransaction)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.index(id)
	if idx < 0 {
		return domain.PublicUser{}, store.ErrNotFound
	}
	next := slices.Clone(p.users)
	if next[idx].Role == domain.RoleAdmin {
		next[idx].Role = domain.RoleStaff
	} else {
		next[idx].Role = domain.RoleAdmin
	}
	if err := p.saveUsers(ctx, next); err != nil {
		return domain.PublicUser{}, err
	}
	return next[idx].Public(), nil
}

func (p *Portal) UpdateProfile(ctx context.Context, id string, req domain.ProfileUpdateRequest) (domain.PublicUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.index(id)
	if idx < 0 {
		return domain.PublicUser{}, store.ErrNotFound
	}
	next := slices.Clone(p.users)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.PublicUser{}, fmt.Errorf("%w: name is required", store.ErrInvalidTransaction)
		}
		next[idx].Name = name
	}
	if req.Bio != nil {
		next[idx].Bio = strings.TrimSpace(*req.Bio)
	}
	if err := p.saveUsers(ctx, next); err != nil {
		return domain.PublicUser{}, err
	}
	return next[idx].Public(), nil
}

// upgradeLegacyPasswords hashes any plaintext password left by older installs.
func (p *Portal) upgradeLegacyPasswords(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := slices.Clone(p.users)
	upgraded := 0
	for i := range next {
		if next[i].Password == "" || isPasswordHash(next[i].Password) {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(next[i].Password), p.hashCost)
		if err != nil {
			return fmt.Errorf("hash legacy password: %w", err)
		}
		next[i].Password = string(hash)
		upgraded++
	}
	if upgraded == 0 {
		return nil
	}
	log.Printf("[portal] upgraded %d plaintext password(s) to bcrypt", upgraded)
	return p.saveUsers(ctx, next)
}

func (p *Portal) saveUsers(ctx context.Context, users []domain.UserAccount) error {
	if err := p.store.SaveAll(ctx, store.Document{Name: store.Users, Value: users}); err != nil {
		return fmt.Errorf("persist users: %w", err)
	}
	p.users = users
	return nil
}

func (p *Portal) index(id string) int {
	for i := range p.users {
		if p.users[i].ID == id {
			return i
		}
	}
	return -1
}

func (p *Portal) indexByEmail(email string) int {
	for i := range p.users {
		if strings.EqualFold(p.users[i].Email, email) {
			return i
		}
	}
	return -1
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
