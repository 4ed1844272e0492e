package service

import (
	"context"
	"fmt"

	"supermart/internal/domain"
)

func (s *Service) Login(email string, password string) (domain.PublicUser, error) {
	return s.portal.Authenticate(email, password)
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.PublicUser, error) {
	user, err := s.portal.Register(ctx, req)
	if err != nil {
		return domain.PublicUser{}, err
	}
	s.logAudit(WithActor(ctx, domain.Actor{UserID: user.ID, Email: user.Email, Role: user.Role}), "user_register", "user", user.ID, "")
	return user, nil
}

func (s *Service) User(id string) (domain.PublicUser, bool) {
	return s.portal.User(id)
}

func (s *Service) Settings() domain.Settings {
	return s.portal.Settings()
}

func (s *Service) UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Settings{}, err
	}
	updated, err := s.portal.UpdateSettings(ctx, patch)
	if err != nil {
		return domain.Settings{}, err
	}
	s.logAudit(ctx, "settings_update", "settings", "", fmt.Sprintf("currency=%s,threshold=%d,methods=%d", updated.Currency, updated.LowStockThreshold, len(updated.PaymentMethods)))
	return updated, nil
}

func (s *Service) Users(ctx context.Context) ([]domain.PublicUser, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.portal.Users(), nil
}

func (s *Service) AddUser(ctx context.Context, req domain.UserCreateRequest) (domain.PublicUser, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PublicUser{}, err
	}
	user, err := s.portal.AddUser(ctx, req)
	if err != nil {
		return domain.PublicUser{}, err
	}
	s.logAudit(ctx, "user_add", "user", user.ID, "role="+user.Role)
	return user, nil
}

func (s *Service) RemoveUser(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	actor, _ := ActorFromContext(ctx)
	if err := s.portal.RemoveUser(ctx, actor.UserID, id); err != nil {
		return err
	}
	s.logAudit(ctx, "user_remove", "user", id, "")
	return nil
}

func (s *Service) ToggleRole(ctx context.Context, id string) (domain.PublicUser, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PublicUser{}, err
	}
	actor, _ := ActorFromContext(ctx)
	user, err := s.portal.ToggleRole(ctx, actor.UserID, id)
	if err != nil {
		return domain.PublicUser{}, err
	}
	s.logAudit(ctx, "user_role_toggle", "user", user.ID, "role="+user.Role)
	return user, nil
}

// UpdateProfile edits the acting user's own profile.
func (s *Service) UpdateProfile(ctx context.Context, req domain.ProfileUpdateRequest) (domain.PublicUser, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.PublicUser{}, ErrForbidden
	}
	return s.portal.UpdateProfile(ctx, actor.UserID, req)
}

func (s *Service) Messages(limit int) []domain.ChatMessage {
	return s.portal.Messages(limit)
}

func (s *Service) PostMessage(ctx context.Context, req domain.ChatPostRequest) (domain.ChatMessage, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.ChatMessage{}, ErrForbidden
	}
	return s.portal.PostMessage(ctx, actor.UserID, req.Text)
}

func (s *Service) Translate(ctx context.Context, req domain.TranslateRequest) domain.TextResponse {
	text, fallback := s.assistant.TranslateMessage(ctx, req.Text, req.Language)
	return domain.TextResponse{Text: text, Fallback: fallback}
}

func (s *Service) SuggestReply(ctx context.Context, req domain.SuggestRequest) domain.TextResponse {
	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}
	text, fallback := s.assistant.SuggestReply(ctx, s.portal.Messages(limit))
	return domain.TextResponse{Text: text, Fallback: fallback}
}

func (s *Service) Autocorrect(ctx context.Context, req domain.ChatPostRequest) domain.TextResponse {
	text, fallback := s.assistant.Autocorrect(ctx, req.Text)
	return domain.TextResponse{Text: text, Fallback: fallback}
}
