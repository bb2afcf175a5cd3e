package service

import (
	"context"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/internal/campus/store"
)

type UserService struct {
	Store store.Store
}

func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// ListMentors returns the active mentors for the mentors page.
func (s *UserService) ListMentors(ctx context.Context) ([]domain.User, error) {
	return s.Store.Users().ListByRole(ctx, domain.RoleMentor)
}
