package service

import (
	"context"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
)

// Scanner walks the pool of users seeking a partner for a sport.
type Scanner struct {
	users repository.UsersRepository
}

func NewScanner(users repository.UsersRepository) *Scanner {
	return &Scanner{users: users}
}

// FindCandidate returns the first seeker for sport that fits seekerID, or nil.
// In strict mode both sides must accept each other; otherwise any seeker fits.
func (s *Scanner) FindCandidate(ctx context.Context, seekerID int64, sport string, strict bool) (*models.User, error) {
	seeker, err := s.users.Get(ctx, seekerID)
	if err != nil {
		return nil, err
	}
	pool, err := s.users.ListSeeking(ctx, sport, seekerID)
	if err != nil {
		return nil, err
	}
	return SelectCandidate(seeker, pool, sport, strict), nil
}

// SelectCandidate picks from pool in enumeration order; the first fit wins.
func SelectCandidate(seeker *models.User, pool []models.User, sport string, strict bool) *models.User {
	for i := range pool {
		c := &pool[i]
		if c.TelegramID == seeker.TelegramID || !c.SeekingFor(sport) {
			continue
		}
		if !strict || MutuallyAccept(seeker, c, sport) {
			return c
		}
	}
	return nil
}
