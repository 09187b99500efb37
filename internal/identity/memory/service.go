package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/peopleops/internal/identity"
	"github.com/wolfeidau/peopleops/internal/models"
)

// Service is an in-memory stand-in for the hosted identity service.
// It is used in development mode and by tests; data is lost on restart.
type Service struct {
	mu sync.RWMutex

	principals map[string]*models.Principal // principal_id -> principal
	byEmail    map[string]string            // lower(email) -> principal_id
	passwords  map[string]string            // principal_id -> credential
	tokens     map[string]string            // bearer token -> principal_id
}

// NewService creates a new in-memory identity service.
func NewService() *Service {
	return &Service{
		principals: make(map[string]*models.Principal),
		byEmail:    make(map[string]string),
		passwords:  make(map[string]string),
		tokens:     make(map[string]string),
	}
}

// CreatePrincipal creates a principal, enforcing case-insensitive email uniqueness.
func (s *Service) CreatePrincipal(ctx context.Context, in identity.CreatePrincipalInput) (*models.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(in.Email)
	if _, exists := s.byEmail[email]; exists {
		return nil, identity.ErrDuplicateEmail
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	principal := &models.Principal{
		PrincipalID: id.String(),
		Email:       in.Email,
		Metadata:    in.Metadata,
		CreatedAt:   time.Now(),
	}

	s.principals[principal.PrincipalID] = principal
	s.byEmail[email] = principal.PrincipalID
	s.passwords[principal.PrincipalID] = in.Password

	clone := *principal
	return &clone, nil
}

// DeletePrincipal removes a principal and revokes its tokens.
func (s *Service) DeletePrincipal(ctx context.Context, principalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	principal, exists := s.principals[principalID]
	if !exists {
		return identity.ErrPrincipalNotFound
	}

	delete(s.principals, principalID)
	delete(s.byEmail, strings.ToLower(principal.Email))
	delete(s.passwords, principalID)
	for token, owner := range s.tokens {
		if owner == principalID {
			delete(s.tokens, token)
		}
	}

	return nil
}

// ResolveToken returns the principal a token was issued to.
func (s *Service) ResolveToken(ctx context.Context, token string) (*models.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	principalID, ok := s.tokens[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}

	principal, ok := s.principals[principalID]
	if !ok {
		return nil, identity.ErrInvalidToken
	}

	clone := *principal
	return &clone, nil
}

// IssueToken creates an opaque session token for a principal.
func (s *Service) IssueToken(principalID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.principals[principalID]; !exists {
		return "", identity.ErrPrincipalNotFound
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	s.tokens[token] = principalID

	return token, nil
}

// Get retrieves a principal by ID.
func (s *Service) Get(principalID string) (*models.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principal, ok := s.principals[principalID]
	if !ok {
		return nil, false
	}
	clone := *principal
	return &clone, true
}

// GetByEmail retrieves a principal by case-insensitive email.
func (s *Service) GetByEmail(email string) (*models.Principal, bool) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.Get(id)
}

// Count returns the number of principals.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.principals)
}
