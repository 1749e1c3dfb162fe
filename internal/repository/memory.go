package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/liiist/liiist/internal/model"
)

// Memory is an in-process store with the same contract as Repository.
// It backs tests and local runs without Postgres.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	byEmail  map[string]string
	tokens   map[string]*model.RefreshToken
	lists    map[string]*model.ShoppingList
	failWith error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*model.User),
		byEmail: make(map[string]string),
		tokens:  make(map[string]*model.RefreshToken),
		lists:   make(map[string]*model.ShoppingList),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}

// Ping reports the injected failure, if any.
func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failWith
}

func (m *Memory) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	key := strings.ToLower(user.Email)
	if _, ok := m.byEmail[key]; ok {
		return ErrEmailExists
	}
	cp := cloneUser(user)
	m.users[user.ID] = cp
	m.byEmail[key] = user.ID
	return nil
}

func (m *Memory) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(m.users[id]), nil
}

func (m *Memory) UpdatePasswordHash(_ context.Context, userID, hash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	return nil
}

// DeleteUser removes a user and everything it owns.
func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.byEmail, strings.ToLower(u.Email))
	delete(m.users, id)
	for h, t := range m.tokens {
		if t.UserID == id {
			delete(m.tokens, h)
		}
	}
	for lid, l := range m.lists {
		if l.UserID == id {
			delete(m.lists, lid)
		}
	}
	return nil
}

func (m *Memory) CreateRefreshToken(_ context.Context, token *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	cp := *token
	m.tokens[token.TokenHash] = &cp
	return nil
}

func (m *Memory) GetRefreshToken(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	t, ok := m.tokens[tokenHash]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) RotateRefreshToken(_ context.Context, oldHash string, next *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.tokens[oldHash]; !ok {
		return ErrRefreshTokenNotFound
	}
	delete(m.tokens, oldHash)
	cp := *next
	m.tokens[next.TokenHash] = &cp
	return nil
}

func (m *Memory) DeleteRefreshToken(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.tokens[tokenHash]; !ok {
		return ErrRefreshTokenNotFound
	}
	delete(m.tokens, tokenHash)
	return nil
}

// RefreshTokenCount returns how many refresh tokens are stored.
func (m *Memory) RefreshTokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

func (m *Memory) SaveList(_ context.Context, list *model.ShoppingList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if existing, ok := m.lists[list.ID]; ok {
		if existing.UserID != list.UserID {
			return ErrListNotFound
		}
		list.CreatedAt = existing.CreatedAt
	}
	m.lists[list.ID] = cloneList(list)
	return nil
}

func (m *Memory) GetList(_ context.Context, userID, id string) (*model.ShoppingList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	l, ok := m.lists[id]
	if !ok || l.UserID != userID {
		return nil, ErrListNotFound
	}
	return cloneList(l), nil
}

func (m *Memory) ListLists(_ context.Context, userID string) ([]*model.ShoppingList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []*model.ShoppingList
	for _, l := range m.lists {
		if l.UserID == userID {
			out = append(out, cloneList(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	cp.Retailers = append([]string(nil), u.Retailers...)
	return &cp
}

func cloneList(l *model.ShoppingList) *model.ShoppingList {
	cp := *l
	cp.Products = append([]model.Product(nil), l.Products...)
	return &cp
}
