package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// RunGuard - блокировка (student, session) в пределах одного процесса.
// Используется, когда Redis отключён.
type RunGuard struct {
	mu   sync.Mutex
	held map[runKey]struct{}
}

type runKey struct {
	student string
	session string
}

// NewRunGuard создаёт пустую блокировку.
func NewRunGuard() *RunGuard {
	return &RunGuard{held: make(map[runKey]struct{})}
}

// Acquire захватывает пару или возвращает shared.ErrRunInProgress.
func (g *RunGuard) Acquire(_ context.Context, studentID, sessionID string) (func(), error) {
	key := runKey{student: studentID, session: sessionID}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return nil, shared.ErrRunInProgress
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}
