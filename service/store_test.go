package service

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// memStore is an in-memory Store with the same error contract as the real
// one: CodeNotFound for absent documents and domain.ErrExists from
// create-only writes.
type memStore struct {
	mu     sync.Mutex
	users  map[string]domain.User
	boards map[string]domain.Board
	tasks  map[string]map[string]domain.Task
	claims map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]domain.User),
		boards: make(map[string]domain.Board),
		tasks:  make(map[string]map[string]domain.Task),
		claims: make(map[string]string),
	}
}

func claimKey(boardID, norm string) string { return boardID + "\x00" + norm }

func (m *memStore) GetUser(_ context.Context, userID string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.User{}, domain.NotFoundf("user not found")
	}
	return u, nil
}

func (m *memStore) InsertUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return domain.ErrExists
	}
	m.users[u.ID] = u
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

func (m *memStore) MutateUser(_ context.Context, userID string, mutate func(*domain.User) error) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.User{}, domain.NotFoundf("user not found")
	}
	if err := mutate(&u); err != nil {
		return domain.User{}, err
	}
	m.users[userID] = u
	return u, nil
}

func (m *memStore) ListUsers(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memStore) GetBoard(_ context.Context, boardID string) (domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[boardID]
	if !ok {
		return domain.Board{}, domain.NotFoundf("board not found")
	}
	return b, nil
}

func (m *memStore) InsertBoard(_ context.Context, b domain.Board) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[b.ID]; ok {
		return domain.ErrExists
	}
	m.boards[b.ID] = b
	return nil
}

func (m *memStore) DeleteBoard(_ context.Context, boardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boards, boardID)
	return nil
}

func (m *memStore) MutateBoard(_ context.Context, boardID string, mutate func(*domain.Board) error) (domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[boardID]
	if !ok {
		return domain.Board{}, domain.NotFoundf("board not found")
	}
	if err := mutate(&b); err != nil {
		return domain.Board{}, err
	}
	m.boards[boardID] = b
	return b, nil
}

func (m *memStore) GetTask(_ context.Context, boardID, taskID string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[boardID][taskID]
	if !ok {
		return domain.Task{}, domain.NotFoundf("task not found")
	}
	return t, nil
}

func (m *memStore) InsertTask(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.BoardID][t.ID]; ok {
		return domain.ErrExists
	}
	if m.tasks[t.BoardID] == nil {
		m.tasks[t.BoardID] = make(map[string]domain.Task)
	}
	m.tasks[t.BoardID][t.ID] = t
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, boardID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks[boardID], taskID)
	return nil
}

func (m *memStore) MutateTask(_ context.Context, boardID, taskID string, mutate func(*domain.Task) error) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[boardID][taskID]
	if !ok {
		return domain.Task{}, domain.NotFoundf("task not found")
	}
	if err := mutate(&t); err != nil {
		return domain.Task{}, err
	}
	m.tasks[boardID][taskID] = t
	return t, nil
}

func (m *memStore) ListTasks(_ context.Context, boardID string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Task, 0, len(m.tasks[boardID]))
	for _, t := range m.tasks[boardID] {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) ClaimTitle(_ context.Context, boardID, norm, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := claimKey(boardID, norm)
	if _, ok := m.claims[key]; ok {
		return domain.ErrExists
	}
	m.claims[key] = taskID
	return nil
}

func (m *memStore) ReleaseTitle(_ context.Context, boardID, norm string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, claimKey(boardID, norm))
	return nil
}

func (m *memStore) hasClaim(boardID, norm string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.claims[claimKey(boardID, norm)]
	return ok
}

// hookStore overrides selected Store methods with injected failures.
type hookStore struct {
	Store
	insertUserErr   error
	mutateUserErr   error
	insertTaskErr   error
	listTasksErr    error
	releaseTitleErr error
}

func (h *hookStore) InsertUser(ctx context.Context, u domain.User) error {
	if h.insertUserErr != nil {
		return h.insertUserErr
	}
	return h.Store.InsertUser(ctx, u)
}

func (h *hookStore) MutateUser(ctx context.Context, userID string, mutate func(*domain.User) error) (domain.User, error) {
	if h.mutateUserErr != nil {
		return domain.User{}, h.mutateUserErr
	}
	return h.Store.MutateUser(ctx, userID, mutate)
}

func (h *hookStore) InsertTask(ctx context.Context, t domain.Task) error {
	if h.insertTaskErr != nil {
		return h.insertTaskErr
	}
	return h.Store.InsertTask(ctx, t)
}

func (h *hookStore) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	if h.listTasksErr != nil {
		return nil, h.listTasksErr
	}
	return h.Store.ListTasks(ctx, boardID)
}

func (h *hookStore) ReleaseTitle(ctx context.Context, boardID, norm string) error {
	if h.releaseTitleErr != nil {
		return h.releaseTitleErr
	}
	return h.Store.ReleaseTitle(ctx, boardID, norm)
}

// memQueue models the reconcile queue's visibility semantics: Dequeue peeks
// the head and Delete pops it, so an undeleted message reappears.
type memQueue struct {
	mu   sync.Mutex
	cmds []domain.ReconcileCommand
}

func (q *memQueue) Enqueue(_ context.Context, cmd domain.ReconcileCommand) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cmds = append(q.cmds, cmd)
	return nil
}

func (q *memQueue) Dequeue(_ context.Context) (*domain.ReconcileMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.cmds) == 0 {
		return nil, nil
	}
	return &domain.ReconcileMessage{Cmd: q.cmds[0], MessageID: "head"}, nil
}

func (q *memQueue) Delete(_ context.Context, _ *domain.ReconcileMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.cmds) > 0 {
		q.cmds = q.cmds[1:]
	}
	return nil
}

func (q *memQueue) commands() []domain.ReconcileCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.ReconcileCommand, len(q.cmds))
	copy(out, q.cmds)
	return out
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func seedUser(m *memStore, id string) {
	m.users[id] = domain.User{ID: id, FullName: "User " + id, Email: id + "@example.com", CreatedAt: time.Now().UTC()}
}
