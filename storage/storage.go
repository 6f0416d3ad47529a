package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

const (
	taskRowPrefix  = "task-"
	titleRowPrefix = "title-"

	// '.' is the next byte after '-', so [prefix, "task.") bounds all task rows.
	taskRowUpperBound = "task."

	mutateAttempts = 4
)

// Storage persists users, boards and tasks in Azure Table storage. Users and
// boards key partition and row by their own id; tasks are scoped under their
// board via the partition key, with title claim rows sharing the partition.
type Storage struct {
	users  *aztables.Client
	boards *aztables.Client
	tasks  *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, usersTable, boardsTable, tasksTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		users:  svc.NewClient(usersTable),
		boards: svc.NewClient(boardsTable),
		tasks:  svc.NewClient(tasksTable),
	}, nil
}

// --- users ---

func (s *Storage) GetUser(ctx context.Context, userID string) (domain.User, error) {
	raw, _, err := getEntity(ctx, s.users, "user", userID, userID)
	if err != nil {
		return domain.User{}, err
	}
	return decodeUser(raw)
}

func (s *Storage) InsertUser(ctx context.Context, u domain.User) error {
	data, err := encodeUser(u)
	if err != nil {
		return err
	}
	return insertEntity(ctx, s.users, "user", data)
}

func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	return deleteEntity(ctx, s.users, "user", userID, userID)
}

func (s *Storage) MutateUser(ctx context.Context, userID string, mutate func(*domain.User) error) (domain.User, error) {
	var out domain.User
	err := mutateEntity(ctx, s.users, "user", userID, userID, func(raw []byte) ([]byte, error) {
		u, err := decodeUser(raw)
		if err != nil {
			return nil, err
		}
		if err := mutate(&u); err != nil {
			return nil, err
		}
		out = u
		return encodeUser(u)
	})
	if err != nil {
		return domain.User{}, err
	}
	return out, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]domain.User, error) {
	pager := s.users.NewListEntitiesPager(nil)
	users := []domain.User{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "user")
		}
		for _, e := range resp.Entities {
			u, err := decodeUser(e)
			if err != nil {
				return nil, err
			}
			users = append(users, u)
		}
	}
	return users, nil
}

// --- boards ---

func (s *Storage) GetBoard(ctx context.Context, boardID string) (domain.Board, error) {
	raw, _, err := getEntity(ctx, s.boards, "board", boardID, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	return decodeBoard(raw)
}

func (s *Storage) InsertBoard(ctx context.Context, b domain.Board) error {
	data, err := encodeBoard(b)
	if err != nil {
		return err
	}
	return insertEntity(ctx, s.boards, "board", data)
}

func (s *Storage) DeleteBoard(ctx context.Context, boardID string) error {
	return deleteEntity(ctx, s.boards, "board", boardID, boardID)
}

func (s *Storage) MutateBoard(ctx context.Context, boardID string, mutate func(*domain.Board) error) (domain.Board, error) {
	var out domain.Board
	err := mutateEntity(ctx, s.boards, "board", boardID, boardID, func(raw []byte) ([]byte, error) {
		b, err := decodeBoard(raw)
		if err != nil {
			return nil, err
		}
		if err := mutate(&b); err != nil {
			return nil, err
		}
		out = b
		return encodeBoard(b)
	})
	if err != nil {
		return domain.Board{}, err
	}
	return out, nil
}

// --- tasks ---

func (s *Storage) GetTask(ctx context.Context, boardID, taskID string) (domain.Task, error) {
	raw, _, err := getEntity(ctx, s.tasks, "task", boardID, taskRowPrefix+taskID)
	if err != nil {
		return domain.Task{}, err
	}
	return decodeTask(raw)
}

func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	data, err := encodeTask(t)
	if err != nil {
		return err
	}
	return insertEntity(ctx, s.tasks, "task", data)
}

func (s *Storage) DeleteTask(ctx context.Context, boardID, taskID string) error {
	return deleteEntity(ctx, s.tasks, "task", boardID, taskRowPrefix+taskID)
}

func (s *Storage) MutateTask(ctx context.Context, boardID, taskID string, mutate func(*domain.Task) error) (domain.Task, error) {
	var out domain.Task
	err := mutateEntity(ctx, s.tasks, "task", boardID, taskRowPrefix+taskID, func(raw []byte) ([]byte, error) {
		t, err := decodeTask(raw)
		if err != nil {
			return nil, err
		}
		if err := mutate(&t); err != nil {
			return nil, err
		}
		out = t
		return encodeTask(t)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

func (s *Storage) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	filter := taskListFilter(boardID)
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "task")
		}
		for _, e := range resp.Entities {
			t, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func taskListFilter(boardID string) string {
	return fmt.Sprintf("PartitionKey eq '%s' and RowKey ge '%s' and RowKey lt '%s'",
		boardID, taskRowPrefix, taskRowUpperBound)
}

// --- title claims ---

type claimEntity struct {
	aztables.Entity
	TaskID string `json:"TaskID"`
}

// ClaimTitle records the normalized title with a create-only write. A 409
// from the table surfaces as domain.ErrExists.
func (s *Storage) ClaimTitle(ctx context.Context, boardID, normalizedTitle, taskID string) error {
	ent := claimEntity{
		Entity: aztables.Entity{PartitionKey: boardID, RowKey: titleRowKey(normalizedTitle)},
		TaskID: taskID,
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	return insertEntity(ctx, s.tasks, "title claim", data)
}

func (s *Storage) ReleaseTitle(ctx context.Context, boardID, normalizedTitle string) error {
	return deleteEntity(ctx, s.tasks, "title claim", boardID, titleRowKey(normalizedTitle))
}

// titleRowKey encodes the normalized title so arbitrary characters stay
// within the row key's allowed alphabet.
func titleRowKey(normalizedTitle string) string {
	return titleRowPrefix + base64.RawURLEncoding.EncodeToString([]byte(normalizedTitle))
}
