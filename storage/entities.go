package storage

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

// Table entities carry timestamps as RFC 3339 strings and string sets as
// embedded JSON arrays; Azure Tables has no native list type.

type userEntity struct {
	aztables.Entity
	FullName  string `json:"FullName"`
	Email     string `json:"Email"`
	Boards    string `json:"Boards"`
	CreatedAt string `json:"CreatedAt"`
}

type boardEntity struct {
	aztables.Entity
	Name        string `json:"Name"`
	Description string `json:"Description"`
	CreatedBy   string `json:"CreatedBy"`
	Members     string `json:"Members"`
	CreatedAt   string `json:"CreatedAt"`
}

type taskEntity struct {
	aztables.Entity
	Title           string `json:"Title"`
	Description     string `json:"Description"`
	Status          string `json:"Status"`
	Deadline        string `json:"Deadline"`
	CreatedBy       string `json:"CreatedBy"`
	AssignedMembers string `json:"AssignedMembers"`
	CreatedAt       string `json:"CreatedAt"`
	UpdatedAt       string `json:"UpdatedAt"`
	CompletedAt     string `json:"CompletedAt"`
}

func encodeUser(u domain.User) ([]byte, error) {
	boards, err := encodeIDs(u.Boards)
	if err != nil {
		return nil, err
	}
	ent := userEntity{
		Entity:    aztables.Entity{PartitionKey: u.ID, RowKey: u.ID},
		FullName:  u.FullName,
		Email:     u.Email,
		Boards:    boards,
		CreatedAt: formatTime(u.CreatedAt),
	}
	return json.Marshal(ent)
}

func decodeUser(data []byte) (domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	boards, err := decodeIDs(ent.Boards)
	if err != nil {
		return domain.User{}, err
	}
	createdAt, err := parseTime(ent.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:        ent.RowKey,
		FullName:  ent.FullName,
		Email:     ent.Email,
		Boards:    boards,
		CreatedAt: createdAt,
	}, nil
}

func encodeBoard(b domain.Board) ([]byte, error) {
	members, err := encodeIDs(b.Members)
	if err != nil {
		return nil, err
	}
	ent := boardEntity{
		Entity:      aztables.Entity{PartitionKey: b.ID, RowKey: b.ID},
		Name:        b.Name,
		Description: b.Description,
		CreatedBy:   b.CreatedBy,
		Members:     members,
		CreatedAt:   formatTime(b.CreatedAt),
	}
	return json.Marshal(ent)
}

func decodeBoard(data []byte) (domain.Board, error) {
	var ent boardEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Board{}, err
	}
	members, err := decodeIDs(ent.Members)
	if err != nil {
		return domain.Board{}, err
	}
	createdAt, err := parseTime(ent.CreatedAt)
	if err != nil {
		return domain.Board{}, err
	}
	return domain.Board{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Description: ent.Description,
		CreatedBy:   ent.CreatedBy,
		Members:     members,
		CreatedAt:   createdAt,
	}, nil
}

func encodeTask(t domain.Task) ([]byte, error) {
	assigned, err := encodeIDs(t.AssignedMembers)
	if err != nil {
		return nil, err
	}
	ent := taskEntity{
		Entity:          aztables.Entity{PartitionKey: t.BoardID, RowKey: taskRowPrefix + t.ID},
		Title:           t.Title,
		Description:     t.Description,
		Status:          string(t.Status),
		Deadline:        formatTimePtr(t.Deadline),
		CreatedBy:       t.CreatedBy,
		AssignedMembers: assigned,
		CreatedAt:       formatTime(t.CreatedAt),
		UpdatedAt:       formatTime(t.UpdatedAt),
		CompletedAt:     formatTimePtr(t.CompletedAt),
	}
	return json.Marshal(ent)
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	assigned, err := decodeIDs(ent.AssignedMembers)
	if err != nil {
		return domain.Task{}, err
	}
	createdAt, err := parseTime(ent.CreatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	updatedAt, err := parseTime(ent.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	deadline, err := parseTimePtr(ent.Deadline)
	if err != nil {
		return domain.Task{}, err
	}
	completedAt, err := parseTimePtr(ent.CompletedAt)
	if err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:              strings.TrimPrefix(ent.RowKey, taskRowPrefix),
		BoardID:         ent.PartitionKey,
		Title:           ent.Title,
		Description:     ent.Description,
		Status:          domain.TaskStatus(ent.Status),
		Deadline:        deadline,
		CreatedBy:       ent.CreatedBy,
		AssignedMembers: assigned,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
		CompletedAt:     completedAt,
	}, nil
}

func encodeIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeIDs(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func parseTimePtr(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
