package service

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

var emailRegexp = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// Directory provides lookups over the users collection and first-login
// registration of provider identities.
type Directory struct {
	store    Store
	identity IdentityDeleter
	log      *log.Logger
	now      func() time.Time
}

// NewDirectory creates a directory. identity may be nil when no compensation
// hook is configured.
func NewDirectory(store Store, identity IdentityDeleter, logger *log.Logger) *Directory {
	return &Directory{
		store:    store,
		identity: identity,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates the user document for a provider identity on first login.
// Repeat registrations return the existing document. When the document write
// fails the provider identity is deleted as compensation; a failed
// compensation is logged, never raised, so the original error reaches the
// caller.
func (d *Directory) Register(ctx context.Context, actorID, fullName, email string) (domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return domain.User{}, domain.Validationf("full name must not be empty")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegexp.MatchString(email) {
		return domain.User{}, domain.Validationf("email must be a valid address")
	}

	u := domain.User{ID: actorID, FullName: fullName, Email: email, CreatedAt: d.now()}
	err := d.store.InsertUser(ctx, u)
	if err == nil {
		return u, nil
	}
	if errors.Is(err, domain.ErrExists) {
		return d.store.GetUser(ctx, actorID)
	}
	if d.identity != nil {
		if compErr := d.identity.DeleteIdentity(ctx, actorID); compErr != nil {
			d.log.WithError(compErr).WithField("user_id", actorID).Error("failed to roll back provider identity after registration failure")
		}
	}
	return domain.User{}, err
}

// Get returns the user document for userID.
func (d *Directory) Get(ctx context.Context, userID string) (domain.User, error) {
	return d.store.GetUser(ctx, userID)
}

// Search matches query case-insensitively against user names and emails,
// excluding the actor and any ids in excludeIDs (typically a board's current
// members). An empty query returns everyone not excluded. Results are sorted
// by name.
func (d *Directory) Search(ctx context.Context, actorID, query string, excludeIDs []string) ([]domain.User, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(excludeIDs)+1)
	skip[actorID] = struct{}{}
	for _, id := range excludeIDs {
		skip[id] = struct{}{}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if _, ok := skip[u.ID]; ok {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(u.FullName), q) &&
			!strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		u.Boards = nil // not the caller's business
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName == out[j].FullName {
			return out[i].ID < out[j].ID
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}
