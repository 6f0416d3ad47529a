package storage

import (
	"context"
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

// errConflict marks an optimistic-concurrency miss inside a mutate loop; the
// loop re-reads and retries.
var errConflict = errors.New("write precondition failed")

// mapError translates a table response into the domain taxonomy: 404 becomes
// NotFound, 409 the create-only ErrExists sentinel, anything else (timeouts,
// throttling, outages) Unavailable.
func mapError(err error, what string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return domain.NotFoundf("%s not found", what)
		case http.StatusConflict:
			return domain.ErrExists
		case http.StatusPreconditionFailed:
			return errConflict
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.Unavailable(err, "%s: store request timed out", what)
	}
	return domain.Unavailable(err, "%s: store request failed", what)
}

func getEntity(ctx context.Context, c *aztables.Client, what, pk, rk string) ([]byte, azcore.ETag, error) {
	resp, err := c.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		return nil, "", mapError(err, what)
	}
	return resp.Value, resp.ETag, nil
}

func insertEntity(ctx context.Context, c *aztables.Client, what string, data []byte) error {
	if _, err := c.AddEntity(ctx, data, nil); err != nil {
		return mapError(err, what)
	}
	return nil
}

// deleteEntity is idempotent: deleting an absent entity is a no-op.
func deleteEntity(ctx context.Context, c *aztables.Client, what, pk, rk string) error {
	if _, err := c.DeleteEntity(ctx, pk, rk, nil); err != nil {
		mapped := mapError(err, what)
		if domain.IsCode(mapped, domain.CodeNotFound) {
			return nil
		}
		return mapped
	}
	return nil
}

// mutateEntity is the guarded read-modify-write primitive: read with ETag,
// apply, replace if-match. A precondition miss means a concurrent writer won;
// re-read and retry against fresh state.
func mutateEntity(ctx context.Context, c *aztables.Client, what, pk, rk string, apply func(raw []byte) ([]byte, error)) error {
	var lastErr error
	for attempt := 0; attempt < mutateAttempts; attempt++ {
		raw, etag, err := getEntity(ctx, c, what, pk, rk)
		if err != nil {
			return err
		}
		updated, err := apply(raw)
		if err != nil {
			return err
		}
		_, err = c.UpdateEntity(ctx, updated, &aztables.UpdateEntityOptions{
			IfMatch:    &etag,
			UpdateMode: aztables.UpdateModeReplace,
		})
		if err == nil {
			return nil
		}
		mapped := mapError(err, what)
		if !errors.Is(mapped, errConflict) {
			return mapped
		}
		lastErr = mapped
	}
	return domain.Unavailable(lastErr, "%s: too many concurrent updates", what)
}
