package jira

import (
	"context"
	"time"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
)

// api wraps the transport with the read retry policy. Writes go straight to
// the client and are never retried.
type api struct {
	client    *client.Client
	readRetry time.Duration
}

func newAPI(c *client.Client, readRetry time.Duration) *api {
	return &api{client: c, readRetry: readRetry}
}

func (a *api) get(ctx context.Context, family client.Family, endpoint string, query map[string]string, out interface{}) error {
	return client.Retry(ctx, a.readRetry, func() error {
		return a.client.Get(ctx, family, endpoint, query, out)
	})
}

// search posts a read-only query body (POST /search/jql is idempotent)
func (a *api) search(ctx context.Context, endpoint string, body, out interface{}) error {
	return client.Retry(ctx, a.readRetry, func() error {
		return a.client.Post(ctx, client.FamilyCore, endpoint, body, out)
	})
}

func (a *api) post(ctx context.Context, family client.Family, endpoint string, body, out interface{}) error {
	return a.client.Post(ctx, family, endpoint, body, out)
}

func (a *api) put(ctx context.Context, endpoint string, body interface{}) error {
	return a.client.Put(ctx, client.FamilyCore, endpoint, body, nil)
}
