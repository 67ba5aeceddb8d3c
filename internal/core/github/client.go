package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// defaultHost is the public GitHub API host.
const defaultHost = "api.github.com"

// Doer issues one GraphQL query. *githubv4.Client satisfies it; tests
// substitute a fake.
type Doer interface {
	Query(ctx context.Context, q interface{}, variables map[string]interface{}) error
}

// NewClient builds a GraphQL client for the given host authenticated
// with token. An empty host means public GitHub.
func NewClient(ctx context.Context, host, token string) Doer {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, src)

	if host == "" || host == defaultHost {
		return githubv4.NewClient(httpClient)
	}
	return githubv4.NewEnterpriseClient(fmt.Sprintf("https://%s/graphql", host), httpClient)
}
