package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gogithub "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/wrenkin/repochat-backend/internal/indexing"
	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
)

// Account is the subset of a GitHub user profile the backend cares about.
type Account struct {
	GithubID  string
	Username  string
	Email     string
	AvatarURL string
}

// Repo is a repository summary returned to the frontend repo picker.
type Repo struct {
	ID          int64  `json:"id"`
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Private     bool   `json:"private"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
	UpdatedAt   string `json:"updated_at"`
}

// TreeFile is one processable file discovered while walking a repo tree.
type TreeFile struct {
	Path      string
	SizeBytes int64
}

// Client wraps the GitHub API calls the backend needs, authenticated as
// one user.
type Client interface {
	GetAuthenticatedUser(ctx context.Context) (*Account, error)
	ListUserRepos(ctx context.Context) ([]Repo, error)
	ListProcessableFiles(ctx context.Context, owner, repo string) ([]TreeFile, error)
	FetchFileContent(ctx context.Context, owner, repo, path string) (string, error)
}

// Factory builds a Client bound to a user's OAuth token. Requests made
// through the client count against that user's rate limit.
type Factory interface {
	ForToken(token string) Client
}

type factory struct {
	log *logger.Logger
}

func NewFactory(baseLog *logger.Logger) Factory {
	return &factory{log: baseLog.With("platform", "github")}
}

func (f *factory) ForToken(token string) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &client{
		gh:  gogithub.NewClient(tc),
		log: f.log,
	}
}

type client struct {
	gh  *gogithub.Client
	log *logger.Logger
}

func (c *client) GetAuthenticatedUser(ctx context.Context) (*Account, error) {
	u, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, mapError(resp, err)
	}
	return &Account{
		GithubID:  strconv.FormatInt(u.GetID(), 10),
		Username:  u.GetLogin(),
		Email:     u.GetEmail(),
		AvatarURL: u.GetAvatarURL(),
	}, nil
}

func (c *client) ListUserRepos(ctx context.Context) ([]Repo, error) {
	opts := &gogithub.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var out []Repo
	for {
		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, mapError(resp, err)
		}
		for _, r := range repos {
			item := Repo{
				ID:          r.GetID(),
				Owner:       r.GetOwner().GetLogin(),
				Name:        r.GetName(),
				FullName:    r.GetFullName(),
				Description: r.GetDescription(),
				URL:         r.GetHTMLURL(),
				Private:     r.GetPrivate(),
				Language:    r.GetLanguage(),
				Stars:       r.GetStargazersCount(),
			}
			if ts := r.GetUpdatedAt(); !ts.IsZero() {
				item.UpdatedAt = ts.Format("2006-01-02T15:04:05Z07:00")
			}
			out = append(out, item)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListProcessableFiles walks the repo's default branch recursively and
// keeps files that pass the extension allow-list and size ceiling. An
// unreadable subtree skips its files rather than failing the walk.
func (c *client) ListProcessableFiles(ctx context.Context, owner, repo string) ([]TreeFile, error) {
	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, mapError(resp, err)
	}

	branch := r.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}

	tree, resp, err := c.gh.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return nil, mapError(resp, err)
	}
	if tree.GetTruncated() {
		c.log.Warn("GitHub tree listing truncated; indexing what was returned",
			"owner", owner, "repo", repo)
	}

	var files []TreeFile
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		size := int64(entry.GetSize())
		if size >= indexing.MaxFileSizeBytes {
			continue
		}
		if !indexing.IsProcessable(entry.GetPath()) {
			continue
		}
		files = append(files, TreeFile{Path: entry.GetPath(), SizeBytes: size})
	}
	return files, nil
}

func (c *client) FetchFileContent(ctx context.Context, owner, repo, path string) (string, error) {
	fc, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", mapError(resp, err)
	}
	if fc == nil {
		return "", fmt.Errorf("github: %q is not a file: %w", path, apperr.ErrInvalidArgument)
	}
	content, err := fc.GetContent()
	if err != nil {
		return "", fmt.Errorf("github: decode %q: %w", path, err)
	}
	return content, nil
}

func mapError(resp *gogithub.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("github: %w: %s", apperr.ErrNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("github: %w: %s", apperr.ErrUnauthorized, err)
		}
	}
	var rle *gogithub.RateLimitError
	if errors.As(err, &rle) {
		return fmt.Errorf("github: rate limited: %w", err)
	}
	return fmt.Errorf("github: %w", err)
}
