package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/wrenkin/repochat-backend/internal/domain"
	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
	"github.com/wrenkin/repochat-backend/internal/pkg/ctxutil"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/platform/gemini"
	ghplatform "github.com/wrenkin/repochat-backend/internal/platform/github"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func requestCtx(userID uuid.UUID) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{
		TokenString: "jwt",
		UserID:      userID,
		GithubID:    "9000",
		Username:    "octocat",
		GithubToken: "gho_test",
	})
}

// -------------------- state repo --------------------

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[uuid.UUID]*types.RepoIndexState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: map[uuid.UUID]*types.RepoIndexState{}}
}

func (f *fakeStateRepo) Create(ctx context.Context, tx *gorm.DB, state *types.RepoIndexState) (*types.RepoIndexState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.states {
		if s.UserID == state.UserID && s.Owner == state.Owner && s.Name == state.Name {
			return nil, fmt.Errorf("duplicate index state")
		}
	}
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	cp := *state
	f.states[state.ID] = &cp
	return state, nil
}

func (f *fakeStateRepo) GetByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, owner, name string) (*types.RepoIndexState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.states {
		if s.UserID == userID && s.Owner == owner && s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeStateRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.RepoIndexState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.RepoIndexState
	for _, s := range f.states {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (f *fakeStateRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "status":
			s.Status = v.(string)
		case "last_error":
			s.LastError = v.(string)
		case "last_indexed":
			s.LastIndexed = v.(time.Time)
		case "progress_current":
			s.ProgressCurrent = v.(int)
		case "progress_total":
			s.ProgressTotal = v.(int)
		case "progress_failed":
			s.ProgressFailed = v.(int)
		case "progress_updated_at":
			s.ProgressUpdatedAt = v.(time.Time)
		}
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStateRepo) ClaimForIndexing(ctx context.Context, tx *gorm.DB, id uuid.UUID, staleBefore, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[id]
	if !ok {
		return false, nil
	}
	if s.Status == types.IndexStatusIndexing && !s.ProgressUpdatedAt.Before(staleBefore) {
		return false, nil
	}
	s.Status = types.IndexStatusIndexing
	s.LastError = ""
	s.LastIndexed = now
	s.ProgressCurrent = 0
	s.ProgressTotal = 0
	s.ProgressFailed = 0
	s.ProgressUpdatedAt = now
	s.UpdatedAt = now
	return true, nil
}

func (f *fakeStateRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, id)
	return nil
}

func (f *fakeStateRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.states {
		if s.UserID == userID {
			delete(f.states, id)
		}
	}
	return nil
}

func (f *fakeStateRepo) get(id uuid.UUID) *types.RepoIndexState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// -------------------- vector repo --------------------

type fakeVectorRepo struct {
	mu      sync.Mutex
	records map[string]*types.VectorRecord
}

func newFakeVectorRepo() *fakeVectorRepo {
	return &fakeVectorRepo{records: map[string]*types.VectorRecord{}}
}

func vectorKey(userID uuid.UUID, repoID, path string) string {
	return userID.String() + "|" + repoID + "|" + path
}

func (f *fakeVectorRepo) Upsert(ctx context.Context, tx *gorm.DB, record *types.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	cp := *record
	f.records[vectorKey(record.UserID, record.RepoID, record.FilePath)] = &cp
	return nil
}

func (f *fakeVectorRepo) ListByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string) ([]*types.VectorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.VectorRecord
	for _, r := range f.records {
		if r.UserID == userID && r.RepoID == repoID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out, nil
}

func (f *fakeVectorRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.VectorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.VectorRecord
	for _, r := range f.records {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeVectorRepo) CountByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string) (int64, error) {
	rows, _ := f.ListByUserRepo(ctx, tx, userID, repoID)
	return int64(len(rows)), nil
}

func (f *fakeVectorRepo) ListRecentByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string, limit int) ([]*types.VectorRecord, error) {
	rows, _ := f.ListByUserRepo(ctx, tx, userID, repoID)
	sort.Slice(rows, func(i, j int) bool { return rows[i].LastModified.After(rows[j].LastModified) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeVectorRepo) DeleteByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, r := range f.records {
		if r.UserID == userID && r.RepoID == repoID {
			delete(f.records, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeVectorRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, r := range f.records {
		if r.UserID == userID {
			delete(f.records, k)
			n++
		}
	}
	return n, nil
}

// -------------------- chat repo --------------------

type fakeChatRepo struct {
	mu       sync.Mutex
	messages []*types.ChatMessage
}

func (f *fakeChatRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.ChatMessage) (*types.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	cp := *msg
	f.messages = append(f.messages, &cp)
	return msg, nil
}

func (f *fakeChatRepo) ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []*types.ChatMessage
	for _, m := range f.messages {
		if m.UserID == userID {
			cp := *m
			mine = append(mine, &cp)
		}
	}
	if limit > 0 && len(mine) > limit {
		mine = mine[len(mine)-limit:]
	}
	return mine, nil
}

func (f *fakeChatRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*types.ChatMessage
	for _, m := range f.messages {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	return nil
}

func (f *fakeChatRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*types.ChatMessage
	var removed int64
	for _, m := range f.messages {
		if m.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	f.messages = kept
	return removed, nil
}

// -------------------- user repo --------------------

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*types.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range users {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		cp := *u
		f.users[u.ID] = &cp
	}
	return users, nil
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.User
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetByGithubIDs(ctx context.Context, tx *gorm.DB, githubIDs []string) ([]*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.User
	for _, gid := range githubIDs {
		for _, u := range f.users {
			if u.GithubID == gid {
				cp := *u
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) UpdateAccessToken(ctx context.Context, tx *gorm.DB, userID uuid.UUID, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.AccessToken = accessToken
	}
	return nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, tx *gorm.DB, userID uuid.UUID, username, email, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.Username = username
		u.Email = email
		u.AvatarURL = avatarURL
	}
	return nil
}

// -------------------- github --------------------

type fakeGithubClient struct {
	account    *ghplatform.Account
	files      map[string]string
	fileOrder  []string
	listErr    error
	fetchFails map[string]error
}

type fakeGithubFactory struct {
	client *fakeGithubClient
}

func (f *fakeGithubFactory) ForToken(token string) ghplatform.Client { return f.client }

func (c *fakeGithubClient) GetAuthenticatedUser(ctx context.Context) (*ghplatform.Account, error) {
	if c.account == nil {
		return nil, apperr.ErrUnauthorized
	}
	return c.account, nil
}

func (c *fakeGithubClient) ListUserRepos(ctx context.Context) ([]ghplatform.Repo, error) {
	return []ghplatform.Repo{{ID: 1, Owner: "octo", Name: "hello-world", FullName: "octo/hello-world"}}, nil
}

func (c *fakeGithubClient) ListProcessableFiles(ctx context.Context, owner, repo string) ([]ghplatform.TreeFile, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	out := make([]ghplatform.TreeFile, 0, len(c.fileOrder))
	for _, path := range c.fileOrder {
		out = append(out, ghplatform.TreeFile{Path: path, SizeBytes: int64(len(c.files[path]))})
	}
	return out, nil
}

func (c *fakeGithubClient) FetchFileContent(ctx context.Context, owner, repo, path string) (string, error) {
	if err, ok := c.fetchFails[path]; ok {
		return "", err
	}
	content, ok := c.files[path]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return content, nil
}

// -------------------- gemini --------------------

type fakeAI struct {
	mu         sync.Mutex
	embedFails map[string]error
	chatErr    error
	chatReply  string
	chatCalls  []string
	genErr     error
	genReply   string
	genCalls   []string
	embedCalls int
}

// Embed derives a deterministic 3-dim vector from the text so different
// inputs rank differently.
func (f *fakeAI) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	for needle, err := range f.embedFails {
		if strings.Contains(text, needle) {
			return nil, err
		}
	}
	var sum float32
	for _, r := range text {
		sum += float32(r % 13)
	}
	return []float32{1, sum / (sum + 1), float32(len(text)%7) / 7}, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls = append(f.genCalls, prompt)
	if f.genErr != nil {
		return "", f.genErr
	}
	if f.genReply != "" {
		return f.genReply, nil
	}
	return "a short description", nil
}

func (f *fakeAI) Chat(ctx context.Context, history []gemini.Turn, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls = append(f.chatCalls, prompt)
	if f.chatErr != nil {
		return "", f.chatErr
	}
	if f.chatReply != "" {
		return f.chatReply, nil
	}
	return "assistant reply", nil
}
