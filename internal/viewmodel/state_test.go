package viewmodel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-todo-app/internal/client"
	"go-todo-app/internal/models"
)

var errNetwork = errors.New("connection reset")

// fakeAPI はメモリ上のサーバーです。failOn に登録した操作はそのエラーを返します。
type fakeAPI struct {
	mu      sync.Mutex
	todos   []models.Todo
	nextID  int
	clock   time.Time
	failOn  map[string]error
	calls   []string
	release chan struct{}
}

func newFakeAPI(todos ...models.Todo) *fakeAPI {
	return &fakeAPI{
		todos:  todos,
		clock:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		failOn: map[string]error{},
	}
}

func (f *fakeAPI) wait() {
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeAPI) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakeAPI) List(ctx context.Context) ([]models.Todo, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneTodos(f.todos), nil
}

func (f *fakeAPI) Create(ctx context.Context, title string, description *string) (models.Todo, error) {
	f.wait()
	if err := f.record("create"); err != nil {
		return models.Todo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	t := models.Todo{ID: "srv-" + string(rune('0'+f.nextID)), Title: title, Description: description, CreatedAt: f.clock}
	f.todos = append([]models.Todo{t}, f.todos...)
	return t, nil
}

func (f *fakeAPI) MarkDone(ctx context.Context, id string) error {
	f.wait()
	return f.record("done")
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	f.wait()
	return f.record("delete")
}

func seed() []models.Todo {
	return []models.Todo{
		{ID: "1", Title: "A", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "2", Title: "B", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "3", Title: "C", CreatedAt: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
}

func loaded(t *testing.T, api *fakeAPI) *State {
	t.Helper()
	s := New(api)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func ids(todos []models.Todo) []string {
	out := make([]string, len(todos))
	for i, t := range todos {
		out[i] = t.ID
	}
	return out
}

func TestLoad(t *testing.T) {
	s := loaded(t, newFakeAPI(seed()...))

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, []string{"1", "2", "3"}, ids(snap.Todos))
}

func TestLoad_Failure(t *testing.T) {
	api := newFakeAPI(seed()...)
	api.failOn["list"] = errNetwork
	s := New(api)

	err := s.Load(context.Background())
	assert.ErrorIs(t, err, errNetwork)

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, MsgLoadFailed, snap.LastError)
	assert.Empty(t, snap.Todos)
}

func TestAdd_PlaceholderThenReconcile(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loaded(t, api)

	commit, err := s.Add("  New  ", "  note ")
	require.NoError(t, err)

	// サーバーの応答前に先頭へ追加される
	snap := s.Snapshot()
	require.Len(t, snap.Todos, 4)
	placeholder := snap.Todos[0]
	assert.True(t, IsPlaceholder(placeholder.ID))
	assert.Equal(t, "New", placeholder.Title)
	require.NotNil(t, placeholder.Description)
	assert.Equal(t, "note", *placeholder.Description)
	assert.False(t, placeholder.Done)
	assert.Equal(t, 1, snap.Pending)

	require.NoError(t, commit(context.Background()))

	snap = s.Snapshot()
	require.Len(t, snap.Todos, 4)
	assert.Equal(t, "srv-1", snap.Todos[0].ID)
	assert.Equal(t, "New", snap.Todos[0].Title)
	assert.Equal(t, []string{"srv-1", "1", "2", "3"}, ids(snap.Todos))
	for _, td := range snap.Todos {
		assert.False(t, IsPlaceholder(td.ID))
	}
	assert.Zero(t, snap.Pending)
	assert.Empty(t, snap.LastError)
}

func TestAdd_FailureRemovesPlaceholder(t *testing.T) {
	api := newFakeAPI(seed()...)
	api.failOn["create"] = &client.StatusError{StatusCode: 500, Message: "internal error"}
	s := loaded(t, api)
	before := s.Snapshot().Todos

	commit, err := s.Add("Doomed", "")
	require.NoError(t, err)
	placeholderID := s.Snapshot().Todos[0].ID

	err = commit(context.Background())
	var statusErr *client.StatusError
	assert.True(t, errors.As(err, &statusErr))

	snap := s.Snapshot()
	for _, td := range snap.Todos {
		assert.NotEqual(t, placeholderID, td.ID)
	}
	assert.Equal(t, before, snap.Todos)
	assert.Equal(t, MsgAddFailed, snap.LastError)
	assert.Zero(t, snap.Pending)
}

func TestAdd_EmptyTitleRejectedLocally(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loaded(t, api)

	commit, err := s.Add("   ", "description")
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.Nil(t, commit)
	assert.Len(t, s.Snapshot().Todos, 3)
	assert.NotContains(t, api.calls, "create")
}

func TestMarkDone_Success(t *testing.T) {
	s := loaded(t, newFakeAPI(seed()...))

	commit := s.MarkDone("2")
	assert.True(t, s.Snapshot().Todos[1].Done, "applied before the server answers")

	require.NoError(t, commit(context.Background()))
	snap := s.Snapshot()
	assert.True(t, snap.Todos[1].Done)
	assert.Empty(t, snap.LastError)
}

func TestMarkDone_FailureReverts(t *testing.T) {
	api := newFakeAPI(seed()...)
	// 既に完了しているTodoにもサーバーは 404 を返す
	api.failOn["done"] = &client.StatusError{StatusCode: 404, Message: "not found"}
	s := loaded(t, api)

	commit := s.MarkDone("2")
	require.Error(t, commit(context.Background()))

	snap := s.Snapshot()
	assert.False(t, snap.Todos[1].Done)
	assert.Equal(t, MsgUpdateFailed, snap.LastError)
	assert.Equal(t, seed(), snap.Todos)
}

func TestDelete_Success(t *testing.T) {
	s := loaded(t, newFakeAPI(seed()...))

	commit := s.Delete("2")
	assert.Equal(t, []string{"1", "3"}, ids(s.Snapshot().Todos))

	require.NoError(t, commit(context.Background()))
	assert.Equal(t, []string{"1", "3"}, ids(s.Snapshot().Todos))
}

func TestDelete_FailureRestoresSnapshot(t *testing.T) {
	api := newFakeAPI(seed()...)
	api.failOn["delete"] = errNetwork
	s := loaded(t, api)
	before := s.Snapshot().Todos

	commit := s.Delete("2")
	assert.ErrorIs(t, commit(context.Background()), errNetwork)

	snap := s.Snapshot()
	assert.Equal(t, before, snap.Todos, "order and content must match the pre-delete list")
	assert.Equal(t, MsgDeleteFailed, snap.LastError)
}

func TestDelete_FailureAfterAddSucceededKeepsServerTodo(t *testing.T) {
	api := newFakeAPI(seed()...)
	api.failOn["delete"] = errNetwork
	s := loaded(t, api)
	ctx := context.Background()

	addCommit, err := s.Add("D", "")
	require.NoError(t, err)
	deleteCommit := s.Delete("2")

	// 削除の失敗より先に追加が確定する
	require.NoError(t, addCommit(ctx))
	require.ErrorIs(t, deleteCommit(ctx), errNetwork)

	snap := s.Snapshot()
	assert.Equal(t, []string{"srv-1", "1", "2", "3"}, ids(snap.Todos))
	for _, td := range snap.Todos {
		assert.False(t, IsPlaceholder(td.ID), "placeholder %s must not survive", td.ID)
	}
	assert.Equal(t, "D", snap.Todos[0].Title)
	assert.Zero(t, snap.Pending)
	assert.Equal(t, MsgDeleteFailed, snap.LastError)
}

func TestDelete_FailureAfterAddFailedDropsPlaceholder(t *testing.T) {
	api := newFakeAPI(seed()...)
	api.failOn["create"] = errNetwork
	api.failOn["delete"] = errNetwork
	s := loaded(t, api)
	ctx := context.Background()

	addCommit, err := s.Add("D", "")
	require.NoError(t, err)
	deleteCommit := s.Delete("2")

	require.Error(t, addCommit(ctx))
	require.Error(t, deleteCommit(ctx))

	snap := s.Snapshot()
	assert.Equal(t, []string{"1", "2", "3"}, ids(snap.Todos))
	assert.Zero(t, snap.Pending)
}

func TestDelete_FailureWithAddStillPendingKeepsPlaceholder(t *testing.T) {
	api := newFakeAPI(seed()...)
	api.failOn["delete"] = errNetwork
	s := loaded(t, api)
	ctx := context.Background()

	addCommit, err := s.Add("D", "")
	require.NoError(t, err)
	placeholderID := s.Snapshot().Todos[0].ID

	require.Error(t, s.Delete("2")(ctx))
	snap := s.Snapshot()
	assert.Equal(t, []string{placeholderID, "1", "2", "3"}, ids(snap.Todos))

	// 追加が確定すればプレースホルダーはサーバーのTodoに置き換わる
	require.NoError(t, addCommit(ctx))
	assert.Equal(t, []string{"srv-1", "1", "2", "3"}, ids(s.Snapshot().Todos))
}

func TestNewMutationClearsLastError(t *testing.T) {
	api := newFakeAPI(seed()...)
	api.failOn["delete"] = errNetwork
	s := loaded(t, api)

	require.Error(t, s.Delete("1")(context.Background()))
	require.NotEmpty(t, s.Snapshot().LastError)

	s.MarkDone("1")
	assert.Empty(t, s.Snapshot().LastError)
}

func TestConcurrentCommits(t *testing.T) {
	api := newFakeAPI(seed()...)
	s := loaded(t, api)
	api.release = make(chan struct{})

	addCommit, err := s.Add("D", "")
	require.NoError(t, err)
	doneCommit := s.MarkDone("1")
	deleteCommit := s.Delete("3")

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Pending)
	require.Len(t, snap.Todos, 3)
	assert.True(t, IsPlaceholder(snap.Todos[0].ID))
	assert.True(t, snap.Todos[1].Done)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, c := range []Commit{addCommit, doneCommit, deleteCommit} {
		wg.Add(1)
		go func(i int, c Commit) {
			defer wg.Done()
			errs[i] = c(context.Background())
		}(i, c)
	}
	close(api.release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	snap = s.Snapshot()
	assert.Zero(t, snap.Pending)
	assert.Equal(t, []string{"srv-1", "1", "2"}, ids(snap.Todos))
	assert.True(t, snap.Todos[1].Done)
}

func TestSnapshotIsACopy(t *testing.T) {
	desc := "d"
	s := loaded(t, newFakeAPI(models.Todo{ID: "1", Title: "A", Description: &desc}))

	snap := s.Snapshot()
	snap.Todos[0].Title = "changed"
	*snap.Todos[0].Description = "changed"

	again := s.Snapshot()
	assert.Equal(t, "A", again.Todos[0].Title)
	assert.Equal(t, "d", *again.Todos[0].Description)
}
