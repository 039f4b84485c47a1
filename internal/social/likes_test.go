package social

import (
	"context"
	"sync"
	"testing"

	"vitamora/internal/models"
	"vitamora/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeSync_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("anonymous viewer never likes and cannot toggle", func(t *testing.T) {
		t.Parallel()
		store := noopStore()
		store.GetPostFn = func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, LikesCount: 3}, nil
		}
		store.IsLikedFn = func(context.Context, uint) (bool, error) {
			t.Fatal("IsLiked must not be called for anonymous viewers")
			return false, nil
		}
		notes := &RecordingNotifier{}
		l := NewLikeSync(1, session.Anonymous(), store, notes)

		view, err := l.Initialize(context.Background())
		require.NoError(t, err)
		assert.Equal(t, LikeView{Liked: false, DisplayCount: 3}, view)
		assert.False(t, l.CanToggle())

		_, err = l.Toggle(context.Background())
		assert.True(t, models.IsCode(err, models.CodeAuthenticationRequired))
		assert.Equal(t, view, l.View())
		assert.Empty(t, notes.Notes())
	})

	t.Run("count comes from the post row", func(t *testing.T) {
		t.Parallel()
		table := newLikeTable(7, 5)
		table.likers[7] = true
		l := NewLikeSync(1, session.Signed(7, "t"), table, nil)
		assert.Equal(t, StatusUnknown, l.Status())

		view, err := l.Initialize(context.Background())
		require.NoError(t, err)
		assert.Equal(t, LikeView{Liked: true, DisplayCount: 5}, view)
		assert.Equal(t, StatusLiked, l.Status())
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		l := NewLikeSync(1, session.Signed(7, "t"), newLikeTable(7, 2), nil)
		first, err := l.Initialize(context.Background())
		require.NoError(t, err)
		second, err := l.Initialize(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("store failure is reported", func(t *testing.T) {
		t.Parallel()
		store := noopStore()
		store.GetPostFn = func(context.Context, uint) (*models.Post, error) { return nil, errStore }
		notes := &RecordingNotifier{}
		l := NewLikeSync(1, session.Signed(7, "t"), store, notes)

		_, err := l.Initialize(context.Background())
		assert.True(t, models.IsCode(err, models.CodeRemote))
		assert.Equal(t, StatusUnknown, l.Status())
		require.Len(t, notes.Notes(), 1)
		assert.Equal(t, LevelError, notes.Notes()[0].Level)
	})
}

func TestLikeSync_ToggleScenario(t *testing.T) {
	t.Parallel()
	table := newLikeTable(7, 5)
	l := NewLikeSync(1, session.Signed(7, "t"), table, nil)
	_, err := l.Initialize(context.Background())
	require.NoError(t, err)

	view, err := l.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LikeView{Liked: true, DisplayCount: 6}, view)
	assert.Equal(t, 6, table.count)

	view, err = l.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LikeView{Liked: false, DisplayCount: 5}, view)
	assert.Equal(t, 5, table.count)
	assert.False(t, table.likers[7])
}

func TestLikeSync_ToggleParity(t *testing.T) {
	t.Parallel()
	for n := 1; n <= 7; n++ {
		table := newLikeTable(7, 0)
		l := NewLikeSync(1, session.Signed(7, "t"), table, nil)
		_, err := l.Initialize(context.Background())
		require.NoError(t, err)
		for range n {
			_, err := l.Toggle(context.Background())
			require.NoError(t, err)
		}
		assert.Equal(t, n%2 == 1, l.View().Liked, "after %d toggles", n)
		assert.Equal(t, n%2 == 1, table.likers[7])
	}
}

func TestLikeSync_OptimisticBeforeNetwork(t *testing.T) {
	t.Parallel()
	table := newLikeTable(7, 5)
	store := noopStore()
	store.GetPostFn = table.GetPost
	store.IsLikedFn = table.IsLiked

	var l *LikeSync
	store.SetLikeFn = func(ctx context.Context, postID uint, liked bool) (LikeResult, error) {
		assert.Equal(t, LikeView{Liked: true, DisplayCount: 6}, l.View())
		assert.Equal(t, StatusPending, l.Status())
		return table.SetLike(ctx, postID, liked)
	}
	l = NewLikeSync(1, session.Signed(7, "t"), store, nil)
	_, err := l.Initialize(context.Background())
	require.NoError(t, err)

	_, err = l.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusLiked, l.Status())
}

func TestLikeSync_FailureRevertsExactly(t *testing.T) {
	t.Parallel()
	store := noopStore()
	store.GetPostFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, LikesCount: 5}, nil
	}
	store.IsLikedFn = func(context.Context, uint) (bool, error) { return true, nil }
	store.SetLikeFn = func(context.Context, uint, bool) (LikeResult, error) { return LikeResult{}, errStore }
	notes := &RecordingNotifier{}
	l := NewLikeSync(1, session.Signed(7, "t"), store, notes)

	before, err := l.Initialize(context.Background())
	require.NoError(t, err)

	view, err := l.Toggle(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeRemote))
	assert.Equal(t, before, view)
	assert.Equal(t, before, l.View())
	assert.Equal(t, StatusLiked, l.Status())

	got := notes.Notes()
	require.Len(t, got, 1)
	assert.Equal(t, LevelError, got[0].Level)
	assert.Contains(t, got[0].Message, "Could not update like")
}

func TestLikeSync_ReconcilesToStoreCount(t *testing.T) {
	t.Parallel()
	store := noopStore()
	store.GetPostFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, LikesCount: 5}, nil
	}
	// Others liked the post in the meantime.
	store.SetLikeFn = func(_ context.Context, _ uint, liked bool) (LikeResult, error) {
		return LikeResult{Liked: liked, LikesCount: 9}, nil
	}
	l := NewLikeSync(1, session.Signed(7, "t"), store, nil)
	_, err := l.Initialize(context.Background())
	require.NoError(t, err)

	view, err := l.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LikeView{Liked: true, DisplayCount: 9}, view)
}

func TestLikeSync_ToggleBeforeInitialize(t *testing.T) {
	t.Parallel()
	store := noopStore()
	store.SetLikeFn = func(context.Context, uint, bool) (LikeResult, error) {
		t.Fatal("SetLike must not be called before Initialize")
		return LikeResult{}, nil
	}
	l := NewLikeSync(1, session.Signed(7, "t"), store, nil)

	_, err := l.Toggle(context.Background())
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Equal(t, StatusUnknown, l.Status())
}

func TestLikeSync_ToggleWhilePending(t *testing.T) {
	t.Parallel()
	store := newBlockingLikes(7, 0)
	l := NewLikeSync(1, session.Signed(7, "t"), store, nil)
	_, err := l.Initialize(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := l.Toggle(context.Background())
		assert.NoError(t, err)
	}()
	<-store.entered

	_, err = l.Toggle(context.Background())
	assert.True(t, models.IsCode(err, models.CodeConflict))

	// A pushed count does not overwrite the in-flight toggle.
	l.ApplyCount(40)
	assert.Equal(t, LikeView{Liked: true, DisplayCount: 1}, l.View())

	close(store.release)
	wg.Wait()
	assert.Equal(t, LikeView{Liked: true, DisplayCount: 1}, l.View())
	assert.Equal(t, 1, store.writes)
}

func TestLikeSync_CloseDuringToggle(t *testing.T) {
	t.Parallel()
	store := newBlockingLikes(7, 5)
	notes := &RecordingNotifier{}
	l := NewLikeSync(1, session.Signed(7, "t"), store, notes)
	_, err := l.Initialize(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := l.Toggle(context.Background())
		done <- err
	}()
	<-store.entered
	l.Close()
	close(store.release)

	assert.NoError(t, <-done)
	assert.Empty(t, notes.Notes())
	assert.False(t, l.CanToggle())

	_, err = l.Toggle(context.Background())
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestLikeSync_ApplyCount(t *testing.T) {
	t.Parallel()
	l := NewLikeSync(1, session.Signed(7, "t"), newLikeTable(7, 2), nil)

	l.ApplyCount(10)
	assert.Equal(t, StatusUnknown, l.Status(), "ignored before initialization")

	_, err := l.Initialize(context.Background())
	require.NoError(t, err)
	l.ApplyCount(10)
	assert.Equal(t, 10, l.View().DisplayCount)
	l.ApplyCount(-3)
	assert.Equal(t, 0, l.View().DisplayCount)
}

func TestLikeSync_ConcurrentUsersThroughLocalStore(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	author := w.user(t, "Author")
	post := w.post(t, author, "race me")

	a := w.user(t, "A")
	b := w.user(t, "B")
	syncs := []*LikeSync{
		NewLikeSync(post.ID, a, w.store(a), nil),
		NewLikeSync(post.ID, b, w.store(b), nil),
	}
	for _, l := range syncs {
		_, err := l.Initialize(context.Background())
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for _, l := range syncs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Toggle(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := w.posts.GetPost(context.Background(), post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.LikesCount)
	for _, l := range syncs {
		assert.True(t, l.View().Liked)
	}
}
