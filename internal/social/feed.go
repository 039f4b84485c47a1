package social

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"vitamora/internal/models"
	"vitamora/internal/realtime"
)

const defaultFeedLimit = 50

// RefreshPolicy decides how the feed reacts to a pushed post change.
type RefreshPolicy int

const (
	// FullRefetch reloads the whole page on every insert or delete.
	FullRefetch RefreshPolicy = iota
	// PatchPolicy splices the pushed row in and fetches only its author.
	PatchPolicy
)

// FeedOptions configures a FeedView. The zero value is a full-refetch feed
// of defaultFeedLimit posts.
type FeedOptions struct {
	Policy RefreshPolicy
	Limit  int
	// OnChange receives the items after every change to the list. It runs on
	// the goroutine that applied the change.
	OnChange func([]*FeedItem)
}

// FeedItem is one post of the feed. Its LikeSync and CommentThread belong to
// this item only.
type FeedItem struct {
	mu       sync.RWMutex
	post     models.Post
	Likes    *LikeSync
	Comments *CommentThread
}

// Post returns a copy of the latest row.
func (i *FeedItem) Post() models.Post {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.post
}

func (i *FeedItem) setPost(p *models.Post) {
	i.mu.Lock()
	i.post = *p
	i.mu.Unlock()
	i.Likes.Seed(p)
	i.Comments.ApplyCount(p.CommentsCount)
}

func (i *FeedItem) setCounts(likes, comments *int) {
	i.mu.Lock()
	if likes != nil {
		i.post.LikesCount = *likes
	}
	if comments != nil {
		i.post.CommentsCount = *comments
	}
	i.mu.Unlock()
	if likes != nil {
		i.Likes.ApplyCount(*likes)
	}
	if comments != nil {
		i.Comments.ApplyCount(*comments)
	}
}

func (i *FeedItem) close() {
	i.Likes.Close()
	i.Comments.Close()
}

// FeedView is the newest-first list of posts, kept live from the realtime
// channel between Mount and Close.
type FeedView struct {
	store    Store
	channel  realtime.Subscriber
	session  Session
	notifier Notifier
	opts     FeedOptions

	refetchMu sync.Mutex

	mu      sync.Mutex
	items   []*FeedItem
	byID    map[uint]*FeedItem
	sub     realtime.Subscription
	mounted bool
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewFeedView returns an unmounted feed. A nil notifier logs.
func NewFeedView(store Store, channel realtime.Subscriber, session Session, notifier Notifier, opts FeedOptions) *FeedView {
	if opts.Limit <= 0 {
		opts.Limit = defaultFeedLimit
	}
	return &FeedView{
		store:    store,
		channel:  channel,
		session:  session,
		notifier: orLogNotifier(notifier),
		opts:     opts,
		byID:     make(map[uint]*FeedItem),
	}
}

// Mount subscribes to post changes and loads the first page. ctx bounds the
// lifetime of the subscription as well as the initial load.
func (v *FeedView) Mount(ctx context.Context) error {
	v.mu.Lock()
	switch {
	case v.closed:
		v.mu.Unlock()
		return ErrDisposed
	case v.mounted:
		v.mu.Unlock()
		return models.NewConflictError("Feed is already mounted")
	}
	v.mounted = true
	v.ctx, v.cancel = context.WithCancel(ctx)
	subCtx := v.ctx
	v.mu.Unlock()

	// Subscribe before loading so an insert between the two is not lost; the
	// duplicate it may cause is dropped by ID.
	if err := v.subscribe(subCtx); err != nil {
		if errors.Is(err, ErrDisposed) {
			return err
		}
		err = remoteError(err)
		v.notifier.Notify(LevelError, "Live updates are unavailable: "+message(err))
		v.Close()
		return err
	}

	if err := v.Refresh(subCtx); err != nil {
		v.Close()
		return err
	}
	return nil
}

// Refresh reloads the first page. Items still present keep their LikeSync
// and CommentThread, so in-flight toggles survive a reload.
func (v *FeedView) Refresh(ctx context.Context) error {
	v.refetchMu.Lock()
	defer v.refetchMu.Unlock()

	if v.isClosed() {
		return ErrDisposed
	}
	posts, err := v.store.ListPosts(ctx, v.opts.Limit, 0)
	if err != nil {
		if v.isClosed() {
			return nil
		}
		err = remoteError(err)
		v.notifier.Notify(LevelError, "Could not load posts: "+message(err))
		return err
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	next := make([]*FeedItem, 0, len(posts))
	byID := make(map[uint]*FeedItem, len(posts))
	for _, p := range posts {
		if _, dup := byID[p.ID]; dup {
			continue
		}
		item, ok := v.byID[p.ID]
		if ok {
			item.setPost(p)
		} else {
			item = v.newItem(p)
		}
		next = append(next, item)
		byID[p.ID] = item
	}
	var dropped []*FeedItem
	for id, item := range v.byID {
		if _, ok := byID[id]; !ok {
			dropped = append(dropped, item)
		}
	}
	v.items, v.byID = next, byID
	snapshot := slices.Clone(v.items)
	v.mu.Unlock()

	for _, item := range dropped {
		item.close()
	}
	v.changed(snapshot)
	return nil
}

// Items returns the current list, newest first.
func (v *FeedView) Items() []*FeedItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.items)
}

// Item returns the item for postID, or nil.
func (v *FeedView) Item(postID uint) *FeedItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.byID[postID]
}

// Close unsubscribes from the realtime channel and disposes every item.
// Results that arrive afterwards are dropped. Close may be called repeatedly.
func (v *FeedView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	sub := v.sub
	items := v.items
	v.sub, v.items, v.byID = nil, nil, map[uint]*FeedItem{}
	cancel := v.cancel
	v.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	for _, item := range items {
		item.close()
	}
	if cancel != nil {
		cancel()
	}
}

func (v *FeedView) handle(change realtime.Change) {
	if v.isClosed() {
		return
	}
	ctx := v.context()

	switch change.Type {
	case realtime.EventResync:
		if change.ResyncReason() == realtime.ReasonDisconnected {
			v.resubscribe(ctx)
		}
		v.refreshQuietly(ctx)
	case realtime.EventUpdate:
		v.applyCounts(change)
	case realtime.EventInsert:
		if v.opts.Policy == PatchPolicy {
			v.patchInsert(ctx, change)
			return
		}
		v.refreshQuietly(ctx)
	case realtime.EventDelete:
		if v.opts.Policy == PatchPolicy {
			v.remove(change.RecordID())
			return
		}
		v.refreshQuietly(ctx)
	}
}

// subscribe registers for post changes and makes the new subscription the
// current one, releasing any previous subscription.
func (v *FeedView) subscribe(ctx context.Context) error {
	sub, err := v.channel.Subscribe(ctx, models.TablePosts,
		[]realtime.EventType{realtime.EventInsert, realtime.EventDelete, realtime.EventUpdate},
		v.handle)
	if err != nil {
		return err
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		sub.Unsubscribe()
		return ErrDisposed
	}
	prev := v.sub
	v.sub = sub
	v.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}
	return nil
}

// resubscribe replaces a subscription whose transport went away. The refetch
// that follows the RESYNC covers whatever changed in between.
func (v *FeedView) resubscribe(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := v.subscribe(ctx)
	if err == nil || errors.Is(err, ErrDisposed) || v.isClosed() {
		return
	}
	slog.Warn("realtime resubscribe failed", "table", models.TablePosts, "error", err)
	v.notifier.Notify(LevelWarning, "Live updates stopped: "+message(remoteError(err)))
}

func (v *FeedView) refreshQuietly(ctx context.Context) {
	// Refresh already notified; the list stays as it was.
	_ = v.Refresh(ctx)
}

func (v *FeedView) patchInsert(ctx context.Context, change realtime.Change) {
	id := change.RecordID()
	if id == 0 || v.Item(id) != nil {
		return
	}
	post, err := postFromRecord(change.Record)
	if err != nil {
		slog.Warn("unreadable post in realtime change, reloading feed", "error", err)
		v.refreshQuietly(ctx)
		return
	}
	author, err := v.store.GetProfile(ctx, post.AuthorID)
	if err != nil {
		slog.Warn("author lookup failed, reloading feed", "post_id", id, "error", err)
		v.refreshQuietly(ctx)
		return
	}
	post.Author = author
	post.Liked = false

	v.mu.Lock()
	if v.closed || v.byID[id] != nil {
		v.mu.Unlock()
		return
	}
	item := v.newItem(post)
	v.items = append(v.items, item)
	v.byID[id] = item
	slices.SortStableFunc(v.items, newestFirst)
	var trimmed []*FeedItem
	if len(v.items) > v.opts.Limit {
		trimmed = slices.Clone(v.items[v.opts.Limit:])
		v.items = v.items[:v.opts.Limit]
		for _, it := range trimmed {
			delete(v.byID, it.Post().ID)
		}
	}
	snapshot := slices.Clone(v.items)
	v.mu.Unlock()

	for _, it := range trimmed {
		it.close()
	}
	v.changed(snapshot)
}

func (v *FeedView) remove(id uint) {
	v.mu.Lock()
	item, ok := v.byID[id]
	if !ok || v.closed {
		v.mu.Unlock()
		return
	}
	delete(v.byID, id)
	v.items = slices.DeleteFunc(v.items, func(it *FeedItem) bool { return it == item })
	snapshot := slices.Clone(v.items)
	v.mu.Unlock()

	item.close()
	v.changed(snapshot)
}

func (v *FeedView) applyCounts(change realtime.Change) {
	item := v.Item(change.RecordID())
	if item == nil {
		return
	}
	var likes, comments *int
	if _, ok := change.Record["likes_count"]; ok {
		n := int(change.RecordUint("likes_count"))
		likes = &n
	}
	if _, ok := change.Record["comments_count"]; ok {
		n := int(change.RecordUint("comments_count"))
		comments = &n
	}
	if likes == nil && comments == nil {
		return
	}
	item.setCounts(likes, comments)
	v.changed(v.Items())
}

// newItem must be called with v.mu held.
func (v *FeedView) newItem(p *models.Post) *FeedItem {
	item := &FeedItem{
		post:     *p,
		Likes:    NewLikeSync(p.ID, v.session, v.store, v.notifier),
		Comments: NewCommentThread(p.ID, v.session, v.store, v.notifier),
	}
	item.Likes.Seed(p)
	item.Comments.ApplyCount(p.CommentsCount)
	return item
}

func (v *FeedView) changed(items []*FeedItem) {
	if v.opts.OnChange != nil && !v.isClosed() {
		v.opts.OnChange(items)
	}
}

func (v *FeedView) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *FeedView) context() context.Context {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ctx == nil {
		return context.Background()
	}
	return v.ctx
}

func newestFirst(a, b *FeedItem) int {
	pa, pb := a.Post(), b.Post()
	if c := pb.CreatedAt.Compare(pa.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(pb.ID, pa.ID)
}

// postFromRecord decodes the raw columns of a realtime change.
func postFromRecord(rec map[string]any) (*models.Post, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var p models.Post
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
