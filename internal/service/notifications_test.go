package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/push"
	"github.com/mmeshcher/wonderland/internal/repository"
	"github.com/mmeshcher/wonderland/internal/validation"
)

func TestNotify(t *testing.T) {
	pub := &recordingPublisher{}
	svc, repo := newTestService(t, WithPublisher(pub), WithPush(&stubSender{}))

	n, err := svc.Notify(context.Background(), NotifyInput{UserID: "user-1", Title: "Hello", Message: "Welcome", Link: "/promo"})
	require.NoError(t, err)
	assert.Equal(t, model.NotificationSystem, n.Type)
	assert.False(t, n.Read)

	assert.Len(t, repo.notificationsFor("user-1"), 1)
	require.Len(t, repo.outbox, 1)
	assert.Equal(t, n.ID, repo.outbox[0].notificationID)
	require.Len(t, pub.published(), 1)
	assert.Equal(t, n.ID, pub.published()[0].ID)
}

func TestNotify_Validation(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.Notify(context.Background(), NotifyInput{UserID: "user-1", Type: "spam"})
	var vErr *validation.Error
	require.True(t, errors.As(err, &vErr))
	assert.ElementsMatch(t, []string{"title", "message", "type"}, vErr.Fields)

	_, err = svc.Notify(context.Background(), NotifyInput{UserID: "user-1", Title: "t", Message: "m", Data: []byte("{")})
	assert.True(t, validation.IsError(err))
	assert.Empty(t, repo.notifications)
}

func TestNotificationsOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	own, err := svc.Notify(ctx, NotifyInput{UserID: "user-1", Title: "t", Message: "m"})
	require.NoError(t, err)
	adminNote, err := svc.Notify(ctx, NotifyInput{UserID: model.AdminRecipient, Title: "t", Message: "m"})
	require.NoError(t, err)

	_, err = svc.ListNotifications(ctx, otherActor, "user-1", false)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ListNotifications(ctx, userActor, model.AdminRecipient, false)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, svc.MarkNotificationRead(ctx, otherActor, own.ID), ErrForbidden)
	assert.ErrorIs(t, svc.DeleteNotification(ctx, userActor, adminNote.ID), ErrForbidden)
	_, err = svc.MarkAllNotificationsRead(ctx, otherActor, "user-1")
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.MarkNotificationRead(ctx, adminActor, adminNote.ID))
	assert.ErrorIs(t, svc.MarkNotificationRead(ctx, userActor, "missing"), repository.ErrNotFound)
}

func TestNotificationsListAndMark(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := range 3 {
		n, err := svc.Notify(ctx, NotifyInput{UserID: "user-1", Title: fmt.Sprintf("t%d", i), Message: "m"})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	list, err := svc.ListNotifications(ctx, userActor, "user-1", false)
	require.NoError(t, err)
	require.Len(t, list.Notifications, 3)
	assert.Equal(t, "t2", list.Notifications[0].Title)
	assert.Equal(t, 3, list.UnreadCount)

	require.NoError(t, svc.MarkNotificationRead(ctx, userActor, ids[0]))
	unread, err := svc.ListNotifications(ctx, userActor, "user-1", true)
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 2)
	assert.Equal(t, 2, unread.UnreadCount)

	n, err := svc.MarkAllNotificationsRead(ctx, userActor, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, svc.DeleteNotification(ctx, userActor, ids[1]))
	assert.Len(t, repo.notificationsFor("user-1"), 2)

	empty, err := svc.ListNotifications(ctx, userActor, "user-1", true)
	require.NoError(t, err)
	assert.NotNil(t, empty.Notifications)
	assert.Zero(t, empty.UnreadCount)
}

func TestSubscribePush(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sub := model.PushSubscription{Endpoint: "https://push.example/1", P256dh: "k", Auth: "a", UserID: "spoofed"}
	require.NoError(t, svc.SubscribePush(ctx, userActor, sub))
	assert.Equal(t, "user-1", repo.subs[sub.Endpoint].UserID)
	assert.Equal(t, model.RoleUser, repo.subs[sub.Endpoint].Role)

	require.NoError(t, svc.SubscribePush(ctx, adminActor, model.PushSubscription{Endpoint: "https://push.example/2", P256dh: "k", Auth: "a"}))
	assert.Equal(t, model.RoleAdmin, repo.subs["https://push.example/2"].Role)

	err := svc.SubscribePush(ctx, userActor, model.PushSubscription{Endpoint: "x"})
	assert.True(t, validation.IsError(err))

	require.NoError(t, svc.UnsubscribePush(ctx, sub.Endpoint))
	assert.NotContains(t, repo.subs, sub.Endpoint)
}

func TestPushRelay(t *testing.T) {
	sender := &stubSender{errs: map[string]error{
		"https://push.example/gone":   push.ErrGone,
		"https://push.example/broken": errors.New("timeout"),
	}}
	svc, repo := newTestService(t, WithPush(sender))
	ctx := context.Background()

	for _, s := range []model.PushSubscription{
		{Endpoint: "https://push.example/admin-ok", UserID: "admin-1", Role: model.RoleAdmin},
		{Endpoint: "https://push.example/gone", UserID: "admin-2", Role: model.RoleAdmin},
		{Endpoint: "https://push.example/broken", UserID: "admin-3", Role: model.RoleAdmin},
		{Endpoint: "https://push.example/user", UserID: "user-1", Role: model.RoleUser},
	} {
		require.NoError(t, repo.SavePushSubscription(ctx, &s))
	}

	o := createTestOrder(t, svc)
	require.Len(t, repo.outbox, 1)

	svc.processPushBatch(ctx)

	assert.ElementsMatch(t, []string{
		"https://push.example/admin-ok",
		"https://push.example/broken",
		"https://push.example/gone",
	}, sender.calls)
	assert.NotContains(t, repo.subs, "https://push.example/gone")
	assert.Contains(t, repo.subs, "https://push.example/broken")
	assert.Equal(t, "done", repo.outboxStatus(repo.outbox[0].id))

	_, err := svc.UpdateOrderStatus(ctx, UpdateStatusInput{OrderID: o.ID, Status: model.OrderStatusConfirmed})
	require.NoError(t, err)
	sender.calls = nil
	svc.processPushBatch(ctx)
	assert.Equal(t, []string{"https://push.example/user"}, sender.calls)
}

func TestPushRelay_RetriesWhenAllFail(t *testing.T) {
	sender := &stubSender{errs: map[string]error{"https://push.example/u": errors.New("unreachable")}}
	svc, repo := newTestService(t, WithPush(sender))
	ctx := context.Background()
	require.NoError(t, repo.SavePushSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/u", UserID: "user-1"}))

	_, err := svc.Notify(ctx, NotifyInput{UserID: "user-1", Title: "t", Message: "m"})
	require.NoError(t, err)
	id := repo.outbox[0].id

	for range pushMaxAttempts - 1 {
		svc.processPushBatch(ctx)
		assert.Equal(t, "pending", repo.outboxStatus(id))
	}
	svc.processPushBatch(ctx)
	assert.Equal(t, "failed", repo.outboxStatus(id))
	assert.Len(t, sender.calls, pushMaxAttempts)
}

func TestPushRelay_ParallelBatchesDeliverOnce(t *testing.T) {
	sender := &stubSender{}
	svc, repo := newTestService(t, WithPush(sender))
	ctx := context.Background()
	require.NoError(t, repo.SavePushSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/u", UserID: "user-1"}))

	for range 5 {
		_, err := svc.Notify(ctx, NotifyInput{UserID: "user-1", Title: "t", Message: "m"})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.processPushBatch(ctx)
		}()
	}
	wg.Wait()

	assert.Len(t, sender.calls, 5)
	for _, row := range repo.outbox {
		assert.Equal(t, "done", repo.outboxStatus(row.id))
	}
}

func TestPushRelay_SkipsLeasedJobs(t *testing.T) {
	sender := &stubSender{}
	svc, repo := newTestService(t, WithPush(sender))
	ctx := context.Background()
	require.NoError(t, repo.SavePushSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/u", UserID: "user-1"}))

	_, err := svc.Notify(ctx, NotifyInput{UserID: "user-1", Title: "t", Message: "m"})
	require.NoError(t, err)

	// Запись уже забрал другой экземпляр.
	claimed, err := repo.ClaimPushJobs(ctx, pushBatchSize, pushLease)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	svc.processPushBatch(ctx)
	assert.Empty(t, sender.calls)
	assert.Equal(t, "pending", repo.outboxStatus(claimed[0].ID))
}

func TestStartPushRelay_StopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, WithPush(&stubSender{}))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartPushRelay(ctx, 0)
		close(done)
	}()
	cancel()
	<-done

	// Без отправителя цикл не запускается.
	plain, _ := newTestService(t)
	plain.StartPushRelay(context.Background(), 0)
}
