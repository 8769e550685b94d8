package notify

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/database"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "stockdata"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.New(db, zerolog.Nop())
	require.NoError(t, st.Migrate())
	return New(st, zerolog.Nop())
}

func TestPublish_PersistsAndBroadcastsToSubscriber(t *testing.T) {
	svc := newTestService(t)
	ch, unsubscribe := svc.Subscribe("u1")
	defer unsubscribe()

	err := svc.Publish(context.Background(), "u1", domain.Notification{
		Type: domain.NotificationAnalysis, Title: "done", Severity: domain.SeverityInfo,
	})
	require.NoError(t, err)

	select {
	case n := <-ch:
		assert.Equal(t, "done", n.Title)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast notification")
	}

	list, err := svc.List(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "done", list[0].Title)
}

func TestPublish_WithNoSubscriberStillPersists(t *testing.T) {
	svc := newTestService(t)
	err := svc.Publish(context.Background(), "u2", domain.Notification{Title: "quiet", Severity: domain.SeverityInfo})
	require.NoError(t, err)

	unread, err := svc.CountUnread(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestMarkRead_IsIdempotent(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Publish(context.Background(), "u3", domain.Notification{ID: "n1", Title: "a", Severity: domain.SeverityInfo}))

	require.NoError(t, svc.MarkRead(context.Background(), "u3", "n1"))
	require.NoError(t, svc.MarkRead(context.Background(), "u3", "n1"))

	unread, err := svc.CountUnread(context.Background(), "u3")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestMarkAllRead_ClearsEveryUnread(t *testing.T) {
	svc := newTestService(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Publish(context.Background(), "u4", domain.Notification{Title: "a", Severity: domain.SeverityInfo}))
	}

	n, err := svc.MarkAllRead(context.Background(), "u4")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestHub_SlowSubscriberDropsRatherThanBlocksPublisher(t *testing.T) {
	h := newHub()
	ch, unsubscribe := h.subscribe("u5")
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		h.broadcast("u5", domain.Notification{Title: "x"})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestHub_MultipleSubscribersForSameUserBothReceive(t *testing.T) {
	h := newHub()
	ch1, unsub1 := h.subscribe("u6")
	defer unsub1()
	ch2, unsub2 := h.subscribe("u6")
	defer unsub2()

	h.broadcast("u6", domain.Notification{Title: "fanout"})

	select {
	case n := <-ch1:
		assert.Equal(t, "fanout", n.Title)
	default:
		t.Fatal("ch1 did not receive broadcast")
	}
	select {
	case n := <-ch2:
		assert.Equal(t, "fanout", n.Title)
	default:
		t.Fatal("ch2 did not receive broadcast")
	}
}
