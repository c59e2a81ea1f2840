package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"realtime_chat_server/internal/dao/mysql/repository"
	"realtime_chat_server/internal/model"
	"realtime_chat_server/internal/testutil"
	"realtime_chat_server/pkg/errorx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func seedConversation(t *testing.T, repos *repository.Repositories, id string, users ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repos.Conversation.Create(ctx, &model.Conversation{
		Uuid: id, Type: model.ConversationGroup, Name: "g", CreatorId: users[0], IsActive: true, CreatedAt: base,
	}))
	var ps []model.ConversationParticipant
	for _, u := range users {
		ps = append(ps, model.ConversationParticipant{
			ConversationId: id,
			UserId:         u,
			Role:           model.RoleMember,
			ActiveKey:      sql.NullString{String: model.ActiveKeyOf(id, u), Valid: true},
			JoinedAt:       base,
		})
	}
	require.NoError(t, repos.Participant.CreateBatch(ctx, ps))
}

func seedMessage(t *testing.T, repos *repository.Repositories, id, conv, sender, content string, at time.Time) *model.Message {
	t.Helper()
	msg := &model.Message{
		Uuid: id, ConversationId: conv, SenderId: sender, Content: content,
		MessageType: model.MessageText, CreatedAt: at,
	}
	require.NoError(t, repos.Message.Create(context.Background(), msg))
	return msg
}

func TestFindPageUsesCompositeCursor(t *testing.T) {
	_, repos := testutil.NewRepos(t)
	ctx := context.Background()
	seedConversation(t, repos, "C1", "alice", "bob")

	// M2 与 M3 时间相同，靠 uuid 区分先后
	m1 := seedMessage(t, repos, "M1", "C1", "alice", "one", base.Add(time.Second))
	m2 := seedMessage(t, repos, "M2", "C1", "bob", "two", base.Add(2*time.Second))
	m3 := seedMessage(t, repos, "M3", "C1", "alice", "three", base.Add(2*time.Second))
	seedMessage(t, repos, "M4", "C1", "bob", "four", base.Add(3*time.Second))

	page, err := repos.Message.FindPage(ctx, "C1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "M4", page[0].Uuid)
	assert.Equal(t, "M3", page[1].Uuid)

	page, err = repos.Message.FindPage(ctx, "C1", m3, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, m2.Uuid, page[0].Uuid)
	assert.Equal(t, m1.Uuid, page[1].Uuid)

	require.NoError(t, repos.Message.SoftDelete(ctx, "M2", base.Add(time.Hour)))
	page, err = repos.Message.FindPage(ctx, "C1", m3, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "M1", page[0].Uuid)
}

func TestCountUnread(t *testing.T) {
	_, repos := testutil.NewRepos(t)
	ctx := context.Background()
	seedConversation(t, repos, "C1", "alice", "bob")
	seedConversation(t, repos, "C2", "alice", "carol")

	seedMessage(t, repos, "M1", "C1", "bob", "hi", base.Add(time.Second))
	seedMessage(t, repos, "M2", "C1", "bob", "there", base.Add(2*time.Second))
	seedMessage(t, repos, "M3", "C1", "alice", "mine", base.Add(3*time.Second))
	seedMessage(t, repos, "M4", "C2", "carol", "yo", base.Add(4*time.Second))
	require.NoError(t, repos.Message.SoftDelete(ctx, "M4", base.Add(5*time.Second)))

	rows, err := repos.Message.CountUnread(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, repository.UnreadCount{ConversationId: "C1", Unread: 2}, rows[0])

	require.NoError(t, repos.Participant.AdvanceLastRead(ctx, "C1", "alice", base.Add(time.Second)))
	rows, err = repos.Message.CountUnread(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0].Unread)

	// 已读位置不会后退
	require.NoError(t, repos.Participant.AdvanceLastRead(ctx, "C1", "alice", base))
	p, err := repos.Participant.FindActive(ctx, "C1", "alice")
	require.NoError(t, err)
	assert.True(t, p.LastReadAt.Time.Equal(base.Add(time.Second)))
}

func TestSearchEscapesWildcards(t *testing.T) {
	_, repos := testutil.NewRepos(t)
	ctx := context.Background()
	seedConversation(t, repos, "C1", "alice", "bob")
	seedConversation(t, repos, "C2", "carol", "dave")

	seedMessage(t, repos, "M1", "C1", "bob", "Deploy at 100% today", base.Add(time.Second))
	seedMessage(t, repos, "M2", "C1", "bob", "deploy tomorrow", base.Add(2*time.Second))
	seedMessage(t, repos, "M3", "C2", "carol", "deploy elsewhere", base.Add(3*time.Second))

	msgs, err := repos.Message.Search(ctx, "alice", "DEPLOY", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "M2", msgs[0].Uuid)
	assert.Equal(t, "C1", msgs[0].ConversationId)

	msgs, err = repos.Message.Search(ctx, "alice", "100%", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "M1", msgs[0].Uuid)

	msgs, err = repos.Message.Search(ctx, "alice", "_", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestActiveKeyPreventsDuplicateMembership(t *testing.T) {
	_, repos := testutil.NewRepos(t)
	ctx := context.Background()
	seedConversation(t, repos, "C1", "alice", "bob")

	err := repos.Participant.CreateBatch(ctx, []model.ConversationParticipant{{
		ConversationId: "C1", UserId: "bob", Role: model.RoleMember,
		ActiveKey: sql.NullString{String: model.ActiveKeyOf("C1", "bob"), Valid: true},
		JoinedAt:  base,
	}})
	require.Error(t, err)
	assert.True(t, repository.IsDuplicateKey(err))

	n, err := repos.Participant.MarkLeft(ctx, "C1", "bob", base.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = repos.Participant.MarkLeft(ctx, "C1", "bob", base.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = repos.Participant.FindActive(ctx, "C1", "bob")
	assert.True(t, errorx.IsNotFound(err))
}

func TestReadReceiptIsIdempotent(t *testing.T) {
	db, repos := testutil.NewRepos(t)
	ctx := context.Background()
	receipts := []model.ReadReceipt{{MessageId: "M1", UserId: "alice", ReadAt: base}}

	require.NoError(t, repos.ReadReceipt.CreateIgnoreConflict(ctx, receipts))
	require.NoError(t, repos.ReadReceipt.CreateIgnoreConflict(ctx, []model.ReadReceipt{{MessageId: "M1", UserId: "alice", ReadAt: base}}))

	var count int64
	require.NoError(t, db.Model(&model.ReadReceipt{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestTransactionRollsBack(t *testing.T) {
	_, repos := testutil.NewRepos(t)
	ctx := context.Background()

	err := repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Conversation.Create(ctx, &model.Conversation{
			Uuid: "C9", Type: model.ConversationGroup, CreatorId: "alice", IsActive: true, CreatedAt: base,
		}); err != nil {
			return err
		}
		return errorx.ErrServerBusy
	})
	require.ErrorIs(t, err, errorx.ErrServerBusy)

	_, err = repos.Conversation.FindByUuid(ctx, "C9")
	assert.True(t, errorx.IsNotFound(err))
}

func TestLockByUuidInsideTransaction(t *testing.T) {
	_, repos := testutil.NewRepos(t)
	ctx := context.Background()
	require.NoError(t, repos.Conversation.Create(ctx, &model.Conversation{
		Uuid: "C7", Type: model.ConversationGroup, CreatorId: "alice", IsActive: true, CreatedAt: time.Now().UTC(),
	}))

	err := repos.Transaction(ctx, func(tx *repository.Repositories) error {
		conv, err := tx.Conversation.LockByUuid(ctx, "C7")
		if err != nil {
			return err
		}
		assert.Equal(t, "alice", conv.CreatorId)
		_, err = tx.Conversation.LockByUuid(ctx, "C8")
		assert.True(t, errorx.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}

func TestPresenceConditionalUpdates(t *testing.T) {
	_, repos := testutil.NewRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Presence.Upsert(ctx, &model.PresenceRecord{
		UserId: "alice", Status: model.StatusOnline, ConnectionId: "c1",
		LastSeenAt: sql.NullTime{Time: base, Valid: true},
	}))

	stale, err := repos.Presence.FindStale(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	n, err := repos.Presence.SetOfflineIfStale(ctx, "alice", base.Add(time.Minute), base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repos.Presence.UpdateStatusIfOnline(ctx, "alice", model.StatusBusy, base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	records, err := repos.Presence.FindByUserIds(ctx, []string{"alice"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.StatusOffline, records[0].Status)
	assert.Empty(t, records[0].ConnectionId)
}
