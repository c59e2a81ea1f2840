package access_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"realtime_chat_server/internal/model"
	"realtime_chat_server/internal/service/access"
	"realtime_chat_server/internal/testutil"
	"realtime_chat_server/pkg/errorx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	_, repos := testutil.NewRepos(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repos.Conversation.Create(ctx, &model.Conversation{
		Uuid: "C1", Type: model.ConversationGroup, Name: "g", CreatorId: "alice", IsActive: true, CreatedAt: now,
	}))
	member := func(user, role string) model.ConversationParticipant {
		return model.ConversationParticipant{
			ConversationId: "C1",
			UserId:         user,
			Role:           role,
			ActiveKey:      sql.NullString{String: model.ActiveKeyOf("C1", user), Valid: true},
			JoinedAt:       now,
		}
	}
	require.NoError(t, repos.Participant.CreateBatch(ctx, []model.ConversationParticipant{
		member("alice", model.RoleAdmin),
		member("bob", model.RoleMember),
		member("carol", model.RoleMember),
	}))
	_, err := repos.Participant.MarkLeft(ctx, "C1", "carol", now.Add(time.Minute))
	require.NoError(t, err)

	guard := access.NewGuard(repos.Participant)

	cases := []struct {
		user, conv string
		access     bool
		admin      bool
	}{
		{"alice", "C1", true, true},
		{"bob", "C1", true, false},
		{"carol", "C1", false, false},
		{"mallory", "C1", false, false},
		{"alice", "C404", false, false},
		{"", "C1", false, false},
		{"alice", "", false, false},
	}
	for _, tc := range cases {
		ok, err := guard.CanAccess(ctx, tc.user, tc.conv)
		require.NoError(t, err)
		assert.Equal(t, tc.access, ok, "access %s@%s", tc.user, tc.conv)

		ok, err = guard.IsAdmin(ctx, tc.user, tc.conv)
		require.NoError(t, err)
		assert.Equal(t, tc.admin, ok, "admin %s@%s", tc.user, tc.conv)

		p, err := guard.RequireAccess(ctx, tc.user, tc.conv)
		if tc.access {
			require.NoError(t, err)
			assert.Equal(t, tc.user, p.UserId)
		} else {
			assert.True(t, errorx.Is(err, errorx.CodeAccessDenied))
		}

		_, err = guard.RequireAdmin(ctx, tc.user, tc.conv)
		if tc.admin {
			assert.NoError(t, err)
		} else {
			assert.True(t, errorx.Is(err, errorx.CodeAccessDenied))
		}
	}
}
