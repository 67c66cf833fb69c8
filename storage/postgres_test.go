package storage_test

import (
	"context"
	"os"
	"skillduels/domain"
	"skillduels/migrations"
	"skillduels/storage"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var repo *storage.PostgresRepo

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testusername"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	if err := migrations.Migrate(connString); err != nil {
		panic(err)
	}

	repo, err = storage.NewPostgresRepo(ctx, connString)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	repo.Close()
	postgresContainer.Terminate(ctx)
	os.Exit(code)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateUser", func(t *testing.T) {
		id, err := repo.CreateUser(ctx, "oussama", "hashed_secret", "")
		assert.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("CreateUser_Duplicate", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, "oussama", "new_hash", "")
		assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
	})

	t.Run("CreateUser_DuplicateWallet", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, "wallet_one", "h", "0xabc")
		require.NoError(t, err)
		_, err = repo.CreateUser(ctx, "wallet_two", "h", "0xabc")
		assert.ErrorIs(t, err, domain.ErrDuplicateWallet)
	})

	t.Run("GetUserByUsername", func(t *testing.T) {
		user, err := repo.GetUserByUsername(ctx, "oussama")
		assert.NoError(t, err)
		assert.Equal(t, "oussama", user.Username)
		assert.Equal(t, "hashed_secret", user.PasswordHash)
		assert.Empty(t, user.WalletAddress)
		assert.Zero(t, user.TotalMatches)
		assert.NotEmpty(t, user.Id)
	})

	t.Run("GetUserByUsername_NotFound", func(t *testing.T) {
		_, err := repo.GetUserByUsername(ctx, "ghost_user")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("GetUserById", func(t *testing.T) {
		id, err := repo.CreateUser(ctx, "tester2", "hash2", "0xdef")
		require.NoError(t, err)

		user, err := repo.GetUserById(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, "hash2", user.PasswordHash)
		assert.Equal(t, "tester2", user.Username)
		assert.Equal(t, "0xdef", user.WalletAddress)
	})

	t.Run("GetUserById_Malformed", func(t *testing.T) {
		_, err := repo.GetUserById(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestRecordMatch(t *testing.T) {
	ctx := context.Background()

	alice, err := repo.CreateUser(ctx, "alice", "h", "")
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, "bob", "h", "")
	require.NoError(t, err)

	t.Run("completed match updates both players", func(t *testing.T) {
		err := repo.RecordMatch(ctx, domain.MatchRecord{
			RoomCode: "ABC123",
			GameMode: "reflex-challenge",
			Wager:    0.5,
			Status:   domain.MatchCompleted,
			WinnerId: alice,
			Players: []domain.MatchParticipant{
				{UserId: alice, Score: 2},
				{UserId: bob, Score: 1},
			},
		})
		require.NoError(t, err)

		a, err := repo.GetUserById(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, 1, a.TotalMatches)
		assert.Equal(t, 1, a.Wins)
		assert.Equal(t, 0, a.Losses)
		assert.InDelta(t, 0.5, a.TotalEarned, 1e-9)

		b, err := repo.GetUserById(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, 1, b.TotalMatches)
		assert.Equal(t, 0, b.Wins)
		assert.Equal(t, 1, b.Losses)
		assert.InDelta(t, -0.5, b.TotalEarned, 1e-9)
	})

	t.Run("cancelled match leaves stats untouched", func(t *testing.T) {
		err := repo.RecordMatch(ctx, domain.MatchRecord{
			RoomCode: "XYZ789",
			GameMode: "object-hunt",
			Status:   domain.MatchCancelled,
			Players:  []domain.MatchParticipant{{UserId: alice, Score: 1}, {UserId: bob}},
		})
		require.NoError(t, err)

		a, err := repo.GetUserById(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, 1, a.TotalMatches)

		var count int
		require.NoError(t, repo.GetPool().QueryRow(ctx, "SELECT count(*) FROM matches WHERE status = 'cancelled'").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("recent matches newest first", func(t *testing.T) {
		records, err := repo.RecentMatches(ctx, bob, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "XYZ789", records[0].RoomCode)
		assert.Equal(t, domain.MatchCancelled, records[0].Status)
		assert.Equal(t, "ABC123", records[1].RoomCode)
		assert.Equal(t, alice, records[1].WinnerId)
		assert.Len(t, records[1].Players, 2)
	})

	t.Run("no participants", func(t *testing.T) {
		err := repo.RecordMatch(ctx, domain.MatchRecord{RoomCode: "EMPTY1"})
		assert.ErrorIs(t, err, storage.ErrNoParticipants)
	})
}

func TestTargetItems(t *testing.T) {
	items, err := repo.TargetItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 25)
	assert.Contains(t, items, "cup")
	assert.IsIncreasing(t, items)
}
