package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"oneworld-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateVoting(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	projects := createTestProjects(t, db, 3)

	now := time.Now()
	voting, err := svc.CreateVoting(context.Background(), CreateVotingInput{
		Title:      "Neighborhood projects 2026",
		StartDate:  now,
		EndDate:    now.Add(7 * 24 * time.Hour),
		ProjectIDs: projects,
		CreatedBy:  1,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VotingStatusUpcoming, voting.Status)
	assert.Len(t, voting.Options, 3)
	for i, opt := range voting.Options {
		assert.Equal(t, voting.ID, opt.VotingID)
		assert.Equal(t, projects[i], opt.ProjectID)
		assert.Zero(t, opt.VotesCount)
	}
}

func TestCreateVoting_Validation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	projects := createTestProjects(t, db, 6)
	now := time.Now()

	tests := []struct {
		name  string
		input CreateVotingInput
	}{
		{
			name: "missing title",
			input: CreateVotingInput{
				StartDate: now, EndDate: now.Add(time.Hour), ProjectIDs: projects[:2],
			},
		},
		{
			name: "missing dates",
			input: CreateVotingInput{
				Title: "V", ProjectIDs: projects[:2],
			},
		},
		{
			name: "end before start",
			input: CreateVotingInput{
				Title: "V", StartDate: now.Add(time.Hour), EndDate: now, ProjectIDs: projects[:2],
			},
		},
		{
			name: "only one project",
			input: CreateVotingInput{
				Title: "V", StartDate: now, EndDate: now.Add(time.Hour), ProjectIDs: projects[:1],
			},
		},
		{
			name: "six projects",
			input: CreateVotingInput{
				Title: "V", StartDate: now, EndDate: now.Add(time.Hour), ProjectIDs: projects,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateVoting(context.Background(), tc.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// No rows may be left behind by rejected creations.
	var votings, options int64
	db.Model(&models.Voting{}).Count(&votings)
	db.Model(&models.VotingOption{}).Count(&options)
	assert.Zero(t, votings)
	assert.Zero(t, options)
}

// mustCreateActive creates a voting in active status whose window contains
// the given time.
func mustCreateActive(t *testing.T, svc *VotingService, projects []uint, at time.Time) *models.Voting {
	t.Helper()

	voting, err := svc.CreateVoting(context.Background(), CreateVotingInput{
		Title:      "Active voting",
		StartDate:  at.Add(-time.Hour),
		EndDate:    at.Add(7 * 24 * time.Hour),
		ProjectIDs: projects,
	})
	require.NoError(t, err)

	status := models.VotingStatusActive
	voting, err = svc.UpdateVoting(context.Background(), voting.ID, UpdateVotingInput{Status: &status})
	require.NoError(t, err)
	return voting
}

func TestCastVote_RecordsBallotAndCount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 3)
	voting := mustCreateActive(t, svc, projects, now)
	userID := createTestUser(t, db, "x@example.com")

	var options []models.VotingOption
	require.NoError(t, db.Where("voting_id = ?", voting.ID).Order("id").Find(&options).Error)
	require.Len(t, options, 3)

	receipt, err := svc.CastVote(context.Background(), voting.ID, options[1].ID, userID)
	require.NoError(t, err)
	assert.Equal(t, options[1].ID, receipt.OptionID)
	assert.Equal(t, now, receipt.VotedAt)

	var ballots int64
	db.Model(&models.UserVote{}).Where("voting_id = ?", voting.ID).Count(&ballots)
	assert.EqualValues(t, 1, ballots)

	results, err := svc.Results(context.Background(), voting.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, results.TotalVotes)
	assert.Equal(t, options[1].ID, results.Options[0].ID)
	assert.EqualValues(t, 1, results.Options[0].VotesCount)
	assert.Equal(t, 100, results.Options[0].Percentage)
}

func TestCastVote_SecondVoteRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 2)
	voting := mustCreateActive(t, svc, projects, now)
	userID := createTestUser(t, db, "x@example.com")

	var options []models.VotingOption
	require.NoError(t, db.Where("voting_id = ?", voting.ID).Order("id").Find(&options).Error)

	_, err := svc.CastVote(context.Background(), voting.ID, options[0].ID, userID)
	require.NoError(t, err)

	// Second attempt, any option.
	_, err = svc.CastVote(context.Background(), voting.ID, options[1].ID, userID)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	// Counts unchanged.
	results, err := svc.Results(context.Background(), voting.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, results.TotalVotes)
}

func TestCastVote_Rejections(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 2)
	userID := createTestUser(t, db, "x@example.com")

	t.Run("unknown voting", func(t *testing.T) {
		_, err := svc.CastVote(context.Background(), 9999, 1, userID)
		assert.ErrorIs(t, err, ErrVotingNotOpen)
	})

	t.Run("upcoming voting", func(t *testing.T) {
		voting, err := svc.CreateVoting(context.Background(), CreateVotingInput{
			Title: "Upcoming", StartDate: now, EndDate: now.Add(time.Hour), ProjectIDs: projects,
		})
		require.NoError(t, err)

		_, err = svc.CastVote(context.Background(), voting.ID, 1, userID)
		assert.ErrorIs(t, err, ErrVotingNotOpen)
	})

	t.Run("window lapsed but status still active", func(t *testing.T) {
		voting := mustCreateActive(t, svc, projects, now)
		require.NoError(t, db.Model(&models.Voting{}).Where("id = ?", voting.ID).
			Update("end_date", now.Add(-time.Minute)).Error)

		var option models.VotingOption
		require.NoError(t, db.Where("voting_id = ?", voting.ID).First(&option).Error)

		_, err := svc.CastVote(context.Background(), voting.ID, option.ID, userID)
		assert.ErrorIs(t, err, ErrVotingNotOpen)
	})

	t.Run("option from another voting", func(t *testing.T) {
		votingA := mustCreateActive(t, svc, projects, now)
		votingB := mustCreateActive(t, svc, projects, now)

		var foreign models.VotingOption
		require.NoError(t, db.Where("voting_id = ?", votingB.ID).First(&foreign).Error)

		_, err := svc.CastVote(context.Background(), votingA.ID, foreign.ID, userID)
		assert.ErrorIs(t, err, ErrInvalidOption)
	})
}

func TestCastVote_ConcurrentSameUser(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 2)
	voting := mustCreateActive(t, svc, projects, now)
	userID := createTestUser(t, db, "racer@example.com")

	var options []models.VotingOption
	require.NoError(t, db.Where("voting_id = ?", voting.ID).Order("id").Find(&options).Error)

	const attempts = 8
	var successes, rejections atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CastVote(context.Background(), voting.ID, options[i%2].ID, userID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyVoted):
				rejections.Add(1)
			default:
				t.Errorf("Unexpected cast error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, attempts-1, rejections.Load())

	// At most one ballot, and the counters match the ballot count.
	var ballots int64
	db.Model(&models.UserVote{}).Where("voting_id = ?", voting.ID).Count(&ballots)
	assert.EqualValues(t, 1, ballots)

	results, err := svc.Results(context.Background(), voting.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, results.TotalVotes)
}

func TestResults_PercentagesAndWinner(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	t.Run("equal split", func(t *testing.T) {
		projects := createTestProjects(t, db, 4)
		voting := mustCreateActive(t, svc, projects, now)
		require.NoError(t, db.Model(&models.VotingOption{}).
			Where("voting_id = ?", voting.ID).
			Update("votes_count", 10).Error)

		results, err := svc.Results(context.Background(), voting.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 40, results.TotalVotes)
		for _, opt := range results.Options {
			assert.Equal(t, 25, opt.Percentage)
		}
	})

	t.Run("skewed counts", func(t *testing.T) {
		projects := createTestProjects(t, db, 3)
		voting := mustCreateActive(t, svc, projects, now)

		var options []models.VotingOption
		require.NoError(t, db.Where("voting_id = ?", voting.ID).Order("id").Find(&options).Error)
		counts := []int64{7, 3, 0}
		for i, c := range counts {
			require.NoError(t, db.Model(&options[i]).Update("votes_count", c).Error)
		}

		results, err := svc.Results(context.Background(), voting.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 10, results.TotalVotes)

		// Options come back ordered by count.
		assert.Equal(t, []int{70, 30, 0}, []int{
			results.Options[0].Percentage,
			results.Options[1].Percentage,
			results.Options[2].Percentage,
		})
		require.NotNil(t, results.Winner)
		assert.Equal(t, options[0].ID, results.Winner.ID)
		assert.EqualValues(t, 7, results.Winner.VotesCount)
	})

	t.Run("no votes at all", func(t *testing.T) {
		projects := createTestProjects(t, db, 2)
		voting := mustCreateActive(t, svc, projects, now)

		results, err := svc.Results(context.Background(), voting.ID)
		require.NoError(t, err)
		assert.Zero(t, results.TotalVotes)
		for _, opt := range results.Options {
			assert.Zero(t, opt.Percentage)
		}
	})

	t.Run("tie breaks on creation order", func(t *testing.T) {
		projects := createTestProjects(t, db, 2)
		voting := mustCreateActive(t, svc, projects, now)
		require.NoError(t, db.Model(&models.VotingOption{}).
			Where("voting_id = ?", voting.ID).
			Update("votes_count", 5).Error)

		var options []models.VotingOption
		require.NoError(t, db.Where("voting_id = ?", voting.ID).Order("id").Find(&options).Error)

		results, err := svc.Results(context.Background(), voting.ID)
		require.NoError(t, err)
		require.NotNil(t, results.Winner)
		assert.Equal(t, options[0].ID, results.Winner.ID)
	})

	t.Run("rounding half up", func(t *testing.T) {
		projects := createTestProjects(t, db, 2)
		voting := mustCreateActive(t, svc, projects, now)

		var options []models.VotingOption
		require.NoError(t, db.Where("voting_id = ?", voting.ID).Order("id").Find(&options).Error)
		require.NoError(t, db.Model(&options[0]).Update("votes_count", 1).Error)
		require.NoError(t, db.Model(&options[1]).Update("votes_count", 7).Error)

		// 1/8 = 12.5% rounds up to 13, 7/8 = 87.5% rounds up to 88.
		results, err := svc.Results(context.Background(), voting.ID)
		require.NoError(t, err)
		assert.Equal(t, 88, results.Options[0].Percentage)
		assert.Equal(t, 13, results.Options[1].Percentage)
	})
}

func TestResults_NotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)

	_, err := svc.Results(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrVotingNotFound)
}

func TestActiveVoting(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	t.Run("none active", func(t *testing.T) {
		results, err := svc.ActiveVoting(context.Background())
		require.NoError(t, err)
		assert.Nil(t, results)
	})

	t.Run("newest effectively active wins", func(t *testing.T) {
		projects := createTestProjects(t, db, 2)

		older := mustCreateActive(t, svc, projects, now)
		require.NoError(t, db.Model(&models.Voting{}).Where("id = ?", older.ID).
			Update("created_at", now.Add(-time.Hour)).Error)

		newer := mustCreateActive(t, svc, projects, now)

		// Active status but lapsed window must not be selected.
		lapsed := mustCreateActive(t, svc, projects, now)
		require.NoError(t, db.Model(&models.Voting{}).Where("id = ?", lapsed.ID).
			Update("end_date", now.Add(-time.Minute)).Error)

		results, err := svc.ActiveVoting(context.Background())
		require.NoError(t, err)
		require.NotNil(t, results)
		assert.Equal(t, newer.ID, results.Voting.ID)
		assert.Nil(t, results.Winner)
	})
}

func TestCloseVoting(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 2)
	voting := mustCreateActive(t, svc, projects, now)

	closed, err := svc.CloseVoting(context.Background(), voting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VotingStatusClosed, closed.Status)
	assert.WithinDuration(t, now, closed.EndDate, time.Second)

	// Closing again is a no-op and keeps the original end date.
	later := now.Add(time.Hour)
	fixedClock(svc, later)
	again, err := svc.CloseVoting(context.Background(), voting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VotingStatusClosed, again.Status)
	assert.WithinDuration(t, closed.EndDate, again.EndDate, time.Minute)

	_, err = svc.CloseVoting(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrVotingNotFound)
}

func TestUpdateVoting_StatusMonotonic(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 2)
	voting := mustCreateActive(t, svc, projects, now)

	_, err := svc.CloseVoting(context.Background(), voting.ID)
	require.NoError(t, err)

	for _, status := range []models.VotingStatus{models.VotingStatusActive, models.VotingStatusUpcoming} {
		s := status
		_, err := svc.UpdateVoting(context.Background(), voting.ID, UpdateVotingInput{Status: &s})
		assert.ErrorIs(t, err, ErrValidation)
	}

	// Closed to closed stays allowed.
	s := models.VotingStatusClosed
	updated, err := svc.UpdateVoting(context.Background(), voting.ID, UpdateVotingInput{Status: &s})
	require.NoError(t, err)
	assert.Equal(t, models.VotingStatusClosed, updated.Status)
}

func TestUpdateVoting_Fields(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()

	projects := createTestProjects(t, db, 2)
	voting, err := svc.CreateVoting(context.Background(), CreateVotingInput{
		Title: "Old", StartDate: now, EndDate: now.Add(time.Hour), ProjectIDs: projects,
	})
	require.NoError(t, err)

	title := "New title"
	updated, err := svc.UpdateVoting(context.Background(), voting.ID, UpdateVotingInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, models.VotingStatusUpcoming, updated.Status)

	badEnd := now.Add(-time.Hour)
	_, err = svc.UpdateVoting(context.Background(), voting.ID, UpdateVotingInput{EndDate: &badEnd})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateVoting(context.Background(), 9999, UpdateVotingInput{Title: &title})
	assert.ErrorIs(t, err, ErrVotingNotFound)
}

func TestDeleteVoting_Cascades(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 2)
	voting := mustCreateActive(t, svc, projects, now)
	userID := createTestUser(t, db, "x@example.com")

	var option models.VotingOption
	require.NoError(t, db.Where("voting_id = ?", voting.ID).First(&option).Error)
	_, err := svc.CastVote(context.Background(), voting.ID, option.ID, userID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteVoting(context.Background(), voting.ID))

	var votings, options, ballots int64
	db.Model(&models.Voting{}).Where("id = ?", voting.ID).Count(&votings)
	db.Model(&models.VotingOption{}).Where("voting_id = ?", voting.ID).Count(&options)
	db.Model(&models.UserVote{}).Where("voting_id = ?", voting.ID).Count(&ballots)
	assert.Zero(t, votings)
	assert.Zero(t, options)
	assert.Zero(t, ballots)

	assert.ErrorIs(t, svc.DeleteVoting(context.Background(), voting.ID), ErrVotingNotFound)
}

func TestListVotings_Counts(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 2)
	voting := mustCreateActive(t, svc, projects, now)

	var options []models.VotingOption
	require.NoError(t, db.Where("voting_id = ?", voting.ID).Order("id").Find(&options).Error)

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		userID := createTestUser(t, db, email)
		_, err := svc.CastVote(context.Background(), voting.ID, options[i%2].ID, userID)
		require.NoError(t, err)
	}

	summaries, err := svc.ListVotings(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 3, summaries[0].ParticipantCount)
	assert.EqualValues(t, 3, summaries[0].TotalVotes)
}

func TestHistory(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 2)

	// Twelve closed votings; only the ten most recently closed come back.
	var lastClosed *models.Voting
	for i := 0; i < 12; i++ {
		voting := mustCreateActive(t, svc, projects, now)
		fixedClock(svc, now.Add(time.Duration(i)*time.Minute))
		closed, err := svc.CloseVoting(context.Background(), voting.ID)
		require.NoError(t, err)
		lastClosed = closed
	}

	// Give the most recent one a winner.
	var option models.VotingOption
	require.NoError(t, db.Where("voting_id = ?", lastClosed.ID).Order("id").First(&option).Error)
	require.NoError(t, db.Model(&option).Update("votes_count", 4).Error)

	history, err := svc.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 10)

	assert.Equal(t, lastClosed.ID, history[0].ID)
	require.NotNil(t, history[0].Winner)
	assert.Equal(t, option.ID, history[0].Winner.OptionID)
	assert.EqualValues(t, 4, history[0].Winner.Votes)
}

func TestUserVotes(t *testing.T) {
	db := setupTestDB(t)
	svc := NewVotingService(db)
	now := time.Now()
	fixedClock(svc, now)

	projects := createTestProjects(t, db, 2)
	voting := mustCreateActive(t, svc, projects, now)
	userID := createTestUser(t, db, "x@example.com")

	var option models.VotingOption
	require.NoError(t, db.Where("voting_id = ?", voting.ID).Order("id").First(&option).Error)
	_, err := svc.CastVote(context.Background(), voting.ID, option.ID, userID)
	require.NoError(t, err)

	votes, err := svc.UserVotes(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, voting.ID, votes[0].VotingID)
	assert.Equal(t, "Active voting", votes[0].VotingTitle)
	assert.Equal(t, "Project A", votes[0].VotedProject)

	// Another user has no ballots.
	other := createTestUser(t, db, "y@example.com")
	votes, err = svc.UserVotes(context.Background(), other)
	require.NoError(t, err)
	assert.Empty(t, votes)
}
