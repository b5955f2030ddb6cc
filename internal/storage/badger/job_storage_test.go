package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()

	logger := common.GetLogger()
	mgr, err := NewManager(logger, &common.BadgerConfig{
		Path: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	return mgr
}

func TestJobStorage_SaveAndGet(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Biology Notes", "bio.pdf", "/tmp/bio.pdf")
	require.NoError(t, mgr.JobStorage().SaveJob(ctx, job))

	loaded, err := mgr.JobStorage().GetJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, "Biology Notes", loaded.Title)
	assert.Equal(t, models.JobStatusPending, loaded.Status)
}

func TestJobStorage_GetMissing(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.JobStorage().GetJob(context.Background(), "job_missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestJobStorage_ListFiltersDeleted(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	active := models.NewJob("job_1", "user_1", "Active", "a.pdf", "")
	deleted := models.NewJob("job_2", "user_1", "Deleted", "b.pdf", "")
	deleted.SoftDelete()

	require.NoError(t, mgr.JobStorage().SaveJob(ctx, active))
	require.NoError(t, mgr.JobStorage().SaveJob(ctx, deleted))

	jobs, err := mgr.JobStorage().ListJobs(ctx, &interfaces.ListOptions{UserID: "user_1"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job_1", jobs[0].ID)

	all, err := mgr.JobStorage().ListJobs(ctx, &interfaces.ListOptions{UserID: "user_1", IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestJobStorage_ListFiltersByUser(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.JobStorage().SaveJob(ctx, models.NewJob("job_1", "user_1", "Mine", "a.pdf", "")))
	require.NoError(t, mgr.JobStorage().SaveJob(ctx, models.NewJob("job_2", "user_2", "Theirs", "b.pdf", "")))

	jobs, err := mgr.JobStorage().ListJobs(ctx, &interfaces.ListOptions{UserID: "user_1"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job_1", jobs[0].ID)

	count, err := mgr.JobStorage().CountJobs(ctx, &interfaces.ListOptions{UserID: "user_1"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJobStorage_GetDeletedBefore(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	old := models.NewJob("job_old", "user_1", "Old", "a.pdf", "")
	old.SoftDelete()
	past := time.Now().Add(-48 * time.Hour)
	old.DeletedAt = &past

	fresh := models.NewJob("job_fresh", "user_1", "Fresh", "b.pdf", "")
	fresh.SoftDelete()

	require.NoError(t, mgr.JobStorage().SaveJob(ctx, old))
	require.NoError(t, mgr.JobStorage().SaveJob(ctx, fresh))

	expired, err := mgr.JobStorage().GetDeletedBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "job_old", expired[0].ID)
}

func TestUserStorage_RoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	user := models.NewUser("user_1", "student@example.com")
	require.NoError(t, mgr.UserStorage().SaveUser(ctx, user))

	byID, err := mgr.UserStorage().GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", byID.Email)

	byEmail, err := mgr.UserStorage().GetUserByEmail(ctx, "student@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user_1", byEmail.ID)
}

func TestQuizStorage_RecentQuestions(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Notes", "a.pdf", "")
	require.NoError(t, mgr.JobStorage().SaveJob(ctx, job))

	quiz := models.NewQuiz("job_1", []models.QuizQuestion{
		{Question: "What is mitosis?", Options: []string{"A", "B", "C", "D"}, Answer: "A"},
		{Question: "What is meiosis?", Options: []string{"A", "B", "C", "D"}, Answer: "B"},
	})
	require.NoError(t, mgr.QuizStorage().SaveQuiz(ctx, quiz))

	questions, err := mgr.QuizStorage().GetRecentQuestions(ctx, "user_1", 10)
	require.NoError(t, err)
	assert.Len(t, questions, 2)

	capped, err := mgr.QuizStorage().GetRecentQuestions(ctx, "user_1", 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)

	// Other users see nothing
	none, err := mgr.QuizStorage().GetRecentQuestions(ctx, "user_2", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestManager_RunGC(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		job := models.NewJob(common.NewJobID(), "user_1", "Notes", "notes.pdf", "")
		require.NoError(t, mgr.JobStorage().SaveJob(ctx, job))
		require.NoError(t, mgr.JobStorage().DeleteJob(ctx, job.ID))
	}

	// Nothing worth rewriting is not an error
	assert.NoError(t, mgr.RunGC())
}
