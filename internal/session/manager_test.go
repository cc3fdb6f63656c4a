package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/spotlight/internal/models"
)

func TestManagerCreateAppliesOptions(t *testing.T) {
	rec := &memRecorder{}
	m := NewManager(Options{AutoSelect: true, Recorder: rec})

	off := false
	s, err := m.Create(context.Background(), CreateOptions{
		VideoWidth: 1080, VideoHeight: 1920, ContainerWidth: 1000, ContainerHeight: 1000,
		AutoSelect: &off,
	})
	require.NoError(t, err)

	info := s.Info()
	assert.False(t, info.AutoSelect)
	assert.Equal(t, models.VideoRenderRect{X: 218.75, Y: 0, Width: 562.5, Height: 1000}, info.RenderRect)
	assert.Equal(t, []uuid.UUID{s.ID}, rec.created)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestManagerListOldestFirst(t *testing.T) {
	m := NewManager(Options{})
	a, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)
	b, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)
	b.CreatedAt = a.CreatedAt.Add(1)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func TestManagerCloseArchives(t *testing.T) {
	archiver := newMemArchiver()
	rec := &memRecorder{}
	n := &recordingNotifier{}
	m := NewManager(Options{AutoSelect: true, Archiver: archiver, Recorder: rec, Notifiers: []Notifier{n}})
	ctx := context.Background()

	s, err := m.Create(ctx, CreateOptions{VideoWidth: 1920, VideoHeight: 1080, ContainerWidth: 1920, ContainerHeight: 1080})
	require.NoError(t, err)
	_, err = s.IngestFrame(frame(100, player("p1", 0.5, 0.5, 0.1, 0.2, 0.9)))
	require.NoError(t, err)
	_, err = s.IngestFrame(frame(600, player("p1", 0.55, 0.5, 0.1, 0.2, 0.9)))
	require.NoError(t, err)

	archive, err := m.Close(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", archive.SubjectID)
	assert.Equal(t, 1920, archive.VideoWidth)
	assert.Len(t, archive.History, 2)
	assert.Equal(t, 2, archive.Ingested)
	assert.NotEmpty(t, archive.Events)

	kinds := n.kinds()
	assert.Equal(t, models.LockReleased, kinds[len(kinds)-1])

	stored, err := m.Archive(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, archive.SubjectID, stored.SubjectID)
	assert.Equal(t, "archives/"+s.ID.String()+"/tracking.json", rec.closed[s.ID])
	assert.Equal(t, len(n.kinds()), rec.events)

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Close(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.ActiveCount())

	_, err = s.IngestFrame(frame(700, player("p1", 0.5, 0.5, 0.1, 0.2, 0.9)))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManagerCloseSurvivesArchiveFailure(t *testing.T) {
	archiver := newMemArchiver()
	archiver.failPut = true
	rec := &memRecorder{}
	m := NewManager(Options{Archiver: archiver, Recorder: rec})
	ctx := context.Background()

	s, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)

	_, err = m.Close(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, rec.closed[s.ID])
	assert.Zero(t, m.ActiveCount())
}

func TestManagerArchiveDisabled(t *testing.T) {
	m := NewManager(Options{})
	_, err := m.Archive(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrArchivesDisabled)
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager(Options{})
	for i := 0; i < 3; i++ {
		_, err := m.Create(context.Background(), CreateOptions{})
		require.NoError(t, err)
	}

	m.CloseAll(context.Background())
	assert.Zero(t, m.ActiveCount())
}

func TestManagerHandleFrame(t *testing.T) {
	m := NewManager(Options{AutoSelect: true})
	s, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	f := frame(100, player("p1", 0.5, 0.5, 0.1, 0.2, 0.9))
	f.SessionID = s.ID.String()
	resp, err := m.HandleFrame(f)
	require.NoError(t, err)
	assert.True(t, resp.Tracked)

	f.SessionID = "not-a-uuid"
	_, err = m.HandleFrame(f)
	assert.Error(t, err)

	f.SessionID = uuid.NewString()
	_, err = m.HandleFrame(f)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerHandleCommand(t *testing.T) {
	m := NewManager(Options{AutoSelect: true})
	ctx := context.Background()
	s, err := m.Create(ctx, CreateOptions{VideoWidth: 1920, VideoHeight: 1080, ContainerWidth: 1920, ContainerHeight: 1080})
	require.NoError(t, err)

	_, err = s.IngestFrame(frame(100,
		player("p1", 0.2, 0.5, 0.1, 0.2, 0.9),
		player("p2", 0.8, 0.5, 0.2, 0.4, 0.9),
	))
	require.NoError(t, err)
	require.Equal(t, "p2", s.Info().SubjectID)

	id := s.ID.String()
	require.NoError(t, m.HandleCommand(ctx, Command{Action: "select", SessionID: id, SubjectID: "p1"}))
	assert.Equal(t, "p1", s.Info().SubjectID)

	x, y := 0.8*1920, 0.5*1080
	require.NoError(t, m.HandleCommand(ctx, Command{Action: "select", SessionID: id, ClickX: &x, ClickY: &y}))
	assert.Equal(t, "p2", s.Info().SubjectID)

	assert.Error(t, m.HandleCommand(ctx, Command{Action: "select", SessionID: id}))
	assert.Error(t, m.HandleCommand(ctx, Command{Action: "rewind", SessionID: id}))
	assert.Error(t, m.HandleCommand(ctx, Command{Action: "reset", SessionID: "bogus"}))

	require.NoError(t, m.HandleCommand(ctx, Command{Action: "reset", SessionID: id}))
	assert.Empty(t, s.Info().SubjectID)

	require.NoError(t, m.HandleCommand(ctx, Command{Action: "close", SessionID: id}))
	assert.ErrorIs(t, m.HandleCommand(ctx, Command{Action: "reset", SessionID: id}), ErrNotFound)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"action":"select","session_id":"abc","click_x":10,"click_y":20}`))
	require.NoError(t, err)
	assert.Equal(t, "select", cmd.Action)
	assert.Equal(t, "abc", cmd.SessionID)
	require.NotNil(t, cmd.ClickX)
	assert.Equal(t, 10.0, *cmd.ClickX)

	_, err = ParseCommand([]byte(`{"action":`))
	assert.Error(t, err)
}

func TestManagerRunRetentionRejectsNonPositiveInterval(t *testing.T) {
	m := NewManager(Options{Archiver: newMemArchiver()})

	done := make(chan struct{})
	go func() {
		m.RunRetention(context.Background(), -time.Minute, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunRetention kept running with a negative interval")
	}
}
