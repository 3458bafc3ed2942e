package playback

import (
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/cmarret/tideline/internal/music"
	"github.com/cmarret/tideline/internal/player"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*player.Noop, Service) {
	t.Helper()
	engine := player.NewNoop()
	svc := New(engine, Options{Logger: discardLogger()})
	t.Cleanup(func() { _ = svc.Close() })
	return engine, svc
}

func albumTracks() []music.Track {
	return []music.Track{
		{ID: "t1", Name: "Undertow", Artist: "Driftwood", Album: "Saltwater", DiscNumber: 1, IndexNumber: 1, Duration: 3 * time.Minute},
		{ID: "t2", Name: "Nightswim", Artist: "Driftwood", Album: "Saltwater", DiscNumber: 1, IndexNumber: 2, Duration: 4 * time.Minute},
		{ID: "t3", Name: "Low Tide", Artist: "Driftwood", Album: "Saltwater", DiscNumber: 1, IndexNumber: 3, Duration: 2 * time.Minute},
	}
}

func waitTrackChange(t *testing.T, sub *Subscription) TrackChange {
	t.Helper()
	select {
	case e := <-sub.TrackChanged:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for TrackChange")
		return TrackChange{}
	}
}

func waitStateChange(t *testing.T, sub *Subscription) StateChange {
	t.Helper()
	select {
	case e := <-sub.StateChanged:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for StateChange")
		return StateChange{}
	}
}

func TestPlayAlbum_SortsAndStarts(t *testing.T) {
	engine, svc := newTestService(t)
	sub := svc.Subscribe()

	// Hand the tracks over out of order; the queue must follow disc
	// and track numbering, not input order.
	tracks := albumTracks()
	shuffledInput := []music.Track{tracks[2], tracks[0], tracks[1]}

	if err := svc.PlayAlbum(shuffledInput, "album-1", "Saltwater"); err != nil {
		t.Fatalf("PlayAlbum() error = %v", err)
	}

	queued := svc.QueueTracks()
	for i, want := range []string{"t1", "t2", "t3"} {
		if queued[i].ID != want {
			t.Errorf("queue[%d].ID = %q, want %q", i, queued[i].ID, want)
		}
	}

	played := engine.Played()
	if len(played) != 1 || played[0].ID != "t1" {
		t.Fatalf("engine played %v, want [t1]", played)
	}
	if svc.State() != StatePlaying {
		t.Errorf("State() = %v, want Playing", svc.State())
	}

	e := waitTrackChange(t, sub)
	if e.Previous != nil {
		t.Errorf("TrackChange.Previous = %v, want nil from silence", e.Previous)
	}
	if e.Current == nil || e.Current.ID != "t1" {
		t.Errorf("TrackChange.Current = %v, want t1", e.Current)
	}
	if e.Index != 0 {
		t.Errorf("TrackChange.Index = %d, want 0", e.Index)
	}

	st := waitStateChange(t, sub)
	if st.Previous != StateStopped || st.Current != StatePlaying {
		t.Errorf("StateChange = %+v, want Stopped->Playing", st)
	}
}

func TestPlayAlbum_Empty(t *testing.T) {
	_, svc := newTestService(t)

	if err := svc.PlayAlbum(nil, "album-1", "Saltwater"); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("PlayAlbum(nil) error = %v, want ErrEmptyQueue", err)
	}
}

func TestPlayTrack_PositionsInsideContext(t *testing.T) {
	engine, svc := newTestService(t)

	tracks := albumTracks()
	if err := svc.PlayTrack(tracks[1], tracks); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}

	if svc.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1", svc.CurrentIndex())
	}
	if svc.QueueLen() != 3 {
		t.Errorf("QueueLen() = %d, want 3", svc.QueueLen())
	}
	played := engine.Played()
	if len(played) != 1 || played[0].ID != "t2" {
		t.Errorf("engine played %v, want [t2]", played)
	}
}

func TestPlayTrack_PrependsWhenNotInContext(t *testing.T) {
	_, svc := newTestService(t)

	stray := music.Track{ID: "t9", Name: "Stray"}
	if err := svc.PlayTrack(stray, albumTracks()); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}

	queued := svc.QueueTracks()
	if len(queued) != 4 || queued[0].ID != "t9" {
		t.Errorf("queue = %v, want stray track first", queued)
	}
	if svc.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", svc.CurrentIndex())
	}
}

func TestPlayTrack_NoContext(t *testing.T) {
	_, svc := newTestService(t)

	track := albumTracks()[0]
	if err := svc.PlayTrack(track, nil); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}

	if svc.QueueLen() != 1 {
		t.Errorf("QueueLen() = %d, want 1", svc.QueueLen())
	}
	cur := svc.Current()
	if cur == nil || cur.ID != "t1" {
		t.Errorf("Current() = %v, want t1", cur)
	}
}

func TestPlayTrack_EngineError(t *testing.T) {
	engine, svc := newTestService(t)
	engine.SetPlayError(errors.New("device busy"))

	err := svc.PlayTrack(albumTracks()[0], nil)

	if err == nil {
		t.Fatal("PlayTrack() expected error")
	}
	if svc.State() != StateStopped {
		t.Errorf("State() = %v, want Stopped after failed play", svc.State())
	}
}

func TestPlayShuffled_SeededPermutation(t *testing.T) {
	tracks := make([]music.Track, 20)
	for i := range tracks {
		tracks[i] = music.Track{ID: string(rune('a' + i)), IndexNumber: i + 1}
	}

	order := func() []string {
		engine := player.NewNoop()
		svc := New(engine, Options{
			Rand:   rand.New(rand.NewPCG(1, 2)),
			Logger: discardLogger(),
		})
		defer svc.Close()
		if err := svc.PlayShuffled(tracks); err != nil {
			t.Fatalf("PlayShuffled() error = %v", err)
		}
		var ids []string
		for _, tr := range svc.QueueTracks() {
			ids = append(ids, tr.ID)
		}
		return ids
	}

	first := order()
	second := order()

	if len(first) != len(tracks) {
		t.Fatalf("queue has %d tracks, want %d", len(first), len(tracks))
	}

	// Same seed, same permutation.
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("seeded shuffle not reproducible: %v vs %v", first, second)
		}
	}

	// Every track appears exactly once.
	seen := make(map[string]bool)
	for _, id := range first {
		if seen[id] {
			t.Fatalf("duplicate track %q in shuffle", id)
		}
		seen[id] = true
	}

	// 20 tracks make the identity permutation effectively impossible.
	identity := true
	for i, tr := range tracks {
		if first[i] != tr.ID {
			identity = false
			break
		}
	}
	if identity {
		t.Error("shuffle left the input order untouched")
	}
}

func TestNext_AdvancesQueue(t *testing.T) {
	engine, svc := newTestService(t)
	sub := svc.Subscribe()

	if err := svc.PlayAlbum(albumTracks(), "album-1", "Saltwater"); err != nil {
		t.Fatalf("PlayAlbum() error = %v", err)
	}
	waitTrackChange(t, sub)

	if err := svc.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	cur := svc.Current()
	if cur == nil || cur.ID != "t2" {
		t.Errorf("Current() = %v, want t2", cur)
	}
	played := engine.Played()
	if len(played) != 2 || played[1].ID != "t2" {
		t.Errorf("engine played %v, want [t1 t2]", played)
	}

	e := waitTrackChange(t, sub)
	if e.Previous == nil || e.Previous.ID != "t1" {
		t.Errorf("TrackChange.Previous = %v, want t1", e.Previous)
	}
	if e.Current == nil || e.Current.ID != "t2" {
		t.Errorf("TrackChange.Current = %v, want t2", e.Current)
	}
	if e.Finished {
		t.Error("manual skip must not be marked Finished")
	}
}

func TestNext_AtEndStops(t *testing.T) {
	_, svc := newTestService(t)
	sub := svc.Subscribe()

	tracks := albumTracks()[:1]
	if err := svc.PlayAlbum(tracks, "album-1", "Saltwater"); err != nil {
		t.Fatalf("PlayAlbum() error = %v", err)
	}
	waitTrackChange(t, sub)

	if err := svc.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	if svc.State() != StateStopped {
		t.Errorf("State() = %v, want Stopped at queue end", svc.State())
	}

	e := waitTrackChange(t, sub)
	if e.Previous == nil || e.Previous.ID != "t1" {
		t.Errorf("TrackChange.Previous = %v, want t1", e.Previous)
	}
	if e.Current != nil {
		t.Errorf("TrackChange.Current = %v, want nil at queue end", e.Current)
	}
}

func TestNext_EmptyQueue(t *testing.T) {
	_, svc := newTestService(t)

	if err := svc.Next(); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("Next() error = %v, want ErrEmptyQueue", err)
	}
}

func TestPrevious_StepsBack(t *testing.T) {
	engine, svc := newTestService(t)

	tracks := albumTracks()
	if err := svc.PlayTrack(tracks[2], tracks); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}

	if err := svc.Previous(); err != nil {
		t.Fatalf("Previous() error = %v", err)
	}

	cur := svc.Current()
	if cur == nil || cur.ID != "t2" {
		t.Errorf("Current() = %v, want t2", cur)
	}
	if n := len(engine.Played()); n != 2 {
		t.Errorf("engine received %d plays, want 2", n)
	}
}

func TestPrevious_AtHeadRestarts(t *testing.T) {
	engine, svc := newTestService(t)

	if err := svc.PlayAlbum(albumTracks(), "album-1", "Saltwater"); err != nil {
		t.Fatalf("PlayAlbum() error = %v", err)
	}

	if err := svc.Previous(); err != nil {
		t.Fatalf("Previous() error = %v", err)
	}

	played := engine.Played()
	if len(played) != 2 || played[0].ID != "t1" || played[1].ID != "t1" {
		t.Errorf("engine played %v, want t1 twice", played)
	}
	if svc.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", svc.CurrentIndex())
	}
}

func TestPauseResume(t *testing.T) {
	_, svc := newTestService(t)
	sub := svc.Subscribe()

	if err := svc.PlayAlbum(albumTracks(), "album-1", "Saltwater"); err != nil {
		t.Fatalf("PlayAlbum() error = %v", err)
	}
	waitStateChange(t, sub) // Stopped -> Playing

	if err := svc.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if svc.State() != StatePaused {
		t.Errorf("State() = %v, want Paused", svc.State())
	}
	e := waitStateChange(t, sub)
	if e.Previous != StatePlaying || e.Current != StatePaused {
		t.Errorf("StateChange = %+v, want Playing->Paused", e)
	}

	if err := svc.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if svc.State() != StatePlaying {
		t.Errorf("State() = %v, want Playing", svc.State())
	}
	e = waitStateChange(t, sub)
	if e.Previous != StatePaused || e.Current != StatePlaying {
		t.Errorf("StateChange = %+v, want Paused->Playing", e)
	}
}

func TestPause_WhenStopped_NoOp(t *testing.T) {
	_, svc := newTestService(t)
	sub := svc.Subscribe()

	if err := svc.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if svc.State() != StateStopped {
		t.Errorf("State() = %v, want Stopped", svc.State())
	}

	select {
	case e := <-sub.StateChanged:
		t.Errorf("unexpected StateChanged event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStop_EmitsTerminalTrackChange(t *testing.T) {
	_, svc := newTestService(t)
	sub := svc.Subscribe()

	if err := svc.PlayAlbum(albumTracks(), "album-1", "Saltwater"); err != nil {
		t.Fatalf("PlayAlbum() error = %v", err)
	}
	waitTrackChange(t, sub)

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	e := waitTrackChange(t, sub)
	if e.Previous == nil || e.Previous.ID != "t1" {
		t.Errorf("TrackChange.Previous = %v, want t1", e.Previous)
	}
	if e.Current != nil {
		t.Errorf("TrackChange.Current = %v, want nil", e.Current)
	}
	if e.Finished {
		t.Error("manual stop must not be marked Finished")
	}

	// The queue position survives a stop.
	if svc.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", svc.CurrentIndex())
	}
}

func TestStop_WhenStopped_NoOp(t *testing.T) {
	_, svc := newTestService(t)
	sub := svc.Subscribe()

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case e := <-sub.TrackChanged:
		t.Errorf("unexpected TrackChange event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTrackFinished_AdvancesQueue(t *testing.T) {
	engine, svc := newTestService(t)
	sub := svc.Subscribe()

	if err := svc.PlayAlbum(albumTracks(), "album-1", "Saltwater"); err != nil {
		t.Fatalf("PlayAlbum() error = %v", err)
	}
	waitTrackChange(t, sub)

	engine.FinishTrack()

	e := waitTrackChange(t, sub)
	if !e.Finished {
		t.Error("natural track end must be marked Finished")
	}
	if e.Previous == nil || e.Previous.ID != "t1" {
		t.Errorf("TrackChange.Previous = %v, want t1", e.Previous)
	}
	if e.Current == nil || e.Current.ID != "t2" {
		t.Errorf("TrackChange.Current = %v, want t2", e.Current)
	}
	if e.Played != 3*time.Minute {
		t.Errorf("TrackChange.Played = %v, want the full 3m", e.Played)
	}

	cur := svc.Current()
	if cur == nil || cur.ID != "t2" {
		t.Errorf("Current() = %v, want t2", cur)
	}
}

func TestTrackFinished_LastTrackStops(t *testing.T) {
	engine, svc := newTestService(t)
	sub := svc.Subscribe()

	tracks := albumTracks()[:1]
	if err := svc.PlayAlbum(tracks, "album-1", "Saltwater"); err != nil {
		t.Fatalf("PlayAlbum() error = %v", err)
	}
	waitTrackChange(t, sub)

	engine.FinishTrack()

	e := waitTrackChange(t, sub)
	if !e.Finished {
		t.Error("natural track end must be marked Finished")
	}
	if e.Current != nil {
		t.Errorf("TrackChange.Current = %v, want nil after last track", e.Current)
	}

	// The watcher goroutine already observed the engine stop.
	if svc.State() != StateStopped {
		t.Errorf("State() = %v, want Stopped", svc.State())
	}
}

func TestSubscribe_ReturnsSubscription(t *testing.T) {
	_, svc := newTestService(t)

	sub := svc.Subscribe()

	if sub == nil {
		t.Fatal("Subscribe() returned nil")
	}
	if sub.StateChanged == nil || sub.TrackChanged == nil || sub.QueueChanged == nil {
		t.Error("subscription channels are nil")
	}
}

func TestClose_SignalsSubscribers(t *testing.T) {
	engine := player.NewNoop()
	svc := New(engine, Options{Logger: discardLogger()})
	sub := svc.Subscribe()

	if err := svc.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	select {
	case <-sub.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Done")
	}
}

func TestClose_Idempotent(t *testing.T) {
	engine := player.NewNoop()
	svc := New(engine, Options{Logger: discardLogger()})

	_ = svc.Close()
	if err := svc.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
