package state

import (
	"path/filepath"
	"testing"
	"time"
)

// openTestManager creates a manager backed by a database file under a
// temp dir so reopen behavior can be exercised.
func openTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := OpenPath(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestOfflineMode_DefaultFalse(t *testing.T) {
	m := openTestManager(t)

	offline, err := m.OfflineMode()
	if err != nil {
		t.Fatalf("OfflineMode failed: %v", err)
	}
	if offline {
		t.Error("offline mode should default to false")
	}
}

func TestOfflineMode_Roundtrip(t *testing.T) {
	m := openTestManager(t)

	if err := m.SetOfflineMode(true); err != nil {
		t.Fatalf("SetOfflineMode failed: %v", err)
	}
	offline, err := m.OfflineMode()
	if err != nil {
		t.Fatalf("OfflineMode failed: %v", err)
	}
	if !offline {
		t.Error("offline mode = false, want true")
	}

	if err := m.SetOfflineMode(false); err != nil {
		t.Fatalf("SetOfflineMode failed: %v", err)
	}
	offline, err = m.OfflineMode()
	if err != nil {
		t.Fatalf("OfflineMode failed: %v", err)
	}
	if offline {
		t.Error("offline mode = true, want false after reset")
	}
}

func TestDeviceID_StableAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")

	m1, err := OpenPath(dbPath)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	id1, err := m1.DeviceID()
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if id1 == "" {
		t.Fatal("DeviceID returned empty id")
	}
	id2, err := m1.DeviceID()
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if id2 != id1 {
		t.Errorf("DeviceID changed within one session: %q then %q", id1, id2)
	}
	m1.Close()

	m2, err := OpenPath(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer m2.Close()
	id3, err := m2.DeviceID()
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if id3 != id1 {
		t.Errorf("DeviceID changed across opens: %q then %q", id1, id3)
	}
}

func TestPendingListens_AddAndListOldestFirst(t *testing.T) {
	m := openTestManager(t)

	first := PendingListen{
		TrackID:      "t1",
		Artist:       "Artist A",
		Track:        "Song One",
		Album:        "Album",
		DurationSecs: 180,
		ListenedAt:   time.Unix(1000, 0),
	}
	second := PendingListen{
		TrackID:    "t2",
		Artist:     "Artist B",
		Track:      "Song Two",
		ListenedAt: time.Unix(2000, 0),
	}

	if err := m.AddPendingListen(first); err != nil {
		t.Fatalf("AddPendingListen failed: %v", err)
	}
	if err := m.AddPendingListen(second); err != nil {
		t.Fatalf("AddPendingListen failed: %v", err)
	}

	listens, err := m.PendingListens()
	if err != nil {
		t.Fatalf("PendingListens failed: %v", err)
	}
	if len(listens) != 2 {
		t.Fatalf("got %d listens, want 2", len(listens))
	}
	if listens[0].Track != "Song One" || listens[1].Track != "Song Two" {
		t.Errorf("listens out of order: %q, %q", listens[0].Track, listens[1].Track)
	}
	if listens[0].Artist != "Artist A" {
		t.Errorf("Artist = %q, want %q", listens[0].Artist, "Artist A")
	}
	if listens[0].DurationSecs != 180 {
		t.Errorf("DurationSecs = %d, want 180", listens[0].DurationSecs)
	}
	if !listens[0].ListenedAt.Equal(time.Unix(1000, 0)) {
		t.Errorf("ListenedAt = %v, want %v", listens[0].ListenedAt, time.Unix(1000, 0))
	}
	if listens[1].Album != "" {
		t.Errorf("Album = %q, want empty", listens[1].Album)
	}

	count, err := m.PendingListenCount()
	if err != nil {
		t.Fatalf("PendingListenCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestPendingListens_Delete(t *testing.T) {
	m := openTestManager(t)

	if err := m.AddPendingListen(PendingListen{Artist: "A", Track: "T", ListenedAt: time.Now()}); err != nil {
		t.Fatalf("AddPendingListen failed: %v", err)
	}
	listens, err := m.PendingListens()
	if err != nil {
		t.Fatalf("PendingListens failed: %v", err)
	}
	if len(listens) != 1 {
		t.Fatalf("got %d listens, want 1", len(listens))
	}

	if err := m.DeletePendingListen(listens[0].ID); err != nil {
		t.Fatalf("DeletePendingListen failed: %v", err)
	}
	count, err := m.PendingListenCount()
	if err != nil {
		t.Fatalf("PendingListenCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after delete", count)
	}
}

func TestPendingListens_UpdateAttempt(t *testing.T) {
	m := openTestManager(t)

	if err := m.AddPendingListen(PendingListen{Artist: "A", Track: "T", ListenedAt: time.Now()}); err != nil {
		t.Fatalf("AddPendingListen failed: %v", err)
	}
	listens, _ := m.PendingListens()

	if err := m.UpdatePendingListenAttempt(listens[0].ID, "connection refused"); err != nil {
		t.Fatalf("UpdatePendingListenAttempt failed: %v", err)
	}
	if err := m.UpdatePendingListenAttempt(listens[0].ID, "timeout"); err != nil {
		t.Fatalf("UpdatePendingListenAttempt failed: %v", err)
	}

	listens, err := m.PendingListens()
	if err != nil {
		t.Fatalf("PendingListens failed: %v", err)
	}
	if listens[0].Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", listens[0].Attempts)
	}
	if listens[0].LastError != "timeout" {
		t.Errorf("LastError = %q, want %q", listens[0].LastError, "timeout")
	}
}

func TestDeleteOldPendingListens(t *testing.T) {
	m := openTestManager(t)

	// Insert with an old created_at directly; AddPendingListen always stamps now.
	_, err := m.db.Exec(`
		INSERT INTO pending_listens (artist, track, duration_seconds, listened_at, attempts, last_error, created_at)
		VALUES ('A', 'Old', 0, 0, 0, '', ?)
	`, time.Now().Add(-48*time.Hour).Unix())
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := m.AddPendingListen(PendingListen{Artist: "A", Track: "Fresh", ListenedAt: time.Now()}); err != nil {
		t.Fatalf("AddPendingListen failed: %v", err)
	}

	if err := m.DeleteOldPendingListens(24 * time.Hour); err != nil {
		t.Fatalf("DeleteOldPendingListens failed: %v", err)
	}

	listens, err := m.PendingListens()
	if err != nil {
		t.Fatalf("PendingListens failed: %v", err)
	}
	if len(listens) != 1 || listens[0].Track != "Fresh" {
		t.Errorf("expected only the fresh listen to survive, got %+v", listens)
	}
}

func TestLastfmSession_Roundtrip(t *testing.T) {
	m := openTestManager(t)

	session, err := m.GetLastfmSession()
	if err != nil {
		t.Fatalf("GetLastfmSession failed: %v", err)
	}
	if session != nil {
		t.Errorf("expected nil session on empty db, got %+v", session)
	}

	if err := m.SaveLastfmSession("alice", "key-1"); err != nil {
		t.Fatalf("SaveLastfmSession failed: %v", err)
	}
	session, err = m.GetLastfmSession()
	if err != nil {
		t.Fatalf("GetLastfmSession failed: %v", err)
	}
	if session == nil {
		t.Fatal("expected non-nil session")
	}
	if session.Username != "alice" || session.SessionKey != "key-1" {
		t.Errorf("session = %+v, want alice/key-1", session)
	}

	// Saving again replaces the single row.
	if err := m.SaveLastfmSession("alice", "key-2"); err != nil {
		t.Fatalf("SaveLastfmSession failed: %v", err)
	}
	session, _ = m.GetLastfmSession()
	if session.SessionKey != "key-2" {
		t.Errorf("SessionKey = %q, want key-2", session.SessionKey)
	}

	if err := m.DeleteLastfmSession(); err != nil {
		t.Fatalf("DeleteLastfmSession failed: %v", err)
	}
	session, _ = m.GetLastfmSession()
	if session != nil {
		t.Errorf("expected nil session after delete, got %+v", session)
	}
}
