package connectivity

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	offline bool
	loadErr error
	saveErr error
	saves   int
}

func (s *memStore) OfflineMode() (bool, error) {
	return s.offline, s.loadErr
}

func (s *memStore) SetOfflineMode(enabled bool) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.offline = enabled
	s.saves++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recvChange(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case e := <-sub.Changes:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
		return Change{}
	}
}

func assertNoChange(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case e := <-sub.Changes:
		t.Fatalf("unexpected change event: %+v", e)
	default:
	}
}

func TestDefaults(t *testing.T) {
	tr := New(nil, testLogger())

	snap := tr.Snapshot()
	if snap.OfflineMode {
		t.Error("OfflineMode = true, want false by default")
	}
	if !snap.NetworkAvailable {
		t.Error("NetworkAvailable = false, want true by default")
	}
}

func TestLoadsPersistedPreference(t *testing.T) {
	tr := New(&memStore{offline: true}, testLogger())

	if !tr.OfflineMode() {
		t.Error("OfflineMode = false, want persisted true")
	}
}

func TestLoadErrorFallsBackToOnline(t *testing.T) {
	tr := New(&memStore{offline: true, loadErr: errors.New("db closed")}, testLogger())

	if tr.OfflineMode() {
		t.Error("OfflineMode = true, want false when load fails")
	}
}

func TestSetOfflineMode_NotifiesOnChange(t *testing.T) {
	tr := New(nil, testLogger())
	sub := tr.Subscribe()

	tr.SetOfflineMode(true)

	e := recvChange(t, sub)
	want := Change{
		Previous: Snapshot{OfflineMode: false, NetworkAvailable: true},
		Current:  Snapshot{OfflineMode: true, NetworkAvailable: true},
	}
	if e != want {
		t.Errorf("change = %+v, want %+v", e, want)
	}

	// Setting the same value again must not notify.
	tr.SetOfflineMode(true)
	assertNoChange(t, sub)
}

func TestSetNetworkAvailable_NotifiesOnChange(t *testing.T) {
	tr := New(nil, testLogger())
	sub := tr.Subscribe()

	tr.SetNetworkAvailable(false)

	e := recvChange(t, sub)
	if e.Current.NetworkAvailable {
		t.Error("Current.NetworkAvailable = true, want false")
	}
	if !e.Previous.NetworkAvailable {
		t.Error("Previous.NetworkAvailable = false, want true")
	}

	tr.SetNetworkAvailable(false)
	assertNoChange(t, sub)
}

func TestToggleOfflineMode(t *testing.T) {
	store := &memStore{}
	tr := New(store, testLogger())

	if got := tr.ToggleOfflineMode(); !got {
		t.Error("first toggle = false, want true")
	}
	if got := tr.ToggleOfflineMode(); got {
		t.Error("second toggle = true, want false")
	}
	if store.saves != 2 {
		t.Errorf("store saves = %d, want 2", store.saves)
	}
	if store.offline {
		t.Error("store.offline = true after double toggle, want false")
	}
}

func TestPersistErrorDoesNotBlockToggle(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	tr := New(store, testLogger())
	sub := tr.Subscribe()

	tr.SetOfflineMode(true)

	if !tr.OfflineMode() {
		t.Error("OfflineMode = false, want true despite persist failure")
	}
	e := recvChange(t, sub)
	if !e.Current.OfflineMode {
		t.Error("change not delivered despite persist failure")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	tr := New(nil, testLogger())
	_ = tr.Subscribe() // never read

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < eventBufferSize*3; i++ {
			tr.SetNetworkAvailable(i%2 == 0)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tracker blocked on a slow subscriber")
	}
}

func TestClose(t *testing.T) {
	tr := New(nil, testLogger())
	sub := tr.Subscribe()

	tr.Close()

	select {
	case <-sub.Done:
	case <-time.After(time.Second):
		t.Fatal("Done not closed")
	}

	// Close is idempotent.
	tr.Close()
}
