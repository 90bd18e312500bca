package models

import (
	"sync"
	"testing"
	"time"
)

// TestNewChannel tests Channel creation
func TestNewChannel(t *testing.T) {
	ch := NewChannel(2, 17, "News 24", true)

	if ch.ID() != 0 {
		t.Errorf("ID() = %d, want 0", ch.ID())
	}
	if ch.Name() != "News 24" {
		t.Errorf("Name() = %s, want News 24", ch.Name())
	}
	if !ch.Radio {
		t.Error("Radio not set")
	}
	if got := ch.StorageID(); got != (StorageID{BackendID: 2, UniqueID: 17}) {
		t.Errorf("StorageID() = %v", got)
	}
	if got := ch.StorageID().String(); got != "2:17" {
		t.Errorf("StorageID().String() = %s, want 2:17", got)
	}
	if ch.EPG() != nil {
		t.Error("EPG() should be nil for a new channel")
	}
}

// TestChannel_EPGIsCopied tests that callers cannot mutate the stored guide range
func TestChannel_EPGIsCopied(t *testing.T) {
	ch := NewChannel(1, 1, "A", false)
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ch.SetEPG(&EPGRange{First: first, Last: first.Add(time.Hour)})

	epg := ch.EPG()
	epg.First = time.Time{}

	if !ch.EPG().First.Equal(first) {
		t.Error("EPG() returned a shared value")
	}
}

// TestChannel_ConcurrentAccess tests thread-safety of the mutable fields
func TestChannel_ConcurrentAccess(t *testing.T) {
	ch := NewChannel(1, 1, "A", false)
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines * 2)

	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			ch.SetHidden(i%2 == 0)
			ch.SetLastWatched(time.Now())
			ch.SetID(int64(i + 1))
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			_ = ch.IsHidden()
			_ = ch.LastWatched()
			_ = ch.Name()
		}()
	}

	wg.Wait()

	if ch.ID() <= 0 {
		t.Errorf("ID() = %d, want > 0", ch.ID())
	}
}
