package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_InsertGetRemove(t *testing.T) {
	registry := NewSessionRegistry()
	sess := newGameSession("game-1", [2]string{"alice", "bob"}, false, false)

	registry.Insert(sess)

	got, err := registry.Get("game-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	assert.Same(t, sess, got)

	registry.Remove("game-1")
	_, err = registry.Get("game-1")
	assert.Error(t, err)
}

func TestClaimSeat_Basic(t *testing.T) {
	registry := NewSessionRegistry()
	wg := registry.CreateWaiting("alice", false)

	claimed, err := registry.ClaimSeat(wg.ID, "bob", 0)
	if err != nil {
		t.Fatalf("ClaimSeat failed: %v", err)
	}
	assert.Equal(t, "alice", claimed.Creator)

	// The seat is taken
	_, err = registry.ClaimSeat(wg.ID, "carol", 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GAME_FULL")
}

// A join landing between the winning claim and the session insert must read
// as a full game, never as an unknown one.
func TestClaimSeat_LoserSeesFullBeforeSessionInsert(t *testing.T) {
	registry := NewSessionRegistry()
	wg := registry.CreateWaiting("alice", false)

	if _, err := registry.ClaimSeat(wg.ID, "bob", 0); err != nil {
		t.Fatalf("ClaimSeat failed: %v", err)
	}

	// Session not inserted yet
	_, err := registry.ClaimSeat(wg.ID, "carol", 0)
	if err == nil {
		t.Fatal("Expected error for losing claim")
	}
	assert.Contains(t, err.Error(), "GAME_FULL")

	// Same answer once the session exists
	registry.Insert(newGameSession(wg.ID, [2]string{"alice", "bob"}, false, false))
	_, err = registry.ClaimSeat(wg.ID, "carol", 0)
	if err == nil {
		t.Fatal("Expected error joining a started game")
	}
	assert.Contains(t, err.Error(), "GAME_FULL")
}

func TestClaimSeat_CreatorCannotJoinOwnGame(t *testing.T) {
	registry := NewSessionRegistry()
	wg := registry.CreateWaiting("alice", false)

	_, err := registry.ClaimSeat(wg.ID, "alice", 0)
	if err == nil {
		t.Fatal("Expected error when creator claims their own seat")
	}
	assert.Contains(t, err.Error(), "ALREADY_JOINED")
}

func TestClaimSeat_VersionConflict(t *testing.T) {
	registry := NewSessionRegistry()
	wg := registry.CreateWaiting("alice", false)

	_, err := registry.ClaimSeat(wg.ID, "bob", 7)
	if err == nil {
		t.Fatal("Expected version conflict")
	}
	assert.Contains(t, err.Error(), "VERSION_CONFLICT")

	// The failed claim consumed nothing
	_, err = registry.ClaimSeat(wg.ID, "bob", 0)
	assert.NoError(t, err)
}

// Two concurrent joins race for one seat: exactly one wins, the loser sees
// the game as full once the winner's session is registered.
func TestClaimSeat_ConcurrentExactlyOneWins(t *testing.T) {
	registry := NewSessionRegistry()

	for round := 0; round < 20; round++ {
		wg := registry.CreateWaiting("alice", false)

		const joiners = 8
		var start, done sync.WaitGroup
		start.Add(1)
		done.Add(joiners)

		var mu sync.Mutex
		winners := 0
		var loserErrs []error

		for i := 0; i < joiners; i++ {
			go func(n int) {
				defer done.Done()
				start.Wait()
				_, err := registry.ClaimSeat(wg.ID, fmt.Sprintf("joiner-%d", n), 0)
				mu.Lock()
				if err == nil {
					winners++
				} else {
					loserErrs = append(loserErrs, err)
				}
				mu.Unlock()
			}(i)
		}
		start.Done()
		done.Wait()

		if winners != 1 {
			t.Fatalf("Round %d: expected exactly 1 winner, got %d", round, winners)
		}
		for _, err := range loserErrs {
			assert.Contains(t, err.Error(), "GAME_FULL")
		}
	}
}

func TestClaimSeat_StartedGameReportsFull(t *testing.T) {
	registry := NewSessionRegistry()
	wg := registry.CreateWaiting("alice", false)

	if _, err := registry.ClaimSeat(wg.ID, "bob", 0); err != nil {
		t.Fatalf("ClaimSeat failed: %v", err)
	}
	registry.Insert(newGameSession(wg.ID, [2]string{"alice", "bob"}, false, false))

	_, err := registry.ClaimSeat(wg.ID, "carol", 0)
	if err == nil {
		t.Fatal("Expected error joining a started game")
	}
	assert.Contains(t, err.Error(), "GAME_FULL")
}

func TestAbandonWaiting_OnlyCreator(t *testing.T) {
	registry := NewSessionRegistry()
	wg := registry.CreateWaiting("alice", false)

	err := registry.AbandonWaiting(wg.ID, "bob")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_CREATOR")

	assert.NoError(t, registry.AbandonWaiting(wg.ID, "alice"))
	assert.Error(t, registry.AbandonWaiting(wg.ID, "alice"))
}

func TestAbandonWaiting_ClaimedSeatCannotBeAbandoned(t *testing.T) {
	registry := NewSessionRegistry()
	wg := registry.CreateWaiting("alice", false)

	if _, err := registry.ClaimSeat(wg.ID, "bob", 0); err != nil {
		t.Fatalf("ClaimSeat failed: %v", err)
	}

	err := registry.AbandonWaiting(wg.ID, "alice")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GAME_FULL")
}

func TestListOpen_SkipsPrivateGames(t *testing.T) {
	registry := NewSessionRegistry()
	public := registry.CreateWaiting("alice", false)
	registry.CreateWaiting("bob", true)

	open := registry.ListOpen()
	if len(open) != 1 {
		t.Fatalf("Expected 1 open game, got %d", len(open))
	}
	assert.Equal(t, public.ID, open[0].GameID)

	// A claimed game is no longer joinable and drops off the listing
	if _, err := registry.ClaimSeat(public.ID, "carol", 0); err != nil {
		t.Fatalf("ClaimSeat failed: %v", err)
	}
	assert.Empty(t, registry.ListOpen())
}

func TestSweepExpiredWaiting(t *testing.T) {
	registry := NewSessionRegistry()
	fresh := registry.CreateWaiting("alice", false)
	stale := registry.CreateWaiting("bob", false)

	removed := registry.SweepExpiredWaiting(stale.CreatedAt.Add(waitingLobbyTTL + time.Second))
	assert.Equal(t, 2, removed)

	// Nothing joinable remains
	_, err := registry.ClaimSeat(fresh.ID, "carol", 0)
	assert.Error(t, err)
}

func TestSweepExpiredWaiting_SkipsClaimed(t *testing.T) {
	registry := NewSessionRegistry()
	wg := registry.CreateWaiting("alice", false)

	if _, err := registry.ClaimSeat(wg.ID, "bob", 0); err != nil {
		t.Fatalf("ClaimSeat failed: %v", err)
	}

	removed := registry.SweepExpiredWaiting(wg.CreatedAt.Add(waitingLobbyTTL + time.Second))
	assert.Equal(t, 0, removed)

	// The pending game still reads as full, not as expired
	_, err := registry.ClaimSeat(wg.ID, "carol", 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GAME_FULL")
}
