package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid_Validation(t *testing.T) {
	_, err := NewGrid(1, nil)
	assert.True(t, errors.Is(err, ErrInvalidBoard))

	_, err = NewGrid(MaxGridSize+1, nil)
	assert.True(t, errors.Is(err, ErrInvalidBoard))

	_, err = NewGrid(5, []Position{{X: 5, Y: 0}})
	assert.True(t, errors.Is(err, ErrInvalidBoard))

	g, err := NewGrid(5, []Position{{X: 1, Y: 1}, {X: 1, Y: 1}})
	require.NoError(t, err)
	assert.Equal(t, 24, g.OpenCells())
}

func TestGrid_ClaimRules(t *testing.T) {
	g, err := NewGrid(4, []Position{{X: 2, Y: 2}})
	require.NoError(t, err)

	assert.True(t, g.Claim(0, 0, "P1"))
	assert.True(t, g.Claim(0, 0, "P1"), "re-claiming an owned cell is idempotent")
	assert.False(t, g.Claim(0, 0, "P2"))
	assert.False(t, g.Claim(2, 2, "P1"), "walls cannot be claimed")
	assert.False(t, g.Claim(4, 0, "P1"))
	assert.False(t, g.Claim(0, 1, NoOwner))

	c, _ := g.CellAt(0, 0)
	assert.Equal(t, PlayerID("P1"), c.Owner)
	assert.Equal(t, 1, g.CountOwned("P1"))
	assert.Equal(t, 0, g.CountOwned("P2"))
}

func TestGrid_IdempotentReclaimTouchesNothingElse(t *testing.T) {
	g, err := NewGrid(3, nil)
	require.NoError(t, err)
	require.True(t, g.Claim(0, 0, "P1"))
	require.True(t, g.Claim(1, 1, "P2"))
	before := g.OwnerSnapshot()

	require.True(t, g.Claim(0, 0, "P1"))
	assert.Equal(t, before, g.OwnerSnapshot())
}

func TestGrid_ReleaseRoundTrip(t *testing.T) {
	g, err := NewGrid(3, []Position{{X: 2, Y: 2}})
	require.NoError(t, err)
	require.True(t, g.Claim(1, 0, "P1"))

	assert.False(t, g.Release(1, 0, "P2"), "non-owner release fails")
	c, _ := g.CellAt(1, 0)
	assert.Equal(t, PlayerID("P1"), c.Owner, "failed release must not mutate")

	assert.True(t, g.Release(1, 0, "P1"))
	assert.True(t, g.Claim(1, 0, "P2"), "released cell is claimable by another player")

	assert.False(t, g.Release(0, 0, "P1"), "releasing an unowned cell fails")
	assert.False(t, g.Release(2, 2, "P1"), "releasing a wall fails")
	assert.False(t, g.Release(-1, 0, "P1"))
}

func TestGrid_ConcurrentClaimsExactlyOneWinner(t *testing.T) {
	for round := 0; round < 50; round++ {
		g, err := NewGrid(3, nil)
		require.NoError(t, err)

		const contenders = 8
		results := make(chan PlayerID, contenders)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < contenders; i++ {
			id := PlayerID(fmt.Sprintf("P%d", i+1))
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if g.Claim(1, 1, id) {
					results <- id
				}
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		var winners []PlayerID
		for id := range results {
			winners = append(winners, id)
		}
		require.Len(t, winners, 1)
		c, _ := g.CellAt(1, 1)
		assert.Equal(t, winners[0], c.Owner)
	}
}

func TestGrid_ConcurrentMovesNeverShareACell(t *testing.T) {
	g, err := NewGrid(3, nil)
	require.NoError(t, err)
	require.True(t, g.Claim(0, 1, "P1"))
	require.True(t, g.Claim(2, 1, "P2"))

	var wg sync.WaitGroup
	decisions := make([]MoveDecision, 2)
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		decisions[0] = g.Move("P1", Position{X: 0, Y: 1}, Position{X: 1, Y: 1})
	}()
	go func() {
		defer wg.Done()
		<-start
		decisions[1] = g.Move("P2", Position{X: 2, Y: 1}, Position{X: 1, Y: 1})
	}()
	close(start)
	wg.Wait()

	assert.NotEqual(t, decisions[0].Accept, decisions[1].Accept, "exactly one move wins the contested cell")
	assert.Equal(t, 1, g.CountOwned("P1"))
	assert.Equal(t, 1, g.CountOwned("P2"))
}

func TestGrid_OwnershipInvariantUnderLoad(t *testing.T) {
	g, err := NewGrid(4, []Position{{X: 1, Y: 1}, {X: 2, Y: 2}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		id := PlayerID(fmt.Sprintf("P%d", i+1))
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				x, y := (seed+n)%4, (seed*3+n)%4
				if g.Claim(x, y, id) && n%2 == 0 {
					g.Release(x, y, id)
				}
			}
		}(i)
	}
	wg.Wait()

	for y, row := range g.Cells() {
		for x, c := range row {
			if c.Wall {
				assert.Equal(t, NoOwner, c.Owner, "wall (%d,%d) has an owner", x, y)
			}
		}
	}
}

func TestGrid_ClaimNearest(t *testing.T) {
	g, err := NewGrid(3, []Position{{X: 1, Y: 0}})
	require.NoError(t, err)
	require.True(t, g.Claim(0, 0, "P1"))

	pos, ok := g.ClaimNearest(Position{X: 0, Y: 0}, "P2")
	require.True(t, ok)
	assert.Equal(t, Position{X: 0, Y: 1}, pos, "nearest open neighbour of (0,0)")

	full, err := NewGrid(2, nil)
	require.NoError(t, err)
	for _, p := range []Position{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		require.True(t, full.Claim(p.X, p.Y, "P1"))
	}
	_, ok = full.ClaimNearest(Position{}, "P2")
	assert.False(t, ok)
	assert.True(t, full.Full())
}

func TestGrid_ClaimNearestPrefersOrthogonalNeighbours(t *testing.T) {
	g, err := NewGrid(3, nil)
	require.NoError(t, err)
	require.True(t, g.Claim(1, 1, "P1"))

	pos, ok := g.ClaimNearest(Position{X: 1, Y: 1}, "P2")
	require.True(t, ok)
	assert.Equal(t, Position{X: 1, Y: 0}, pos, "the diagonal (0,0) is scanned first but is farther")
	assert.Equal(t, 1, ManhattanDistance(pos, Position{X: 1, Y: 1}))

	_, ok = g.ClaimNearest(Position{X: 1, Y: 1}, NoOwner)
	assert.False(t, ok)
}

func TestGrid_FreezeAndReset(t *testing.T) {
	g, err := NewGrid(3, []Position{{X: 2, Y: 2}})
	require.NoError(t, err)
	require.True(t, g.Claim(0, 0, "P1"))

	snap := g.Freeze()
	assert.Equal(t, PlayerID("P1"), snap[0][0])
	assert.True(t, g.Frozen())
	assert.False(t, g.Claim(1, 1, "P2"), "claims fail once frozen")

	g.Reset()
	assert.False(t, g.Frozen())
	assert.Equal(t, 0, g.CountOwned("P1"))
	c, _ := g.CellAt(2, 2)
	assert.True(t, c.Wall, "walls survive a reset")
	assert.True(t, g.Claim(1, 1, "P2"))
}

func TestGrid_ReleaseAll(t *testing.T) {
	g, err := NewGrid(3, nil)
	require.NoError(t, err)
	g.Claim(0, 0, "P1")
	g.Claim(1, 0, "P1")
	g.Claim(2, 0, "P2")

	assert.Equal(t, 2, g.ReleaseAll("P1"))
	assert.Equal(t, 0, g.CountOwned("P1"))
	assert.Equal(t, 1, g.CountOwned("P2"))
	assert.Equal(t, 0, g.ReleaseAll(NoOwner))
}
