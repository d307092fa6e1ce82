// Command analyze validates the board layouts in a config directory and
// prints quick, human-readable heuristics about each one: open and wall cell
// counts, how many cells each player could hold on a full board, the number
// of separate open regions and whether the spawn corners share one.
//
// It exits non-zero if any layout is invalid.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/gridclaim/game/engine"
)

// ValidationResult captures the outcome of checking a single file.
type ValidationResult struct {
	File     string
	Valid    bool
	Err      error
	Analysis *Analysis
}

// Analysis summarises a valid board.
type Analysis struct {
	Name             string
	GridSize         int
	OpenCells        int
	Walls            int
	CellsPerPlayer   int
	Regions          int
	CornersConnected bool
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "validate and summarise board layouts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory containing board layouts"},
			&cli.IntFlag{Name: "max-players", Value: 4, Usage: "players to divide the board between"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(os.Stdout, cmd.String("config-dir"), int(cmd.Int("max-players")))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(w io.Writer, dir string, players int) error {
	results, err := validateDir(dir, players)
	if err != nil {
		return err
	}

	invalid := 0
	for _, r := range results {
		fmt.Fprintf(w, "\n=== Analyzing %s ===\n", r.File)
		if !r.Valid {
			invalid++
			fmt.Fprintf(w, "INVALID: %v\n", r.Err)
			continue
		}
		printAnalysis(w, r.Analysis)
	}

	fmt.Fprintf(w, "\n%d boards, %d invalid\n", len(results), invalid)
	if invalid > 0 {
		return fmt.Errorf("%d invalid board(s) in %s", invalid, dir)
	}
	return nil
}

// validateDir checks every .json file in dir, in name order.
func validateDir(dir string, players int) ([]ValidationResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	results := make([]ValidationResult, 0, len(files))
	for _, name := range files {
		results = append(results, validateFile(filepath.Join(dir, name), players))
	}
	return results, nil
}

func validateFile(path string, players int) ValidationResult {
	result := ValidationResult{File: filepath.Base(path)}

	config, err := engine.LoadBoardConfig(path)
	if err != nil {
		result.Err = err
		return result
	}
	result.Valid = true
	result.Analysis = analyzeBoard(config, players)
	return result
}

func analyzeBoard(config *engine.BoardConfig, players int) *Analysis {
	size := config.GridSize
	wall := func(x, y int) bool {
		return len(config.Layout) > 0 && config.Layout[y][x] == engine.WallChar
	}

	a := &Analysis{Name: config.Name, GridSize: size}
	a.Walls = len(config.Walls())
	a.OpenCells = size*size - a.Walls
	if players > 0 {
		a.CellsPerPlayer = a.OpenCells / players
	}

	// Flood fill the open cells into 4-connected regions.
	region := make([][]int, size)
	for y := range region {
		region[y] = make([]int, size)
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if wall(x, y) || region[y][x] != 0 {
				continue
			}
			a.Regions++
			queue := []engine.Position{{X: x, Y: y}}
			region[y][x] = a.Regions
			for len(queue) > 0 {
				p := queue[0]
				queue = queue[1:]
				for _, d := range []engine.Position{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}} {
					nx, ny := p.X+d.X, p.Y+d.Y
					if nx < 0 || ny < 0 || nx >= size || ny >= size || wall(nx, ny) || region[ny][nx] != 0 {
						continue
					}
					region[ny][nx] = a.Regions
					queue = append(queue, engine.Position{X: nx, Y: ny})
				}
			}
		}
	}

	corners := engine.Corners(size)
	a.CornersConnected = true
	for _, c := range corners[1:] {
		if region[c.Y][c.X] != region[corners[0].Y][corners[0].X] {
			a.CornersConnected = false
		}
	}
	return a
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d\n", a.GridSize, a.GridSize)
	fmt.Fprintf(w, "Open Cells: %d\n", a.OpenCells)
	fmt.Fprintf(w, "Walls: %d\n", a.Walls)
	fmt.Fprintf(w, "Cells Per Player: %d\n", a.CellsPerPlayer)
	fmt.Fprintf(w, "Open Regions: %d\n", a.Regions)
	if a.CornersConnected {
		fmt.Fprintln(w, "All spawn corners share one open region")
	} else {
		fmt.Fprintln(w, "WARNING: spawn corners are walled off from each other")
	}
}
