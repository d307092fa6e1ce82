package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/gridclaim/game/engine"
)

func writeBoard(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestAnalyzeBoard(t *testing.T) {
	tests := []struct {
		name             string
		config           *engine.BoardConfig
		players          int
		wantOpen         int
		wantRegions      int
		cornersConnected bool
	}{
		{
			name:             "open board",
			config:           engine.DefaultBoardConfig(4),
			players:          4,
			wantOpen:         16,
			wantRegions:      1,
			cornersConnected: true,
		},
		{
			name: "pillar",
			config: &engine.BoardConfig{Name: "pillar", GridSize: 3, Layout: []string{
				"...",
				".#.",
				"...",
			}},
			players:          2,
			wantOpen:         8,
			wantRegions:      1,
			cornersConnected: true,
		},
		{
			name: "split by a wall",
			config: &engine.BoardConfig{Name: "split", GridSize: 3, Layout: []string{
				".#.",
				".#.",
				".#.",
			}},
			players:          4,
			wantOpen:         6,
			wantRegions:      2,
			cornersConnected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := analyzeBoard(tt.config, tt.players)
			if a.OpenCells != tt.wantOpen {
				t.Errorf("OpenCells = %d, expected %d", a.OpenCells, tt.wantOpen)
			}
			if a.Walls != tt.config.GridSize*tt.config.GridSize-tt.wantOpen {
				t.Errorf("Walls = %d", a.Walls)
			}
			if a.CellsPerPlayer != tt.wantOpen/tt.players {
				t.Errorf("CellsPerPlayer = %d, expected %d", a.CellsPerPlayer, tt.wantOpen/tt.players)
			}
			if a.Regions != tt.wantRegions {
				t.Errorf("Regions = %d, expected %d", a.Regions, tt.wantRegions)
			}
			if a.CornersConnected != tt.cornersConnected {
				t.Errorf("CornersConnected = %v, expected %v", a.CornersConnected, tt.cornersConnected)
			}
		})
	}
}

func TestValidateDir(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir, "b_good.json", `{"name":"good","grid_size":3,"layout":["...",".#.","..."]}`)
	writeBoard(t, dir, "a_bad_char.json", `{"name":"bad","grid_size":2,"layout":["..",".x"]}`)
	writeBoard(t, dir, "c_corner.json", `{"name":"corner","grid_size":2,"layout":["#.",".."]}`)
	writeBoard(t, dir, "d_broken.json", `{"name":`)
	writeBoard(t, dir, "notes.txt", "ignored")

	results, err := validateDir(dir, 4)
	if err != nil {
		t.Fatalf("validateDir failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}

	if results[0].File != "a_bad_char.json" || results[0].Valid {
		t.Errorf("Expected a_bad_char.json to be first and invalid, got %+v", results[0])
	}
	if !errors.Is(results[0].Err, engine.ErrInvalidBoard) {
		t.Errorf("Expected ErrInvalidBoard, got %v", results[0].Err)
	}
	if !results[1].Valid || results[1].Analysis.OpenCells != 8 {
		t.Errorf("Expected b_good.json to be valid with 8 open cells, got %+v", results[1])
	}
	if results[2].Valid {
		t.Error("Expected walled spawn corner to be invalid")
	}
	if results[3].Valid {
		t.Error("Expected broken JSON to be invalid")
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir, "good.json", `{"name":"good","grid_size":3}`)

	var out bytes.Buffer
	if err := run(&out, dir, 4); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, want := range []string{"=== Analyzing good.json ===", "Open Cells: 9", "1 boards, 0 invalid"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output:\n%s", want, out.String())
		}
	}

	writeBoard(t, dir, "bad.json", `{"name":"bad","grid_size":1}`)
	out.Reset()
	if err := run(&out, dir, 4); err == nil {
		t.Error("Expected error when a board is invalid")
	}
	if !strings.Contains(out.String(), "INVALID") {
		t.Errorf("Expected INVALID in output:\n%s", out.String())
	}
}

func TestRun_MissingDir(t *testing.T) {
	if err := run(&bytes.Buffer{}, filepath.Join(t.TempDir(), "nope"), 4); err == nil {
		t.Error("Expected error for missing directory")
	}
}
