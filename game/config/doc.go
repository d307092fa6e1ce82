// Package config provides runtime settings and board layouts for the grid
// capture server.
//
// Settings are read from GRIDCLAIM_* environment variables (an optional .env
// file is loaded first by main). Command line flags override them.
//
// Board Format:
//
// Boards are JSON files in the config directory. The file name without
// ".json" is the config id:
//
//	{
//	  "name": "pillars",
//	  "description": "Four pillars in the middle",
//	  "grid_size": 6,
//	  "layout": [
//	    "......",
//	    "......",
//	    "..##..",
//	    "..##..",
//	    "......",
//	    "......"
//	  ]
//	}
//
// '.' is an open cell and '#' a permanent wall. An empty layout is an open
// board. The four spawn corners must be open.
//
// Usage:
//
//	settings, err := config.LoadSettings()
//	manager, err := config.NewManager(settings.ConfigDir, settings.GridSize)
//	board, err := manager.LoadConfig(settings.Board)
package config
