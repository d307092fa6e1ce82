package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/gridclaim/game/config"
	"github.com/wricardo/gridclaim/game/engine"
	"github.com/wricardo/gridclaim/game/record"
	"github.com/wricardo/gridclaim/game/service"
)

// Version is reported to MCP clients during initialization.
const Version = "1.0.0"

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Grid Claim",
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Grid Claim - MCP Interface

This is a read-only observer that proxies all requests to the REST API server.
Players connect over TCP or WebSocket and send MOVE,<x>,<y>, READY and UNREADY.

GAME OBJECTIVE:
Own the most cells when the timer runs out or the board fills up. A player
holds the cell it stands on; moving claims the target and frees the cell left
behind. Walls (#) can never be owned.

AVAILABLE TOOLS:
- lobby_state: Current phase, countdown and readiness roster
- list_players: Connected players with positions and cell counts
- board: Rendered board (. free, # wall, digit = owning slot)
- standings: Live standings, or the final ones once the game is over
- match_history: Recorded games, or one game by match_id
- list_boards: Board layouts available to the server
- game_rules: Configured rules and the wire commands players use`),
	)

	c.registerTools()
}

func (c *Client) registerTools() {
	noArgs := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "lobby_state",
		Description: "Get the session phase, countdown and readiness of every connected player",
		InputSchema: noArgs,
	}, c.handleLobbyState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_players",
		Description: "List connected players with slot, color, position, readiness and owned cells",
		InputSchema: noArgs,
	}, c.handleListPlayers)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "board",
		Description: "Render the board. '.' is a free cell, '#' a wall and a digit the slot of the owning player",
		InputSchema: noArgs,
	}, c.handleBoard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "standings",
		Description: "Get players ranked by owned cells. Final once the game is over, live before that",
		InputSchema: noArgs,
	}, c.handleStandings)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "match_history",
		Description: "List finished games, most recent first, or show one game in detail",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": map[string]interface{}{
					"type":        "string",
					"description": "Match ID to show (optional)",
				},
			},
		},
	}, c.handleMatchHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_boards",
		Description: "List available board layouts",
		InputSchema: noArgs,
	}, c.handleListBoards)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Get the configured rules: board, capacity, countdown, game duration and accepted commands",
		InputSchema: noArgs,
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// Tool handlers

func (c *Client) handleLobbyState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var info service.LobbyInfo
	if err := c.apiCall(ctx, http.MethodGet, "/api/lobby", nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatLobby(&info)), nil
}

func (c *Client) handleListPlayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int                   `json:"count"`
		Players []*service.PlayerInfo `json:"players"`
	}
	if err := c.apiCall(ctx, http.MethodGet, "/api/players", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Players (%d):\n\n", response.Count)
	for _, p := range response.Players {
		ready := "not ready"
		if p.Ready {
			ready = "ready"
		}
		fmt.Fprintf(&b, "- %s at (%d,%d), %s, %d cells, color %s\n",
			p.ID, p.Position.X, p.Position.Y, ready, p.Cells, p.Color)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var info service.BoardInfo
	if err := c.apiCall(ctx, http.MethodGet, "/api/board", nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatBoard(&info)), nil
}

func (c *Client) handleStandings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var info service.StandingsInfo
	if err := c.apiCall(ctx, http.MethodGet, "/api/standings", nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStandings(&info)), nil
}

func (c *Client) handleMatchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	matchID, _ := args["match_id"].(string)

	if matchID != "" {
		var m record.Match
		if err := c.apiCall(ctx, http.MethodGet, "/api/matches/"+url.PathEscape(matchID), nil, &m); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatMatch(&m)), nil
	}

	var response struct {
		Count   int            `json:"count"`
		Matches []record.Match `json:"matches"`
	}
	if err := c.apiCall(ctx, http.MethodGet, "/api/matches", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Finished games (%d):\n\n", response.Count)
	for _, m := range response.Matches {
		winner := string(m.Winner)
		if winner == "" {
			winner = "none"
		}
		fmt.Fprintf(&b, "- %s on %s, ended %s (%s), winner %s\n",
			m.ID, m.Board, m.EndedAt.Format(time.RFC3339), m.Reason, winner)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleListBoards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count  int                 `json:"count"`
		Boards []*config.BoardInfo `json:"boards"`
	}
	if err := c.apiCall(ctx, http.MethodGet, "/api/boards", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available boards (%d):\n\n", response.Count)
	for _, board := range response.Boards {
		fmt.Fprintf(&b, "- %s: %s (%dx%d, %d walls)\n",
			board.ConfigID, board.Name, board.GridSize, board.GridSize, board.Walls)
		if board.Description != "" {
			fmt.Fprintf(&b, "  %s\n", board.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rules service.RulesInfo
	if err := c.apiCall(ctx, http.MethodGet, "/api/rules", nil, &rules); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Board: %s (%dx%d)\n", rules.Board, rules.GridSize, rules.GridSize)
	fmt.Fprintf(&b, "Max players: %d\n", rules.MaxPlayers)
	fmt.Fprintf(&b, "Countdown: %ds\n", rules.CountdownSeconds)
	fmt.Fprintf(&b, "Game duration: %s\n", rules.DurationText)
	b.WriteString("\nCommands:\n")
	for _, cmd := range rules.Commands {
		fmt.Fprintf(&b, "  %s\n", cmd)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// Formatting helpers

func formatLobby(info *service.LobbyInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s\n", info.Phase)
	fmt.Fprintf(&b, "Players: %d/%d\n", info.Players, info.Capacity)
	if info.CountdownRemaining > 0 {
		fmt.Fprintf(&b, "Countdown: %d\n", info.CountdownRemaining)
	}
	if info.EndsAt != nil {
		fmt.Fprintf(&b, "Ends at: %s\n", info.EndsAt.Format(time.RFC3339))
	}
	if len(info.Roster) > 0 {
		b.WriteString("\nRoster:\n")
		for _, r := range info.Roster {
			status := "NOT_READY"
			if r.Ready {
				status = "READY"
			}
			fmt.Fprintf(&b, "  %s %s\n", r.ID, status)
		}
	}
	return b.String()
}

func formatBoard(info *service.BoardInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Board: %s (%dx%d)\n", info.Name, info.GridSize, info.GridSize)
	fmt.Fprintf(&b, "Owned: %d/%d", info.OwnedCells, info.OpenCells)
	if info.Frozen {
		b.WriteString(" (final)")
	}
	b.WriteString("\n\n")
	for _, row := range info.Layout {
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String()
}

func formatStandings(info *service.StandingsInfo) string {
	var b strings.Builder
	if info.Final {
		b.WriteString("Final standings:\n")
	} else {
		fmt.Fprintf(&b, "Live standings (%s):\n", info.Phase)
	}
	if len(info.Standings) == 0 {
		b.WriteString("  no cells owned\n")
		return b.String()
	}
	for i, s := range info.Standings {
		fmt.Fprintf(&b, "  %d. %s %d\n", i+1, s.PlayerID, s.Score)
	}
	if info.Winner != "" {
		fmt.Fprintf(&b, "\nLeader: %s\n", info.Winner)
	}
	if len(info.Tied) > 0 {
		fmt.Fprintf(&b, "Tied: %s\n", joinIDs(info.Tied))
	}
	return b.String()
}

func formatMatch(m *record.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match: %s\n", m.ID)
	fmt.Fprintf(&b, "Board: %s (%dx%d)\n", m.Board, m.GridSize, m.GridSize)
	fmt.Fprintf(&b, "Played: %s to %s\n", m.StartedAt.Format(time.RFC3339), m.EndedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Ended by: %s\n", m.Reason)
	if m.Winner != "" {
		fmt.Fprintf(&b, "Winner: %s\n", m.Winner)
	}
	if len(m.Tied) > 0 {
		fmt.Fprintf(&b, "Tied: %s\n", joinIDs(m.Tied))
	}
	b.WriteString("\nStandings:\n")
	for i, s := range m.Standings {
		fmt.Fprintf(&b, "  %d. %s %d\n", i+1, s.PlayerID, s.Score)
	}
	return b.String()
}

func joinIDs(ids []engine.PlayerID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
