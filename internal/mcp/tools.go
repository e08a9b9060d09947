package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmmcquay/leelawatcher/internal/archive"
	"github.com/dmmcquay/leelawatcher/internal/cache"
	"github.com/dmmcquay/leelawatcher/internal/goboard"
	"github.com/dmmcquay/leelawatcher/internal/logging"
	"github.com/dmmcquay/leelawatcher/internal/registry"
	"github.com/dmmcquay/leelawatcher/internal/sgf"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DefaultListLimit caps listArchivedGames when no limit is given.
const DefaultListLimit = 20

// Boards exposes the focus board and the navigation list.
type Boards interface {
	Snapshot() (registry.Snapshot, bool)
	List() []registry.Summary
}

// Navigator moves the focus.
type Navigator interface {
	Navigate(forward bool) bool
}

// Archive lists and fetches archived games.
type Archive interface {
	List(limit int) ([]archive.Game, error)
	Get(id string) (*archive.Game, error)
}

// Status is reported by getWatcherStatus.
type Status struct {
	HarnessRunning   bool `json:"harnessRunning"`
	InProgress       bool `json:"inProgress"`
	ActiveBoards     int  `json:"activeBoards"`
	FinishedBoards   int  `json:"finishedBoards"`
	EndgameThreshold int  `json:"endgameThreshold"`
	ArchivedGames    int  `json:"archivedGames,omitempty"`
}

// ToolsHandler exposes the watcher as MCP tools.
type ToolsHandler struct {
	boards     Boards
	navigator  Navigator
	archive    Archive
	status     func() Status
	positions  *cache.LRU[string, string]
	logger     logging.ContextLogger
	middleware *Middleware
}

// NewToolsHandler creates a new tools handler.
func NewToolsHandler(boards Boards, navigator Navigator, logger logging.ContextLogger) *ToolsHandler {
	return &ToolsHandler{
		boards:    boards,
		navigator: navigator,
		logger:    logger,
	}
}

// SetMiddleware sets the middleware for the tools handler.
func (h *ToolsHandler) SetMiddleware(middleware *Middleware) {
	h.middleware = middleware
}

// SetArchive enables the archived game tools.
func (h *ToolsHandler) SetArchive(a Archive) {
	h.archive = a
}

// SetPositionCache caches rendered archived positions. A nil cache
// renders every request.
func (h *ToolsHandler) SetPositionCache(c *cache.LRU[string, string]) {
	h.positions = c
}

// SetStatus enables getWatcherStatus.
func (h *ToolsHandler) SetStatus(fn func() Status) {
	h.status = fn
}

// RegisterTools registers all tools with the MCP server.
func (h *ToolsHandler) RegisterTools(s *server.MCPServer) {
	h.add(s, mcp.NewTool("getFocusBoard",
		mcp.WithDescription("Show the board currently in focus as a text diagram with its seed, move number and result"),
	), h.HandleGetFocusBoard)

	h.add(s, mcp.NewTool("listBoards",
		mcp.WithDescription("List the boards that can be navigated to, oldest first, marking the focus"),
	), h.HandleListBoards)

	h.add(s, mcp.NewTool("nextBoard",
		mcp.WithDescription("Move the focus to the next newer board and show it"),
	), h.handleNavigate(true))

	h.add(s, mcp.NewTool("previousBoard",
		mcp.WithDescription("Move the focus to the next older board and show it"),
	), h.handleNavigate(false))

	if h.status != nil {
		h.add(s, mcp.NewTool("getWatcherStatus",
			mcp.WithDescription("Report whether the harness is running, whether games are in progress, and board counts"),
		), h.HandleGetWatcherStatus)
	}

	if h.archive != nil {
		h.add(s, mcp.NewTool("listArchivedGames",
			mcp.WithDescription("List archived finished games, newest first"),
			mcp.WithNumber("limit",
				mcp.Description(fmt.Sprintf("Maximum number of games (default: %d)", DefaultListLimit)),
			),
		), h.HandleListArchivedGames)

		h.add(s, mcp.NewTool("getArchivedGame",
			mcp.WithDescription("Return the SGF record of an archived game"),
			mcp.WithString("id",
				mcp.Description("Archive ID from listArchivedGames"),
				mcp.Required(),
			),
		), h.HandleGetArchivedGame)

		h.add(s, mcp.NewTool("showArchivedPosition",
			mcp.WithDescription("Replay an archived game and show the board after a given move"),
			mcp.WithString("id",
				mcp.Description("Archive ID from listArchivedGames"),
				mcp.Required(),
			),
			mcp.WithNumber("moveNumber",
				mcp.Description("Show the position after this many moves. If not specified, shows the final position."),
			),
		), h.HandleShowArchivedPosition)
	}
}

func (h *ToolsHandler) add(s *server.MCPServer, tool mcp.Tool, handler ToolHandler) {
	if h.middleware != nil {
		handler = h.middleware.WrapTool(tool.Name, handler)
	}
	s.AddTool(tool, server.ToolHandlerFunc(handler))
}

func (h *ToolsHandler) requestLogger(ctx context.Context, tool string) logging.ContextLogger {
	ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
	ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())
	return h.logger.WithContext(ctx).WithField("tool", tool)
}

// HandleGetFocusBoard handles the getFocusBoard tool.
func (h *ToolsHandler) HandleGetFocusBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.requestLogger(ctx, "getFocusBoard")
	logger.Debug("Handling getFocusBoard request")

	snap, ok := h.boards.Snapshot()
	if !ok {
		return mcp.NewToolResultText("No games are being watched yet"), nil
	}
	return mcp.NewToolResultText(formatSnapshot(snap)), nil
}

// HandleListBoards handles the listBoards tool.
func (h *ToolsHandler) HandleListBoards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.requestLogger(ctx, "listBoards")
	logger.Debug("Handling listBoards request")

	list := h.boards.List()
	if len(list) == 0 {
		return mcp.NewToolResultText("No games are being watched yet"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d boards:\n", len(list))
	for i, b := range list {
		marker := " "
		if b.Focus {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %2d. %s %s move %d", marker, i+1, b.Type, b.Seed, b.MoveNum)
		switch {
		case b.Score != "":
			fmt.Fprintf(&sb, " (%s)", b.Score)
		case b.GameOver:
			sb.WriteString(" (finished)")
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (h *ToolsHandler) handleNavigate(forward bool) ToolHandler {
	name := "previousBoard"
	if forward {
		name = "nextBoard"
	}
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := h.requestLogger(ctx, name)
		logger.Debug("Handling navigation request")

		moved := h.navigator.Navigate(forward)
		snap, ok := h.boards.Snapshot()
		if !ok {
			return mcp.NewToolResultText("No games are being watched yet"), nil
		}

		text := formatSnapshot(snap)
		if !moved {
			edge := "oldest"
			if forward {
				edge = "newest"
			}
			text = fmt.Sprintf("Already at the %s board\n%s", edge, text)
		}
		return mcp.NewToolResultText(text), nil
	}
}

// HandleGetWatcherStatus handles the getWatcherStatus tool.
func (h *ToolsHandler) HandleGetWatcherStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.requestLogger(ctx, "getWatcherStatus")
	logger.Debug("Handling getWatcherStatus request")

	if h.status == nil {
		return nil, errors.New("status is not available")
	}
	data, err := json.MarshalIndent(h.status(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// HandleListArchivedGames handles the listArchivedGames tool.
func (h *ToolsHandler) HandleListArchivedGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.requestLogger(ctx, "listArchivedGames")
	logger.Info("Handling listArchivedGames request")

	if h.archive == nil {
		return nil, errors.New("archive is not enabled")
	}

	limit := DefaultListLimit
	if n, ok, err := intArg(request, "limit"); err != nil {
		return nil, err
	} else if ok {
		if n < 1 {
			return nil, fmt.Errorf("limit must be positive")
		}
		limit = n
	}

	games, err := h.archive.List(limit)
	if err != nil {
		logger.Error("Failed to list archived games", "error", err)
		return nil, fmt.Errorf("failed to list archived games: %w", err)
	}
	if len(games) == 0 {
		return mcp.NewToolResultText("No archived games"), nil
	}

	var sb strings.Builder
	for _, g := range games {
		fmt.Fprintf(&sb, "%s  %s  %s %s, %d moves", g.ID, g.SavedAt.Format("2006-01-02 15:04:05"), g.Type, g.Seed, g.Moves)
		if g.Score != "" {
			fmt.Fprintf(&sb, ", %s", g.Score)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetArchivedGame handles the getArchivedGame tool.
func (h *ToolsHandler) HandleGetArchivedGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.requestLogger(ctx, "getArchivedGame")
	logger.Info("Handling getArchivedGame request")

	g, err := h.archivedGame(request)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(g.SGF), nil
}

// HandleShowArchivedPosition handles the showArchivedPosition tool.
func (h *ToolsHandler) HandleShowArchivedPosition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.requestLogger(ctx, "showArchivedPosition")
	logger.Info("Handling showArchivedPosition request")

	if h.archive == nil {
		return nil, errors.New("archive is not enabled")
	}
	id, err := stringArg(request, "id")
	if err != nil {
		return nil, err
	}
	moveNum, limited, err := intArg(request, "moveNumber")
	if err != nil {
		return nil, err
	}
	if limited && moveNum < 0 {
		return nil, fmt.Errorf("moveNumber must not be negative")
	}

	key := id + "@end"
	if limited {
		key = fmt.Sprintf("%s@%d", id, moveNum)
	}
	text, err := h.positions.GetOrLoad(key, func() (string, error) {
		return h.renderArchivedPosition(logger, id, moveNum, limited)
	})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(text), nil
}

func (h *ToolsHandler) renderArchivedPosition(logger logging.ContextLogger, id string, moveNum int, limited bool) (string, error) {
	g, err := h.archive.Get(id)
	if err != nil {
		return "", fmt.Errorf("failed to load game %s: %w", id, err)
	}

	rec, err := sgf.Parse(g.SGF)
	if err != nil {
		return "", fmt.Errorf("failed to parse archived SGF: %w", err)
	}
	if limited && moveNum < len(rec.Moves) {
		rec.Moves = rec.Moves[:moveNum]
		rec.Result = ""
	}

	b, err := sgf.Replay(rec, goboard.ParseType(g.Type))
	if err != nil {
		logger.Error("Failed to replay archived game", "id", g.ID, "error", err)
		return "", fmt.Errorf("failed to replay game: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s game %s after %d of %d moves", g.Type, g.Seed, len(rec.Moves), g.Moves)
	if rec.Result != "" {
		fmt.Fprintf(&sb, ", result %s", rec.Result)
	}
	sb.WriteString("\n")
	sb.WriteString(b.CurrPos().String())
	return sb.String(), nil
}

func (h *ToolsHandler) archivedGame(request mcp.CallToolRequest) (*archive.Game, error) {
	if h.archive == nil {
		return nil, errors.New("archive is not enabled")
	}
	id, err := stringArg(request, "id")
	if err != nil {
		return nil, err
	}
	g, err := h.archive.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}
	return g, nil
}

func formatSnapshot(snap registry.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Board %d of %d: %s game %s, move %d", snap.Index+1, snap.Count, snap.Type, snap.Seed, snap.MoveNum)
	switch {
	case snap.Score != "":
		fmt.Fprintf(&sb, ", result %s", snap.Score)
	case snap.GameOver:
		sb.WriteString(", finished")
	default:
		fmt.Fprintf(&sb, ", %s to play", snap.ToMove)
	}
	if snap.Endgame {
		sb.WriteString(" (endgame)")
	}
	sb.WriteString("\n")
	if snap.LastMove != nil {
		fmt.Fprintf(&sb, "Last move: %s\n", snap.LastMove)
	}
	sb.WriteString(snap.Position.String())
	return sb.String()
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func stringArg(request mcp.CallToolRequest, name string) (string, error) {
	v, ok := arguments(request)[name]
	if !ok {
		return "", fmt.Errorf("missing required parameter '%s'", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s must be a non-empty string", name)
	}
	return s, nil
}

// intArg accepts JSON numbers and numeric strings.
func intArg(request mcp.CallToolRequest, name string) (int, bool, error) {
	v, ok := arguments(request)[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), true, nil
	case int:
		return n, true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false, fmt.Errorf("%s must be a number", name)
		}
		return i, true, nil
	default:
		return 0, false, fmt.Errorf("%s must be a number", name)
	}
}
