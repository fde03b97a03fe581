// Package main implements the play server: humans play against the trained
// bot over a websocket, one game per connection.
//
// The global trees are loaded read-only at startup; the server never
// merges match results, it only selects moves from the statistics the
// trainer accumulated.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oxolearn/oxo/game"
	"github.com/oxolearn/oxo/logging"
	"github.com/oxolearn/oxo/movetree"
	"github.com/oxolearn/oxo/player"
	"github.com/oxolearn/oxo/store"
)

type InfoResponse struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	TreeX    int    `json:"tree_x_nodes"`
	TreeO    int    `json:"tree_o_nodes"`
	Learning bool   `json:"learning"`
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type movePayload struct {
	Cell int `json:"cell"`
}

type resetPayload struct {
	Human string `json:"human"` // "X" or "O"
}

type boardPayload struct {
	Board       string  `json:"board"`
	Next        string  `json:"next"`
	Winner      string  `json:"winner"`
	Over        bool    `json:"over"`
	BotMove     int     `json:"bot_move"` // -1 when the bot did not move
	Recommended bool    `json:"recommended"`
	AvgWin      float64 `json:"avg_win_percent"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Server holds the read-only trees and configuration.
type Server struct {
	treeX    *movetree.MoveNode
	treeO    *movetree.MoveNode
	selector player.Config
	upgrader websocket.Upgrader
}

func NewServer(treeX, treeO *movetree.MoveNode, selector player.Config) *Server {
	return &Server{
		treeX:    treeX,
		treeO:    treeO,
		selector: selector,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	response := InfoResponse{
		Name:    "oxo",
		Version: "1.0.0",
		TreeX:   s.treeX.CountNodes(),
		TreeO:   s.treeO.CountNodes(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// session is one websocket game: the human against the bot.
type session struct {
	srv       *Server
	conn      *websocket.Conn
	board     *game.Board
	human     game.Piece
	bot       game.Piece
	localPath []movetree.PerspectiveHash
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade", "err", err)
		return
	}
	defer conn.Close()

	sess := &session{srv: s, conn: conn}
	sess.reset(game.PieceX)
	sess.maybeBotMove() // pushes the initial board; the bot moves first only as X

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("read", "err", err)
			}
			return
		}

		switch msg.Type {
		case "move":
			var p movePayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				sess.sendError(fmt.Sprintf("bad move payload: %v", err))
				continue
			}
			sess.humanMove(p.Cell)
		case "reset":
			var p resetPayload
			human := game.PieceX
			if err := json.Unmarshal(msg.Payload, &p); err == nil && p.Human == "O" {
				human = game.PieceO
			}
			sess.reset(human)
			sess.maybeBotMove()
		default:
			sess.sendError(fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

func (sess *session) reset(human game.Piece) {
	sess.board = game.NewBoard()
	sess.human = human
	sess.bot = human.Other()
	sess.localPath = nil
}

func (sess *session) humanMove(cell int) {
	if sess.board.Next != sess.human {
		sess.sendError("not your turn")
		return
	}
	if err := game.Apply(sess.board, cell); err != nil {
		sess.sendError(err.Error())
		return
	}
	sess.recordPosition()
	sess.maybeBotMove()
}

// maybeBotMove lets the bot reply when it is on turn, then pushes the new
// board state to the client.
func (sess *session) maybeBotMove() {
	if _, over := game.Winner(sess.board); over || sess.board.Next != sess.bot {
		sess.sendBoard(-1, false, 0)
		return
	}

	tree := sess.srv.treeX
	if sess.bot == game.PieceO {
		tree = sess.srv.treeO
	}

	cell := -1
	fromStats := false
	avg := 0.0
	if rec, ok := player.Recommend(tree, sess.localPath, sess.srv.selector); ok {
		cell = int(rec.MoveIndex)
		fromStats = true
		avg = rec.AverageWinPercent
	} else if c, ok := player.RandomMove(sess.board, nil); ok {
		cell = c
	}
	if cell < 0 {
		sess.sendBoard(-1, false, 0)
		return
	}

	if err := game.Apply(sess.board, cell); err != nil {
		// A stale recommendation pointing at an occupied cell: fall back.
		if c, ok := player.RandomMove(sess.board, nil); ok {
			cell = c
			fromStats = false
			avg = 0
			if err := game.Apply(sess.board, cell); err != nil {
				sess.sendError(err.Error())
				return
			}
		} else {
			sess.sendError(err.Error())
			return
		}
	}
	sess.recordPosition()
	sess.sendBoard(cell, fromStats, avg)
}

// recordPosition extends the bot-viewpoint hash path after any move.
func (sess *session) recordPosition() {
	h, err := movetree.HashBoard(sess.board, sess.bot)
	if err != nil {
		slog.Error("hash board", "err", err)
		return
	}
	sess.localPath = append(sess.localPath, h)
}

func (sess *session) sendBoard(botMove int, recommended bool, avg float64) {
	winner, over := game.Winner(sess.board)
	payload := boardPayload{
		Board:       sess.board.String(),
		Next:        sess.board.Next.String(),
		Winner:      winner.String(),
		Over:        over,
		BotMove:     botMove,
		Recommended: recommended,
		AvgWin:      avg,
	}
	sess.sendJSON(wsMessage{Type: "board", Payload: mustMarshal(payload)})
}

func (sess *session) sendError(text string) {
	sess.sendJSON(wsMessage{Type: "error", Payload: mustMarshal(errorPayload{Error: text})})
}

func (sess *session) sendJSON(msg wsMessage) {
	if err := sess.conn.WriteJSON(msg); err != nil {
		slog.Warn("write", "err", err)
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", ":8080", "HTTP listen address")
	dataDir := fs.String("data-dir", "data", "Directory holding the persisted move trees")
	exploreThreshold := fs.Float64("explore-threshold", 0, "Serve-time exploration threshold (0 = always play the best line)")
	exploreChance := fs.Float64("explore-chance", 0, "Serve-time exploration chance")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flag parse: %v\n", err)
		os.Exit(2)
	}

	slog.SetDefault(slog.New(logging.NewPrettyJSONHandler(os.Stderr, nil)))

	trees, err := store.NewTreeStore(*dataDir)
	if err != nil {
		slog.Error("tree store", "err", err)
		os.Exit(1)
	}
	treeX, err := loadOrEmpty(trees, "global_x", game.PieceX)
	if err != nil {
		slog.Error("load tree", "name", "global_x", "err", err)
		os.Exit(1)
	}
	treeO, err := loadOrEmpty(trees, "global_o", game.PieceO)
	if err != nil {
		slog.Error("load tree", "name", "global_o", "err", err)
		os.Exit(1)
	}
	slog.Info("trees loaded", "x_nodes", treeX.CountNodes(), "o_nodes", treeO.CountNodes())

	server := NewServer(treeX, treeO, player.Config{
		ExploreThreshold: *exploreThreshold,
		ExploreChance:    *exploreChance,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", server.handleIndex)
	mux.HandleFunc("/ws", server.handleWS)

	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("play server listening", "addr", *listen)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("serve", "err", err)
		os.Exit(1)
	}
}

func loadOrEmpty(trees *store.TreeStore, name string, viewpoint game.Piece) (*movetree.MoveNode, error) {
	if trees.Exists(name) {
		return trees.Load(name)
	}
	return player.NewGlobalTree(viewpoint)
}
