package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/michaelbrown/skillforge/internal/checker"
	"github.com/michaelbrown/skillforge/internal/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type       string                       `json:"type"`
	Content    string                       `json:"content,omitempty"`
	Success    *bool                        `json:"success,omitempty"`
	Diagnostic string                       `json:"diagnostic,omitempty"`
	Number     int                          `json:"number,omitempty"`
	Total      int                          `json:"total,omitempty"`
	Result     *checker.TestExecutionResult `json:"result,omitempty"`
	Submission *storage.Submission          `json:"submission,omitempty"`
}

// wsConn serializes writes to one websocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	s    *Server
}

func (c *wsConn) send(v wsOutgoing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		c.s.logger.Errorw("websocket marshal error", "error", err)
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.s.logger.Debugw("websocket write error", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify task exists
	task, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "task")
		return
	}

	// Upgrade to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	wc := &wsConn{conn: conn, s: s}

	// Cancelled when the client disconnects; in-flight checks die with it.
	connCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	var busy atomic.Bool

	// Read loop
	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugw("websocket read error", "task", task.ID, "error", err)
			}
			return
		}

		if msg.Type != "check" || strings.TrimSpace(msg.Code) == "" {
			wc.send(wsOutgoing{Type: "error", Content: "invalid message"})
			continue
		}
		if !busy.CompareAndSwap(false, true) {
			wc.send(wsOutgoing{Type: "error", Content: "a check is already running"})
			continue
		}

		runCtx, runID := s.runs.Start(connCtx, task.ID)
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			defer busy.Store(false)
			defer s.runs.Finish(runID)
			s.streamCheck(runCtx, wc, task.ID, code)
		}(msg.Code)
	}
}

// streamCheck submits code and forwards progress as it happens.
func (s *Server) streamCheck(ctx context.Context, wc *wsConn, taskID, code string) {
	progress := &checker.Progress{
		Compiled: func(o checker.CompilationOutcome) {
			ok := o.Success
			wc.send(wsOutgoing{Type: "compiled", Success: &ok, Diagnostic: o.Diagnostic})
		},
		TestDone: func(number, total int, result checker.TestExecutionResult) {
			wc.send(wsOutgoing{Type: "test", Number: number, Total: total, Result: &result})
		},
	}

	sub, err := s.service.SubmitStream(ctx, taskID, code, progress)
	if err != nil {
		wc.send(wsOutgoing{Type: "error", Content: err.Error()})
		return
	}
	if ctx.Err() != nil {
		wc.send(wsOutgoing{Type: "error", Content: "interrupted"})
		return
	}

	wc.send(wsOutgoing{Type: "done", Submission: sub})
}
