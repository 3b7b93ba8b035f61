package eval

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/naviserver-project/naviserver-sub002/pkg/adp/parser"
)

// traceEvent is one block-execution notification streamed to a connected
// debug console.
type traceEvent struct {
	Type   string `json:"type"`
	Length int    `json:"length"`
	Line   int    `json:"line"`
	Time   string `json:"time"`
}

// DebugBridge streams a page's block-execution trace to an external
// debug console over a websocket, in the spirit of the `ns_adp_debuginit`
// console hook. The bridge itself does no `enabledebug` or page-name
// matching: it streams every block of whatever execution its Hook is
// passed to, and nothing in this module creates one on its own.
type DebugBridge struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewDebugBridge dials the debug console at addr (host:port) and returns
// a bridge ready to stream trace events to it.
func NewDebugBridge(addr string) (*DebugBridge, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/debug"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("adp debug bridge: dial %s: %w", addr, err)
	}
	return &DebugBridge{conn: conn}, nil
}

// Hook returns a TraceHook that pushes a traceEvent for every executed
// block. Write errors are swallowed: a disconnected debug console must
// never affect page execution.
func (b *DebugBridge) Hook() TraceHook {
	return func(block parser.Block) {
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = b.conn.WriteJSON(traceEvent{
			Type:   blockTypeName(block.Type),
			Length: len(block.Text),
			Line:   block.Line,
			Time:   time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

func blockTypeName(t parser.BlockType) string {
	switch t {
	case parser.Text:
		return "text"
	case parser.Script:
		return "script"
	case parser.ScriptAppend:
		return "script_append"
	default:
		return "unknown"
	}
}

// Close releases the underlying websocket connection.
func (b *DebugBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.Close()
}
