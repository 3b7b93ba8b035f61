package eval

import (
	"context"
	"strings"
	"time"

	"github.com/naviserver-project/naviserver-sub002/pkg/adp/parser"
)

// Evaluator is the scripting-runtime seam: ADP blocks are script
// fragments in whatever language the embedded interpreter speaks. eval
// never assumes a concrete language.
type Evaluator interface {
	Eval(ctx context.Context, script string) (output string, err error)
}

// Exception mirrors the ADP control-flow signals that clear to OK at a
// frame boundary.
type Exception int

const (
	ExceptionNone Exception = iota
	ExceptionReturn
	ExceptionAbort
	ExceptionBreak
	ExceptionTimeout
)

// TraceHook is called once per block as it executes, for debug/trace
// consoles.
type TraceHook func(block parser.Block)

// Frame is one nested ADP call's execution state: an output buffer, the
// page it's executing, and an optional parent for include()/source()
// nesting.
type Frame struct {
	Page      *Page
	Output    strings.Builder
	Exception Exception
	Strict    bool
	Trace     TraceHook
	Parent    *Frame
}

// Exec walks page's blocks against eval, writing literal text directly
// and running script blocks through the evaluator. It returns the
// accumulated output, plus an error when a script block fails in strict
// mode or after ctx has ended; outside strict mode a failed block is
// skipped and execution continues with the next one. ADP's handled
// exceptions clear to OK at the frame boundary.
func Exec(ctx context.Context, page *Page, ev Evaluator, strict bool, trace TraceHook) (string, error) {
	f := &Frame{Page: page, Strict: strict, Trace: trace}

	for _, block := range page.Code.Blocks {
		if f.Trace != nil {
			f.Trace(block)
		}

		switch block.Type {
		case parser.Text:
			f.Output.WriteString(block.Text)

		case parser.Script, parser.ScriptAppend:
			out, err := ev.Eval(ctx, block.Text)
			if err != nil {
				if ctx.Err() != nil {
					f.Exception = ExceptionTimeout
					return f.Output.String(), err
				}
				if f.Strict {
					return f.Output.String(), err
				}
				continue
			}
			if block.Type == parser.ScriptAppend {
				f.Output.WriteString(out)
			}
		}

		if f.Exception == ExceptionAbort || f.Exception == ExceptionReturn {
			break
		}
	}

	// ADP's RETURN/ABORT/BREAK/TIMEOUT exceptions are local to the frame
	// and clear to OK once it completes; TIMEOUT alone is reported above
	// as a genuine evaluator failure before this point is reached.
	f.Exception = ExceptionNone
	return f.Output.String(), nil
}

// WithResultCache wraps Exec with the optional result cache: if page has
// a CACHE flag and expires > 0, a previous run's output is reused for
// expires before being rebuilt. Concurrent rebuilders serialize on the
// page's own lock so only one thread is ever inside the rebuild block.
func WithResultCache(ctx context.Context, page *Page, ev Evaluator, strict bool, expires time.Duration) (string, error) {
	if page.Flags&parser.CACHE == 0 || expires <= 0 {
		return Exec(ctx, page, ev, strict, nil)
	}

	for {
		page.mu.Lock()
		if page.cache != nil && page.cache.expires.After(time.Now()) {
			output := page.cache.output
			page.cache.refs++
			page.mu.Unlock()
			return output, nil
		}
		if page.rebuilding {
			page.mu.Unlock()
			time.Sleep(time.Millisecond)
			continue
		}
		page.rebuilding = true
		page.mu.Unlock()
		break
	}

	output, err := Exec(ctx, page, ev, strict, nil)

	page.mu.Lock()
	page.rebuilding = false
	if err == nil {
		page.cache = &cacheEntry{
			output:  output,
			expires: time.Now().Add(expires),
			refs:    1,
		}
	}
	page.mu.Unlock()

	return output, err
}
