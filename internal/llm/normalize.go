package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Normalize collapses a Completion into a single Reply. Streamed text deltas
// are concatenated and tool-call fragments are merged by index.
func Normalize(ctx context.Context, c Completion) (*Reply, error) {
	switch v := c.(type) {
	case *Eager:
		reply := v.Reply
		return &reply, nil
	case *Streamed:
		return accumulate(ctx, v.Events)
	case nil:
		return nil, fmt.Errorf("nil completion")
	default:
		return nil, fmt.Errorf("unsupported completion type %T", c)
	}
}

type partialCall struct {
	id   string
	name string
	args strings.Builder
}

func accumulate(ctx context.Context, events <-chan StreamEvent) (*Reply, error) {
	var text strings.Builder
	calls := make(map[int]*partialCall)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return assemble(text.String(), calls), nil
			}
			if ev.Err != nil {
				return nil, ev.Err
			}
			text.WriteString(ev.TextDelta)
			if d := ev.ToolCall; d != nil {
				pc, ok := calls[d.Index]
				if !ok {
					pc = &partialCall{}
					calls[d.Index] = pc
				}
				if d.ID != "" {
					pc.id = d.ID
				}
				if d.Name != "" {
					pc.name = d.Name
				}
				pc.args.WriteString(d.Arguments)
			}
		}
	}
}

func assemble(text string, calls map[int]*partialCall) *Reply {
	reply := &Reply{Text: text}
	if len(calls) == 0 {
		return reply
	}

	indexes := make([]int, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for _, i := range indexes {
		pc := calls[i]
		id := pc.id
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: id, Name: pc.name, Arguments: pc.args.String()})
	}
	return reply
}
