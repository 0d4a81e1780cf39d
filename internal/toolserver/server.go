package toolserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shirokuma-go/kb/internal/dateparse"
	"github.com/shirokuma-go/kb/internal/engine"
	"github.com/shirokuma-go/kb/internal/itemstore"
	"github.com/shirokuma-go/kb/internal/kbtypes"
	"github.com/shirokuma-go/kb/internal/logging"
)

// Version is stamped into ping responses. Overridden by cmd/kb's build
// metadata at link time in spirit; hardcoded here since this module has
// no release process of its own yet.
const Version = "0.1.0"

// Server reads Requests from an io.Reader and writes Responses to an
// io.Writer, one JSON object per line each way. It never writes anything
// else to w: stdout is reserved for protocol frames the way the teacher
// reserves its daemon socket for RPC frames exclusively, with diagnostics
// routed to the Logger instead.
type Server struct {
	h   *engine.Handle
	log *logging.Logger
}

// New builds a Server over an already-open engine Handle.
func New(h *engine.Handle, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{h: h, log: log}
}

// Serve runs the read-dispatch-write loop until r is exhausted or ctx is
// cancelled. A line that fails to parse as a Request gets an error
// response and the loop reads on, so the stream stays in sync.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := enc.Encode(Response{Success: false, Error: fmt.Sprintf("malformed request: %v", err)}); encErr != nil {
				return encErr
			}
			continue
		}

		resp := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	data, err := s.call(ctx, req)
	if err != nil {
		s.log.Warnf("toolserver: %s failed: %v", req.Operation, err)
		return Response{ID: req.ID, Success: false, Error: err.Error()}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return Response{ID: req.ID, Success: false, Error: fmt.Sprintf("marshal result: %v", err)}
	}
	return Response{ID: req.ID, Success: true, Data: payload}
}

func (s *Server) call(ctx context.Context, req Request) (any, error) {
	switch req.Operation {
	case OpPing:
		return PingResponse{Message: "pong", Version: Version}, nil

	case OpCreateItem:
		var a CreateItemArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		return s.createItem(ctx, a)

	case OpGetItem:
		var a GetItemArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		return s.h.GetItem(ctx, a.Type, a.ID)

	case OpUpdateItem:
		var a UpdateItemArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		return s.updateItem(ctx, a)

	case OpDeleteItem:
		var a DeleteItemArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		removed, err := s.h.DeleteItem(ctx, a.Type, a.ID)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"removed": removed}, nil

	case OpListItems:
		var a ListItemsArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		return s.h.ListItems(ctx, itemstore.ListParams{
			Type: a.Type, IncludeClosed: a.IncludeClosed, Statuses: a.Statuses,
			Limit: a.Limit, Offset: a.Offset,
		})

	case OpSearchItems:
		var a SearchItemsArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		return s.h.SearchItems(ctx, a.Query, a.Limit)

	case OpSuggestItems:
		var a SuggestItemsArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		return s.h.SuggestTitles(ctx, a.Prefix, a.Limit)

	case OpGetStats:
		return s.h.GetStats(ctx)

	case OpGetTags:
		return s.h.GetTags(ctx)

	case OpGetStatuses:
		return s.h.GetStatuses(ctx)

	case OpGetTypes:
		return s.h.GetTypes(ctx)

	case OpCreateType:
		var a CreateTypeArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		return s.h.CreateType(ctx, a.Name, kbtypes.BaseType(a.Base), a.Description)

	case OpGetRelatedItems:
		var a GetRelatedItemsArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		maxDepth := a.MaxDepth
		if maxDepth <= 0 {
			maxDepth = 1
		}
		return s.h.GetRelatedItems(ctx, kbtypes.Ref{Type: a.Type, ID: a.ID}, maxDepth)

	case OpAddRelations:
		var a AddRelationsArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		targets, err := parseRefs(a.Targets)
		if err != nil {
			return nil, err
		}
		if err := s.h.AddRelations(ctx, kbtypes.Ref{Type: a.Type, ID: a.ID}, targets); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil

	case OpGetCurrentState:
		return s.h.GetCurrentState(ctx)

	case OpUpdateCurrentState:
		var a UpdateCurrentStateArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		return s.h.UpdateCurrentState(ctx, a.Content, a.Tags, a.Metadata)

	case OpChangeItemType:
		var a ChangeItemTypeArgs
		if err := unmarshalArgs(req.Args, &a); err != nil {
			return nil, err
		}
		newID, rewritten, err := s.h.ChangeItemType(ctx, a.FromType, a.FromID, a.ToType)
		if err != nil {
			return nil, err
		}
		return ChangeItemTypeResult{NewID: newID, Rewritten: rewritten}, nil

	case OpRebuild:
		return s.h.Rebuild(ctx)

	case OpAuditDanglingRefs:
		return s.h.AuditDanglingRefs(ctx)

	default:
		return nil, fmt.Errorf("unknown operation %q", req.Operation)
	}
}

func unmarshalArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errors.New("missing args")
	}
	return json.Unmarshal(raw, dst)
}

func parseRefs(strs []string) ([]kbtypes.Ref, error) {
	out := make([]kbtypes.Ref, 0, len(strs))
	for _, s := range strs {
		ref, err := kbtypes.ParseRef(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// createItem resolves relaxed dates at this boundary before calling the
// strict engine API (SPEC_FULL.md's domain-stack entry for
// github.com/olebedev/when: the core never sees anything but a validated
// date).
func (s *Server) createItem(ctx context.Context, a CreateItemArgs) (kbtypes.Item, error) {
	now := time.Now()
	p := itemstore.CreateParams{
		Type: a.Type, ID: a.ID, Title: a.Title, Description: a.Description,
		Content: a.Content, Priority: kbtypes.Priority(a.Priority), Status: a.Status, Tags: a.Tags,
	}

	if d, ok, err := dateparse.OptionalDate(a.StartDate, now); err != nil {
		return kbtypes.Item{}, err
	} else if ok {
		p.StartDate = &d
	}
	if d, ok, err := dateparse.OptionalDate(a.EndDate, now); err != nil {
		return kbtypes.Item{}, err
	} else if ok {
		p.EndDate = &d
	}
	if a.StartTime != "" {
		t, err := kbtypes.ParseClockTime(a.StartTime)
		if err != nil {
			return kbtypes.Item{}, err
		}
		p.StartTime = &t
	}
	if len(a.Related) > 0 {
		refs, err := parseRefs(a.Related)
		if err != nil {
			return kbtypes.Item{}, err
		}
		p.Related = refs
	}

	return s.h.CreateItem(ctx, p)
}

func (s *Server) updateItem(ctx context.Context, a UpdateItemArgs) (kbtypes.Item, error) {
	now := time.Now()
	patch := itemstore.UpdatePatch{
		Title: a.Title, Description: a.Description, Content: a.Content,
		Tags: a.Tags,
	}
	if a.Priority != nil {
		pr := kbtypes.Priority(*a.Priority)
		patch.Priority = &pr
	}
	if a.Status != nil {
		patch.Status = a.Status
	}
	if a.StartDate != nil {
		d, ok, err := dateparse.OptionalDate(*a.StartDate, now)
		if err != nil {
			return kbtypes.Item{}, err
		}
		if ok {
			patch.StartDate = &d
		}
	}
	if a.EndDate != nil {
		d, ok, err := dateparse.OptionalDate(*a.EndDate, now)
		if err != nil {
			return kbtypes.Item{}, err
		}
		if ok {
			patch.EndDate = &d
		}
	}
	if a.StartTime != nil {
		t, err := kbtypes.ParseClockTime(*a.StartTime)
		if err != nil {
			return kbtypes.Item{}, err
		}
		patch.StartTime = &t
	}
	if a.Related != nil {
		refs, err := parseRefs(*a.Related)
		if err != nil {
			return kbtypes.Item{}, err
		}
		patch.Related = &refs
	}

	return s.h.UpdateItem(ctx, a.Type, a.ID, patch)
}
