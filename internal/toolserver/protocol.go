// Package toolserver implements the line-delimited JSON request/response
// loop the kb binary speaks on stdio when invoked as "kb serve", the
// transport spec.md §1 draws as thin wrapping around the typed engine
// API. Grounded on BeadsLog/internal/rpc/protocol.go's Request/Response
// envelope and named operation constants, adapted from a Unix-socket
// daemon protocol (request framing plus a long-lived connection) to a
// single stdin/stdout pipe, which is what an agent harness spawning kb
// as a subprocess actually gets.
package toolserver

import "encoding/json"

// Operation names the engine call a Request dispatches to.
type Operation string

const (
	OpCreateItem          Operation = "create_item"
	OpGetItem             Operation = "get_item"
	OpUpdateItem          Operation = "update_item"
	OpDeleteItem          Operation = "delete_item"
	OpListItems           Operation = "list_items"
	OpSearchItems         Operation = "search_items"
	OpSuggestItems        Operation = "suggest_items"
	OpGetStats            Operation = "get_stats"
	OpGetTags             Operation = "get_tags"
	OpGetStatuses         Operation = "get_statuses"
	OpGetTypes            Operation = "get_types"
	OpCreateType          Operation = "create_type"
	OpGetRelatedItems     Operation = "get_related_items"
	OpAddRelations        Operation = "add_relations"
	OpGetCurrentState     Operation = "get_current_state"
	OpUpdateCurrentState  Operation = "update_current_state"
	OpChangeItemType      Operation = "change_item_type"
	OpRebuild             Operation = "rebuild"
	OpAuditDanglingRefs   Operation = "audit_dangling_refs"
	OpPing                Operation = "ping"
)

// Request is one line of stdin: an operation name, its JSON arguments,
// and an id the matching Response echoes back.
type Request struct {
	ID        string          `json:"id,omitempty"`
	Operation Operation       `json:"operation"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// Response is one line of stdout.
type Response struct {
	ID      string          `json:"id,omitempty"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CreateItemArgs is OpCreateItem's payload. Dates accept both strict
// YYYY-MM-DD and, via internal/dateparse at this boundary only, relaxed
// phrases like "tomorrow".
type CreateItemArgs struct {
	Type        string   `json:"type"`
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Content     string   `json:"content,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Status      string   `json:"status,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	Related     []string `json:"related,omitempty"`
}

// GetItemArgs is OpGetItem's payload.
type GetItemArgs struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// UpdateItemArgs is OpUpdateItem's payload. Pointer fields distinguish
// "not present in this request" from "set to zero value", mirroring
// itemstore.UpdatePatch.
type UpdateItemArgs struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	StartDate   *string   `json:"start_date,omitempty"`
	EndDate     *string   `json:"end_date,omitempty"`
	StartTime   *string   `json:"start_time,omitempty"`
	Related     *[]string `json:"related,omitempty"`
}

// DeleteItemArgs is OpDeleteItem's payload.
type DeleteItemArgs struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ListItemsArgs is OpListItems's payload.
type ListItemsArgs struct {
	Type          string   `json:"type,omitempty"`
	IncludeClosed bool     `json:"include_closed,omitempty"`
	Statuses      []string `json:"statuses,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	Offset        int      `json:"offset,omitempty"`
}

// SearchItemsArgs is OpSearchItems's payload.
type SearchItemsArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SuggestItemsArgs is OpSuggestItems's payload.
type SuggestItemsArgs struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit,omitempty"`
}

// CreateTypeArgs is OpCreateType's payload.
type CreateTypeArgs struct {
	Name        string `json:"name"`
	Base        string `json:"base"`
	Description string `json:"description,omitempty"`
}

// GetRelatedItemsArgs is OpGetRelatedItems's payload.
type GetRelatedItemsArgs struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

// AddRelationsArgs is OpAddRelations's payload.
type AddRelationsArgs struct {
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	Targets []string `json:"targets"`
}

// UpdateCurrentStateArgs is OpUpdateCurrentState's payload.
type UpdateCurrentStateArgs struct {
	Content  string         `json:"content"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChangeItemTypeArgs is OpChangeItemType's payload.
type ChangeItemTypeArgs struct {
	FromType string `json:"from_type"`
	FromID   string `json:"from_id"`
	ToType   string `json:"to_type"`
}

// ChangeItemTypeResult is OpChangeItemType's success payload.
type ChangeItemTypeResult struct {
	NewID     string `json:"new_id"`
	Rewritten int    `json:"rewritten"`
}

// PingResponse answers OpPing, the same liveness-probe shape the teacher
// exposes over its daemon protocol.
type PingResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}
