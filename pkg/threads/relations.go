// Package threads reconstructs conversational context from Matrix threads:
// it fetches the events related to a thread root and reduces them to an
// ordered sequence of user/assistant turns for the reasoning agent.
package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// ProtocolResponseError reports a relations response that does not match the
// client-server API shape: the event list is missing entirely or contains
// events that cannot be decoded.
type ProtocolResponseError struct {
	Message string
	cause   error
}

func (e *ProtocolResponseError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *ProtocolResponseError) Unwrap() error {
	return e.cause
}

// ReqRelations are the options for a single relations page. The zero value
// requests one backward page of children of every relation kind, starting
// from the most recent event, with the server's default page size.
type ReqRelations struct {
	// RelType restricts the children to one relation kind, e.g.
	// event.RelThread. Empty fetches children of every kind.
	RelType event.RelationType
	// Direction of pagination; the zero value means backward (newest
	// first).
	Direction mautrix.Direction
	// From and To are opaque continuation tokens from an earlier page.
	From string
	To   string
	// Limit caps the page size when positive and is passed through to the
	// server verbatim.
	Limit int
}

// RespRelations is one page of related events in server order (newest first
// when paginated backward). Start and End are opaque continuation tokens for
// the two temporal directions.
type RespRelations struct {
	Start  string
	End    string
	Events []*event.Event
}

// Chunk is raw so that a missing event list can be told apart from a
// present-but-empty one.
type respRelations struct {
	Chunk     json.RawMessage `json:"chunk"`
	NextBatch string          `json:"next_batch"`
	PrevBatch string          `json:"prev_batch"`
}

// Client is the slice of the protocol client the fetcher needs;
// *mautrix.Client satisfies it.
type Client interface {
	BuildURLWithQuery(path mautrix.PrefixableURLPath, query map[string]string) string
	MakeRequest(ctx context.Context, method, url string, reqBody, resBody any) ([]byte, error)
}

// Fetcher retrieves the children of an event through the relations
// endpoint.
type Fetcher struct {
	cli Client
}

func NewFetcher(cli Client) *Fetcher {
	return &Fetcher{cli: cli}
}

// Relations fetches one page of events related to parentID. One call is one
// request: the fetcher never re-pages on its own, callers follow the
// response tokens if they want more. Responses missing the event list or
// carrying undecodable events fail with ProtocolResponseError.
func (f *Fetcher) Relations(ctx context.Context, roomID id.RoomID, parentID id.EventID, req ReqRelations) (*RespRelations, error) {
	dir := req.Direction
	if dir == 0 {
		dir = mautrix.DirectionBackward
	}
	query := map[string]string{"dir": string(dir)}
	if req.From != "" {
		query["from"] = req.From
	}
	if req.To != "" {
		query["to"] = req.To
	}
	if req.Limit > 0 {
		query["limit"] = strconv.Itoa(req.Limit)
	}

	path := mautrix.ClientURLPath{"v1", "rooms", roomID, "relations", parentID}
	if req.RelType != "" {
		path = append(path, req.RelType)
	}

	var raw respRelations
	_, err := f.cli.MakeRequest(ctx, http.MethodGet, f.cli.BuildURLWithQuery(path, query), nil, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relations of %s: %w", parentID, err)
	}
	if raw.Chunk == nil {
		return nil, &ProtocolResponseError{Message: "`chunk` not in response."}
	}
	var events []*event.Event
	if err = json.Unmarshal(raw.Chunk, &events); err != nil {
		return nil, &ProtocolResponseError{Message: "Invalid events in response", cause: err}
	}
	return &RespRelations{
		Start:  raw.PrevBatch,
		End:    raw.NextBatch,
		Events: events,
	}, nil
}
