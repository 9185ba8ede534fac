package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/nestorlabs/nestor/pkg/botcfg"
	"github.com/nestorlabs/nestor/pkg/threads"
)

const (
	botUser  = id.UserID("@nestor:example.org")
	alice    = id.UserID("@alice:example.org")
	testRoom = id.RoomID("!room:example.org")
)

type sentEvent struct {
	roomID  id.RoomID
	evtType event.Type
	content *event.MessageEventContent
}

type fakeMatrix struct {
	members    map[id.UserID]mautrix.JoinedMember
	membersErr error

	membersCalls int
	typing       []bool
	sent         []sentEvent
	joined       []id.RoomID
}

func (f *fakeMatrix) SendMessageEvent(_ context.Context, roomID id.RoomID, evtType event.Type, contentJSON any, _ ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error) {
	content, _ := contentJSON.(*event.MessageEventContent)
	f.sent = append(f.sent, sentEvent{roomID: roomID, evtType: evtType, content: content})
	return &mautrix.RespSendEvent{EventID: id.EventID(fmt.Sprintf("$sent-%d", len(f.sent)))}, nil
}

func (f *fakeMatrix) UserTyping(_ context.Context, _ id.RoomID, typing bool, _ time.Duration) (*mautrix.RespTyping, error) {
	f.typing = append(f.typing, typing)
	return &mautrix.RespTyping{}, nil
}

func (f *fakeMatrix) JoinedMembers(_ context.Context, _ id.RoomID) (*mautrix.RespJoinedMembers, error) {
	f.membersCalls++
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return &mautrix.RespJoinedMembers{Joined: f.members}, nil
}

func (f *fakeMatrix) JoinRoomByID(_ context.Context, roomID id.RoomID) (*mautrix.RespJoinRoom, error) {
	f.joined = append(f.joined, roomID)
	return &mautrix.RespJoinRoom{RoomID: roomID}, nil
}

type fakeRunner struct {
	answer string
	err    error

	calls   int
	prompt  string
	history []threads.Turn
}

func (r *fakeRunner) Run(_ context.Context, prompt string, history []threads.Turn) (string, error) {
	r.calls++
	r.prompt = prompt
	r.history = history
	return r.answer, r.err
}

type stubSource struct {
	root *event.Event
	page *threads.RespRelations
}

func (s *stubSource) Event(context.Context, id.RoomID, id.EventID) (*event.Event, error) {
	if s.root == nil {
		return nil, errors.New("event not found")
	}
	return s.root, nil
}

func (s *stubSource) Relations(context.Context, id.RoomID, id.EventID, threads.ReqRelations) (*threads.RespRelations, error) {
	if s.page == nil {
		return &threads.RespRelations{}, nil
	}
	return s.page, nil
}

func (s *stubSource) Decrypt(_ context.Context, evt *event.Event) (*event.Event, error) {
	return evt, nil
}

func newTestBot(api *fakeMatrix, runner Runner, src threads.Source) *Bot {
	if src == nil {
		src = &stubSource{}
	}
	return &Bot{
		api:     api,
		log:     zerolog.Nop(),
		agent:   runner,
		self:    botUser,
		history: threads.NewBuilder(src, botUser, 10),
	}
}

func groupMembers() map[id.UserID]mautrix.JoinedMember {
	return map[id.UserID]mautrix.JoinedMember{
		botUser: {}, alice: {}, "@bob:example.org": {},
	}
}

func directMembers() map[id.UserID]mautrix.JoinedMember {
	return map[id.UserID]mautrix.JoinedMember{botUser: {}, alice: {}}
}

func msgEvent(eid id.EventID, sender id.UserID, body string) *event.Event {
	return &event.Event{
		ID:     eid,
		RoomID: testRoom,
		Sender: sender,
		Type:   event.EventMessage,
		Content: event.Content{Parsed: &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    body,
		}},
	}
}

func threadMsg(eid id.EventID, sender id.UserID, body string, root id.EventID) *event.Event {
	evt := msgEvent(eid, sender, body)
	evt.Content.AsMessage().RelatesTo = &event.RelatesTo{
		Type:    event.RelThread,
		EventID: root,
	}
	return evt
}

func testConfig() *botcfg.Config {
	return &botcfg.Config{
		HomeserverURL:     "http://localhost:8008",
		UserID:            botUser,
		AccessToken:       "syt_secret",
		PickleKey:         "0123456789abcdef",
		DatabaseURI:       ":memory:",
		HistoryLimit:      10,
		IgnoreInitialSync: true,
	}
}

func syncResponse(evt *event.Event) *mautrix.RespSync {
	resp := &mautrix.RespSync{}
	resp.Rooms.Join = map[id.RoomID]*mautrix.SyncJoinedRoom{
		testRoom: {Timeline: mautrix.SyncTimeline{
			SyncEventsList: mautrix.SyncEventsList{Events: []*event.Event{evt}},
		}},
	}
	return resp
}

// newSyncedBot builds a bot through New and hooks a counter into its syncer
// so tests can observe which timeline events actually reach handlers.
func newSyncedBot(t *testing.T, cfg *botcfg.Config) (*mautrix.DefaultSyncer, *int) {
	t.Helper()
	b, err := New(cfg, &fakeRunner{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	syncer := b.cli.Syncer.(*mautrix.DefaultSyncer)
	delivered := new(int)
	syncer.OnEventType(event.EventMessage, func(context.Context, *event.Event) {
		*delivered++
	})
	return syncer, delivered
}

func TestNew_IgnoresInitialSync(t *testing.T) {
	syncer, delivered := newSyncedBot(t, testConfig())

	// The first sync of a session has no since token and carries backlog.
	err := syncer.ProcessResponse(context.Background(), syncResponse(msgEvent("$old", botUser, "backlog")), "")
	if err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	if *delivered != 0 {
		t.Errorf("delivered = %d, want backlog events to be dropped", *delivered)
	}

	err = syncer.ProcessResponse(context.Background(), syncResponse(msgEvent("$new", botUser, "live")), "s1")
	if err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	if *delivered != 1 {
		t.Errorf("delivered = %d, want 1 once a since token exists", *delivered)
	}
}

func TestNew_ProcessesInitialSyncWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.IgnoreInitialSync = false
	syncer, delivered := newSyncedBot(t, cfg)

	err := syncer.ProcessResponse(context.Background(), syncResponse(msgEvent("$old", botUser, "backlog")), "")
	if err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	if *delivered != 1 {
		t.Errorf("delivered = %d, want backlog processed with the ignore disabled", *delivered)
	}
}

func TestOpenDatabase(t *testing.T) {
	db, err := openDatabase(":memory:")
	if err != nil {
		t.Fatalf("openDatabase(sqlite): %v", err)
	}
	if db.Dialect != dbutil.SQLite {
		t.Errorf("dialect = %v, want sqlite", db.Dialect)
	}
	db.Close()

	db, err = openDatabase("postgres://nestor@localhost/nestor")
	if err != nil {
		t.Fatalf("openDatabase(postgres): %v", err)
	}
	if db.Dialect != dbutil.Postgres {
		t.Errorf("dialect = %v, want postgres", db.Dialect)
	}
	db.Close()
}
