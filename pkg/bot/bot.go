// Package bot wires the Matrix client, the conversation engine, and the
// reasoning agent into a running assistant.
package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/nestorlabs/nestor/pkg/botcfg"
	"github.com/nestorlabs/nestor/pkg/threads"
)

// Runner produces an assistant reply for a prompt with prior thread turns.
type Runner interface {
	Run(ctx context.Context, prompt string, history []threads.Turn) (string, error)
}

// matrixAPI is the slice of mautrix.Client the bot calls while responding.
type matrixAPI interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON any, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
	UserTyping(ctx context.Context, roomID id.RoomID, typing bool, timeout time.Duration) (*mautrix.RespTyping, error)
	JoinedMembers(ctx context.Context, roomID id.RoomID) (*mautrix.RespJoinedMembers, error)
	JoinRoomByID(ctx context.Context, roomID id.RoomID) (*mautrix.RespJoinRoom, error)
}

// Bot is the assistant's Matrix side: sync loop, room membership, and
// threaded replies.
type Bot struct {
	cli     *mautrix.Client
	api     matrixAPI
	log     zerolog.Logger
	crypto  *cryptohelper.CryptoHelper
	history *threads.Builder
	agent   Runner
	self    id.UserID
}

// New sets up the Matrix client, state database, and crypto helper from cfg.
// The agent is only invoked from the sync loop, never during setup.
func New(cfg *botcfg.Config, agent Runner, log zerolog.Logger) (*Bot, error) {
	cli, err := mautrix.NewClient(cfg.HomeserverURL, cfg.UserID, cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	cli.DeviceID = cfg.DeviceID
	cli.Log = log.With().Str("component", "mautrix").Logger()

	db, err := openDatabase(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	db.Log = dbutil.ZeroLogger(log.With().Str("component", "database").Logger())

	crypto, err := cryptohelper.NewCryptoHelper(cli, []byte(cfg.PickleKey), db)
	if err != nil {
		return nil, fmt.Errorf("failed to create crypto helper: %w", err)
	}

	b := &Bot{
		cli:    cli,
		api:    cli,
		log:    log,
		crypto: crypto,
		agent:  agent,
		self:   cfg.UserID,
	}
	b.history = threads.NewBuilder(&clientSource{cli: cli, fetcher: threads.NewFetcher(cli), crypto: crypto}, cfg.UserID, cfg.HistoryLimit)

	syncer := cli.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, b.handleMessage)
	syncer.OnEventType(event.StateMember, b.handleMembership)
	if cfg.IgnoreInitialSync {
		syncer.OnSync(cli.DontProcessOldEvents)
	}
	return b, nil
}

// openDatabase opens the session state database. Plain file paths get the
// WAL and foreign-key pragmas mautrix expects from sqlite.
func openDatabase(uri string) (*dbutil.Database, error) {
	driver := "sqlite3"
	dsn := uri
	if strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://") {
		driver = "postgres"
	} else if !strings.ContainsRune(uri, '?') {
		dsn = uri + "?_journal_mode=WAL&_foreign_keys=on"
	}
	raw, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return dbutil.NewWithDB(raw, driver)
}

// Start verifies the access token, initializes end-to-end encryption, and
// runs the sync loop until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	whoami, err := b.cli.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("failed to check access token: %w", err)
	}
	if whoami.UserID != b.self {
		return fmt.Errorf("access token belongs to %s, not %s", whoami.UserID, b.self)
	}
	if b.cli.DeviceID == "" {
		b.cli.DeviceID = whoami.DeviceID
	}
	b.log.Info().
		Stringer("user_id", whoami.UserID).
		Stringer("device_id", b.cli.DeviceID).
		Msg("Connected to homeserver")

	if err := b.crypto.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize crypto: %w", err)
	}
	b.cli.Crypto = b.crypto

	b.log.Info().Msg("Starting sync")
	if err := b.cli.SyncWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

// Stop shuts down the sync loop and closes the crypto store.
func (b *Bot) Stop() {
	b.cli.StopSync()
	if err := b.crypto.Close(); err != nil {
		b.log.Warn().Err(err).Msg("Failed to close crypto store")
	}
}

// clientSource adapts the Matrix client to the history builder's event
// source interface.
type clientSource struct {
	cli     *mautrix.Client
	fetcher *threads.Fetcher
	crypto  *cryptohelper.CryptoHelper
}

func (s *clientSource) Event(ctx context.Context, roomID id.RoomID, eventID id.EventID) (*event.Event, error) {
	return s.cli.GetEvent(ctx, roomID, eventID)
}

func (s *clientSource) Relations(ctx context.Context, roomID id.RoomID, parentID id.EventID, req threads.ReqRelations) (*threads.RespRelations, error) {
	return s.fetcher.Relations(ctx, roomID, parentID, req)
}

// Decrypt decrypts a fetched event. Events fetched over the client-server
// API arrive unparsed, unlike synced ones, so the content is parsed first.
func (s *clientSource) Decrypt(ctx context.Context, evt *event.Event) (*event.Event, error) {
	if evt.Content.Parsed == nil {
		if err := evt.Content.ParseRaw(evt.Type); err != nil {
			return nil, fmt.Errorf("failed to parse encrypted content: %w", err)
		}
	}
	return s.crypto.Decrypt(ctx, evt)
}
