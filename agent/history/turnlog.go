package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type turnRecord struct {
	bun.BaseModel `bun:"table:conversation_turns,alias:ct"`

	ID        string    `bun:"id,pk"`
	SessionID string    `bun:"session_id,notnull"`
	Query     string    `bun:"query,notnull"`
	Reply     string    `bun:"reply,notnull"`
	Tools     []string  `bun:"tools"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r turnRecord) turn() contractx.Turn {
	return contractx.Turn{
		ID:    r.ID,
		Query: r.Query,
		Reply: r.Reply,
		Tools: r.Tools,
		At:    r.CreatedAt.UTC(),
	}
}

// TurnLog durably stores every completed turn, independent of the memory
// manager's compression.
type TurnLog struct {
	db           *bun.DB
	writeTimeout time.Duration
}

var _ contractx.TurnHook = (*TurnLog)(nil)

// OpenPostgres connects to Postgres through pgdriver.
func OpenPostgres(cfg PostgresConfig) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("history postgres dsn is required")
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.DialTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(cfg.DialTimeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func NewTurnLog(db *bun.DB, writeTimeout time.Duration) (*TurnLog, error) {
	if db == nil {
		return nil, errors.New("history database is required")
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &TurnLog{db: db, writeTimeout: writeTimeout}, nil
}

// Init creates the turns table and its session index when missing.
func (l *TurnLog) Init(ctx context.Context) error {
	if _, err := l.db.NewCreateTable().
		Model((*turnRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create conversation_turns: %w", err)
	}
	if _, err := l.db.NewCreateIndex().
		Model((*turnRecord)(nil)).
		Index("conversation_turns_session_idx").
		IfNotExists().
		Column("session_id", "created_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("create conversation_turns index: %w", err)
	}
	return nil
}

// OnTurnComplete inserts the turn. Replays of the same turn id are ignored.
func (l *TurnLog) OnTurnComplete(ctx context.Context, sessionID string, turn contractx.Turn) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}
	if turn.ID == "" {
		return fmt.Errorf("%w: turn id is empty", contractx.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()

	at := turn.At
	if at.IsZero() {
		at = time.Now()
	}
	rec := &turnRecord{
		ID:        turn.ID,
		SessionID: sessionID,
		Query:     turn.Query,
		Reply:     turn.Reply,
		Tools:     turn.Tools,
		CreatedAt: at.UTC(),
	}
	if _, err := l.db.NewInsert().Model(rec).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert turn %s: %w", turn.ID, err)
	}

	log.Debug().Str("component", "history").Str("session_id", sessionID).Str("turn_id", turn.ID).Msg("turn stored")
	return nil
}

// Recent returns up to limit of the newest turns of a session, oldest first.
func (l *TurnLog) Recent(ctx context.Context, sessionID string, limit int) ([]contractx.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	var recs []turnRecord
	if err := l.db.NewSelect().
		Model(&recs).
		Where("session_id = ?", sessionID).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("select turns: %w", err)
	}

	turns := make([]contractx.Turn, 0, len(recs))
	for _, r := range recs {
		turns = append(turns, r.turn())
	}
	slices.Reverse(turns)
	return turns, nil
}

func (l *TurnLog) Close() error {
	return l.db.Close()
}
