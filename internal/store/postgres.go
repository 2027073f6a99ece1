package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dgnsrekt/ytchat-downloader/internal/chat"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	video_id        TEXT        NOT NULL,
	item_id         TEXT        NOT NULL,
	kind            TEXT        NOT NULL,
	author          TEXT        NOT NULL DEFAULT '',
	author_id       TEXT        NOT NULL DEFAULT '',
	message         TEXT        NOT NULL DEFAULT '',
	amount          TEXT        NOT NULL DEFAULT '',
	timestamp_usec  BIGINT      NOT NULL DEFAULT 0,
	video_offset_ms BIGINT,
	raw             JSONB       NOT NULL,
	inserted_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (video_id, item_id)
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_video_ts ON chat_messages (video_id, timestamp_usec);
`

const insertRow = `INSERT INTO chat_messages
	(video_id, item_id, kind, author, author_id, message, amount, timestamp_usec, video_offset_ms, raw)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (video_id, item_id) DO NOTHING`

const writeTimeout = 10 * time.Second

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Postgres is a chat.Sink writing every chat item of a video to
// chat_messages. Write failures are logged and counted; they never stop the
// engine.
type Postgres struct {
	db      Querier
	pool    *pgxpool.Pool
	videoID string
	logger  *zap.Logger

	mu       sync.Mutex
	inserted int64
	failed   int
}

var _ chat.Sink = (*Postgres)(nil)

// Open connects to dsn and makes sure the table exists.
func Open(ctx context.Context, dsn, videoID string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate chat_messages: %w", err)
	}
	p := New(pool, videoID, logger)
	p.pool = pool
	return p, nil
}

// New wraps an existing connection.
func New(db Querier, videoID string, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, videoID: videoID, logger: logger}
}

// Insert stores rows in one batch and returns how many were new.
func (p *Postgres) Insert(ctx context.Context, rows []Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(insertRow, r.VideoID, r.ItemID, r.Kind, r.Author, r.AuthorID,
			r.Message, r.Amount, r.TimestampUsec, r.VideoOffsetMs, []byte(r.Raw))
	}

	br := p.db.SendBatch(ctx, b)
	var n int64
	var firstErr error
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n += tag.RowsAffected()
	}
	if err := br.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return n, fmt.Errorf("insert chat rows: %w", firstErr)
	}
	return n, nil
}

func (p *Postgres) Progress(actions []youtube.Action) {
	rows := Rows(p.videoID, actions)
	if len(rows) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	n, err := p.Insert(ctx, rows)

	p.mu.Lock()
	p.inserted += n
	if err != nil {
		p.failed++
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("storing chat batch failed", zap.Int("rows", len(rows)), zap.Error(err))
		return
	}
	p.logger.Debug("stored chat batch", zap.Int("rows", len(rows)), zap.Int64("new", n))
}

func (p *Postgres) AssetProgress(string, string) {}
func (p *Postgres) AssetError(string, error)     {}
func (p *Postgres) Error(error)                  {}

func (p *Postgres) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Info("chat store finished",
		zap.String("video_id", p.videoID),
		zap.Int64("inserted", p.inserted),
		zap.Int("failed_batches", p.failed))
}

// Inserted returns the number of new rows written so far.
func (p *Postgres) Inserted() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inserted
}

// Close releases the pool opened by Open.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
