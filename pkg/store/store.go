// Package store persists lead, conversation, message, and score records in
// SQLite. Writes from the scoring pipeline are last-writer-wins single-row
// upserts; the only guarded write is the status transition, which is narrowed
// to the statuses the pipeline owns.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	company        TEXT NOT NULL DEFAULT '',
	score          INTEGER NOT NULL DEFAULT 0,
	classification TEXT NOT NULL DEFAULT 'unqualified',
	status         TEXT NOT NULL DEFAULT 'new',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	summary    TEXT NOT NULL DEFAULT '',
	sentiment  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS lead_scores (
	lead_id          TEXT PRIMARY KEY REFERENCES leads(id) ON DELETE CASCADE,
	company_fit      INTEGER NOT NULL,
	budget_alignment INTEGER NOT NULL,
	timeline         INTEGER NOT NULL,
	authority        INTEGER NOT NULL,
	need             INTEGER NOT NULL,
	engagement       INTEGER NOT NULL,
	total            INTEGER NOT NULL,
	reasoning        TEXT NOT NULL DEFAULT '',
	updated_at       TIMESTAMP NOT NULL
);
`

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+"_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: time.Now,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateLead inserts a new lead in status "new".
func (s *Store) CreateLead(ctx context.Context, email, name, company string) (*Lead, error) {
	lead := &Lead{
		ID:             uuid.NewString(),
		Email:          email,
		Name:           name,
		Company:        company,
		Classification: ClassificationUnqualified,
		Status:         StatusNew,
		CreatedAt:      s.now().UTC(),
		UpdatedAt:      s.now().UTC(),
	}
	query, args, err := s.sb.Insert("leads").
		Columns("id", "email", "name", "company", "score", "classification", "status", "created_at", "updated_at").
		Values(lead.ID, lead.Email, lead.Name, lead.Company, 0, lead.Classification, lead.Status, lead.CreatedAt, lead.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert lead: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

// GetLead fetches a lead by ID.
func (s *Store) GetLead(ctx context.Context, id string) (*Lead, error) {
	query, args, err := s.sb.Select("id", "email", "name", "company", "score", "classification", "status", "created_at", "updated_at").
		From("leads").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select lead: %w", err)
	}
	var l Lead
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&l.ID, &l.Email, &l.Name, &l.Company, &l.Score, &l.Classification, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select lead: %w", err)
	}
	return &l, nil
}

// CreateConversation starts a conversation for a lead.
func (s *Store) CreateConversation(ctx context.Context, leadID string) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}
	query, args, err := s.sb.Insert("conversations").
		Columns("id", "lead_id", "summary", "sentiment", "created_at", "updated_at").
		Values(conv.ID, conv.LeadID, "", "", conv.CreatedAt, conv.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert conversation: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// GetConversation fetches a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query, args, err := s.sb.Select("id", "lead_id", "summary", "sentiment", "created_at", "updated_at").
		From("conversations").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select conversation: %w", err)
	}
	var c Conversation
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.LeadID, &c.Summary, &c.Sentiment, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	return &c, nil
}

// AppendMessage appends one turn to a conversation's history.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	query, args, err := s.sb.Insert("messages").
		Columns("id", "conversation_id", "role", "content", "created_at").
		Values(uuid.NewString(), conversationID, role, content, s.now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListTurns returns a conversation's turns in append order.
func (s *Store) ListTurns(ctx context.Context, conversationID string) ([]Turn, error) {
	query, args, err := s.sb.Select("role", "content", "created_at").
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at ASC", "rowid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select turns: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return turns, nil
}

// CountTurns returns the number of turns in a conversation.
func (s *Store) CountTurns(ctx context.Context, conversationID string) (int, error) {
	query, args, err := s.sb.Select("COUNT(*)").
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count turns: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}

// UpsertLeadScore replaces the lead's score row in full, keyed by lead_id.
func (s *Store) UpsertLeadScore(ctx context.Context, score LeadScore) error {
	const query = `INSERT INTO lead_scores
		(lead_id, company_fit, budget_alignment, timeline, authority, need, engagement, total, reasoning, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (lead_id) DO UPDATE SET
			company_fit = excluded.company_fit,
			budget_alignment = excluded.budget_alignment,
			timeline = excluded.timeline,
			authority = excluded.authority,
			need = excluded.need,
			engagement = excluded.engagement,
			total = excluded.total,
			reasoning = excluded.reasoning,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		score.LeadID, score.CompanyFit, score.BudgetAlignment, score.Timeline,
		score.Authority, score.Need, score.Engagement, score.Total, score.Reasoning,
		s.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert lead score: %w", err)
	}
	return nil
}

// GetLeadScore fetches the current score row for a lead.
func (s *Store) GetLeadScore(ctx context.Context, leadID string) (*LeadScore, error) {
	query, args, err := s.sb.Select("lead_id", "company_fit", "budget_alignment", "timeline",
		"authority", "need", "engagement", "total", "reasoning", "updated_at").
		From("lead_scores").Where(sq.Eq{"lead_id": leadID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select lead score: %w", err)
	}
	var ls LeadScore
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&ls.LeadID, &ls.CompanyFit, &ls.BudgetAlignment, &ls.Timeline,
		&ls.Authority, &ls.Need, &ls.Engagement, &ls.Total, &ls.Reasoning, &ls.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select lead score: %w", err)
	}
	return &ls, nil
}

// UpdateQualification writes a scoring pass result to the lead. Score and
// classification are recomputed on every pass and always written; status is
// written only when the current status is one the pipeline owns, so statuses
// set by other workflows (meeting_scheduled, closed) are never clobbered.
// Both writes happen in one transaction.
func (s *Store) UpdateQualification(ctx context.Context, leadID string, score int, classification, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin qualification tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()

	res, err := tx.ExecContext(ctx,
		`UPDATE leads SET score = ?, classification = ?, updated_at = ? WHERE id = ?`,
		score, classification, now, leadID)
	if err != nil {
		return fmt.Errorf("update lead score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?, ?)`,
		status, now, leadID, StatusNew, StatusQualifying, StatusQualified)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}

	return tx.Commit()
}

// SetConversationSummary stores the best-effort summary and sentiment.
func (s *Store) SetConversationSummary(ctx context.Context, conversationID, summary, sentiment string) error {
	query, args, err := s.sb.Update("conversations").
		Set("summary", summary).
		Set("sentiment", sentiment).
		Set("updated_at", s.now().UTC()).
		Where(sq.Eq{"id": conversationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update summary: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	return nil
}
