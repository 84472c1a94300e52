package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Store persists conversations between messages.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
	Delete(ctx context.Context, sessionID string) error
	// DeleteIdle removes conversations outside the done state whose last
	// update is before the cutoff.
	DeleteIdle(ctx context.Context, before time.Time) (int, error)
}

// LoadOrCreate returns the stored conversation or a fresh one at start.
func LoadOrCreate(ctx context.Context, s Store, sessionID string, now time.Time) (*Conversation, error) {
	c, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrConversationNotFound) {
		return NewConversation(sessionID, now), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

type PgStore struct {
	db appointment.DBTX
}

func NewPgStore(db appointment.DBTX) *PgStore {
	return &PgStore{db: db}
}

var _ Store = (*PgStore)(nil)

func (s *PgStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	var (
		c     Conversation
		state string
		draft []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT session_id, state, draft, patient_id, created_at, updated_at
		FROM conversations
		WHERE session_id = $1
	`, sessionID).Scan(&c.SessionID, &state, &draft, &c.PatientID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("select conversation: %w", err)
	}

	c.State = State(state)
	c.Draft, err = UnmarshalDraft(draft)
	if err != nil {
		// An unreadable draft is treated like an unknown state: start over.
		c.Reset()
	}
	return &c, nil
}

func (s *PgStore) Save(ctx context.Context, c *Conversation) error {
	draft, err := MarshalDraft(c.Draft)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO conversations (session_id, state, draft, patient_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE
		SET state = EXCLUDED.state,
		    draft = EXCLUDED.draft,
		    patient_id = EXCLUDED.patient_id,
		    updated_at = EXCLUDED.updated_at
	`, c.SessionID, string(c.State), draft, c.PatientID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

func (s *PgStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteIdle(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM conversations
		WHERE state <> $1 AND updated_at < $2
	`, string(StateDone), before)
	if err != nil {
		return 0, fmt.Errorf("delete idle conversations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// MemoryStore keeps conversations in process; used with the memory storage
// backend and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	convs map[string]*Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*Conversation)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[sessionID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, c *Conversation) error {
	if c.SessionID == "" {
		return errors.New("conversation has no session id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[c.SessionID] = c.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, sessionID)
	return nil
}

func (s *MemoryStore) DeleteIdle(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.convs {
		if c.State != StateDone && c.UpdatedAt.Before(before) {
			delete(s.convs, id)
			n++
		}
	}
	return n, nil
}

// NewSessionID returns a random session key for hosts that have none.
func NewSessionID() string {
	return uuid.NewString()
}
