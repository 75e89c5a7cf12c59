package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

// Manager owns every mutation of conversation contexts. Appends to one
// session are serialised; the session lock is released while the summarizer
// runs.
type Manager struct {
	store      Store
	summarizer Summarizer
	cfg        Config
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionLock
}

type sessionLock struct {
	mu          sync.Mutex
	refs        int
	compressing bool
}

var _ contractx.Memory = (*Manager)(nil)

func NewManager(store Store, summarizer Summarizer, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("memory store is required")
	}
	if summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		store:      store,
		summarizer: summarizer,
		cfg:        cfg,
		now:        time.Now,
		sessions:   map[string]*sessionLock{},
	}, nil
}

func (m *Manager) Ceiling() int {
	return m.cfg.CeilingTokens
}

// GetOptimizedContext packs the running summary and then the most recent
// whole turns that fit within maxTokens. The budget never exceeds the
// configured ceiling and a non-positive maxTokens means the ceiling. Reads
// take no session lock and have no side effects.
func (m *Manager) GetOptimizedContext(ctx context.Context, sessionID string, maxTokens int) (contractx.ContextView, error) {
	if strings.TrimSpace(sessionID) == "" {
		return contractx.ContextView{}, fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}
	if maxTokens <= 0 || maxTokens > m.cfg.CeilingTokens {
		maxTokens = m.cfg.CeilingTokens
	}

	conv, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, contractx.ErrContextNotFound) {
		return contractx.ContextView{}, nil
	}
	if err != nil {
		return contractx.ContextView{}, err
	}
	return pack(conv, maxTokens), nil
}

func pack(conv *ConversationContext, maxTokens int) contractx.ContextView {
	var view contractx.ContextView
	budget := maxTokens * 4
	used := 0
	parts := 0

	var summaryPart string
	if conv.RunningSummary != "" {
		summaryPart = ClipToTokens(RenderSummary(conv.RunningSummary), maxTokens)
		if summaryPart != "" {
			used = runeLen(summaryPart)
			parts = 1
			view.Summary = strings.TrimPrefix(summaryPart, summaryPrefix)
		}
	}

	// Newest first; the first turn that does not fit ends packing so the
	// view never has gaps in its history.
	first := len(conv.Turns)
	rendered := make([]string, len(conv.Turns))
	for i := len(conv.Turns) - 1; i >= 0; i-- {
		rendered[i] = RenderTurn(conv.Turns[i])
		cost := runeLen(rendered[i])
		if parts > 0 {
			cost += runeLen(partSeparator)
		}
		if used+cost > budget {
			break
		}
		used += cost
		parts++
		first = i
	}

	out := make([]string, 0, parts)
	if summaryPart != "" {
		out = append(out, summaryPart)
	}
	for i := first; i < len(conv.Turns); i++ {
		view.Turns = append(view.Turns, conv.Turns[i])
		out = append(out, rendered[i])
	}
	view.Text = strings.Join(out, partSeparator)
	view.TokenEstimate = EstimateTokens(view.Text)
	return view
}

// AppendTurn records a completed turn. When the context grows past the
// ceiling the oldest turns are summarised and discarded. A summarization
// failure leaves the turn appended and is reported as ErrSummarization; the
// next append retries.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, turn contractx.Turn) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}

	sl := m.acquire(sessionID)
	defer m.release(sessionID)

	sl.mu.Lock()
	if turn.At.IsZero() {
		turn.At = m.now().UTC()
	}
	conv, err := m.loadOrCreate(ctx, sessionID)
	if err != nil {
		sl.mu.Unlock()
		return err
	}
	conv.Turns = append(conv.Turns, turn)
	conv.UpdatedAt = m.now().UTC()
	conv.Recompute()
	if err := m.store.Save(ctx, conv); err != nil {
		sl.mu.Unlock()
		return fmt.Errorf("save conversation context: %w", err)
	}

	if conv.TokenEstimate <= m.cfg.CeilingTokens || sl.compressing {
		sl.mu.Unlock()
		return nil
	}
	fold := m.foldCount(conv)
	if fold == 0 {
		sl.mu.Unlock()
		return nil
	}
	folded := slices.Clone(conv.Turns[:fold])
	prevSummary := conv.RunningSummary
	sl.compressing = true
	sl.mu.Unlock()

	summary, sumErr := m.summarize(ctx, prevSummary, folded)

	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.compressing = false
	if sumErr != nil {
		log.Warn().Err(sumErr).Str("component", "memory").Str("session_id", sessionID).Msg("context compression failed")
		return sumErr
	}
	return m.applySummary(ctx, sessionID, folded, prevSummary, summary)
}

func (m *Manager) summarize(ctx context.Context, prevSummary string, folded []contractx.Turn) (string, error) {
	sumCtx, cancel := context.WithTimeout(ctx, m.cfg.SummaryTimeout)
	defer cancel()

	summary, err := m.summarizer.Summarize(sumCtx, prevSummary, folded, m.cfg.SummaryTokens)
	if err != nil {
		if errors.Is(err, contractx.ErrSummarization) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", contractx.ErrSummarization, err)
	}
	summary = ClipToTokens(strings.TrimSpace(summary), m.cfg.SummaryTokens)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", contractx.ErrSummarization)
	}
	return summary, nil
}

// applySummary must be called with the session lock held. The summary is
// dropped when the context changed underneath it.
func (m *Manager) applySummary(ctx context.Context, sessionID string, folded []contractx.Turn, prevSummary, summary string) error {
	conv, err := m.loadOrCreate(ctx, sessionID)
	if err != nil {
		return err
	}
	if conv.RunningSummary != prevSummary || !conv.StartsWith(folded) {
		log.Debug().Str("component", "memory").Str("session_id", sessionID).Msg("context changed during compression, summary dropped")
		return nil
	}

	conv.Turns = slices.Clone(conv.Turns[len(folded):])
	conv.RunningSummary = summary
	conv.Compressions++
	conv.UpdatedAt = m.now().UTC()
	conv.Recompute()
	if err := m.store.Save(ctx, conv); err != nil {
		return fmt.Errorf("save compressed context: %w", err)
	}

	log.Info().
		Str("component", "memory").
		Str("session_id", sessionID).
		Int("folded_turns", len(folded)).
		Int("token_estimate", conv.TokenEstimate).
		Msg("context compressed")
	return nil
}

// foldCount picks how many of the oldest turns to summarise: fold while more
// than MinRecentTurns remain and the kept turns exceed the retain budget.
func (m *Manager) foldCount(conv *ConversationContext) int {
	retain := int(float64(m.cfg.CeilingTokens) * m.cfg.RetainRatio)
	minKeep := max(m.cfg.MinRecentTurns, 0)

	kept := 0
	for _, t := range conv.Turns {
		kept += EstimateTokens(RenderTurn(t))
	}
	fold := 0
	for len(conv.Turns)-fold > minKeep && kept > retain {
		kept -= EstimateTokens(RenderTurn(conv.Turns[fold]))
		fold++
	}
	return fold
}

// Snapshot returns a copy of the stored context.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (ConversationContext, error) {
	conv, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return ConversationContext{}, err
	}
	return *conv.Clone(), nil
}

// Forget removes the session context.
func (m *Manager) Forget(ctx context.Context, sessionID string) error {
	sl := m.acquire(sessionID)
	defer m.release(sessionID)

	sl.mu.Lock()
	defer sl.mu.Unlock()
	return m.store.Delete(ctx, sessionID)
}

func (m *Manager) loadOrCreate(ctx context.Context, sessionID string) (*ConversationContext, error) {
	conv, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, contractx.ErrContextNotFound) {
		return NewConversationContext(sessionID, m.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation context: %w", err)
	}
	return conv, nil
}

func (m *Manager) acquire(sessionID string) *sessionLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.sessions[sessionID]
	if !ok {
		sl = &sessionLock{}
		m.sessions[sessionID] = sl
	}
	sl.refs++
	return sl
}

func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	sl.refs--
	if sl.refs <= 0 {
		delete(m.sessions, sessionID)
	}
}

func runeLen(s string) int {
	return len([]rune(s))
}
