package chat

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/ladder/internal/ledger"
)

// Directory looks up display names. Names are used only for formatting,
// never for identity.
type Directory interface {
	Name(p ledger.ParticipantID) (string, bool)
}

// Learner is implemented by directories that record names seen on
// incoming messages.
type Learner interface {
	Learn(p ledger.ParticipantID, name string)
}

// StaticDirectory is a fixed name table.
type StaticDirectory map[ledger.ParticipantID]string

// Name implements Directory.
func (d StaticDirectory) Name(p ledger.ParticipantID) (string, bool) {
	name, ok := d[p]
	return name, ok
}

// NameBook is a Directory that learns display names from message authors.
// An optional fallback directory is consulted for participants not yet seen.
//
// Thread-safety: safe for concurrent use.
type NameBook struct {
	mu       sync.RWMutex
	names    map[ledger.ParticipantID]string
	fallback Directory
}

// NewNameBook creates an empty name book. fallback may be nil.
func NewNameBook(fallback Directory) *NameBook {
	return &NameBook{
		names:    make(map[ledger.ParticipantID]string),
		fallback: fallback,
	}
}

// Learn records the display name of p. Empty names are ignored.
func (b *NameBook) Learn(p ledger.ParticipantID, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names[p] = name
}

// Name implements Directory.
func (b *NameBook) Name(p ledger.ParticipantID) (string, bool) {
	b.mu.RLock()
	name, ok := b.names[p]
	b.mu.RUnlock()
	if ok {
		return name, true
	}
	if b.fallback != nil {
		return b.fallback.Name(p)
	}
	return "", false
}

// Mention returns the platform mention form of p.
func Mention(p ledger.ParticipantID) string {
	return fmt.Sprintf("<@%d>", p)
}

// DisplayName returns the directory name of p, or its mention form.
func DisplayName(d Directory, p ledger.ParticipantID) string {
	if d != nil {
		if name, ok := d.Name(p); ok {
			return name
		}
	}
	return Mention(p)
}

// ParseParticipant accepts a mention ("<@42>", "<@!42>") or a bare ID.
func ParseParticipant(token string) (ledger.ParticipantID, error) {
	s := strings.TrimSpace(token)
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(s, "<@"), ">"), "!")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.NewInvalidInputError(fmt.Sprintf("invalid participant %q", token))
	}
	return ledger.ParticipantID(id), nil
}

// ParseMatchID parses a positive match ID.
func ParseMatchID(token string) (ledger.MatchID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil || id < int64(ledger.FirstMatchID) {
		return 0, ledger.NewInvalidInputError(fmt.Sprintf("invalid match ID %q", token))
	}
	return ledger.MatchID(id), nil
}
