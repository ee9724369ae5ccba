// Package id provides identifier generation for the broker.
//
// Session identifiers are prefixed ULIDs (sess_01J...). ULIDs sort by
// creation time, so listing sessions by id lists them by age, and the prefix
// keeps ids readable in logs.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one connection/process pairing.
type SessionID string

// SessionPrefix is prepended to every session ULID.
const SessionPrefix = "sess"

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// ordering inside the same millisecond.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

func (id SessionID) String() string { return string(id) }

// Valid reports whether id has the session prefix followed by a valid ULID.
func (id SessionID) Valid() bool {
	rest, ok := strings.CutPrefix(string(id), SessionPrefix+"_")
	return ok && IsValid(rest)
}

// Timestamp extracts the creation time encoded in the session ID.
func (id SessionID) Timestamp() (time.Time, error) {
	rest, ok := strings.CutPrefix(string(id), SessionPrefix+"_")
	if !ok {
		return time.Time{}, fmt.Errorf("session id %q: missing %s_ prefix", id, SessionPrefix)
	}
	parsed, err := ulid.Parse(rest)
	if err != nil {
		return time.Time{}, fmt.Errorf("session id %q: %w", id, err)
	}
	return ulid.Time(parsed.Time()), nil
}

// IsValid checks if an ID string is a bare ULID. Use SessionID.Valid for
// prefixed session ids.
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}
