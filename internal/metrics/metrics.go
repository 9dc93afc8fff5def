package metrics

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event names written to the metrics log.
const (
	EventStore  = "store"
	EventHit    = "hit"
	EventMiss   = "miss"
	EventBypass = "bypass"
)

// TimeLayout is the timestamp format used for the ts field.
const TimeLayout = time.RFC3339Nano

// Event is one line of the metrics log. Optional fields are pointers so that
// a legitimate zero (no tokens avoided, zero entries checked) is still written.
type Event struct {
	TS               string   `json:"ts"`
	Event            string   `json:"event"`
	ID               string   `json:"id,omitempty"`
	Type             string   `json:"type,omitempty"`
	ContextSignature string   `json:"context_signature,omitempty"`
	TokensAvoidedEst *int64   `json:"tokens_avoided_est,omitempty"`
	Similarity       *float64 `json:"similarity,omitempty"`
	Checked          *int     `json:"checked,omitempty"`
}

// Stored builds a store event.
func Stored(at time.Time, id, kind, contextSignature string, tokensAvoided int64) Event {
	return Event{
		TS:               formatTime(at),
		Event:            EventStore,
		ID:               id,
		Type:             kind,
		ContextSignature: contextSignature,
		TokensAvoidedEst: &tokensAvoided,
	}
}

// Hit builds a hit event. Similarity is only set for semantic hits.
func Hit(at time.Time, kind, id string, similarity *float64) Event {
	return Event{
		TS:         formatTime(at),
		Event:      EventHit,
		Type:       kind,
		ID:         id,
		Similarity: similarity,
	}
}

// Miss builds a miss event carrying the number of index rows examined.
func Miss(at time.Time, checked int) Event {
	return Event{TS: formatTime(at), Event: EventMiss, Checked: &checked}
}

// Bypass builds a bypass event.
func Bypass(at time.Time) Event {
	return Event{TS: formatTime(at), Event: EventBypass}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Sink receives cache events.
type Sink interface {
	Emit(Event) error
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) error { return nil }

// FileSink appends events as JSON lines to a file.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink returns a sink appending to path. The file and its parent
// directory are created on first write.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the log file path.
func (s *FileSink) Path() string {
	return s.path
}

// Emit appends e as a single line.
func (s *FileSink) Emit(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", e.Event, err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening metrics log: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing metrics log: %w", err)
	}
	return f.Close()
}

// Summary aggregates a metrics log.
type Summary struct {
	Events              map[string]int `json:"events"`
	HitsByType          map[string]int `json:"hits_by_type"`
	Lookups             int            `json:"lookups"`
	HitRate             float64        `json:"hit_rate"`
	TokensAvoidedStored int64          `json:"tokens_avoided_stored"`
	MalformedLines      int            `json:"malformed_lines"`
	First               string         `json:"first,omitempty"`
	Last                string         `json:"last,omitempty"`
}

// Summarize reads the metrics log at path. A missing log yields an empty
// summary. Lines that are not valid events are counted and skipped.
func Summarize(path string) (Summary, error) {
	s := Summary{Events: map[string]int{}, HitsByType: map[string]int{}}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("opening metrics log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil || e.Event == "" {
			s.MalformedLines++
			continue
		}
		s.Events[e.Event]++
		switch e.Event {
		case EventHit:
			s.HitsByType[e.Type]++
		case EventStore:
			if e.TokensAvoidedEst != nil {
				s.TokensAvoidedStored += *e.TokensAvoidedEst
			}
		}
		if e.TS != "" {
			if s.First == "" {
				s.First = e.TS
			}
			s.Last = e.TS
		}
	}
	if err := scanner.Err(); err != nil {
		return s, fmt.Errorf("reading metrics log: %w", err)
	}

	s.Lookups = s.Events[EventHit] + s.Events[EventMiss] + s.Events[EventBypass]
	if s.Lookups > 0 {
		s.HitRate = float64(s.Events[EventHit]) / float64(s.Lookups)
	}
	return s, nil
}
