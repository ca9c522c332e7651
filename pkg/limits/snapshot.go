package limits

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"mercator-hq/tollgate/pkg/limits/bucket"
)

// snapshotEntry is the wire form of one bucket. All four fields are
// required; pointers tell a missing field from a zero value.
type snapshotEntry struct {
	Balance    *float64         `json:"balance"`
	RefillRate *float64         `json:"refill_rate"`
	Capacity   *bucket.Capacity `json:"capacity"`
	LastRefill *epochTime       `json:"last_refill"`
}

// Serialize encodes every bucket as a JSON object keyed by identifier.
//
//	{"agent-1": {"balance": 40, "refill_rate": 10, "capacity": 100,
//	             "last_refill": 1700000000.123456789}}
//
// Each bucket is captured under its own lock. The document is consistent
// per bucket, not across buckets modified during the call.
func (m *Manager) Serialize() ([]byte, error) {
	data, _, err := m.SerializeWithCount()
	return data, err
}

// SerializeWithCount is Serialize that also reports how many buckets the
// document holds.
func (m *Manager) SerializeWithCount() (data []byte, count int, err error) {
	defer func() { m.metrics.RecordSnapshot("serialize", err) }()

	infos := m.List()
	entries := make(map[string]snapshotEntry, len(infos))
	for _, info := range infos {
		balance := info.Balance
		rate := info.RefillRate
		capacity := info.Capacity
		last := epochTime(info.LastRefill)
		entries[info.Identifier] = snapshotEntry{
			Balance:    &balance,
			RefillRate: &rate,
			Capacity:   &capacity,
			LastRefill: &last,
		}
	}

	data, err = json.Marshal(entries)
	if err != nil {
		return nil, 0, fmt.Errorf("serialize buckets: %w", err)
	}
	return data, len(entries), nil
}

// Deserialize replaces the entire registry with the buckets in data.
//
// The snapshot is fully decoded and validated before the registry is
// touched. Any missing, unknown or mistyped field, invalid value or
// trailing data fails the whole load with ErrMalformedSnapshot.
func (m *Manager) Deserialize(data []byte) (err error) {
	defer func() { m.metrics.RecordSnapshot("deserialize", err) }()

	buckets, err := decodeSnapshot(data, m.clock)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.buckets = buckets
	m.mu.Unlock()

	m.metrics.UpdateBucketCount(len(buckets))
	m.metrics.ResetBalances()
	for id, b := range buckets {
		m.observeBalance(id, b)
	}

	m.logger.Info("snapshot loaded", "buckets", len(buckets))
	return nil
}

func decodeSnapshot(data []byte, clock bucket.Clock) (map[string]*bucket.TokenBucket, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var entries map[string]*snapshotEntry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after snapshot object", ErrMalformedSnapshot)
	}
	if entries == nil {
		return nil, fmt.Errorf("%w: snapshot must be a JSON object", ErrMalformedSnapshot)
	}

	buckets := make(map[string]*bucket.TokenBucket, len(entries))
	for id, entry := range entries {
		if id == "" {
			return nil, fmt.Errorf("%w: empty identifier", ErrMalformedSnapshot)
		}
		state, err := entry.state()
		if err != nil {
			return nil, fmt.Errorf("%w: bucket %q: %v", ErrMalformedSnapshot, id, err)
		}
		b, err := bucket.Restore(state, clock)
		if err != nil {
			return nil, fmt.Errorf("%w: bucket %q: %v", ErrMalformedSnapshot, id, err)
		}
		buckets[id] = b
	}
	return buckets, nil
}

func (e *snapshotEntry) state() (bucket.State, error) {
	if e == nil {
		return bucket.State{}, errors.New("bucket entry is null")
	}

	var missing []string
	if e.Balance == nil {
		missing = append(missing, "balance")
	}
	if e.RefillRate == nil {
		missing = append(missing, "refill_rate")
	}
	if e.Capacity == nil {
		missing = append(missing, "capacity")
	}
	if e.LastRefill == nil {
		missing = append(missing, "last_refill")
	}
	if len(missing) > 0 {
		return bucket.State{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	return bucket.State{
		Capacity:   *e.Capacity,
		Balance:    *e.Balance,
		RefillRate: *e.RefillRate,
		LastRefill: time.Time(*e.LastRefill),
	}, nil
}

// epochTime encodes an instant as seconds since the Unix epoch with
// nanosecond precision, e.g. 1700000000.123456789.
type epochTime time.Time

func (t epochTime) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	sec, nsec := tt.Unix(), int64(tt.Nanosecond())
	if sec < 0 && nsec > 0 {
		// Unix floors towards -inf; render as -(|sec|-1).(1e9-nsec).
		return []byte(fmt.Sprintf("-%d.%09d", -(sec + 1), int64(time.Second)-nsec)), nil
	}
	return []byte(fmt.Sprintf("%d.%09d", sec, nsec)), nil
}

func (t *epochTime) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if s == "" || s[0] == '"' || s == "null" || s == "true" || s == "false" || s[0] == '{' || s[0] == '[' {
		return fmt.Errorf("last_refill must be a number, got %s", s)
	}

	parsed, err := parseEpoch(s)
	if err != nil {
		return fmt.Errorf("last_refill: %w", err)
	}
	*t = epochTime(parsed)
	return nil
}

// parseEpoch parses plain decimal seconds exactly to the nanosecond and
// falls back to float parsing for exponent notation.
func parseEpoch(s string) (time.Time, error) {
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
			return time.Time{}, fmt.Errorf("timestamp %s out of range", s)
		}
		sec := math.Floor(f)
		nsec := math.Round((f - sec) * float64(time.Second))
		return time.Unix(int64(sec), int64(nsec)), nil
	}

	negative := strings.HasPrefix(s, "-")
	intPart, fracPart, _ := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	if intPart == "" {
		return time.Time{}, fmt.Errorf("invalid timestamp %s", s)
	}

	sec, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	var nsec int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		fracPart += strings.Repeat("0", 9-len(fracPart))
		if nsec, err = strconv.ParseInt(fracPart, 10, 64); err != nil {
			return time.Time{}, err
		}
	}

	if negative {
		return time.Unix(-sec, -nsec), nil
	}
	return time.Unix(sec, nsec), nil
}
