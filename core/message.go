package core

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

const (
	MessageSource  = "test-generator"
	MessageVersion = "1.0"

	// envelopeReserve approximates the encoded size of everything except
	// the data field, so encoded payloads land near the requested size.
	envelopeReserve = 100
)

// dataCharset omits '"' and '\' so JSON encoding never escapes the data
// field and the encoded size stays predictable.
const dataCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 !#$%&'()*+,-./:;<=>?@[]^_`{|}~"

// TestMessage is the synthetic payload published for backup and restore
// checks. The fixed source and version fields let consumers filter seeded
// traffic out of shared topics.
type TestMessage struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Data      string `json:"data"`
	Source    string `json:"source"`
	Version   string `json:"version"`
}

// NewTestMessage builds a payload whose encoded size approximates sizeBytes.
func NewTestMessage(rng *rand.Rand, now time.Time, sizeBytes int) TestMessage {
	dataLen := sizeBytes - envelopeReserve
	if dataLen < 0 {
		dataLen = 0
	}
	return TestMessage{
		ID:        randomDigits(rng, 10),
		Timestamp: now.UTC().Format(time.RFC3339),
		Data:      randomChars(rng, dataLen),
		Source:    MessageSource,
		Version:   MessageVersion,
	}
}

// Encode marshals the payload to its JSON wire form.
func (m TestMessage) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	return b, errors.Wrap(err, "encode test message")
}

// MessageKey formats the Kafka key for a message sequence number.
func MessageKey(seq int) string {
	return fmt.Sprintf("key-%06d", seq)
}

// MessageSizing selects each message's target byte size: every LargeEvery-th
// message, counting from zero, uses the large size. A zero LargeEvery
// disables large messages entirely.
type MessageSizing struct {
	RegularBytes int
	LargeBytes   int
	LargeEvery   int
}

// TargetBytes returns the size the message with sequence number seq aims for.
func (s MessageSizing) TargetBytes(seq int) int {
	if s.LargeEvery > 0 && seq%s.LargeEvery == 0 {
		return s.LargeBytes
	}
	return s.RegularBytes
}

func randomDigits(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + rng.Intn(10))
	}
	return string(b)
}

func randomChars(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = dataCharset[rng.Intn(len(dataCharset))]
	}
	return string(b)
}
