package testutils

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/window"
)

// RecordForTest is a raw record payload for testing.
type RecordForTest struct {
	Lang string `json:"lang"`
	Text string `json:"text"`
}

// BuildTestRecordMessages builds raw record messages, one per second starting
// at startTime, all in the given language.
func BuildTestRecordMessages(count int64, startTime time.Time, lang string) []isb.Message {
	var messages = make([]isb.Message, 0, count)
	for i := int64(0); i < count; i++ {
		tmpTime := startTime.Add(time.Duration(i) * time.Second)
		result, _ := json.Marshal(RecordForTest{
			Lang: lang,
			Text: fmt.Sprintf("record %d text", i),
		})
		messages = append(messages,
			isb.Message{
				Header: isb.Header{
					MessageInfo: isb.MessageInfo{
						EventTime: tmpTime,
					},
					ID: fmt.Sprintf("%d", i),
				},
				Body: isb.Body{Payload: result},
			},
		)
	}

	return messages
}

// BuildTestTokenMessages builds token messages the way the transformer emits
// them: the token in the Key, the arrival time as EventTime.
func BuildTestTokenMessages(tokens []string, eventTime time.Time) []isb.Message {
	var messages = make([]isb.Message, 0, len(tokens))
	for i, tok := range tokens {
		messages = append(messages,
			isb.Message{
				Header: isb.Header{
					MessageInfo: isb.MessageInfo{
						EventTime: eventTime,
					},
					ID:  fmt.Sprintf("%d-%s", i, tok),
					Key: tok,
				},
				Body: isb.Body{Payload: []byte(tok)},
			},
		)
	}
	return messages
}

// BuildTestSummaryMessages builds summary messages the way the counting loop
// writes them; the i-th message carries counts[i] for the i-th hop after
// startTime.
func BuildTestSummaryMessages(counts []map[string]int64, startTime time.Time, hop time.Duration) []isb.Message {
	var messages = make([]isb.Message, 0, len(counts))
	for i, c := range counts {
		w := window.IntervalWindow{
			Start: startTime.Add(time.Duration(i) * hop),
			End:   startTime.Add(time.Duration(i+1) * hop),
		}
		s := window.Summary{Window: w, Counts: c}
		payload, _ := s.Marshal()
		messages = append(messages,
			isb.Message{
				Header: isb.Header{
					MessageInfo: isb.MessageInfo{
						EventTime: w.End,
					},
					ID: w.Key(),
				},
				Body: isb.Body{Payload: payload},
			},
		)
	}
	return messages
}

// BuildTestReadMessages builds test isb.ReadMessage which can be used for testing.
func BuildTestReadMessages(count int64, startTime time.Time) []isb.ReadMessage {
	writeMessages := BuildTestRecordMessages(count, startTime, "en")
	var readMessages = make([]isb.ReadMessage, count)

	for idx, writeMessage := range writeMessages {
		readMessages[idx] = isb.ReadMessage{
			Message:    writeMessage,
			ReadOffset: isb.SimpleStringOffset(func() string { return fmt.Sprintf("read_%s", writeMessage.Header.ID) }),
		}
	}

	return readMessages
}
