package wa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMessageSenderTagging(t *testing.T) {
	own := "5511900000000@c.us"

	tests := []struct {
		name       string
		raw        RawMessage
		wantSender string
	}{
		{
			name:       "from own address",
			raw:        RawMessage{ID: "m1", From: own, Body: "oi"},
			wantSender: SenderSelf,
		},
		{
			name:       "marked outgoing",
			raw:        RawMessage{ID: "m2", From: "other@c.us", FromMe: true, Body: "oi"},
			wantSender: SenderSelf,
		},
		{
			name:       "from counterpart",
			raw:        RawMessage{ID: "m3", From: "5511999990000@c.us", Body: "oi"},
			wantSender: "5511999990000@c.us",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NormalizeMessage(tt.raw, own)
			assert.Equal(t, tt.wantSender, msg.SenderID)
			assert.Equal(t, tt.raw.ID, msg.ID)
			assert.Equal(t, tt.raw.Body, msg.Content)
		})
	}
}

func TestNormalizeMessageTimestamp(t *testing.T) {
	epoch := int64(1714500000)
	msg := NormalizeMessage(RawMessage{ID: "m1", Timestamp: epoch}, "")
	assert.Equal(t, time.Unix(epoch, 0).UTC(), msg.CreatedAt)

	before := time.Now().UTC()
	msg = NormalizeMessage(RawMessage{ID: "m2"}, "")
	assert.False(t, msg.CreatedAt.Before(before.Truncate(time.Second)))
	assert.Equal(t, time.UTC, msg.CreatedAt.Location())
}

func TestNumberScheme(t *testing.T) {
	scheme := NumberScheme{Prefix: "55", Length: 12}

	tests := []struct {
		number string
		valid  bool
	}{
		{"551199999000", true},
		{"+55 11 9999-9000", true},
		{"5511999990001", false}, // 13 digits
		{"44119999900", false},   // wrong country
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, scheme.Valid(tt.number), "number %q", tt.number)
	}
}

func TestChatID(t *testing.T) {
	assert.Equal(t, "5511999990000@c.us", ChatID("+55 (11) 99999-0000"))
	assert.Equal(t, "5511999990000@c.us", ChatID("5511999990000@c.us"))
	assert.Equal(t, "group-x@g.us", ChatID("group-x@g.us"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Maria", RawContact{Name: "Maria", PushName: "ma"}.DisplayName())
	assert.Equal(t, "ma", RawContact{PushName: "ma"}.DisplayName())
	assert.Equal(t, "Sem Nome", RawContact{}.DisplayName())
}
