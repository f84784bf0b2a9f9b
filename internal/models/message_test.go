package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachmentDisplaySize(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{0, "0 Bytes"},
		{-5, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1024573, "1000.56 KB"},
		{1048576, "1 MB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
		{2048 * 1024 * 1024 * 1024, "2048 GB"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Attachment{FileSize: tc.size}.DisplaySize(), "size %d", tc.size)
	}
}

func TestMessageCloneDoesNotShareSlices(t *testing.T) {
	orig := Message{
		ID:          "m1",
		Reactions:   []Reaction{{Emoji: "👍", Count: 1, Users: []string{"alice"}}},
		Attachments: []Attachment{{ID: "a1"}},
	}
	clone := orig.Clone()
	clone.Reactions[0].Users[0] = "bob"
	clone.Attachments[0].ID = "a2"

	assert.Equal(t, "alice", orig.Reactions[0].Users[0])
	assert.Equal(t, "a1", orig.Attachments[0].ID)
}
