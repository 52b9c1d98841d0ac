package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{"plain", "Hello World", "hello world"},
		{"html", "<p>Hello <b>World</b></p>", "hello world"},
		{"script stripped", "<p>Hi</p><script>alert(1)</script>", "hi"},
		{"url stripped", "look at https://example.com/a?b=c now", "look at now"},
		{"www url stripped", "see www.example.com please", "see please"},
		{"whitespace collapsed", "a \n\t b   c", "a b c"},
		{"empty", "", ""},
		{"only url", "https://example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.out, Clean(tc.in))
		})
	}
}

func TestReadFeed(t *testing.T) {
	feed := strings.Join([]string{
		`{"id": "p1", "author": "alice", "content": "hello", "timestamp": 100, "score": 5, "forum": "politics"}`,
		``,
		`not json at all`,
		`{"author": "ghost", "content": "no id"}`,
		`{"id": "p2", "author": "bob", "content": "reply", "parent_id": "p1"}`,
	}, "\n")

	posts, dropped, err := ReadFeed(strings.NewReader(feed))
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, posts, 2)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, int64(100), posts[0].Timestamp)
	assert.Equal(t, "p1", posts[1].ParentID)
}

func TestBatches(t *testing.T) {
	posts := []RawPost{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"}}

	batches := Batches(posts, 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)

	assert.Empty(t, Batches(nil, 2))
}

func TestSentenceFor(t *testing.T) {
	text := "I like apples. Biden gave a speech! What next?"
	assert.Equal(t, "Biden gave a speech", sentenceFor(text, "biden"))
	assert.Equal(t, "", sentenceFor(text, "trump"))
}
