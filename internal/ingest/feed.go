package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"stancegraph/pkg/logger"
)

// RawPost is one line of the ingestion feed, before cleaning and enrichment
type RawPost struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Score     int64  `json:"score"`
	Forum     string `json:"forum"`
	ParentID  string `json:"parent_id,omitempty"`
}

// maxLineBytes caps a single feed line; longer posts are malformed input
const maxLineBytes = 1 << 20

// ReadFeed parses a JSONL feed. Blank lines are ignored; unparseable lines
// and records without an id are dropped and counted, never fatal.
func ReadFeed(r io.Reader) ([]RawPost, int, error) {
	log := logger.Named("ingest")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var posts []RawPost
	dropped := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var post RawPost
		if err := json.Unmarshal(raw, &post); err != nil {
			dropped++
			log.Warn("Dropped unparseable feed line", zap.Int("line", line), zap.Error(err))
			continue
		}
		if post.ID == "" {
			dropped++
			log.Warn("Dropped feed record without id", zap.Int("line", line))
			continue
		}
		posts = append(posts, post)
	}
	if err := scanner.Err(); err != nil {
		return posts, dropped, fmt.Errorf("failed to read feed: %w", err)
	}
	return posts, dropped, nil
}

// ReadFeedFile reads a JSONL feed from disk
func ReadFeedFile(path string) ([]RawPost, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open feed: %w", err)
	}
	defer f.Close()
	return ReadFeed(f)
}

// Batches splits posts into batches of at most size
func Batches(posts []RawPost, size int) [][]RawPost {
	if size < 1 {
		size = 1
	}
	var batches [][]RawPost
	for start := 0; start < len(posts); start += size {
		end := start + size
		if end > len(posts) {
			end = len(posts)
		}
		batches = append(batches, posts[start:end])
	}
	return batches
}
