package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fieldsite/fieldsite/internal/classify"
)

var csvHeader = []string{
	"id", "text", "created_at",
	"author_id", "author_username", "author_name", "author_verified",
	"retweets", "replies", "likes", "quotes",
	"lang", "collected_at", "topics",
}

// writeCSV exports the labeled archive, newest first. Topics are joined
// with ";" so the column stays a single CSV field.
func writeCSV(path string, labeled []classify.Labeled) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range labeled {
		rec := []string{
			l.ID,
			l.Text,
			l.CreatedAt.UTC().Format(time.RFC3339),
			l.AuthorID,
			l.AuthorUsername,
			l.AuthorName,
			strconv.FormatBool(l.AuthorVerified),
			strconv.Itoa(l.Retweets),
			strconv.Itoa(l.Replies),
			strconv.Itoa(l.Likes),
			strconv.Itoa(l.Quotes),
			l.Lang,
			l.CollectedAt.UTC().Format(time.RFC3339),
			strings.Join(l.Topics, ";"),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
