// Package search keeps a full-text index of projected room messages.
package search

import (
	"context"
	"fmt"
	"ledger-chat/domain"
	"log/slog"
	"strconv"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/blugelabs/bluge"
	"github.com/samber/lo"
)

const (
	fieldSpace     = "space"
	fieldRoom      = "room"
	fieldAuthor    = "author"
	fieldLang      = "lang"
	fieldContent   = "content"
	fieldTimestamp = "timestamp"
)

// Document is a message as it is indexed.
type Document struct {
	SpaceID         int64
	Room            string
	Author          domain.PublicKey
	BlockHash       domain.Hash
	TransactionHash domain.Hash
	Timestamp       time.Time
	Content         string
}

// ID identifies a message by its ledger coordinate, so indexing it twice replaces it.
func (d Document) ID() string {
	return fmt.Sprintf("%d:%s:%s", d.SpaceID, d.BlockHash, d.TransactionHash)
}

type Hit struct {
	ID        string
	SpaceID   int64
	Room      string
	Author    string
	Lang      string
	Content   string
	Timestamp time.Time
	Score     float64
}

type Index struct {
	log    *slog.Logger
	writer *bluge.Writer
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{log: log, writer: writer}
}

// Index writes all documents in a single batch.
func (i *Index) Index(docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	for _, d := range docs {
		doc := toBlugeDocument(d)
		batch.Update(doc.ID(), doc)
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("index %d messages: %w", len(docs), err)
	}
	i.log.Debug("Messages indexed", "count", len(docs))
	return nil
}

// Search returns the most recent messages matching the query.
func (i *Index) Search(ctx context.Context, q Query) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()
	return SearchSnapshot(ctx, reader, q)
}

// SearchSnapshot runs q against a reader, e.g. one from bluge.OpenReader in a
// process that must not take the writer lock.
func SearchSnapshot(ctx context.Context, reader *bluge.Reader, q Query) ([]Hit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	request := bluge.NewTopNSearch(limit, toBlugeQuery(q)).SortBy([]string{"-" + fieldTimestamp})
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}

	var hits []Hit
	match, err := matches.Next()
	for err == nil && match != nil {
		hit := Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ID = string(value)
			case fieldSpace:
				hit.SpaceID, _ = strconv.ParseInt(string(value), 10, 64)
			case fieldRoom:
				hit.Room = string(value)
			case fieldAuthor:
				hit.Author = string(value)
			case fieldLang:
				hit.Lang = string(value)
			case fieldContent:
				hit.Content = string(value)
			case fieldTimestamp:
				if at, decodeErr := bluge.DecodeDateTime(value); decodeErr == nil {
					hit.Timestamp = at.UTC()
				}
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("read stored fields: %w", err)
		}
		hits = append(hits, hit)
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return hits, nil
}

func toBlugeDocument(d Document) *bluge.Document {
	doc := bluge.NewDocument(d.ID())
	doc.AddField(bluge.NewKeywordField(fieldSpace, strconv.FormatInt(d.SpaceID, 10)).StoreValue())
	doc.AddField(bluge.NewKeywordField(fieldRoom, d.Room).StoreValue())
	doc.AddField(bluge.NewKeywordField(fieldAuthor, d.Author.String()).StoreValue())
	doc.AddField(bluge.NewKeywordField(fieldLang, DetectLanguage(d.Content)).StoreValue())
	doc.AddField(bluge.NewTextField(fieldContent, d.Content).StoreValue())
	doc.AddField(bluge.NewDateTimeField(fieldTimestamp, d.Timestamp).StoreValue().Sortable())
	return doc
}

func toBlugeQuery(q Query) bluge.Query {
	var clauses []bluge.Query
	if q.Terms != "" {
		clauses = append(clauses, bluge.NewMatchQuery(q.Terms).SetField(fieldContent))
	}
	if q.SpaceID > 0 {
		clauses = append(clauses, bluge.NewTermQuery(strconv.FormatInt(q.SpaceID, 10)).SetField(fieldSpace))
	}
	if q.Room != "" {
		clauses = append(clauses, bluge.NewTermQuery(q.Room).SetField(fieldRoom))
	}
	if q.Lang != "" {
		clauses = append(clauses, bluge.NewTermQuery(q.Lang).SetField(fieldLang))
	}
	if len(clauses) == 0 {
		return bluge.NewMatchAllQuery()
	}
	return bluge.NewBooleanQuery().AddMust(clauses...)
}

// DetectLanguage returns the ISO 639-1 code of the text, or "und" when unsure.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	return lo.Ternary(info.IsReliable() && code != "", code, "und")
}
