// Package mongo provides a document-oriented record sink backed by MongoDB.
// Each case is stored whole as a single document with inline base64 content.
package mongo

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
)

// SinkConfig controls the MongoDB connection.
type SinkConfig struct {
	URI        string        `mapstructure:"uri" yaml:"uri"`
	Database   string        `mapstructure:"database" yaml:"database"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

func (c SinkConfig) withDefaults() SinkConfig {
	if c.Database == "" {
		c.Database = "caseharvester"
	}
	if c.Collection == "" {
		c.Collection = "cases"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

type collection interface {
	CountDocuments(ctx context.Context, filter any, opts ...*options.CountOptions) (int64, error)
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

// Sink persists whole case documents into one MongoDB collection.
type Sink struct {
	coll   collection
	clock  court.Clock
	logger *zap.Logger
}

// NewSink connects to MongoDB and returns a sink over the configured
// collection.
func NewSink(ctx context.Context, cfg SinkConfig, clock court.Clock, logger *zap.Logger) (*Sink, error) {
	cfg = cfg.withDefaults()
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo.uri is required")
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewSinkWithCollection(client.Database(cfg.Database).Collection(cfg.Collection), clock, logger)
}

// NewSinkWithCollection constructs a sink from an existing collection
// (primarily for testing).
func NewSinkWithCollection(coll collection, clock court.Clock, logger *zap.Logger) (*Sink, error) {
	if coll == nil {
		return nil, fmt.Errorf("collection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{coll: coll, clock: clock, logger: logger}, nil
}

// Exists reports whether a case document is already stored.
func (s *Sink) Exists(ctx context.Context, caseNumber string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": caseNumber}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check case %s: %w", caseNumber, err)
	}
	return count > 0, nil
}

// Persist upserts the whole case as one document keyed by case number.
func (s *Sink) Persist(ctx context.Context, record *court.CaseRecord) error {
	if record == nil || record.CaseNumber == "" {
		return fmt.Errorf("case number is required")
	}
	doc := buildDocument(record)
	if s.clock != nil {
		doc["ingested_at"] = s.clock.Now()
	}
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": record.CaseNumber}, doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("persist case %s: %w", record.CaseNumber, err)
	}
	s.logger.Debug("case persisted",
		zap.String("case_number", record.CaseNumber),
		zap.Int("documents", len(record.Documents)),
	)
	return nil
}

func buildDocument(record *court.CaseRecord) bson.M {
	parties := make([]bson.M, 0, len(record.Parties))
	for _, p := range record.Parties {
		parties = append(parties, bson.M{
			"type":          p.Type,
			"first_name":    p.FirstName,
			"middle_name":   p.MiddleName,
			"last_name":     p.LastName,
			"nick_name":     p.NickName,
			"business_name": p.BusinessName,
			"full_name":     p.FullName,
			"is_defendant":  p.IsDefendant,
		})
	}
	attorneys := make([]bson.M, 0, len(record.Attorneys))
	for _, a := range record.Attorneys {
		attorneys = append(attorneys, bson.M{
			"first_name":   a.FirstName,
			"middle_name":  a.MiddleName,
			"last_name":    a.LastName,
			"representing": a.Representing,
			"bar_number":   a.BarNumber,
			"is_lead":      a.IsLead,
		})
	}
	hearings := make([]bson.M, 0, len(record.Hearings))
	for _, h := range record.Hearings {
		hearings = append(hearings, bson.M{
			"hearing_id": h.HearingID,
			"calendar":   h.Calendar,
			"type":       h.Type,
			"date":       h.Date,
			"time":       h.Time,
			"result":     h.Result,
		})
	}
	documents := make([]bson.M, 0, len(record.Documents))
	for _, d := range record.Documents {
		entry := bson.M{
			"document_id":   d.DocumentID,
			"document_name": d.Name,
			"sha256":        d.SHA256,
			"size_bytes":    len(d.Content),
		}
		if len(d.Content) > 0 {
			entry["pdf_base64"] = base64.StdEncoding.EncodeToString(d.Content)
		}
		documents = append(documents, entry)
	}
	return bson.M{
		"_id":            record.CaseNumber,
		"case_number":    record.CaseNumber,
		"result":         record.Result,
		"message":        record.Message,
		"type":           record.Type,
		"style":          record.Style,
		"file_date":      record.FileDate,
		"status":         record.Status,
		"court_location": record.CourtLocation,
		"parties":        parties,
		"attorneys":      attorneys,
		"hearings":       hearings,
		"documents":      documents,
	}
}
