package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"deckforge/internal/domain"
)

const (
	pkPrefixDay = "DAY#"
	skPrefixGen = "GEN#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client writes generation audit records to a DynamoDB table. Writes are
// advisory: callers swallow errors and nothing on the request path reads
// them back.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// RecordGeneration writes one audit entry for a completed generate call.
func (c *Client) RecordGeneration(ctx context.Context, topic string, slideCount int, enhanced bool, outcome string, duration time.Duration) error {
	rec := NewGenerationRecord(topic, slideCount, enhanced, outcome, duration)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      recordItem(rec),
	})
	if err != nil {
		return fmt.Errorf("repository: RecordGeneration: %w", err)
	}
	return nil
}

// NewGenerationRecord constructs a GenerationRecord keyed by UTC day, with
// a time-ordered sort key and a fresh request id.
func NewGenerationRecord(topic string, slideCount int, enhanced bool, outcome string, duration time.Duration) domain.GenerationRecord {
	now := time.Now().UTC()
	requestID := uuid.NewString()
	return domain.GenerationRecord{
		PK:         dayPK(now),
		SK:         genSK(now, requestID),
		RequestID:  requestID,
		Topic:      topic,
		SlideCount: slideCount,
		Enhanced:   enhanced,
		Outcome:    outcome,
		DurationMs: duration.Milliseconds(),
		TTL:        ttlValue(now),
	}
}

// dayPK returns the partition key for the record's UTC day.
func dayPK(ts time.Time) string {
	return pkPrefixDay + ts.Format("2006-01-02")
}

// genSK returns a chronologically sortable key, disambiguated by request id.
func genSK(ts time.Time, requestID string) string {
	return skPrefixGen + ts.Format(time.RFC3339Nano) + "#" + requestID
}

// ttlValue returns a Unix timestamp 30 days past the record time.
func ttlValue(ts time.Time) int64 {
	return ts.Add(ttlDuration).Unix()
}

func recordItem(rec domain.GenerationRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: rec.PK},
		"SK":          &types.AttributeValueMemberS{Value: rec.SK},
		"request_id":  &types.AttributeValueMemberS{Value: rec.RequestID},
		"topic":       &types.AttributeValueMemberS{Value: rec.Topic},
		"slide_count": &types.AttributeValueMemberN{Value: strconv.Itoa(rec.SlideCount)},
		"enhanced":    &types.AttributeValueMemberBOOL{Value: rec.Enhanced},
		"outcome":     &types.AttributeValueMemberS{Value: rec.Outcome},
		"duration_ms": &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.DurationMs, 10)},
		"TTL":         &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.TTL, 10)},
	}
}

// NopRecorder is the recorder used when no audit table is configured.
type NopRecorder struct{}

func (NopRecorder) RecordGeneration(context.Context, string, int, bool, string, time.Duration) error {
	return nil
}
