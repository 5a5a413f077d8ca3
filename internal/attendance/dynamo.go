package attendance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoRecorder keeps attendance and RSVP marks in a single table keyed
// by pk=EVENT#<event_id> and sk=<kind>#USER#<user_id>. PutItem replaces
// by key and UpdateItem creates missing items, so both writes are upserts.
type DynamoRecorder struct {
	db    dynamoAPI
	table string
}

type dynamoAttendance struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	Record
}

func NewDynamoRecorder(ctx context.Context, cfg config.Config) (*DynamoRecorder, error) {
	if cfg.DynamoTable == "" {
		return nil, fmt.Errorf("DYNAMO_TABLE is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	})
	return &DynamoRecorder{db: client, table: cfg.DynamoTable}, nil
}

func eventPK(eventID int64) string {
	return "EVENT#" + strconv.FormatInt(eventID, 10)
}

func userSK(kind string, userID int64) string {
	return kind + "#USER#" + strconv.FormatInt(userID, 10)
}

func (d *DynamoRecorder) itemKey(kind string, eventID, userID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: eventPK(eventID)},
		"sk": &types.AttributeValueMemberS{Value: userSK(kind, userID)},
	}
}

func (d *DynamoRecorder) UpsertAttendance(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = eventPK(rec.EventID) + "/" + userSK("ATTENDANCE", rec.UserID)
	}
	item, err := attributevalue.MarshalMap(dynamoAttendance{
		PK:     eventPK(rec.EventID),
		SK:     userSK("ATTENDANCE", rec.UserID),
		Record: rec,
	})
	if err != nil {
		return err
	}
	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	return err
}

func (d *DynamoRecorder) MarkAttended(ctx context.Context, eventID, userID int64) error {
	_, err := d.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              d.itemKey("RSVP", eventID, userID),
		UpdateExpression: aws.String("SET attended = :t, event_id = :e, user_id = :u, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":  &types.AttributeValueMemberBOOL{Value: true},
			":e":  &types.AttributeValueMemberN{Value: strconv.FormatInt(eventID, 10)},
			":u":  &types.AttributeValueMemberN{Value: strconv.FormatInt(userID, 10)},
			":ua": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	return err
}

func (d *DynamoRecorder) AttendedMinutes(ctx context.Context, eventID, userID int64) (float64, error) {
	out, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       d.itemKey("ATTENDANCE", eventID, userID),
	})
	if err != nil {
		return 0, err
	}
	if out.Item == nil {
		return 0, nil
	}
	var rec dynamoAttendance
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return 0, err
	}
	return rec.DurationMinutes, nil
}
