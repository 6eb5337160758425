////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package persistence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/lupyd/client/storage/versioned"
)

// Attribute names of a DynamoKV item. The table's partition key is a string
// attribute named PK.
const (
	dynamoKeyAttr       = "PK"
	dynamoVersionAttr   = "version"
	dynamoTimestampAttr = "timestamp"
	dynamoDataAttr      = "data"
)

// ErrDynamoNotFound is returned by DynamoKV.Get for a missing key.
var ErrDynamoNotFound = errors.New("dynamodb item not found")

// dynamodbAPI is the part of the DynamoDB client DynamoKV uses.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput,
		optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// NewDynamoClient builds a DynamoDB client from the default AWS
// configuration chain (environment, shared config files, instance role).
func NewDynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS configuration")
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// DynamoKV stores versioned objects as items of a DynamoDB table.
type DynamoKV struct {
	api    dynamodbAPI
	table  string
	prefix string
}

// NewDynamoKV returns a DynamoKV writing to table. Keys are namespaced with
// prefix.
func NewDynamoKV(api dynamodbAPI, table, prefix string) (*DynamoKV, error) {
	if api == nil {
		return nil, errors.New("dynamodb client must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("dynamodb table name must not be empty")
	}
	return &DynamoKV{api: api, table: table, prefix: prefix}, nil
}

// Get loads the object stored at key with the given version.
func (d *DynamoKV) Get(key string, version uint64) (*versioned.Object, error) {
	key = d.makeKey(key, version)
	jww.TRACE.Printf("[PERSIST] dynamodb get %s", key)

	ctx, cancel := newContext()
	defer cancel()
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "dynamodb get %s", key)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrDynamoNotFound
	}
	return itemToObject(out.Item)
}

// Set writes object under key and its version.
func (d *DynamoKV) Set(key string, object *versioned.Object) error {
	key = d.makeKey(key, object.Version)
	jww.TRACE.Printf("[PERSIST] dynamodb set %s", key)

	item := d.itemKey(key)
	item[dynamoVersionAttr] = &types.AttributeValueMemberN{
		Value: strconv.FormatUint(object.Version, 10)}
	item[dynamoTimestampAttr] = &types.AttributeValueMemberS{
		Value: object.Timestamp.UTC().Format(time.RFC3339Nano)}
	item[dynamoDataAttr] = &types.AttributeValueMemberB{Value: object.Data}

	ctx, cancel := newContext()
	defer cancel()
	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	return errors.Wrapf(err, "dynamodb set %s", key)
}

// Delete removes the object at key and version.
func (d *DynamoKV) Delete(key string, version uint64) error {
	key = d.makeKey(key, version)
	jww.TRACE.Printf("[PERSIST] dynamodb delete %s", key)

	ctx, cancel := newContext()
	defer cancel()
	_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.itemKey(key),
	})
	return errors.Wrapf(err, "dynamodb delete %s", key)
}

// Exists returns false if the error indicates the element doesn't exist.
func (d *DynamoKV) Exists(err error) bool {
	return !errors.Is(err, ErrDynamoNotFound)
}

func (d *DynamoKV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", d.prefix, key, version)
}

func (d *DynamoKV) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKeyAttr: &types.AttributeValueMemberS{Value: key},
	}
}

func itemToObject(item map[string]types.AttributeValue) (
	*versioned.Object, error) {
	obj := &versioned.Object{}

	v, ok := item[dynamoVersionAttr].(*types.AttributeValueMemberN)
	if !ok {
		return nil, errors.Errorf("attribute %q is not a number",
			dynamoVersionAttr)
	}
	version, err := strconv.ParseUint(v.Value, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed %q", dynamoVersionAttr)
	}
	obj.Version = version

	ts, ok := item[dynamoTimestampAttr].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.Errorf("attribute %q is not a string",
			dynamoTimestampAttr)
	}
	if obj.Timestamp, err = time.Parse(time.RFC3339Nano, ts.Value); err != nil {
		return nil, errors.Wrapf(err, "malformed %q", dynamoTimestampAttr)
	}

	data, ok := item[dynamoDataAttr].(*types.AttributeValueMemberB)
	if !ok {
		return nil, errors.Errorf("attribute %q is not binary", dynamoDataAttr)
	}
	obj.Data = data.Value
	return obj, nil
}
