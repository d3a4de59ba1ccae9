// Package consumer reacts to Cloud Storage bucket notifications for room images.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentchain-properties/internal/rooms"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

const objectDeleteEvent = "OBJECT_DELETE"

type imageRepository interface {
	FindImageByObject(ctx context.Context, propertyID uuid.UUID, storageKey string) (*models.RoomImage, *models.Room, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// DeletionConsumer removes image rows whose blob was deleted outside the API, e.g. by a
// bucket lifecycle rule or from the console.
type DeletionConsumer struct {
	repo         imageRepository
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func NewDeletionConsumer(repo imageRepository, subscription *pubsub.Subscriber, logg *logger.Logger) (*DeletionConsumer, error) {
	if repo == nil {
		return nil, errors.New("image repository is required")
	}
	if subscription == nil {
		return nil, errors.New("blob deletion subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &DeletionConsumer{repo: repo, subscription: subscription, logg: logg}, nil
}

// Run processes deletion notifications until the context is canceled.
func (c *DeletionConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *DeletionConsumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	attrs := parseAttributes(msg.Attributes)
	fields := c.buildLogFields(msg.ID, attrs, nil)
	logCtx := c.logg.WithFields(ctx, fields)

	if attrs.EventType != objectDeleteEvent {
		c.logg.Debug(logCtx, "skipping non-delete event")
		return processResult{ack: true}
	}
	if attrs.OverwrittenByGeneration != "" {
		c.logg.Debug(logCtx, "object overwritten, not removed")
		return processResult{ack: true}
	}
	if attrs.PayloadFormat != payloadFormatJSONAPI {
		c.logg.Warn(logCtx, "unsupported payload format")
		return processResult{ack: true}
	}

	payload, err := decodePayload(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	var gcs gcsPayload
	if err := json.Unmarshal(payload, &gcs); err != nil {
		fields["payload_preview"] = previewBytes(payload, 800)
		fields["payload_len"] = len(payload)
		c.logg.Error(c.logg.WithFields(ctx, fields), "failed to unmarshal payload", err)
		return processResult{ack: true}
	}
	if gcs.Name == "" {
		c.logg.Error(logCtx, "payload missing gcs object name", fmt.Errorf("empty name"))
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(ctx, c.buildLogFields(msg.ID, attrs, &gcs))

	propertyID, key, ok := rooms.ParseBlobPath(gcs.Name)
	if !ok {
		c.logg.Debug(logCtx, "object is not a room image")
		return processResult{ack: true}
	}
	logCtx = c.logg.WithPropertyID(logCtx, propertyID.String())

	img, room, err := c.repo.FindImageByObject(logCtx, propertyID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Debug(logCtx, "no image row for deleted object")
			return processResult{ack: true}
		}
		return c.handleDBError(logCtx, err)
	}
	logCtx = c.logg.WithRoomID(logCtx, room.ID.String())
	if rooms.BlobPath(propertyID, room.Name, key) != gcs.Name {
		c.logg.Warn(logCtx, "deleted object folder does not match room; keeping image row")
		return processResult{ack: true}
	}

	if err := c.repo.DeleteImage(logCtx, img.ID); err != nil {
		return c.handleDBError(logCtx, err)
	}

	c.logg.Info(c.logg.WithField(logCtx, "image_id", img.ID.String()), "removed image row for deleted blob")
	return processResult{ack: true}
}

func (c *DeletionConsumer) handleDBError(ctx context.Context, err error) processResult {
	c.logg.Error(ctx, "blob deletion db error", err)
	if isTransientDBError(err) {
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *DeletionConsumer) buildLogFields(messageID string, attrs gcsAttributes, payload *gcsPayload) map[string]any {
	fields := map[string]any{
		"message_id": messageID,
		"event_type": attrs.EventType,
		"bucket":     firstNonEmpty(attrs.BucketID, gcsBucket(payload)),
	}
	if payload != nil {
		fields["gcs_key"] = payload.Name
	}
	return fields
}
