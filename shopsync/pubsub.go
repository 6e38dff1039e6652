package shopsync

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/utils"
)

const pushHandlerName = "shopsync-run"

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	ImportId    string `json:"import_id"`
	Stage       string `json:"stage"`
	TriggeredBy string `json:"triggered_by"`
}

// PublishSyncRun queues a pipeline stage for async execution. Cloud Run push
// delivery calls PubSubPushHandler on whichever instance receives it.
func PublishSyncRun(ctx context.Context, importId string, stage string, triggeredBy string) error {
	topicName := strings.TrimSpace(os.Getenv("SYNC_TOPIC"))
	if topicName == "" {
		topicName = "pharmasync-run"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := SyncPubSubPayload{
		ImportId:    importId,
		Stage:       stage,
		TriggeredBy: triggeredBy,
	}
	data, err := utils.MarshalToJSON(payload)
	if err != nil {
		return err
	}
	res := topic.Publish(ctx, &pubsub.Message{Data: []byte(data)})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler consumes Pub/Sub push deliveries. Malformed messages are
// acked with 204 so they are not redelivered forever; a failed claim or stage
// run answers 500 and relies on Pub/Sub redelivery for the retry.
func PubSubPushHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.EnableSyncPushEndpoint() {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := utils.UnmarshalFromJSON(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.ImportId == "" || payload.Stage == "" {
			c.Status(204)
			return
		}

		ctx := c.Request.Context()
		logger := config.GetLogger()

		if envelope.Message.ID != "" {
			alreadyProcessed, err := BeginIdempotency(ctx, pushHandlerName, envelope.Message.ID)
			if err != nil {
				config.LogError(logger, "shopsync", "PubSubPushHandler", "idempotency claim failed", payload, err)
				// Covers ErrIdempotencyInProgress and DB errors alike: the
				// trigger must not be acked while the stage hasn't run.
				c.Status(500)
				return
			}
			if alreadyProcessed {
				c.Status(204)
				return
			}
		}

		if _, err := service.RunStage(ctx, payload.ImportId, payload.Stage); err != nil {
			config.LogError(logger, "shopsync", "PubSubPushHandler", "stage run failed", payload, err)
			if envelope.Message.ID != "" {
				_ = MarkIdempotencyFailed(ctx, pushHandlerName, envelope.Message.ID, err.Error())
			}
			// 500 asks Pub/Sub to redeliver; the reclaimed idempotency key lets the retry run.
			c.Status(500)
			return
		}

		if envelope.Message.ID != "" {
			_ = MarkIdempotencySucceeded(ctx, pushHandlerName, envelope.Message.ID)
		}
		c.Status(204)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
