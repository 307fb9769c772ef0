package mqtt

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/logger"
)

// PredictionTopicSuffix is appended to the configured base topic.
const PredictionTopicSuffix = "/prediction"

// PredictionMessage is the payload published for each live prediction.
// Field names are part of the wire contract.
type PredictionMessage struct {
	WinningLabel      string             `json:"winningLabel"`
	ConfidenceByLabel map[string]float64 `json:"confidenceByLabel"`
	Timestamp         int64              `json:"ts"` // Unix milliseconds
}

// Publisher sends predictions to <topic>/prediction.
type Publisher struct {
	client Client
	topic  string
	now    func() time.Time
	log    logger.Logger
}

// NewPublisher returns a publisher using client. An empty base topic
// falls back to the default.
func NewPublisher(client Client, baseTopic string) *Publisher {
	if baseTopic == "" {
		baseTopic = DefaultTopic
	}
	return &Publisher{
		client: client,
		topic:  baseTopic + PredictionTopicSuffix,
		now:    time.Now,
		log:    GetLogger(),
	}
}

// Topic returns the topic predictions are published to.
func (p *Publisher) Topic() string { return p.topic }

// PublishPrediction publishes pred. A nil prediction is ignored; while the
// broker is unreachable predictions are dropped with ErrNotConnected.
func (p *Publisher) PublishPrediction(ctx context.Context, pred *classifier.Prediction) error {
	if pred == nil {
		return nil
	}
	payload, err := json.Marshal(PredictionMessage{
		WinningLabel:      pred.Label,
		ConfidenceByLabel: pred.Confidences,
		Timestamp:         p.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.topic, payload); err != nil {
		p.log.Debug("prediction not published", logger.String("topic", p.topic), logger.Error(err))
		return err
	}
	return nil
}
