package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/spotlight/pkg/dto"
)

// FrameHandler applies one detection frame. Returning an error naks the
// message for redelivery.
type FrameHandler func(ctx context.Context, frame dto.DetectionFrame) error

// ControlHandler receives raw control messages.
type ControlHandler func(ctx context.Context, data []byte) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// DecodeFrame unmarshals a detection frame. The session id is taken from the
// subject when the payload omits it.
func DecodeFrame(subject string, data []byte) (dto.DetectionFrame, error) {
	var frame dto.DetectionFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, fmt.Errorf("decode detection frame: %w", err)
	}
	if frame.SessionID == "" {
		if id, ok := strings.CutPrefix(subject, DetectionsSubjectBase+"."); ok {
			frame.SessionID = id
		}
	}
	if frame.SessionID == "" {
		return frame, fmt.Errorf("detection frame without session id")
	}
	return frame, nil
}

// ConsumeDetections starts consuming the DETECTIONS stream. Messages are
// handled one at a time so frames of a session are applied in order.
func (c *Consumer) ConsumeDetections(ctx context.Context, consumerName string, handler FrameHandler) error {
	stream, err := c.js.Stream(ctx, DetectionsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", DetectionsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		MaxAckPending: 1,
		FilterSubject: DetectionsSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch detections error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				frame, err := DecodeFrame(msg.Subject(), msg.Data())
				if err != nil {
					// Redelivery will not fix a bad payload.
					slog.Warn("drop detection message", "subject", msg.Subject(), "error", err)
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, frame); err != nil {
					slog.Error("process detections error", "error", err, "subject", msg.Subject())
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("detection consumer started", "consumer", consumerName)
	return nil
}

// SubscribeControl listens on the raw control subject until ctx is done.
func (c *Consumer) SubscribeControl(ctx context.Context, handler ControlHandler) error {
	sub, err := c.nc.Subscribe(ControlSubject, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			slog.Warn("control command failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ControlSubject, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()

	slog.Info("control subscriber started", "subject", ControlSubject)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
