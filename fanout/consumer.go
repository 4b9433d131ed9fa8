package fanout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/postmux/postmux/model"
	Logger "github.com/postmux/postmux/utils/log"
)

type ConsumerConfig struct {
	// Name of the consumer module.
	Name string
}

/*

Consumer subscribes the dispatcher to the three inbound topics. Each message
is processed to completion before it is acked; a handler error nacks the
message so the broker redelivers it (at-least-once). Handlers are idempotent
so redelivery is safe.

Malformed payloads are acked and logged: redelivering a message that can
never decode would wedge the topic.

*/
type Consumer struct {
	Config ConsumerConfig

	dispatcher *Dispatcher
	subscriber message.Subscriber
}

func NewConsumer(config ConsumerConfig, dispatcher *Dispatcher, subscriber message.Subscriber) *Consumer {
	return &Consumer{
		Config:     config,
		dispatcher: dispatcher,
		subscriber: subscriber,
	}
}

func (c *Consumer) RunModule(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	consume := func(topic string, handle func(ctx context.Context, payload []byte) error) error {
		messages, err := c.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range messages {
				if err := handle(ctx, msg.Payload); err != nil {
					Logger.Log.Errorf("fail to process %s message %s: %v", topic, msg.UUID, err)
					msg.Nack()
					continue
				}
				msg.Ack()
			}
		}()
		return nil
	}

	if err := consume(TopicNewPosts, c.handleNewPost); err != nil {
		return err
	}
	if err := consume(TopicNewComments, c.handleNewComment); err != nil {
		return err
	}
	if err := consume(TopicNewLikes, c.handleNewLike); err != nil {
		return err
	}

	wg.Wait()
	return nil
}

func (c *Consumer) handleNewPost(ctx context.Context, payload []byte) error {
	var ev model.NewPostEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		Logger.Log.Errorf("undecodable new-posts payload dropped: %v", err)
		return nil
	}
	return c.dispatcher.HandleNewPost(ctx, &ev)
}

func (c *Consumer) handleNewComment(ctx context.Context, payload []byte) error {
	var ev model.NewCommentEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		Logger.Log.Errorf("undecodable new-comments payload dropped: %v", err)
		return nil
	}
	return c.dispatcher.HandleNewComment(ctx, &ev)
}

func (c *Consumer) handleNewLike(ctx context.Context, payload []byte) error {
	var ev model.NewLikeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		Logger.Log.Errorf("undecodable new-likes payload dropped: %v", err)
		return nil
	}
	return c.dispatcher.HandleNewLike(ctx, &ev)
}

func (c *Consumer) Name() string {
	return c.Config.Name
}

func (c *Consumer) Shutdown() {
	Logger.Log.Infoln("Module ", c.Config.Name, " gracefully shutdown")
}
