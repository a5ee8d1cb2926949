package eventpubsub

import (
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

var bus EventBus.Bus

func Init() {
	bus = EventBus.New()
}

// PublishEvent publishes a domain event to all subscribers of the topic.
func PublishEvent(publisherName string, topic eventmodels.EventName, event interface{}) {
	log.Debugf("[%v] Published to topic %s", publisherName, topic)
	bus.Publish(string(topic), event)
}

// Subscribe registers an async callback on a topic. The callback signature
// must match the event type published for that topic.
func Subscribe(subscriberName string, topic eventmodels.EventName, callbackFn interface{}) error {
	if err := bus.SubscribeAsync(string(topic), callbackFn, false); err != nil {
		log.Errorf("[%v] error: %v", subscriberName, err)
		return err
	}

	log.Infof("[%v] Subscribed to topic %s", subscriberName, topic)
	return nil
}
