package eventconsumers

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/eventmodels"
	"github.com/oakmont-systems/futures-engine/src/eventpubsub"
	"github.com/oakmont-systems/futures-engine/src/eventservices"
)

// SignalConsumer is the boundary to the opaque signal producer: it receives
// trade signals off the bus, assigns a signal id when the producer did not,
// and routes the request to the matching gateway placement. Placement
// rejections are already published by the gateway, so failures are logged
// rather than propagated.
type SignalConsumer struct {
	gateway *eventservices.OrderGateway
	router  *EventRouter
}

func NewSignalConsumer(gateway *eventservices.OrderGateway, router *EventRouter) *SignalConsumer {
	return &SignalConsumer{
		gateway: gateway,
		router:  router,
	}
}

func (c *SignalConsumer) Start(ctx context.Context) {
	if err := eventpubsub.Subscribe("SignalConsumer", eventmodels.TradeSignalEventName, c.handleSignal); err != nil {
		log.Errorf("SignalConsumer.Start: failed to subscribe: %v", err)
	}
}

func (c *SignalConsumer) handleSignal(signal *eventmodels.TradeSignalEvent) {
	request := signal.Request
	if request.SignalID == "" {
		request.SignalID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case request.IsTrailingStrategy():
		strategyID, err := c.gateway.PlaceStrategyOrder(ctx, &request)
		if err != nil {
			log.Errorf("SignalConsumer.handleSignal: strategy placement for signal %s failed: %v", request.SignalID, err)
			return
		}

		c.router.TrackStrategyPlacement(request.AccountID, strategyID)
	case request.IsBracket():
		if _, err := c.gateway.PlaceBracketOrder(ctx, &request); err != nil {
			log.Errorf("SignalConsumer.handleSignal: bracket placement for signal %s failed: %v", request.SignalID, err)
		}
	default:
		if _, err := c.gateway.PlaceSimpleOrder(ctx, &request); err != nil {
			log.Errorf("SignalConsumer.handleSignal: placement for signal %s failed: %v", request.SignalID, err)
		}
	}
}
