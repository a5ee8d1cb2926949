package eventconsumers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
	"github.com/oakmont-systems/futures-engine/src/eventpubsub"
	"github.com/oakmont-systems/futures-engine/src/eventservices"
)

// ErrSyncInProgress is returned when a full sync is requested while another
// one is still running; the request is dropped, not queued.
var ErrSyncInProgress = errors.New("a full sync is already in progress")

// SyncStats summarizes one full reconciliation pass. In dry-run mode these
// are the only output; no cancel or publish side effects occur.
type SyncStats struct {
	OrdersFound         int      `json:"ordersFound"`
	OrdersReconciled    int      `json:"ordersReconciled"`
	PositionsReconciled int      `json:"positionsReconciled"`
	MappingsRemoved     int      `json:"mappingsRemoved"`
	Errors              []string `json:"errors"`
}

// ReconciliationWorker keeps local state consistent with the broker's
// authoritative records: startup sync at boot, periodic and on-demand full
// syncs, and orphaned-leg cleanup after terminal strategy transitions. One
// account's failure never aborts reconciliation of the others.
type ReconciliationWorker struct {
	wg           *sync.WaitGroup
	client       *brokerclient.Client
	gateway      *eventservices.OrderGateway
	orders       *eventmodels.OrderDataStore
	correlations *eventmodels.CorrelationStore
	accountIDs   []int64
	interval     time.Duration

	// When set, scheduled ticker syncs are skipped outside the futures
	// session. On-demand and reconnect syncs always run.
	marketHoursOnly bool

	trigger chan eventmodels.SyncRequestEvent

	// Guards against overlapping full syncs issuing duplicate cancels.
	syncInProgress atomic.Bool

	now func() time.Time
}

func NewReconciliationWorker(wg *sync.WaitGroup, client *brokerclient.Client, gateway *eventservices.OrderGateway, orders *eventmodels.OrderDataStore, correlations *eventmodels.CorrelationStore, accountIDs []int64, interval time.Duration, marketHoursOnly bool) *ReconciliationWorker {
	return &ReconciliationWorker{
		wg:              wg,
		client:          client,
		gateway:         gateway,
		orders:          orders,
		correlations:    correlations,
		accountIDs:      accountIDs,
		interval:        interval,
		marketHoursOnly: marketHoursOnly,
		trigger:         make(chan eventmodels.SyncRequestEvent, 4),
		now:             time.Now,
	}
}

// inMarketHours reports whether the futures session is open: Sunday 18:00
// through Friday 17:00 America/New_York, with a daily 17:00-18:00 maintenance
// break. When the zone database is unavailable the session is assumed open.
func inMarketHours(now time.Time) bool {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Warnf("inMarketHours: failed to load exchange timezone: %v", err)
		return true
	}

	t := now.In(loc)

	switch t.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return t.Hour() >= 18
	case time.Friday:
		return t.Hour() < 17
	default:
		return t.Hour() != 17
	}
}

// StartupSync pulls orders and positions per account at boot. Only Working
// and Pending orders are republished; historical terminal orders are never
// re-announced, to avoid downstream double-processing. For each open
// position an approximate average entry price is reconstructed by walking
// fills backward in time.
func (w *ReconciliationWorker) StartupSync(ctx context.Context) error {
	var firstErr error

	for _, accountID := range w.accountIDs {
		if err := w.startupSyncAccount(ctx, accountID); err != nil {
			reconErr := &eventmodels.ReconciliationError{AccountID: accountID, Err: err}
			log.Errorf("ReconciliationWorker.StartupSync: %v", reconErr)

			if firstErr == nil {
				firstErr = reconErr
			}
		}
	}

	return firstErr
}

func (w *ReconciliationWorker) startupSyncAccount(ctx context.Context, accountID int64) error {
	orders, err := eventservices.FetchOrders(ctx, w.client, accountID)
	if err != nil {
		return err
	}

	for _, order := range orders {
		tracked, created := w.orders.GetOrAdd(order)
		if !created {
			w.orders.Update(order)
		}

		if tracked.Status != eventmodels.OrderStatusWorking && tracked.Status != eventmodels.OrderStatusPending {
			continue
		}

		signalID, _ := w.correlations.ResolveSignal(tracked.ID)

		eventpubsub.PublishEvent("ReconciliationWorker", eventmodels.OrderPlacedEventName, &eventmodels.OrderPlacedEvent{
			OrderID:       tracked.ID,
			AccountID:     tracked.AccountID,
			Symbol:        tracked.Symbol,
			Action:        tracked.Action,
			Quantity:      tracked.Quantity,
			OrderType:     tracked.OrderType,
			Status:        tracked.Status,
			SignalID:      signalID,
			OrderRole:     tracked.Role,
			ParentOrderID: tracked.StrategyID,
		})
	}

	positions, err := eventservices.FetchPositions(ctx, w.client, accountID)
	if err != nil {
		return err
	}

	fills, err := eventservices.FetchFills(ctx, w.client, accountID)
	if err != nil {
		return err
	}

	for _, position := range positions {
		if position.IsFlat() {
			continue
		}

		avgPrice := ReconstructAvgPrice(fills, position.ContractID, position.NetQuantity)
		if avgPrice == 0 {
			avgPrice = position.AvgPrice
		}

		eventpubsub.PublishEvent("ReconciliationWorker", eventmodels.PositionUpdateEventName, &eventmodels.PositionUpdateEvent{
			AccountID:   position.AccountID,
			ContractID:  position.ContractID,
			Symbol:      position.Symbol,
			NetQuantity: position.NetQuantity,
			AvgPrice:    avgPrice,
		})
	}

	log.Infof("ReconciliationWorker.startupSyncAccount: account %d: %d orders, %d positions", accountID, len(orders), len(positions))

	return nil
}

// ReconstructAvgPrice walks fills on a contract backward in time,
// accumulating signed quantity until it matches the reported net position;
// older fills are irrelevant once that threshold is reached. This is a known
// approximation: it assumes no intervening flat/reopen cycles within the
// fetched fill window.
func ReconstructAvgPrice(fills []*eventmodels.Fill, contractID int64, netQuantity int) float64 {
	if netQuantity == 0 {
		return 0
	}

	onContract := make([]*eventmodels.Fill, 0, len(fills))
	for _, fill := range fills {
		if fill.ContractID == contractID {
			onContract = append(onContract, fill)
		}
	}

	sort.Slice(onContract, func(i, j int) bool {
		return onContract[i].Timestamp.After(onContract[j].Timestamp)
	})

	var cumQty int
	var cumCost float64

	for _, fill := range onContract {
		signed := fill.SignedQuantity()
		cumQty += signed
		cumCost += fill.Price * float64(signed)

		if cumQty == netQuantity {
			return cumCost / float64(netQuantity)
		}
	}

	return 0
}

// FullSync fetches authoritative orders, positions and balances, prunes
// correlation entries for terminal orders, republishes the exact current set
// of working order ids, and cancels orphaned stops. In dry-run mode it only
// computes the stats; no cancel or publish side effects occur.
func (w *ReconciliationWorker) FullSync(ctx context.Context, dryRun bool, reason string) (*SyncStats, error) {
	if !w.syncInProgress.CompareAndSwap(false, true) {
		log.Warnf("ReconciliationWorker.FullSync: sync already in progress, skipping (reason: %s)", reason)
		return nil, ErrSyncInProgress
	}
	defer w.syncInProgress.Store(false)

	tracer := otel.GetTracerProvider().Tracer("ReconciliationWorker")
	ctx, span := tracer.Start(ctx, "FullSync", trace.WithAttributes(
		attribute.Bool("dryRun", dryRun),
		attribute.String("reason", reason),
	))
	defer span.End()

	runID := uuid.NewString()
	logger := log.WithContext(ctx)
	logger.Infof("ReconciliationWorker.FullSync: run %s starting (dryRun=%v, reason=%s)", runID, dryRun, reason)

	stats := &SyncStats{}

	for _, accountID := range w.accountIDs {
		w.fullSyncAccount(ctx, accountID, dryRun, stats)
	}

	logger.Infof("ReconciliationWorker.FullSync: run %s finished: %d found, %d reconciled, %d positions, %d mappings removed, %d errors",
		runID, stats.OrdersFound, stats.OrdersReconciled, stats.PositionsReconciled, stats.MappingsRemoved, len(stats.Errors))

	return stats, nil
}

func (w *ReconciliationWorker) fullSyncAccount(ctx context.Context, accountID int64, dryRun bool, stats *SyncStats) {
	orders, err := eventservices.FetchOrders(ctx, w.client, accountID)
	if err != nil {
		stats.Errors = append(stats.Errors, (&eventmodels.ReconciliationError{AccountID: accountID, Err: err}).Error())
		return
	}

	stats.OrdersFound += len(orders)

	var workingIDs []int64
	var workingOrders []*eventmodels.BrokerOrder

	for _, order := range orders {
		if !dryRun {
			if _, created := w.orders.GetOrAdd(order); !created {
				w.orders.Update(order)
			}
		}

		if order.Status.IsTerminal() {
			if _, mapped := w.correlations.ResolveSignal(order.ID); mapped {
				stats.MappingsRemoved++
				if !dryRun {
					w.correlations.PruneTerminal(order.ID)
				}
			}

			continue
		}

		stats.OrdersReconciled++
		workingIDs = append(workingIDs, order.ID)
		workingOrders = append(workingOrders, order)
	}

	positions, posErr := eventservices.FetchPositions(ctx, w.client, accountID)
	if posErr != nil {
		stats.Errors = append(stats.Errors, (&eventmodels.ReconciliationError{AccountID: accountID, Err: posErr}).Error())
	}

	stats.PositionsReconciled += len(positions)

	// A flat position must leave no working stop behind; an unlinked live
	// stop is a silent risk against a future unrelated position. The sweep
	// needs the position snapshot to tell orphaned from protective: with no
	// snapshot every working stop looks orphaned, so skip the sweep (and only
	// the sweep) rather than cancel live protection.
	var orphans []*eventmodels.BrokerOrder
	if posErr == nil {
		orphans = findOrphanedStops(workingOrders, positions)
	}

	if dryRun {
		return
	}

	// Any locally tracked working order absent from this set is known stale.
	eventpubsub.PublishEvent("ReconciliationWorker", eventmodels.SyncCompletedEventName, &eventmodels.SyncCompletedEvent{
		AccountID:            accountID,
		ValidWorkingOrderIDs: workingIDs,
	})

	for _, position := range positions {
		if position.IsFlat() {
			continue
		}

		eventpubsub.PublishEvent("ReconciliationWorker", eventmodels.PositionUpdateEventName, &eventmodels.PositionUpdateEvent{
			AccountID:   position.AccountID,
			ContractID:  position.ContractID,
			Symbol:      position.Symbol,
			NetQuantity: position.NetQuantity,
			AvgPrice:    position.AvgPrice,
		})
	}

	balances, err := eventservices.FetchCashBalances(ctx, w.client, accountID)
	if err != nil {
		stats.Errors = append(stats.Errors, (&eventmodels.ReconciliationError{AccountID: accountID, Err: err}).Error())
	}

	for i := range balances {
		eventpubsub.PublishEvent("ReconciliationWorker", eventmodels.AccountUpdateEventName, balances[i].ToAccountUpdateEvent())
	}

	for _, orphan := range orphans {
		log.Warnf("ReconciliationWorker.fullSyncAccount: cancelling orphaned stop %d on contract %d", orphan.ID, orphan.ContractID)

		if err := w.gateway.CancelOrder(ctx, orphan.ID); err != nil {
			stats.Errors = append(stats.Errors, (&eventmodels.ReconciliationError{AccountID: accountID, Err: err}).Error())
		}
	}
}

// findOrphanedStops flags working stop-type orders with no matching open
// position on their contract.
func findOrphanedStops(workingOrders []*eventmodels.BrokerOrder, positions []*eventmodels.Position) []*eventmodels.BrokerOrder {
	openContracts := make(map[int64]bool)
	for _, position := range positions {
		if !position.IsFlat() {
			openContracts[position.ContractID] = true
		}
	}

	var orphans []*eventmodels.BrokerOrder
	for _, order := range workingOrders {
		if order.OrderType.IsStopType() && !openContracts[order.ContractID] {
			orphans = append(orphans, order)
		}
	}

	return orphans
}

// OrphanCleanup runs after a terminal strategy transition. The authoritative
// path cancels the strategy's known children and every dependent the broker
// declares for them. When the dependents endpoint is unavailable it degrades
// to scanning all working orders on the account for stops with no matching
// open position. All cancels are idempotent; repeated or concurrent runs
// never surface a double-cancel as an error.
func (w *ReconciliationWorker) OrphanCleanup(ctx context.Context, strategy *eventmodels.OrderStrategy) error {
	log.Infof("ReconciliationWorker.OrphanCleanup: strategy %d terminal (%s), cleaning up %d known children",
		strategy.ID, strategy.Status, len(strategy.ChildOrderIDs))

	dependentsAvailable := true

	for childID := range strategy.ChildOrderIDs {
		if err := w.gateway.CancelOrder(ctx, childID); err != nil {
			log.Errorf("ReconciliationWorker.OrphanCleanup: failed to cancel child %d: %v", childID, err)
		}

		w.correlations.PruneTerminal(childID)

		dependents, err := eventservices.FetchOrderDependents(ctx, w.client, childID)
		if err != nil {
			log.Warnf("ReconciliationWorker.OrphanCleanup: dependents unavailable for order %d: %v", childID, err)
			dependentsAvailable = false
			continue
		}

		for _, dependent := range dependents {
			if dependent.Status.IsTerminal() {
				continue
			}

			if err := w.gateway.CancelOrder(ctx, dependent.ID); err != nil {
				log.Errorf("ReconciliationWorker.OrphanCleanup: failed to cancel dependent %d: %v", dependent.ID, err)
			}

			w.correlations.PruneTerminal(dependent.ID)
		}
	}

	if dependentsAvailable && len(strategy.ChildOrderIDs) > 0 {
		return nil
	}

	return w.orphanScan(ctx, strategy.AccountID)
}

// orphanScan is the degraded fallback: cancel every working stop on the
// account whose contract has no open position.
func (w *ReconciliationWorker) orphanScan(ctx context.Context, accountID int64) error {
	orders, err := eventservices.FetchOrders(ctx, w.client, accountID)
	if err != nil {
		return &eventmodels.ReconciliationError{AccountID: accountID, Err: err}
	}

	positions, err := eventservices.FetchPositions(ctx, w.client, accountID)
	if err != nil {
		return &eventmodels.ReconciliationError{AccountID: accountID, Err: err}
	}

	var working []*eventmodels.BrokerOrder
	for _, order := range orders {
		if !order.Status.IsTerminal() {
			working = append(working, order)
		}
	}

	for _, orphan := range findOrphanedStops(working, positions) {
		log.Warnf("ReconciliationWorker.orphanScan: cancelling orphaned stop %d on contract %d", orphan.ID, orphan.ContractID)

		if err := w.gateway.CancelOrder(ctx, orphan.ID); err != nil {
			log.Errorf("ReconciliationWorker.orphanScan: failed to cancel order %d: %v", orphan.ID, err)
		}
	}

	return nil
}

// Start runs the periodic sync loop and listens for on-demand triggers. A
// re-authenticated connection also triggers a full sync, since push events
// may have been missed while disconnected.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.wg.Add(1)

	if err := eventpubsub.Subscribe("ReconciliationWorker", eventmodels.SyncRequestEventName, func(request *eventmodels.SyncRequestEvent) {
		select {
		case w.trigger <- *request:
		default:
			log.Warnf("ReconciliationWorker: trigger queue full, dropping sync request (reason: %s)", request.Reason)
		}
	}); err != nil {
		log.Errorf("ReconciliationWorker.Start: failed to subscribe to sync requests: %v", err)
	}

	w.client.Emitter().On(brokerclient.ConnectionAuthenticatedEvent, func(...interface{}) {
		select {
		case w.trigger <- eventmodels.SyncRequestEvent{Reason: "reconnect"}:
		default:
		}
	})

	ticker := time.NewTicker(w.interval)

	go func() {
		defer w.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping ReconciliationWorker consumer")
				return
			case <-ticker.C:
				if w.marketHoursOnly && !inMarketHours(w.now()) {
					log.Debug("ReconciliationWorker.Start: outside market hours, skipping scheduled sync")
					continue
				}

				if _, err := w.FullSync(ctx, false, "scheduled"); err != nil && !errors.Is(err, ErrSyncInProgress) {
					log.Errorf("ReconciliationWorker.Start: scheduled sync failed: %v", err)
				}
			case request := <-w.trigger:
				if _, err := w.FullSync(ctx, request.DryRun, request.Reason); err != nil && !errors.Is(err, ErrSyncInProgress) {
					log.Errorf("ReconciliationWorker.Start: triggered sync failed: %v", err)
				}
			}
		}
	}()
}
