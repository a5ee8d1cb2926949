package syncapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
	"github.com/oakmont-systems/futures-engine/src/eventpubsub"
)

var decoder = schema.NewDecoder()

type syncParams struct {
	DryRun bool   `schema:"dryRun"`
	Reason string `schema:"reason"`
}

func syncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var params syncParams
	if err := decoder.Decode(&params, r.URL.Query()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if params.Reason == "" {
		params.Reason = "manual"
	}

	eventpubsub.PublishEvent("syncapi", eventmodels.SyncRequestEventName, &eventmodels.SyncRequestEvent{
		DryRun: params.DryRun,
		Reason: params.Reason,
	})

	log.Infof("syncapi: requested full sync (dryRun=%v, reason=%s)", params.DryRun, params.Reason)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func healthHandler(client *brokerclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"connection": string(client.State()),
		})
	}
}

func SetupHandler(router *mux.Router, client *brokerclient.Client) {
	router.HandleFunc("/sync", syncHandler)
	router.HandleFunc("/health", healthHandler(client))
}
