package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (api *API) Router(gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/health", api.GETHealthHandler).Methods(http.MethodGet)

	r.HandleFunc("/api/user/", api.GETUsersHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/user/", api.POSTUserHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/user/login", api.POSTLoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/user/logout", api.POSTLogoutHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/user/{id:[0-9]+}", api.GETUserHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/user/{id:[0-9]+}", api.PATCHUserHandler).Methods(http.MethodPatch)
	r.HandleFunc("/api/user/{id:[0-9]+}", api.DELETEUserHandler).Methods(http.MethodDelete)

	r.HandleFunc("/api/topic/", api.GETTopicsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/topic/", api.POSTTopicHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/topic/{id:[0-9]+}", api.GETTopicHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/topic/{id:[0-9]+}", api.PATCHTopicHandler).Methods(http.MethodPatch)
	r.HandleFunc("/api/topic/{id:[0-9]+}", api.DELETETopicHandler).Methods(http.MethodDelete)

	r.HandleFunc("/api/message/", api.GETMessagesHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/message/", api.POSTMessagesHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/message/{id:[0-9]+}", api.PATCHMessageHandler).Methods(http.MethodPatch)
	r.HandleFunc("/api/message/{id:[0-9]+}", api.DELETEMessageHandler).Methods(http.MethodDelete)

	return r
}
