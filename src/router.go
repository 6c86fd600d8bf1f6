package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	d "social_graph_services/src/directory"
	h "social_graph_services/src/handlers"
	m "social_graph_services/src/models"
	"social_graph_services/src/notifications"
	"social_graph_services/src/relations"
	"social_graph_services/src/search"
)

type routes struct {
	dir        d.Directory
	service    *relations.Service
	reconciler *relations.Reconciler // nil unless friend lists reconcile on read
	inbox      *notifications.Inbox
	index      search.Index
	rdb        *redis.Client // nil disables /ws
	channel    string
	protect    func(http.Handler) http.Handler
	logger     *zap.Logger
}

func newRouter(rt routes) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/", m.GETHandlerRoot).Methods(http.MethodGet)
	router.Handle("/users", rt.protect(h.UserEndpointHandler(rt.dir, rt.index, rt.logger)))
	router.Handle("/friends", rt.protect(h.FriendEndpointHandler(rt.service, rt.dir, rt.reconciler, rt.logger)))
	router.Handle("/friends/requests", rt.protect(h.FriendRequestHandler(rt.service, rt.dir, rt.logger)))
	router.Handle("/friends/requests/sent", rt.protect(h.SentFriendRequestHandler(rt.service, rt.logger)))
	router.Handle("/notifications", rt.protect(h.NotificationsEndpointHandler(rt.inbox, rt.logger)))
	router.Handle("/notifications/respond", rt.protect(h.NotificationResponseHandler(rt.service, rt.inbox, rt.logger)))
	router.Handle("/members", rt.protect(h.MemberEndpointHandler(rt.dir, rt.logger)))
	router.Handle("/follow", rt.protect(h.FollowEndpointHandler(rt.service, rt.dir, rt.logger)))
	router.Handle("/search", rt.protect(h.SearchEndpointHandler(rt.dir, rt.index, rt.logger)))
	router.Handle("/fcm", rt.protect(h.FirebaseHandlers(rt.dir, rt.logger)))
	if rt.rdb != nil {
		router.Handle("/ws", rt.protect(h.WebSocketEndpointHandler(rt.rdb, rt.channel, rt.logger)))
	}
	return router
}

func withCORS(handler http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return handler
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(handler)
}
