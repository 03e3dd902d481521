package main

import (
	"net/http"

	"github.com/shardpool/shardpool/internal/handler"
	"github.com/shardpool/shardpool/internal/status"
)

func setupRouter(kv *handler.KVHandler, collector *status.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /kv/{key}", kv.Get)
	mux.HandleFunc("PUT /kv/{key}", kv.Put)
	mux.HandleFunc("POST /kv/{key}/incr", kv.Incr)
	mux.HandleFunc("GET /scores/{key}", kv.Scores)
	mux.HandleFunc("POST /scores/{key}", kv.ZAdd)
	mux.HandleFunc("GET /metrics", collector.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}
