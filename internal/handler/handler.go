package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shardpool/shardpool/internal/conn"
	"github.com/shardpool/shardpool/internal/pool"
)

const maxBodySize = 1 << 20

// KVHandler exposes the pool over HTTP: sharded reads and writes plus the
// cluster-wide score aggregation. The pool itself assumes a single logical
// owner, so every pool access is serialized behind one mutex here.
type KVHandler struct {
	logger *slog.Logger
	pool   *pool.Pool
	mutex  sync.Mutex
}

func NewKVHandler(logger *slog.Logger, p *pool.Pool) *KVHandler {
	return &KVHandler{logger: logger, pool: p}
}

type kvResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Node  int    `json:"node"`
}

// Get serves GET /kv/{key}.
func (h *KVHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var value string
	node, err := h.withNode(r, key, func(n *pool.Node) error {
		var opErr error
		value, opErr = n.Conn().Get(r.Context(), key)
		return opErr
	})
	if err != nil {
		h.writeError(w, key, err)
		return
	}

	h.writeJSON(w, kvResponse{Key: key, Value: value, Node: node.ID()})
}

// Put serves PUT /kv/{key}. An optional ttl query parameter bounds the
// entry's lifetime.
func (h *KVHandler) Put(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var ttl time.Duration
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		ttl, err = time.ParseDuration(raw)
		if err != nil {
			http.Error(w, "invalid ttl", http.StatusBadRequest)
			return
		}
	}

	_, err = h.withNode(r, key, func(n *pool.Node) error {
		return n.Conn().Set(r.Context(), key, string(body), ttl)
	})
	if err != nil {
		h.writeError(w, key, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Incr serves POST /kv/{key}/incr.
func (h *KVHandler) Incr(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var count int64
	node, err := h.withNode(r, key, func(n *pool.Node) error {
		var opErr error
		count, opErr = n.Conn().Incr(r.Context(), key)
		return opErr
	})
	if err != nil {
		h.writeError(w, key, err)
		return
	}

	h.writeJSON(w, kvResponse{Key: key, Value: strconv.FormatInt(count, 10), Node: node.ID()})
}

type zaddRequest struct {
	Member string `json:"member"`
	Score  int64  `json:"score"`
}

// ZAdd serves POST /scores/{key}. The member, not the set key, picks the
// shard, mirroring how the aggregation reads the set back from every node.
func (h *KVHandler) ZAdd(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req zaddRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Member == "" {
		http.Error(w, "member is required", http.StatusBadRequest)
		return
	}

	_, err := h.withNode(r, req.Member, func(n *pool.Node) error {
		return n.Conn().ZAdd(r.Context(), key, req.Score, req.Member)
	})
	if err != nil {
		h.writeError(w, key, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Scores serves GET /scores/{key}?min=&max=, fanning the read out to every
// active node and merging by maximum score.
func (h *KVHandler) Scores(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	min, max, err := parseScoreRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mutex.Lock()
	scores, err := h.pool.MaxScores(r.Context(), key, max, min)
	h.mutex.Unlock()
	if err != nil {
		h.writeError(w, key, err)
		return
	}

	h.writeJSON(w, scores)
}

// withNode selects the node for key and runs op against it. If the operation
// fails because the node just went down, one fresh selection is attempted:
// the failed call has already evicted the node, so the retry lands elsewhere.
func (h *KVHandler) withNode(r *http.Request, key string, op func(n *pool.Node) error) (*pool.Node, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	n, err := h.pool.SelectForKey(r.Context(), []byte(key))
	if err != nil {
		return nil, err
	}

	if err := op(n); err != nil {
		if !conn.IsConnectivity(err) {
			return nil, err
		}
		h.logger.Warn("node failed mid-request, retrying on a new node",
			slog.Int("node", n.ID()),
			slog.String("key", key))

		n, err = h.pool.SelectForKey(r.Context(), []byte(key))
		if err != nil {
			return nil, err
		}
		if err := op(n); err != nil {
			return nil, err
		}
	}

	return n, nil
}

func (h *KVHandler) writeError(w http.ResponseWriter, key string, err error) {
	switch {
	case errors.Is(err, conn.ErrNotFound):
		http.Error(w, "key not found", http.StatusNotFound)
	case errors.Is(err, pool.ErrPoolExhausted):
		h.logger.Warn("all nodes are down", slog.String("key", key))
		http.Error(w, "no backend available", http.StatusServiceUnavailable)
	default:
		h.logger.Error("backend operation failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		http.Error(w, "backend error", http.StatusBadGateway)
	}
}

func (h *KVHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseScoreRange(r *http.Request) (min, max float64, err error) {
	min, max = math.Inf(-1), math.Inf(1)

	if raw := r.URL.Query().Get("min"); raw != "" {
		min, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, 0, errors.New("invalid min")
		}
	}
	if raw := r.URL.Query().Get("max"); raw != "" {
		max, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, 0, errors.New("invalid max")
		}
	}
	return min, max, nil
}
