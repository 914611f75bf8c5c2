package pubsub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"

	"github.com/moraxdb/morax/internal/ackrange"
	"github.com/moraxdb/morax/internal/metastore"
	"github.com/moraxdb/morax/internal/objstore"
)

// pubsubPartition is the fixed partition id every Pub/Sub topic's single
// logical stream is stored under; Pub/Sub has no partition concept of its
// own, so it reuses partition 0 of the shared topic_partitions/splits
// schema (spec §6.3).
const pubsubPartition = int32(0)

// Service implements the six Pub/Sub HTTP endpoints from spec §6.2,
// wired to the metadata store, the split blob store, and the
// acknowledgement range engine.
type Service struct {
	Meta   *metastore.Store
	Splits objstore.ReadWriter
	Logger log.Logger
}

// NewRouter builds the gorilla/mux router this service serves on, rooted
// at /v1 per spec §6.2.
func (s *Service) NewRouter() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/topics/{name}", s.handleCreateTopic).Methods(http.MethodPost)
	v1.HandleFunc("/topics/{name}/publish", s.handlePublish).Methods(http.MethodPost)
	v1.HandleFunc("/subscriptions/{name}", s.handleCreateSubscription).Methods(http.MethodPost)
	v1.HandleFunc("/subscriptions/{name}/pull", s.handlePull).Methods(http.MethodPost)
	v1.HandleFunc("/subscriptions/{name}/acknowledge", s.handleAcknowledge).Methods(http.MethodPost)
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func decodeBody(r *http.Request, v interface{}) *apiError {
	if r.Body == nil {
		return badRequest("missing request body")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest(fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}

func (s *Service) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req CreateTopicRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	topic, err := s.Meta.CreateTopic(r.Context(), name, 1, metastore.PubsubStorageProps())
	if err != nil {
		level.Warn(s.Logger).Log("msg", "create topic failed", "topic", name, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CreateTopicResponse{Name: topic.Name})
}

func (s *Service) handlePublish(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req PublishMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusOK, PublishMessageResponse{MessageIDs: []string{}})
		return
	}

	topic, err := s.Meta.TopicByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}

	publishTime := time.Now().UTC()
	for i := range req.Messages {
		req.Messages[i].PublishTime = &publishTime
	}

	splitID := objstore.NewSplitID()
	blob, err := json.Marshal(req.Messages)
	if err != nil {
		writeError(w, badRequest(fmt.Sprintf("malformed messages: %v", err)))
		return
	}
	if err := s.Splits.Write(r.Context(), objstore.PubsubSplitKey(topic.TopicID, splitID), blob); err != nil {
		level.Error(s.Logger).Log("msg", "publish blob write failed", "topic", name, "err", err)
		writeError(w, err)
		return
	}

	start, _, err := s.Meta.CommitRecordBatch(r.Context(), name, pubsubPartition, int64(len(req.Messages)), splitID)
	if err != nil {
		level.Error(s.Logger).Log("msg", "publish commit failed, split orphaned", "topic", name, "split_id", splitID, "err", err)
		writeError(w, err)
		return
	}

	ids := make([]string, len(req.Messages))
	for i := range req.Messages {
		ids[i] = strconv.FormatInt(start+int64(i), 10)
	}
	writeJSON(w, http.StatusOK, PublishMessageResponse{MessageIDs: ids})
}

func (s *Service) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req CreateSubscriptionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	topic, err := s.Meta.TopicByName(r.Context(), req.TopicName)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.Meta.CreateSubscription(r.Context(), name, topic.TopicID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CreateSubscriptionResponse{Topic: req.TopicName, Name: name})
}

func (s *Service) handlePull(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req PullMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.MaxMessages <= 0 {
		req.MaxMessages = 1
	}

	sub, err := s.Meta.SubscriptionByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	topic, err := s.Meta.TopicByID(r.Context(), sub.TopicID)
	if err != nil {
		writeError(w, err)
		return
	}

	acked, err := s.Meta.AckRanges(r.Context(), sub.SubscriptionID)
	if err != nil {
		writeError(w, err)
		return
	}

	var out []ReceivedMessage
	for _, gap := range ackrange.Unacked(acked, req.MaxMessages) {
		if int64(len(out)) >= req.MaxMessages {
			break
		}
		splits, err := s.Meta.SplitsInRange(r.Context(), topic.TopicID, pubsubPartition, gap.Start, gap.End)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, split := range splits {
			blob, err := s.Splits.Read(r.Context(), objstore.PubsubSplitKey(topic.TopicID, split.SplitID))
			if err != nil {
				writeError(w, err)
				return
			}
			var messages []PubsubMessage
			if err := json.Unmarshal(blob, &messages); err != nil {
				writeError(w, badRequest(fmt.Sprintf("corrupt split %s: %v", split.SplitID, err)))
				return
			}
			for i, m := range messages {
				id := split.StartOffset + int64(i)
				if id < gap.Start || id >= gap.End {
					continue
				}
				m.MessageID = strconv.FormatInt(id, 10)
				out = append(out, ReceivedMessage{AckID: m.MessageID, Message: m})
				if int64(len(out)) >= req.MaxMessages {
					break
				}
			}
		}
	}
	if out == nil {
		out = []ReceivedMessage{}
	}
	writeJSON(w, http.StatusOK, PullMessageResponse{Messages: out})
}

func (s *Service) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req AcknowledgeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sub, err := s.Meta.SubscriptionByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}

	ids := make([]int64, 0, len(req.AckIDs))
	for _, raw := range req.AckIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, clientError(fmt.Sprintf("malformed ack id %q", raw)))
			return
		}
		ids = append(ids, id)
	}

	if err := s.Meta.Acknowledge(r.Context(), sub.SubscriptionID, ids); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
