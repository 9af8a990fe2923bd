package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/middleware"
	"github.com/chainbridge-ai/chainbridge/services/pipeline"
	"github.com/chainbridge-ai/chainbridge/utils"
)

// SSE control frames. The stream always terminates with doneFrame; a stream
// cut short by the cancellation timeout emits cancelledFrame first.
const (
	doneFrame      = "[DONE]"
	cancelledFrame = "[CANCELLED]"
)

// ChatRequest is the request body for POST /api/v1/chat and /chat/stream
type ChatRequest struct {
	Message   string `json:"message" validate:"required"`
	Namespace string `json:"namespace,omitempty"`
}

// ChatResponse is the response body for blocking chat endpoints
type ChatResponse struct {
	Response string `json:"response"`
}

// RouteRequest is the request body for POST /api/v1/chat/route
type RouteRequest struct {
	Question string `json:"question" validate:"required"`
}

// TopicRequest is the request body for the essay and parallel endpoints
type TopicRequest struct {
	Topic string `json:"topic" validate:"required"`
}

// ParallelResponse joins the outputs of the parallel composition endpoint
type ParallelResponse struct {
	Joke string `json:"joke"`
	Poem string `json:"poem"`
}

// ChatHandler handles generation HTTP requests. Each endpoint fronts one
// preconfigured pipeline; handlers stay thin and push all semantics into the
// pipeline layer.
type ChatHandler struct {
	chat          *pipeline.Pipeline
	routed        *pipeline.Pipeline
	essay         *pipeline.Pipeline
	joke          *pipeline.Pipeline
	poem          *pipeline.Pipeline
	streamTimeout time.Duration
	logger        *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chat, routed, essay, joke, poem *pipeline.Pipeline, streamTimeout time.Duration, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:          chat,
		routed:        routed,
		essay:         essay,
		joke:          joke,
		poem:          poem,
		streamTimeout: streamTimeout,
		logger:        logger,
	}
}

// HandleChat handles POST /api/v1/chat in blocking mode
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.chat.Run(r.Context(), pipeline.Request{
		Input:     req.Message,
		Namespace: req.Namespace,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("chat completed",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("outcome", string(res.Outcome)))

	if err := utils.WriteOK(w, ChatResponse{Response: res.Output}); err != nil {
		h.logger.Error("failed to write chat response", zap.Error(err))
	}
}

// HandleChatStream handles POST /api/v1/chat/stream. Fragments are relayed
// as server-sent events in arrival order; the stream is terminated by a
// [DONE] frame.
func (h *ChatHandler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r, h.logger)
	if !ok {
		return
	}

	stream, err := h.chat.RunStream(r.Context(), pipeline.Request{
		Input:     req.Message,
		Namespace: req.Namespace,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.relayStream(w, r, stream, nil)
}

// HandleChatRoute handles POST /api/v1/chat/route: the question is
// classified and dispatched to the matching expert pipeline.
func (h *ChatHandler) HandleChatRoute(w http.ResponseWriter, r *http.Request) {
	var routeReq RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&routeReq); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&routeReq); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	res, err := h.routed.Run(r.Context(), pipeline.Request{Input: routeReq.Question})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, ChatResponse{Response: res.Output}); err != nil {
		h.logger.Error("failed to write routed chat response", zap.Error(err))
	}
}

// HandleChatEssay handles POST /api/v1/chat/essay: a streaming generation
// run with a hard cancellation deadline. When the deadline fires mid-stream
// the client receives a [CANCELLED] frame before [DONE] instead of an error.
func (h *ChatHandler) HandleChatEssay(w http.ResponseWriter, r *http.Request) {
	var topicReq TopicRequest
	if err := json.NewDecoder(r.Body).Decode(&topicReq); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&topicReq); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	token := pipeline.NewToken()
	stopTimer := token.CancelAfter(h.streamTimeout)
	defer stopTimer()

	stream, err := h.essay.RunStream(r.Context(), pipeline.Request{
		Input: topicReq.Topic,
		Token: token,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.relayStream(w, r, stream, token)
}

// HandleChatParallel handles POST /api/v1/chat/parallel: the joke and poem
// pipelines run concurrently over the same topic and both results are joined
// in one response.
func (h *ChatHandler) HandleChatParallel(w http.ResponseWriter, r *http.Request) {
	var topicReq TopicRequest
	if err := json.NewDecoder(r.Body).Decode(&topicReq); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&topicReq); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	results, err := pipeline.RunParallel(r.Context(), pipeline.Request{Input: topicReq.Topic},
		pipeline.Branch{Name: "joke", Pipeline: h.joke},
		pipeline.Branch{Name: "poem", Pipeline: h.poem},
	)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, ParallelResponse{
		Joke: results["joke"],
		Poem: results["poem"],
	}); err != nil {
		h.logger.Error("failed to write parallel response", zap.Error(err))
	}
}

// relayStream copies pipeline fragments to the client as server-sent events.
// Backend failures surfacing before the first fragment become normal error
// responses; afterwards the stream simply terminates.
func (h *ChatHandler) relayStream(w http.ResponseWriter, r *http.Request, stream *pipeline.Stream, token *pipeline.Token) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support streaming")
		_ = utils.WriteInternalServerError(w, "Streaming unsupported")
		return
	}

	requestID := middleware.GetRequestIDFromContext(r.Context())
	headersSent := false
	fragments := 0

	for frag := range stream.Fragments() {
		if !headersSent {
			writeSSEHeaders(w)
			headersSent = true
		}
		writeSSEFrame(w, flusher, frag)
		fragments++
	}

	if err := stream.Err(); err != nil {
		if !headersSent {
			HandleServiceError(w, err, h.logger)
			return
		}
		// Mid-stream failure: the SSE channel is already committed, so the
		// best we can do is log and terminate without a [DONE] frame.
		h.logger.Error("stream failed mid-flight",
			zap.String("request_id", requestID),
			zap.Int("fragments", fragments),
			zap.Error(err))
		return
	}

	if !headersSent {
		writeSSEHeaders(w)
	}
	if token != nil && token.Cancelled() {
		writeSSEFrame(w, flusher, cancelledFrame)
	}
	writeSSEFrame(w, flusher, doneFrame)

	h.logger.Info("stream completed",
		zap.String("request_id", requestID),
		zap.Int("fragments", fragments),
		zap.Bool("cancelled", stream.Cancelled()))
}

func writeSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeSSEFrame(w http.ResponseWriter, flusher http.Flusher, data string) {
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return req, false
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, logger)
		return req, false
	}
	return req, true
}
