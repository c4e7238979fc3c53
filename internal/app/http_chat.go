package app

import (
	"net/http"

	"go.uber.org/zap"
	"todoapp/api/internal/chat"
	"todoapp/api/internal/util"
)

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if !s.service.ChatConfigured() {
		writeServiceError(w, errChatDisabled)
		return
	}

	var body struct {
		Messages []chat.WireMessage `json:"messages"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeServiceError(w, err)
		return
	}
	messages, err := chat.FromWire(body.Messages)
	if err != nil {
		writeServiceError(w, chatIssue(err))
		return
	}

	chat.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	stream := chat.NewUIStream(w, util.NewID("msg"))
	if err := s.service.Chat(r.Context(), messages, stream); err != nil {
		s.logger.Warn("chat stream failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
}

func chatIssue(err error) error {
	inputErr, ok := err.(*chat.InputError)
	if !ok {
		return err
	}
	path := []any{"messages"}
	if inputErr.Index >= 0 {
		path = append(path, inputErr.Index, inputErr.Field)
	}
	return invalid(Issue{Code: "custom", Path: path, Message: inputErr.Message})
}
