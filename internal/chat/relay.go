package chat

import "context"

const streamErrorText = "An error occurred."

// Relay runs streamer and writes its output to s as a complete UI message
// stream. Upstream failures after the stream has started become an error
// event; the stream is still terminated with [DONE] and the failure is
// returned for logging.
func Relay(ctx context.Context, streamer Streamer, messages []Message, s *UIStream) error {
	if err := s.Start(); err != nil {
		return err
	}
	if err := s.TextStart(); err != nil {
		return err
	}

	streamErr := streamer.Stream(ctx, messages, s.TextDelta)
	if streamErr != nil {
		if err := s.Error(streamErrorText); err != nil {
			return err
		}
	} else {
		if err := s.TextEnd(); err != nil {
			return err
		}
		if err := s.Finish(); err != nil {
			return err
		}
	}
	if err := s.Done(); err != nil {
		return err
	}
	return streamErr
}
