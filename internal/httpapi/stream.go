package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// streamResults writes the response as server-sent events: one "result"
// event per search result, then a "done" event with the envelope minus the
// result list so the consumer gets query ID and chatbot instructions last.
func (s *Server) streamResults(c echo.Context, resp AskResponse) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	// Disables proxy buffering so events arrive as they are written.
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	// Opening comment so intermediaries commit to the stream.
	fmt.Fprint(res, ": keep-alive\n\n")
	res.Flush()

	for _, result := range resp.Results {
		if err := writeEvent(res, "result", result); err != nil {
			return err
		}
		res.Flush()
	}

	done := resp
	done.Results = nil
	if err := writeEvent(res, "done", done); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func writeEvent(res *echo.Response, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data)
	return err
}
