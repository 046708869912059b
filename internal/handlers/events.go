package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/Eliot-Huo/Iridium-IWS/internal/events"
)

// EventsHandler streams ingestion pass progress to a client over SSE.
// Every event the hub broadcasts during a pass (start, stage changes,
// per-file results, finish) goes out as one `data:` frame.
func EventsHandler(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		log.Println("[SSE] Client connected")
		defer log.Println("[SSE] Client disconnected")

		clientChan := make(events.Client, 10)
		events.MainHub.RegisterClient(clientChan)
		defer events.MainHub.UnregisterClient(clientChan)

		// First frame confirms the subscription before any pass runs.
		hello := events.Event{
			Type: "STREAM_CONNECTED",
			Data: fiber.Map{
				"message": "subscribed to ingestion pass events",
				"time":    time.Now(),
			},
		}
		if payload, err := json.Marshal(hello); err == nil {
			fmt.Fprintf(w, "data: %s\n\n", payload)
			w.Flush()
		}

		// Comment frames keep idle connections alive through proxies.
		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()

		for {
			select {
			case message, ok := <-clientChan:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", message)
				if err := w.Flush(); err != nil {
					log.Printf("[SSE] Flush failed, client likely gone: %v", err)
					return
				}
			case <-keepAlive.C:
				fmt.Fprintf(w, ": keep-alive\n\n")
				if err := w.Flush(); err != nil {
					log.Printf("[SSE] Keep-alive failed, client likely gone: %v", err)
					return
				}
			case <-c.Context().Done():
				return
			}
		}
	}))

	return nil
}
