// Package relay bridges an external websocket connection to the engine's
// loopback inbound, forwarding frames verbatim in both directions. Idle
// connections are not timed out: a bridged pair lives until either leg
// closes.
package relay

import (
	"github.com/gorilla/websocket"
)

// Bridge pumps frames between the two legs until either closes, then tears
// both down so no half-open socket survives. It returns once both pump
// loops have finished.
func Bridge(client, upstream *websocket.Conn) {
	done := make(chan struct{}, 2)

	go pump(client, upstream, done)
	go pump(upstream, client, done)

	<-done
	client.Close()
	upstream.Close()
	<-done
}

// pump forwards frames from src to dst. Each leg has exactly one pump
// writing to it, so writes need no extra locking.
func pump(src, dst *websocket.Conn, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	for {
		msgType, payload, err := src.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}
		if err := dst.WriteMessage(msgType, payload); err != nil {
			return
		}
	}
}
