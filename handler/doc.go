// Package handler implements the MCP protocol engine on top of a transport.
//
// A Handler owns the request-id sequence, the correlation table matching
// outbound requests to inbound responses, and the two dispatch tables
// routing inbound requests and notifications to registered callbacks. One
// background consumption goroutine per started handler drains the
// transport's inbound sequence and dispatches in classification order.
//
// Typical use:
//
//	h := handler.New(tr)
//	h.RegisterRequestHandler("tools/list", listTools)
//	if err := h.Start(); err != nil { ... }
//	defer h.Stop()
//
//	result, err := h.SendRequest(ctx, "tools/call",
//	    map[string]any{"name": "search"}, 30*time.Second)
//
// Concurrent SendRequest calls are independent: each caller waits only on
// its own pending slot, and responses may resolve out of order relative to
// the order requests were sent.
package handler
