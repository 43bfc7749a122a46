// Package viz serves a live view of a single contagion model over HTTP.
//
// The server owns one model built from config.Params. Clients read the
// current network with GET /api/network, advance it with POST /api/step
// and rebuild it from the parameters with POST /api/reset. Every change is
// pushed to WebSocket clients connected to /ws.
//
// The projection colours infected nodes red and healthy nodes green, with
// a tooltip naming the node and its state. Edges share one colour and
// width. Rendering is left to the client.
//
// All model access is serialized by one mutex; handlers never step the
// model concurrently.
package viz
