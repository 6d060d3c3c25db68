// Package server implements a small realtime mirror for collection progress.
//
// # Router
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses [http.ServeMux]
// method patterns. [Middleware] added first runs first.
//
// # Mirror
//
// [Mirror] serves two routes behind [RequestLogger] and [BearerAuth]:
//   - /ws, the websocket [Hub]. Peers send subscribe, set and unsubscribe frames and receive a snapshot of the
//     path after subscribing and after every set, their own included.
//   - GET /collections/{id}/data, the stored JSON for one collection, or 404.
//
// Documents live in SQLite through the documents repository, so a restarted mirror keeps its data.
package server
