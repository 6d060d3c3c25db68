// Package bridge syncs the progress tree with a realtime mirror over a websocket.
//
// A [Client] holds at most one subscription. Every change to the subscribed collection arrives as a full
// snapshot, including the echo of the client's own [Client.Push]. Callers that want to skip redraws for their
// own echoes track their pushes themselves.
package bridge
