// Package health exposes the monitor over gRPC.
//
// It serves the standard grpc.health.v1 service and a small status service
// that returns the latest state machine snapshot as a google.protobuf.Struct.
// The primary loop publishes snapshots; RPC handlers only read them.
package health
