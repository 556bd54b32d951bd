// Package classifier talks to the drowsiness inference service over gRPC.
//
// The service is external to the monitor: it receives one normalized
// single-channel tensor and answers with a two-class score vector. The client
// takes the argmax and maps class 1 to drowsy.
//
// Wire contract (no generated stubs are needed on either side):
//
//	rpc drowsiness.v1.ClassifierService/Classify(google.protobuf.BytesValue) returns (google.protobuf.ListValue)
//
// The request carries the tensor as little-endian float32 values and its shape
// in the "x-tensor-shape" metadata entry ("1,1,<height>,<width>").
package classifier
