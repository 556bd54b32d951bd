// Package location resolves an approximate position of the vehicle from its
// public IP address and renders it as a map link.
//
// Resolve never fails: any problem is logged and reported as Unknown.
package location
