// Package checker queries the health endpoint of a running monitor and prints its status.
package checker
