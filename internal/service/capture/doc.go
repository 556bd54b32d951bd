// Package capture produces grayscale frames for the classifier.
//
// Frames come either from a camera read through an ffmpeg subprocess, which
// also scales and converts them, or from a file of raw 8-bit frames replayed at
// a fixed pace. Normalize turns a frame into the classifier tensor.
package capture
