package config

import "runtime"

// defaultDevice returns the default camera name understood by ffmpeg on this platform.
func defaultDevice() string {
	switch runtime.GOOS {
	case "windows":
		return "video=Integrated Camera"
	case "darwin":
		return "0"
	default:
		return "/dev/video0"
	}
}

// defaultInputFormat returns the ffmpeg demuxer that reads cameras on this platform.
func defaultInputFormat() string {
	switch runtime.GOOS {
	case "windows":
		return "dshow"
	case "darwin":
		return "avfoundation"
	default:
		return "v4l2"
	}
}
