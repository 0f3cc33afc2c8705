package cli

import (
	"errors"
	"io/fs"
	"strings"
	"syscall"
)

func hintForListen(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		return "Another process is bound to this port; stop it or pass --listen with a free port"
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return "Ports below 1024 need elevated privileges; the default relay port is 19885"
	}

	// Fallback to string matching for wrapped errors.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "address already in use") {
		return "Another process is bound to this port; stop it or pass --listen with a free port"
	}
	if strings.Contains(msg, "missing port") {
		return "Use host:port or :port, for example --listen :19885"
	}
	return ""
}

func hintForMarkerDir(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, fs.ErrPermission) {
		return "The marker directory must be writable by every hostlog process; pass --marker-dir or use --markers memory"
	}
	return "Check relay.marker_dir or pass --marker-dir"
}

func hintForEvents(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, fs.ErrNotExist) {
		return "Pass an existing --events FILE or pipe the event stream to stdin"
	}
	if errors.Is(err, fs.ErrPermission) {
		return "The events file is not readable by this user"
	}
	return "Pass --events FILE or pipe the event stream to stdin"
}

func hintForPattern(err error) string {
	if err == nil {
		return ""
	}
	return "Patterns are Go regular expressions (RE2); quote them in the shell. Example: --exclude '^(DEBUG|TRACE) '"
}
