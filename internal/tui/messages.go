package tui

import (
	"duck/internal/connection"
	"duck/internal/events"
	"duck/internal/latency"
	"duck/internal/mode"
	"duck/internal/settings"
)

// busEventMsg carries a NotificationBus event into the program.
type busEventMsg struct {
	event events.Event
}

// Data loading messages.

type selectorLoadedMsg struct {
	selector *connection.ProxySelector
}

type settingsLoadedMsg struct {
	settings settings.Settings
}

// Transition messages.

type taskDoneMsg struct {
	op  string
	err error
}

type modeSetMsg struct {
	mode mode.ConnectionMode
	err  error
}

type proxySelectedMsg struct {
	proxy string
	err   error
}

// Latency testing messages.

type latencyTestProgressMsg struct {
	result  *latency.TestResult
	current int
	total   int
}

type latencyTestDoneMsg struct {
	batch *latency.BatchResult
}

// Settings update messages.

type settingSavedMsg struct {
	key string
	err error
}

// Notification message.

type clearNotificationMsg struct {
	version int
}
