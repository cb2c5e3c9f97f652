package ui

import "dirstat/internal/services"

type treeEventMsg struct {
	event services.Event
}

type commandResultMsg struct {
	command string
	target  string
	err     error
}
