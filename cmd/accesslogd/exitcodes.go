package main

// Exit codes for accesslogd
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitConfigError  = 2
)
