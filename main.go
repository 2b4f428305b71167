// Package main is the entry point for spoteamfy, a command-line tool that
// posts each configured user's recently played Spotify tracks to a
// Microsoft Teams channel via an incoming webhook.
package main

import (
	"github.com/spoteamfy/spoteamfy/cmd"
)

func main() {
	cmd.Execute()
}
