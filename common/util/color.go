// Package util collects the small cross-package helpers: colored
// console strings for operator-facing log lines, trace-id generation
// for log correlation, and an atomic marker-file writer.
package util

import (
	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

func Red(s string) string    { return red(s) }
func Green(s string) string  { return green(s) }
func Yellow(s string) string { return yellow(s) }
func Cyan(s string) string   { return cyan(s) }
