//go:build !linux

package main

import (
	"errors"
)

func openInput(string, bool) (keyInput, error) {
	return nil, errors.New("evdev input is only supported on linux")
}

func repeats(uint32) bool { return true }
