//go:build windows

package main

import "os"

func setupSignalHandling() {}

func getNotifySignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
