//go:build !linux

package proctitle

func platformInit() (int, []byte) { return 0, nil }

func platformSet(title string) {}
