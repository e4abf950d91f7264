//go:build !windows

package main

func setConsoleTitle(string) {}
