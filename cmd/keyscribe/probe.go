package main

import (
	"context"
	"fmt"
	"os"

	"keyscribe/internal/envprobe"
)

func cmdProbe() {
	report := envprobe.Check(context.Background())

	fmt.Println("=== keyscribe Environment ===")
	fmt.Println()
	fmt.Printf("Session type:  %s\n", report.SessionType)
	fmt.Printf("IBus:          %s\n", probeMark(report.IBusRunning, "running", "not running"))
	fmt.Printf("/dev/uinput:   %s\n", probeMark(report.UinputWritable, "writable", "not writable"))
	fmt.Printf("/dev/input:    %s\n", probeMark(report.InputReadable, "readable", "not readable"))
	fmt.Println()

	problems := report.Problems()
	if len(problems) == 0 {
		fmt.Println("✓ Synthesis and capture prerequisites are in place")
		return
	}

	for _, p := range problems {
		fmt.Printf("✗ %s\n", p)
	}
	os.Exit(1)
}

func probeMark(ok bool, yes, no string) string {
	if ok {
		return "✓ " + yes
	}
	return "✗ " + no
}
