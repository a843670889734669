package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"fxrack/midimap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "monitor":
		monitor(os.Args[2:])
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list            - List all MIDI input ports")
	fmt.Println("  monitor [name]  - Print messages from a port (default: first)")
	fmt.Println("  poll            - Poll for device changes")
}

func listPorts() {
	access := midimap.NewHardwareAccess()
	devices, err := access.Devices()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("=== MIDI Input Ports ===")
	if len(devices) == 0 {
		fmt.Println("  (none)")
	}
	for i, d := range devices {
		fmt.Printf("  %d: %s\n", i, d.Name)
	}
}

func monitor(args []string) {
	access := midimap.NewHardwareAccess()
	devices, err := access.Devices()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(devices) == 0 {
		fmt.Println("No MIDI input ports")
		return
	}

	device := devices[0]
	if len(args) > 0 {
		want := strings.ToLower(args[0])
		found := false
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), want) {
				device = d
				found = true
				break
			}
		}
		if !found {
			fmt.Printf("No port matching %q\n", args[0])
			return
		}
	}

	fmt.Printf("Monitoring %s (Ctrl+C to exit)\n", device.Name)

	stop, err := access.Listen(device.ID, func(status, data1, data2 byte) {
		fmt.Printf("[%s] %02X %3d %3d\n", time.Now().Format("15:04:05.000"), status, data1, data2)
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	fmt.Println("\nDone!")
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect controllers to test. Ctrl+C to exit.")

	access := midimap.NewHardwareAccess()
	last := ""

	for {
		devices, err := access.Devices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		var names []string
		for _, d := range devices {
			names = append(names, d.Name)
		}
		current := strings.Join(names, ",")

		if current != last {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", names)
			last = current
		}

		time.Sleep(2 * time.Second)
	}
}
