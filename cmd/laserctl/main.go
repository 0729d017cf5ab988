// laserctl is a one-shot CLI for a FemtoFiber laser: query status, switch
// emission, or switch hardware input control, then exit.
//
// Usage:
//
//	laserctl -port /dev/ttyUSB0 status
//	laserctl -port /dev/ttyUSB0 on|off
//	laserctl -port /dev/ttyUSB0 control on|off
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/photonics-data/femtoctl/lasers"
	"github.com/photonics-data/femtoctl/lasers/femtoferb"
)

var port = flag.String("port", "", "Serial port of the laser, e.g. /dev/ttyUSB0")

func usage() {
	fmt.Fprintln(os.Stderr, "usage: laserctl -port <serial-port> status|on|off|control on|off")
	os.Exit(2)
}

func main() {
	flag.Parse()

	if *port == "" {
		log.Fatal("-port is required")
	}
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	laser, err := femtoferb.FromParams(lasers.Params{femtoferb.PortParam: *port})
	if err != nil {
		log.Fatalf("failed to open laser on %s: %v", *port, err)
	}
	defer laser.Close()

	switch args[0] {
	case "status":
		control, err := laser.IsControlOn()
		if err != nil {
			log.Fatalf("failed to query hardware input control: %v", err)
		}
		emission, err := laser.IsOn()
		if err != nil {
			log.Fatalf("failed to query emission: %v", err)
		}
		fmt.Printf("hardware input control: %s\n", onOff(control))
		fmt.Printf("emission:               %s\n", onOff(emission))

	case "on":
		reportMutation("turn laser on", laser.TurnOn())

	case "off":
		reportMutation("turn laser off", laser.TurnOff())

	case "control":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			usage()
		}
		reportMutation("set hardware input control", laser.SetControl(args[1] == "on"))

	default:
		usage()
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func reportMutation(what string, err error) {
	if err == nil {
		fmt.Println("ok")
		return
	}
	if lasers.IsDeviceError(err) {
		log.Fatalf("device refused to %s: %v", what, err)
	}
	log.Fatalf("failed to %s: %v", what, err)
}
