// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// gpibctl runs the GPIB-USB adapter core against a real set of host GPIO
// pins and a serial host transport, persisting configuration to a local
// file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"gpibctl/bus"
	"gpibctl/config"
	"gpibctl/core"
	"gpibctl/monitor"
	"gpibctl/transport"
)

var lineNames = map[bus.Signal]string{
	bus.DAV:  "DAV",
	bus.NRFD: "NRFD",
	bus.NDAC: "NDAC",
	bus.EOI:  "EOI",
	bus.ATN:  "ATN",
	bus.IFC:  "IFC",
	bus.SRQ:  "SRQ",
	bus.REN:  "REN",
}

func buildTransceiver(pinPrefix string, dioPrefix string) (*bus.GPIOTransceiver, error) {
	lines := map[bus.Signal]gpio.PinIO{}
	for sig, name := range lineNames {
		p := gpioreg.ByName(pinPrefix + name)
		if p == nil {
			return nil, fmt.Errorf("gpibctl: no GPIO pin registered for %s (%s%s)", sig, pinPrefix, name)
		}
		lines[sig] = p
	}
	var dio [8]gpio.PinIO
	for i := 0; i < 8; i++ {
		p := gpioreg.ByName(fmt.Sprintf("%sDIO%d", dioPrefix, i+1))
		if p == nil {
			return nil, fmt.Errorf("gpibctl: no GPIO pin registered for DIO%d", i+1)
		}
		dio[i] = p
	}
	return bus.NewGPIOTransceiver(lines, dio)
}

func mainImpl() error {
	serialPath := flag.String("serial", "", "serial device path for the host channel, e.g. /dev/ttyACM0")
	configPath := flag.String("config", "gpibctl.cfg", "path to the persisted configuration file")
	pinPrefix := flag.String("pin-prefix", "GPIO", "prefix for management/handshake line pin names")
	dioPrefix := flag.String("dio-prefix", "GPIO", "prefix for DIO pin names")
	showMonitor := flag.Bool("monitor", false, "render live bus line state to the console")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}
	if *serialPath == "" {
		return errors.New("-serial is required")
	}

	if _, err := host.Init(); err != nil {
		return err
	}

	t, err := buildTransceiver(*pinPrefix, *dioPrefix)
	if err != nil {
		return err
	}

	io, err := transport.OpenSerial(*serialPath, config.HostInBufSize)
	if err != nil {
		return err
	}
	defer io.Close()

	store := &config.FileStore{Path: *configPath}
	cfg := config.Default()
	c := core.New(t, cfg, store, io, nil)

	if *showMonitor {
		mon := monitor.New()
		defer mon.Close()
		go func() {
			for {
				mon.Refresh(t)
				time.Sleep(50 * time.Millisecond)
			}
		}()
	}

	log.Printf("gpibctl: running, host channel %s, config %s", *serialPath, *configPath)
	c.Run(nil)
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "gpibctl: %s.\n", err)
		os.Exit(1)
	}
}
