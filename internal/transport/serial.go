// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// SerialConnection wraps a local serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// SerialMode returns the 8N1 line settings used on the bus.
func SerialMode(baudRate int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenSerial opens a serial port connection
func OpenSerial(portName string, baudRate int) (*SerialConnection, error) {
	port, err := serial.Open(portName, SerialMode(baudRate))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", portName)
	}
	return &SerialConnection{port: port}, nil
}

// ListSerialPorts returns the serial ports present on this machine.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list serial ports")
	}
	return ports, nil
}
