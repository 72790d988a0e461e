// DVB frontend device - Linux ioctls
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package frontend

import (
	"errors"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"dvb-tune/internal/dtv"
)

// struct dtv_property is packed: cmd, reserved[3], a union whose largest
// member is a 32 byte buffer + len + reserved1[3] + a pointer, then result.
type dtvProperty struct {
	cmd      uint32
	reserved [3]uint32
	data     uint32
	_        [48 + unsafe.Sizeof(uintptr(0)) - 4]byte
	result   int32
}

type dtvProperties struct {
	num   uint32
	props *dtvProperty
}

// struct dvb_frontend_event: status + dvb_frontend_parameters (frequency,
// inversion and a 28 byte union).
type dvbFrontendEvent struct {
	status    uint32
	frequency uint32
	inversion uint32
	u         [7]uint32
}

// generic _IOC encoding (x86, arm)
const (
	iocWrite = 1
	iocRead  = 2

	iocType      = 'o'
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

const (
	feReadStatus            = iocRead<<iocDirShift | unsafe.Sizeof(uint32(0))<<iocSizeShift | iocType<<iocTypeShift | 69
	feReadBER               = iocRead<<iocDirShift | unsafe.Sizeof(uint32(0))<<iocSizeShift | iocType<<iocTypeShift | 70
	feReadSignalStrength    = iocRead<<iocDirShift | unsafe.Sizeof(uint16(0))<<iocSizeShift | iocType<<iocTypeShift | 71
	feReadSNR               = iocRead<<iocDirShift | unsafe.Sizeof(uint16(0))<<iocSizeShift | iocType<<iocTypeShift | 72
	feReadUncorrectedBlocks = iocRead<<iocDirShift | unsafe.Sizeof(uint32(0))<<iocSizeShift | iocType<<iocTypeShift | 73
	feGetEvent              = iocRead<<iocDirShift | unsafe.Sizeof(dvbFrontendEvent{})<<iocSizeShift | iocType<<iocTypeShift | 78
	feSetProperty           = iocWrite<<iocDirShift | unsafe.Sizeof(dtvProperties{})<<iocSizeShift | iocType<<iocTypeShift | 82
	feGetProperty           = iocRead<<iocDirShift | unsafe.Sizeof(dtvProperties{})<<iocSizeShift | iocType<<iocTypeShift | 83
)

// Device is an open frontend. It is not safe for concurrent use: the
// driver handles one tuning session at a time.
type Device struct {
	fd   int
	path string
}

// Open opens the frontend read-write and non-blocking, so that
// FE_GET_EVENT returns immediately on an empty queue.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return &Device{fd: fd, path: path}, nil
}

func (d *Device) Close() error {
	if d == nil || d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	if err != nil {
		return &os.PathError{Op: "close", Path: d.path, Err: err}
	}
	return nil
}

func (d *Device) ioctl(name string, req uintptr, arg unsafe.Pointer) error {
	if d.fd < 0 {
		return os.ErrClosed
	}
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return os.NewSyscallError(name, errno)
		}
		return nil
	}
}

// SetProperties submits props as one FE_SET_PROPERTY batch, in order.
func (d *Device) SetProperties(props []dtv.Property) error {
	if len(props) == 0 {
		return nil
	}
	raw := make([]dtvProperty, len(props))
	for i, p := range props {
		raw[i].cmd = uint32(p.Cmd)
		raw[i].data = p.Data
	}
	cmdseq := dtvProperties{num: uint32(len(raw)), props: &raw[0]}
	err := d.ioctl("FE_SET_PROPERTY", feSetProperty, unsafe.Pointer(&cmdseq))
	runtime.KeepAlive(raw)
	return err
}

// GetProperties fills in the Data field of each of props with one
// FE_GET_PROPERTY batch.
func (d *Device) GetProperties(props []dtv.Property) error {
	if len(props) == 0 {
		return nil
	}
	raw := make([]dtvProperty, len(props))
	for i, p := range props {
		raw[i].cmd = uint32(p.Cmd)
	}
	cmdseq := dtvProperties{num: uint32(len(raw)), props: &raw[0]}
	err := d.ioctl("FE_GET_PROPERTY", feGetProperty, unsafe.Pointer(&cmdseq))
	runtime.KeepAlive(raw)
	if err != nil {
		return err
	}
	for i := range props {
		props[i].Data = raw[i].data
	}
	return nil
}

// GetEvent dequeues one frontend event without blocking.
func (d *Device) GetEvent() (Event, error) {
	var ev dvbFrontendEvent
	err := d.ioctl("FE_GET_EVENT", feGetEvent, unsafe.Pointer(&ev))
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return Event{}, ErrNoEvent
		}
		return Event{}, err
	}
	return Event{
		Status:    dtv.Status(ev.status),
		Frequency: ev.frequency,
		Inversion: ev.inversion,
	}, nil
}

func (d *Device) ReadStatus() (dtv.Status, error) {
	var status uint32
	if err := d.ioctl("FE_READ_STATUS", feReadStatus, unsafe.Pointer(&status)); err != nil {
		return 0, err
	}
	return dtv.Status(status), nil
}

func (d *Device) ReadSignalStrength() (uint16, error) {
	var v uint16
	err := d.ioctl("FE_READ_SIGNAL_STRENGTH", feReadSignalStrength, unsafe.Pointer(&v))
	return v, err
}

func (d *Device) ReadSNR() (uint16, error) {
	var v uint16
	err := d.ioctl("FE_READ_SNR", feReadSNR, unsafe.Pointer(&v))
	return v, err
}

func (d *Device) ReadBER() (uint32, error) {
	var v uint32
	err := d.ioctl("FE_READ_BER", feReadBER, unsafe.Pointer(&v))
	return v, err
}

func (d *Device) ReadUncorrectedBlocks() (uint32, error) {
	var v uint32
	err := d.ioctl("FE_READ_UNCORRECTED_BLOCKS", feReadUncorrectedBlocks, unsafe.Pointer(&v))
	return v, err
}
