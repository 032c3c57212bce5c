// r in rserial stands for "robust"
package rserial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const readTimeout = 5 * time.Millisecond

// Port is the part of serial.Port the reader needs.
type Port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

type rserial struct {
	Port
	MessageQueue  chan<- []byte // closed when Run returns
	tempBuff      []byte
	logger        *zap.Logger
	portName      string
	stopSequence  []byte
	rawPacketSize int
}

type OutOfSyncError struct {
	ByteSequence []byte
}

func (e *OutOfSyncError) Error() string {
	return fmt.Sprintf("[rserial] incorrect stop sequence detected: %v", e.ByteSequence)
}

// Open opens a serial device in 8N1 mode at the given baud rate.
func Open(portName string, baudrate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", portName, err)
	}
	return port, nil
}

// ListPorts returns the serial devices present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

func NewRSerial(port Port, portName string, messageQueue chan<- []byte, logger *zap.Logger, rawPacketSize int, stopSequence []byte) *rserial {
	return &rserial{
		Port:          port,
		MessageQueue:  messageQueue,
		tempBuff:      make([]byte, rawPacketSize),
		logger:        logger,
		portName:      portName,
		stopSequence:  stopSequence,
		rawPacketSize: rawPacketSize,
	}
}

func (r *rserial) initialize(ctx context.Context) error {
	if err := r.SetReadTimeout(readTimeout); err != nil {
		return err
	}
	if err := r.ResetInputBuffer(); err != nil {
		return err
	}
	return r.sync(ctx)
}

// Run reads framed packets until ctx is cancelled or the port reaches EOF.
func (r *rserial) Run(ctx context.Context) {
	defer close(r.MessageQueue)

	if err := r.initialize(ctx); err != nil {
		if !isDone(ctx, err) {
			r.logger.Error("[rserial] could not initialize port", zap.Error(err), zap.String("portName", r.portName))
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("[rserial] exiting from rserial read loop", zap.String("portName", r.portName))
			return
		default:
		}

		err := r.ReadPacket(ctx)
		if err == nil {
			continue
		}
		if isDone(ctx, err) {
			r.logger.Info("[rserial] read loop finished", zap.String("portName", r.portName), zap.Error(err))
			return
		}

		var oosError *OutOfSyncError
		if errors.As(err, &oosError) {
			r.logger.Warn("[rserial] packet out of sync", zap.Error(err), zap.String("portName", r.portName), zap.ByteString("payload", oosError.ByteSequence))
			if err := r.sync(ctx); err != nil {
				return
			}
		} else {
			r.logger.Warn("[rserial] error while attempting to read packet from serial", zap.Error(err), zap.String("portName", r.portName))
		}
	}
}

// ReadPacket reads one packet and queues a copy of it.
func (r *rserial) ReadPacket(ctx context.Context) error {
	count := 0
	for count < r.rawPacketSize {
		n, err := r.Read(r.tempBuff[count:])
		if err != nil {
			return err
		}
		if n == 0 {
			// read timeout
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		count += n
	}

	packet := make([]byte, r.rawPacketSize)
	copy(packet, r.tempBuff)

	// validate that the packet is valid by checking the trailing stop sequence
	if !bytes.Equal(packet[r.rawPacketSize-len(r.stopSequence):], r.stopSequence) {
		return &OutOfSyncError{
			ByteSequence: packet,
		}
	}

	select {
	case r.MessageQueue <- packet:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sync discards bytes until the end of a stop sequence has gone by.
func (r *rserial) sync(ctx context.Context) error {
	r.logger.Warn("[rserial] resyncing serial port", zap.String("portName", r.portName))
	onebyte := make([]byte, 1)
	last := r.stopSequence[len(r.stopSequence)-1]

	for {
		n, err := r.Read(onebyte)
		if err != nil {
			if isDone(ctx, err) {
				return err
			}
			r.logger.Warn("[rserial] error while resyncing serial port", zap.Error(err), zap.String("portName", r.portName))
			continue
		}
		if n == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		if onebyte[0] == last {
			return nil
		}
	}
}

// isDone reports whether err ends the read loop rather than a single packet.
func isDone(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
