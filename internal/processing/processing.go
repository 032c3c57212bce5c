package processing

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"unsafe"

	"go.uber.org/zap"
)

const NumReadingsPerPacket = 8

// ScanWriter receives one decoded scan per packet.
type ScanWriter interface {
	WriteScan(values []float64)
}

type Processor struct {
	MessageQueue <-chan []byte
	logger       *zap.Logger
	window       ScanWriter
	lowChannel   int
	highChannel  int
	prev         int64
	scan         []float64
}

type DataPacket struct {
	PacketNumber uint32
	Timestamp    uint32
	RawReadings  [NumReadingsPerPacket]float32
}

const PacketSize = int(unsafe.Sizeof(DataPacket{}))

var StopSequence = []byte{'\r', '\n'}

// RawPacketSize is a packet on the wire, stop sequence included.
const RawPacketSize = PacketSize + 2

func NewProcessor(messageQueue <-chan []byte, logger *zap.Logger, window ScanWriter, lowChannel, highChannel int) *Processor {
	return &Processor{
		MessageQueue: messageQueue,
		logger:       logger,
		window:       window,
		lowChannel:   lowChannel,
		highChannel:  highChannel,
		prev:         -1,
		scan:         make([]float64, highChannel-lowChannel+1),
	}
}

// Run decodes packets until the queue is closed or ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case packet, ok := <-p.MessageQueue:
			if !ok {
				p.logger.Info("[processor] message queue closed")
				return
			}

			if err := p.ProcessPacket(packet); err != nil {
				p.logger.Warn(
					"[processor] error decoding byte packet",
					zap.Error(err),
					zap.Int("packetLength", len(packet)),
					zap.ByteString("rawBytes", packet),
				)
			}
		case <-ctx.Done():
			p.logger.Info("[processor] received shutdown signal")
			return
		}
	}
}

func (p *Processor) ProcessPacket(packet []byte) error {
	if len(packet) < PacketSize {
		return fmt.Errorf("short packet: %d bytes, want %d", len(packet), PacketSize)
	}

	var decodedStruct DataPacket
	if err := binary.Read(bytes.NewReader(packet[:PacketSize]), binary.LittleEndian, &decodedStruct); err != nil {
		return err
	}

	// the board numbers packets consecutively; a gap means the host fell behind
	if p.prev >= 0 && int64(decodedStruct.PacketNumber) != p.prev+1 {
		p.logger.Warn("[processor] packet sequence gap",
			zap.Int64("expected", p.prev+1),
			zap.Uint32("got", decodedStruct.PacketNumber),
		)
	}
	p.prev = int64(decodedStruct.PacketNumber)

	for i := range p.scan {
		p.scan[i] = float64(decodedStruct.RawReadings[p.lowChannel+i])
	}
	p.window.WriteScan(p.scan)

	return nil
}

// EncodePacket frames readings the way the board does.
func EncodePacket(number, timestamp uint32, readings [NumReadingsPerPacket]float32) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, DataPacket{
		PacketNumber: number,
		Timestamp:    timestamp,
		RawReadings:  readings,
	})
	buf.Write(StopSequence)
	return buf.Bytes()
}
