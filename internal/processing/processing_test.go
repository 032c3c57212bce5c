package processing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	scans [][]float64
}

func (w *recordingWriter) WriteScan(values []float64) {
	w.scans = append(w.scans, append([]float64(nil), values...))
}

func TestPacketSize(t *testing.T) {
	assert.Equal(t, 40, PacketSize)
	assert.Len(t, EncodePacket(1, 2, [NumReadingsPerPacket]float32{}), RawPacketSize)
}

func TestProcessPacketSelectsChannelRange(t *testing.T) {
	w := &recordingWriter{}
	p := NewProcessor(nil, zap.NewNop(), w, 2, 4)

	packet := EncodePacket(7, 1000, [NumReadingsPerPacket]float32{0, 1, 2.5, 3.5, 4.5, 5, 6, 7})
	require.NoError(t, p.ProcessPacket(packet))

	require.Len(t, w.scans, 1)
	assert.Equal(t, []float64{2.5, 3.5, 4.5}, w.scans[0])
}

func TestProcessPacketRejectsShortPacket(t *testing.T) {
	p := NewProcessor(nil, zap.NewNop(), &recordingWriter{}, 0, 1)
	assert.Error(t, p.ProcessPacket([]byte{1, 2, 3}))
}

func TestRunDrainsQueueUntilClosed(t *testing.T) {
	queue := make(chan []byte, 4)
	w := &recordingWriter{}
	p := NewProcessor(queue, zap.NewNop(), w, 0, 0)

	for i := range 3 {
		queue <- EncodePacket(uint32(i), 0, [NumReadingsPerPacket]float32{float32(i)})
	}
	queue <- []byte{0xff} // malformed, logged and skipped
	close(queue)

	p.Run(context.Background())

	require.Len(t, w.scans, 3)
	assert.Equal(t, []float64{2}, w.scans[2])
}
