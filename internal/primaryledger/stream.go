package primaryledger

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/meridianfin/ledgermirror/pkg/config"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
)

// TransferStream delivers one partition's transfers in order. Delivery is
// at-least-once; sequence numbers are the broker offsets, so consumers dedupe
// by transfer id and advance a cursor by sequence.
type TransferStream interface {
	Next(ctx context.Context) (*Transfer, error)
	Close() error
}

// StreamFactory opens a TransferStream for a partition, starting at the given
// sequence.
type StreamFactory interface {
	Open(partitionID int, fromSequence int64) (TransferStream, error)
}

type kafkaStreamFactory struct {
	brokers []string
	topic   string
}

// NewStreamFactory builds a kafka-backed stream factory from config.
func NewStreamFactory(cfg config.PrimaryLedgerConfig) (StreamFactory, error) {
	if len(cfg.Brokers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "primary ledger brokers required")
	}
	if cfg.TransfersTopic == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "primary ledger transfers topic required")
	}
	return &kafkaStreamFactory{brokers: cfg.Brokers, topic: cfg.TransfersTopic}, nil
}

func (f *kafkaStreamFactory) Open(partitionID int, fromSequence int64) (TransferStream, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   f.brokers,
		Topic:     f.topic,
		Partition: partitionID,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	if err := reader.SetOffset(fromSequence); err != nil {
		_ = reader.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seek transfer stream")
	}
	return &kafkaStream{reader: reader, partitionID: partitionID}, nil
}

type kafkaStream struct {
	reader      *kafka.Reader
	partitionID int
}

// Next blocks until a transfer arrives or ctx is done. Malformed messages are
// a dependency failure, not something to skip: the partition must halt rather
// than silently drop a sequence.
func (s *kafkaStream) Next(ctx context.Context) (*Transfer, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read transfer stream")
	}

	var transfer Transfer
	if err := json.Unmarshal(msg.Value, &transfer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConsistency, err, "decode transfer message")
	}
	transfer.PartitionID = s.partitionID
	transfer.Sequence = msg.Offset
	return &transfer, nil
}

func (s *kafkaStream) Close() error {
	return s.reader.Close()
}
