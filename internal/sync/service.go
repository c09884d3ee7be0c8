package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianfin/ledgermirror/internal/journal"
	"github.com/meridianfin/ledgermirror/internal/primaryledger"
	"github.com/meridianfin/ledgermirror/pkg/backoff"
	"github.com/meridianfin/ledgermirror/pkg/config"
	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/logger"
	"github.com/meridianfin/ledgermirror/pkg/metrics"
)

type entryPoster interface {
	Post(ctx context.Context, input journal.PostEntryInput) (*models.JournalEntry, error)
}

type cursorStore interface {
	Last(ctx context.Context, partitionID int) (int64, error)
	Advance(ctx context.Context, partitionID int, sequence int64) error
}

// ServiceParams wire the sync service.
type ServiceParams struct {
	Config  config.SyncConfig
	Journal entryPoster
	Cursors cursorStore
	Streams primaryledger.StreamFactory
	Metrics *metrics.SyncMetrics
	Logger  *logger.Logger
}

// Service mirrors the primary ledger's transfer stream into journal entries.
// One worker per partition; ordering holds within a partition, never across.
type Service struct {
	cfg     config.SyncConfig
	journal entryPoster
	cursors cursorStore
	streams primaryledger.StreamFactory
	metrics *metrics.SyncMetrics
	logg    *logger.Logger
}

// NewService validates dependencies and builds the sync service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Journal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "journal engine required")
	}
	if params.Cursors == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cursor store required")
	}
	if params.Streams == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stream factory required")
	}
	if params.Config.Partitions < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "at least one partition required")
	}
	return &Service{
		cfg:     params.Config,
		journal: params.Journal,
		cursors: params.Cursors,
		streams: params.Streams,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Run starts one worker per partition and blocks until ctx is cancelled or
// every worker has returned. A halted partition does not stop its siblings:
// the group deliberately has no shared cancellation, so the healthy
// partitions keep streaming while the halt surfaces through the joined error.
func (s *Service) Run(ctx context.Context) error {
	var group errgroup.Group
	for partitionID := 0; partitionID < s.cfg.Partitions; partitionID++ {
		partitionID := partitionID
		group.Go(func() error {
			return s.runPartition(ctx, partitionID)
		})
	}
	return group.Wait()
}

func (s *Service) runPartition(ctx context.Context, partitionID int) error {
	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithPartition(ctx, partitionID)
	}

	last, err := s.cursors.Last(ctx, partitionID)
	if err != nil {
		return fmt.Errorf("partition %d: load cursor: %w", partitionID, err)
	}

	stream, err := s.streams.Open(partitionID, last+1)
	if err != nil {
		return fmt.Errorf("partition %d: open stream: %w", partitionID, err)
	}
	defer stream.Close()

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(logCtx, "from_sequence", last+1), "partition catching up")
	}

	for {
		transfer, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !pkgerrors.Retryable(err) {
				return s.halt(logCtx, partitionID, err)
			}
			if s.logg != nil {
				s.logg.Warn(logCtx, "transfer stream read failed: "+err.Error())
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.RetryBaseDelay):
			}
			continue
		}

		if err := s.apply(logCtx, transfer); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return s.halt(logCtx, partitionID, err)
		}
		s.metrics.SetLastSequence(partitionID, transfer.Sequence)
	}
}

// apply materializes one transfer. Retryable failures back off and retry in
// place so in-partition ordering never skips a sequence; non-retryable
// failures bubble up and halt the partition.
func (s *Service) apply(ctx context.Context, transfer *primaryledger.Transfer) error {
	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithTransferID(ctx, transfer.TransferID)
	}

	for attempt := 1; ; attempt++ {
		err := s.post(ctx, transfer)
		if err == nil {
			s.metrics.IncApplied(transfer.PartitionID)
			return nil
		}

		if journal.IsDuplicateTransfer(err) {
			// Redelivery of a materialized transfer; only the cursor lagged.
			if advErr := s.cursors.Advance(ctx, transfer.PartitionID, transfer.Sequence); advErr != nil {
				return advErr
			}
			s.metrics.IncDuplicate(transfer.PartitionID)
			if s.logg != nil {
				s.logg.Info(logCtx, "duplicate transfer skipped")
			}
			return nil
		}

		if !pkgerrors.Retryable(err) {
			return err
		}
		if attempt >= s.cfg.MaxAttempts {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err,
				fmt.Sprintf("transfer not applied after %d attempts", attempt))
		}

		delay := backoff.Delay(s.cfg.RetryBaseDelay, s.cfg.RetryMaxDelay, attempt)
		if s.logg != nil {
			retryCtx := s.logg.WithFields(logCtx, map[string]any{
				"attempt": attempt,
				"delay":   delay.String(),
			})
			s.logg.Warn(retryCtx, "transfer apply failed, retrying: "+err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Service) post(ctx context.Context, transfer *primaryledger.Transfer) error {
	transferID := transfer.TransferID
	_, err := s.journal.Post(ctx, journal.PostEntryInput{
		EntryDate:   transfer.Timestamp,
		Description: fmt.Sprintf("transfer %s", transfer.TransferID),
		Source:      enums.EntrySourceTransferSync,
		Lines: []journal.LineInput{
			{AccountID: transfer.DebitAccountID, Type: enums.LineTypeDebit, Amount: transfer.Amount},
			{AccountID: transfer.CreditAccountID, Type: enums.LineTypeCredit, Amount: transfer.Amount},
		},
		TransferID: &transferID,
		Cursor: &journal.CursorAdvance{
			PartitionID: transfer.PartitionID,
			Sequence:    transfer.Sequence,
		},
	})
	return err
}

func (s *Service) halt(ctx context.Context, partitionID int, err error) error {
	s.metrics.IncHalt(partitionID)
	if s.logg != nil {
		s.logg.Error(ctx, "partition halted", err)
	}
	return fmt.Errorf("partition %d halted: %w", partitionID, err)
}
