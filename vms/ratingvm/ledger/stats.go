// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/state"
)

// SubjectScope is the scope of the named subject.
func SubjectScope(subject string) state.Scope {
	return state.SubjectScope(state.SubjectID(subject))
}

// RequestSubjectStats asks the oracle to decrypt the sum of subject. The
// statistic is published later by Callback.
func (l *Ledger) RequestSubjectStats(ctx context.Context, subject string) (uint64, error) {
	if err := l.verifySubject(subject); err != nil {
		l.metrics.MarkOperation("requestSubjectStats", outcome(err))
		return 0, err
	}
	return l.requestStats(ctx, "requestSubjectStats", SubjectScope(subject), subject)
}

// RequestGlobalStats asks the oracle to decrypt the global sum.
func (l *Ledger) RequestGlobalStats(ctx context.Context) (uint64, error) {
	return l.requestStats(ctx, "requestGlobalStats", state.GlobalScope(), "")
}

func (l *Ledger) requestStats(ctx context.Context, op string, scope state.Scope, subject string) (uint64, error) {
	var requestID uint64
	err := l.execute(ctx, op, func(ctx context.Context, tx *txn) error {
		status, err := tx.Status(scope)
		if err != nil {
			return err
		}
		switch status {
		case state.Finalized:
			return fmt.Errorf("%w: %s", ErrAlreadyFinalized, scope)
		case state.Requested:
			return fmt.Errorf("%w: %s", ErrDecryptionPending, scope)
		}

		agg, err := tx.GetAggregate(scope)
		if errors.Is(err, state.ErrAggregateNotFound) {
			return fmt.Errorf("%w: %s", ErrNoRatings, scope)
		}
		if err != nil {
			return err
		}
		allowed, err := tx.IsAllowed(agg.Sum.Handle(), l.cfg.Principal)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: %s", ErrNotAuthorized, scope)
		}

		requestID, err = l.engine.RequestDecryption(ctx, []fhe.Ciphertext{agg.Sum})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
		}
		err = tx.PutRequest(&state.Request{
			ID:          requestID,
			Scope:       scope,
			Subject:     subject,
			Count:       agg.Count,
			RequestedAt: tx.now,
		})
		if err != nil {
			return fmt.Errorf("%w: request %d: %w", ErrDecryptionFailed, requestID, err)
		}
		return tx.emit(&state.Event{
			Kind:      state.StatsRequested,
			Subject:   subject,
			Scope:     &scope,
			RequestID: requestID,
			Count:     agg.Count,
		})
	}, attribute.Stringer("scope", scope))
	if err != nil {
		return 0, err
	}
	l.log.Info("requested statistics decryption",
		log.Stringer("scope", scope),
		log.Uint64("requestID", requestID),
	)
	return requestID, nil
}

// Callback consumes the oracle's answer to requestID and publishes the
// average of the scope it was issued for. A rejected callback leaves the
// scope requested.
func (l *Ledger) Callback(ctx context.Context, requestID uint64, cleartext []byte, attestations [][]byte) error {
	var stat *state.Stat
	var scope state.Scope
	err := l.execute(ctx, "callback", func(_ context.Context, tx *txn) error {
		req, err := tx.GetRequest(requestID)
		if errors.Is(err, state.ErrRequestNotFound) {
			return fmt.Errorf("%w: %d", ErrUnknownRequest, requestID)
		}
		if err != nil {
			return err
		}
		scope = req.Scope

		status, err := tx.Status(scope)
		if err != nil {
			return err
		}
		if status == state.Finalized {
			return fmt.Errorf("%w: %s", ErrAlreadyFinalized, scope)
		}

		total, err := fhe.DecodeCleartext(cleartext)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedCleartext, err)
		}
		if len(l.cfg.AttestationKeys) > 0 {
			err := fhe.VerifyAttestations(l.cfg.AttestationKeys, l.cfg.AttestationThreshold, requestID, cleartext, attestations)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidAttestation, err)
			}
		}
		if req.Count == 0 {
			return fmt.Errorf("%w: request %d has no entries", ErrUnknownRequest, requestID)
		}
		average := total / uint64(req.Count)
		if average > math.MaxUint32 {
			return fmt.Errorf("%w: average %d overflows 32 bits", ErrMalformedCleartext, average)
		}

		stat = &state.Stat{
			Average:     uint32(average),
			Count:       req.Count,
			Finalized:   true,
			FinalizedAt: tx.now,
		}
		if err := tx.PutStat(scope, stat); err != nil {
			return err
		}
		if err := tx.DeleteRequest(req); err != nil {
			return err
		}
		tx.finalized = &scope
		return tx.emit(&state.Event{
			Kind:      state.StatsPublished,
			Subject:   req.Subject,
			Scope:     &scope,
			RequestID: requestID,
			Average:   stat.Average,
			Count:     stat.Count,
		})
	}, attribute.Int64("requestID", int64(requestID)))
	if err != nil {
		l.log.Warn("rejected decryption callback",
			log.Uint64("requestID", requestID),
			log.Err(err),
		)
		return err
	}
	l.log.Info("published statistics",
		log.Stringer("scope", scope),
		log.Uint32("average", stat.Average),
		log.Uint32("count", stat.Count),
	)
	return nil
}

// GrantStatsAccess lets grantee have the aggregate sum of a finalized scope
// decrypted. Any caller may extend access.
func (l *Ledger) GrantStatsAccess(ctx context.Context, caller ids.ShortID, scope state.Scope, grantee ids.ShortID) error {
	return l.execute(ctx, "grantStatsAccess", func(_ context.Context, tx *txn) error {
		status, err := tx.Status(scope)
		if err != nil {
			return err
		}
		if status != state.Finalized {
			return fmt.Errorf("%w: %s", ErrNotFinalized, scope)
		}
		agg, err := tx.GetAggregate(scope)
		if errors.Is(err, state.ErrAggregateNotFound) {
			return fmt.Errorf("%w: %s", ErrNoRatings, scope)
		}
		if err != nil {
			return err
		}
		if err := tx.Allow(agg.Sum.Handle(), grantee); err != nil {
			return err
		}
		l.log.Debug("granted statistics access",
			log.Stringer("scope", scope),
			log.Stringer("caller", caller),
			log.Stringer("grantee", grantee),
		)
		return nil
	}, attribute.Stringer("scope", scope))
}
