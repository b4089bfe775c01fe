// Package graph implements the Trust Graph API (C2): creating and mutating
// identities and trusts, enforcing the boundary validation of spec §4.2 and
// §7, and driving the Score Engine and Download Policy notifications that
// follow from every mutation.
//
// Grounded on the teacher's ValidateTrustTransaction/ValidateIdentityTransaction
// (validation.go) for the shape of boundary checks, and updateTrustRegistry
// (registry.go) for the lock-then-mutate-then-log pattern, generalized from
// signature/nonce checks on an external transaction to the spec's own field
// validation rules.
package graph

import (
	"fmt"
	"time"

	"github.com/freenet/plugin-wot/internal/logging"
	"github.com/freenet/plugin-wot/internal/model"
	"github.com/freenet/plugin-wot/internal/scoreengine"
	"github.com/freenet/plugin-wot/internal/store"
)

// DownloadNotifier receives startFetch/abortFetch calls whenever
// shouldFetchIdentity(x) flips for some identity x (spec §4.4). Implemented
// by internal/download's Coordinator; declared here, at the point of use,
// rather than in the download package, to avoid a graph<->download import
// cycle (download also depends on graph's Engine for its own queries).
type DownloadNotifier interface {
	StartFetch(id string, fastPartition bool)
	AbortFetch(id string)
}

// Engine implements the Trust Graph API over a Store and Score Engine.
type Engine struct {
	store    *store.Store
	scores   *scoreengine.Engine
	notifier DownloadNotifier
	now      func() time.Time
}

// New constructs a graph Engine. now defaults to time.Now; tests may
// override it via WithClock.
func New(s *store.Store, scores *scoreengine.Engine, notifier DownloadNotifier) *Engine {
	return &Engine{store: s, scores: scores, notifier: notifier, now: time.Now}
}

// WithClock overrides the Engine's time source, for deterministic tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// fetchableSnapshot captures shouldFetchIdentity/partition for every known
// identity, so a mutation's effect on the Download Policy predicate (spec
// §4.4) can be diffed before vs. after and only flips are notified.
func (e *Engine) fetchableSnapshot() map[string]bool {
	snap := make(map[string]bool)
	for _, ident := range e.store.ListIdentities() {
		snap[ident.ID] = e.scores.ShouldFetchIdentity(ident.ID)
	}
	return snap
}

func (e *Engine) notifyFetchableChanges(before map[string]bool) {
	for _, ident := range e.store.ListIdentities() {
		after := e.scores.ShouldFetchIdentity(ident.ID)
		if after == before[ident.ID] {
			continue
		}
		if after {
			e.notifier.StartFetch(ident.ID, e.scores.IsFastPartition(ident.ID))
		} else {
			e.notifier.AbortFetch(ident.ID)
		}
	}
}

// CreateOwnIdentity creates a new local OwnIdentity. Fails if nickname is
// malformed or another identity with this id already exists (spec §4.2).
func (e *Engine) CreateOwnIdentity(id, requestKey, insertKey, nickname string, publishesTrustList bool) (*model.Identity, error) {
	if err := model.ValidateID(id); err != nil {
		return nil, err
	}
	if err := model.ValidateNickname(nickname); err != nil {
		return nil, err
	}
	if _, exists := e.store.GetIdentity(id); exists {
		return nil, fmt.Errorf("%w: identity %q already exists", model.ErrDuplicateObject, id)
	}

	now := e.now()
	ident, err := model.NewIdentity(id, requestKey, nickname, now)
	if err != nil {
		return nil, err
	}
	ident.PublishesTrustList = publishesTrustList
	ident.Own = &model.OwnData{InsertKey: insertKey}

	tx := e.store.Begin()
	tx.PutIdentity(ident)
	e.scores.RecomputeAllScores(tx)
	tx.Commit()

	logging.Logger.Info("created own identity", "id", id, "nickname", nickname)
	return ident, nil
}

// AddIdentityFromURI registers a remote identity first observed via a
// request URI. The caller-supplied edition is stored only as
// latestEditionHint, never as currentEdition (spec §4.2: defense against a
// malicious peer pinning an indefinite-block edition).
func (e *Engine) AddIdentityFromURI(id, requestKey, nickname string, adviseEdition int64) (*model.Identity, error) {
	if err := model.ValidateID(id); err != nil {
		return nil, err
	}
	if existing, exists := e.store.GetIdentity(id); exists {
		return existing, nil
	}

	now := e.now()
	ident, err := model.NewIdentity(id, requestKey, nickname, now)
	if err != nil {
		return nil, err
	}
	if adviseEdition > ident.LatestEditionHint {
		ident.LatestEditionHint = adviseEdition
	}

	tx := e.store.Begin()
	tx.PutIdentity(ident)
	tx.Commit()

	logging.Logger.Info("added identity from uri", "id", id)
	return ident, nil
}

// SetTrust upserts a Trust record and runs the trust-changed score update
// (spec §4.2, §4.3). Self-trust is only allowed when truster == trustee and
// truster is an OwnIdentity (used by RestoreOwnIdentity).
func (e *Engine) SetTrust(trusterID, trusteeID string, value int, comment string) error {
	if err := model.ValidateValue(value); err != nil {
		return err
	}
	if err := model.ValidateComment(comment); err != nil {
		return err
	}

	truster, ok := e.store.GetIdentity(trusterID)
	if !ok {
		return fmt.Errorf("%w: truster %q", model.ErrUnknownIdentity, trusterID)
	}
	if _, ok := e.store.GetIdentity(trusteeID); !ok {
		return fmt.Errorf("%w: trustee %q", model.ErrUnknownIdentity, trusteeID)
	}
	if trusterID == trusteeID && !truster.IsOwn() {
		return fmt.Errorf("%w: self-trust only allowed for an own identity", model.ErrInvalidParameter)
	}

	before := e.fetchableSnapshot()

	oldValue := 0
	if old, exists := e.store.GetTrust(trusterID, trusteeID); exists {
		oldValue = old.Value
	}

	tx := e.store.Begin()
	tx.PutTrust(&model.Trust{
		TrusterID: trusterID,
		TrusteeID: trusteeID,
		Value:     value,
		Comment:   comment,
	})
	e.scores.ApplyTrustChange(tx, trusterID, trusteeID, oldValue, value)
	tx.Commit()

	e.notifyFetchableChanges(before)
	return nil
}

// RemoveTrust deletes a Trust record and runs the trust-removed score
// update (spec §4.2, §4.3).
func (e *Engine) RemoveTrust(trusterID, trusteeID string) error {
	old, exists := e.store.GetTrust(trusterID, trusteeID)
	if !exists {
		return fmt.Errorf("%w: (%s, %s)", model.ErrUnknownTrust, trusterID, trusteeID)
	}

	before := e.fetchableSnapshot()

	tx := e.store.Begin()
	tx.DeleteTrust(trusterID, trusteeID)
	e.scores.ApplyTrustChange(tx, trusterID, trusteeID, old.Value, 0)
	tx.Commit()

	e.notifyFetchableChanges(before)
	return nil
}

// OnFetchedAndParsedSuccessfully records a successful fetch of edition for
// id (spec §4.2): fails if edition <= currentEdition.
func (e *Engine) OnFetchedAndParsedSuccessfully(id string, edition int64) error {
	ident, ok := e.store.GetIdentity(id)
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownIdentity, id)
	}
	if edition <= ident.CurrentEdition {
		return fmt.Errorf("%w: edition %d not newer than current %d", model.ErrInvalidParameter, edition, ident.CurrentEdition)
	}

	now := e.now()
	ident.CurrentEdition = edition
	ident.FetchState = model.Fetched
	ident.LastFetchedMaybeValidEdition = edition
	ident.LastChangedAt = now
	ident.LastFetchedAt = now
	if edition > ident.LatestEditionHint {
		ident.LatestEditionHint = edition
	}

	tx := e.store.Begin()
	tx.PutIdentity(ident)
	// Garbage-collect any now-obsolete edition hints naming this subject
	// (spec §8 scenario 4: a successful fetch retires stale hints).
	for _, h := range e.store.HintsForSubject(id) {
		if h.Edition <= edition {
			tx.DeleteEditionHint(h.SourceID, h.SubjectID)
		}
	}
	tx.Commit()

	return nil
}

// OnFetchedAndParsingFailed records a failed parse of edition for id (spec
// §4.2): sets fetchState=ParsingFailed, currentEdition <- edition (to skip
// retrying the same bad edition). Fails if edition <= currentEdition.
func (e *Engine) OnFetchedAndParsingFailed(id string, edition int64) error {
	ident, ok := e.store.GetIdentity(id)
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownIdentity, id)
	}
	if edition <= ident.CurrentEdition {
		return fmt.Errorf("%w: edition %d not newer than current %d", model.ErrInvalidParameter, edition, ident.CurrentEdition)
	}

	ident.CurrentEdition = edition
	ident.FetchState = model.ParsingFailed
	ident.LastChangedAt = e.now()

	tx := e.store.Begin()
	tx.PutIdentity(ident)
	tx.Commit()
	return nil
}

// MarkForRefetch rewinds id's edition bookkeeping by one so the next fetch
// cycle retries its current edition (spec §4.2: used after importing an old
// database snapshot).
func (e *Engine) MarkForRefetch(id string) error {
	ident, ok := e.store.GetIdentity(id)
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownIdentity, id)
	}

	ident.CurrentEdition--
	ident.LastFetchedMaybeValidEdition = ident.CurrentEdition
	ident.FetchState = model.NotFetched

	tx := e.store.Begin()
	tx.PutIdentity(ident)
	tx.Commit()
	return nil
}

// DeleteOwnIdentity converts an OwnIdentity back into a plain Identity,
// preserving id and all incoming trusts, and dropping all of its outgoing
// scores (spec §4.2). The caller is responsible for scheduling the
// verification/defrag runs spec §4.7 requires after this call.
func (e *Engine) DeleteOwnIdentity(id string) error {
	ident, ok := e.store.GetIdentity(id)
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownIdentity, id)
	}
	if !ident.IsOwn() {
		return fmt.Errorf("%w: %q is not an own identity", model.ErrInvalidParameter, id)
	}

	before := e.fetchableSnapshot()
	e.notifier.AbortFetch(id)

	ident.Own = nil
	ident.LastChangedAt = e.now()

	tx := e.store.Begin()
	tx.PutIdentity(ident)
	for _, sc := range e.store.ScoresForOwner(id) {
		tx.DeleteScore(id, sc.SubjectID)
	}
	tx.Commit()

	e.notifyFetchableChanges(before)
	logging.Logger.Info("deleted own identity", "id", id)
	return nil
}

// RestoreOwnIdentity converts a plain Identity back into an OwnIdentity,
// preserving id and all incoming trusts, adding a self-trust edge, and
// rebuilding its score table from scratch (spec §4.2, §8 scenario 5).
func (e *Engine) RestoreOwnIdentity(id, insertKey string) error {
	ident, ok := e.store.GetIdentity(id)
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownIdentity, id)
	}
	if ident.IsOwn() {
		return fmt.Errorf("%w: %q is already an own identity", model.ErrInvalidParameter, id)
	}

	before := e.fetchableSnapshot()

	ident.Own = &model.OwnData{InsertKey: insertKey}
	ident.LastChangedAt = e.now()

	tx := e.store.Begin()
	tx.PutIdentity(ident)
	tx.PutTrust(&model.Trust{TrusterID: id, TrusteeID: id, Value: model.MaxTrustValue})
	e.scores.RecomputeAllScores(tx)
	tx.Commit()

	e.notifyFetchableChanges(before)
	logging.Logger.Info("restored own identity", "id", id)
	return nil
}

// DeleteIdentity permanently removes an Identity and all of its Trust and
// Score records (spec §4.2). Operator-initiated only; identities are never
// otherwise hard-deleted.
func (e *Engine) DeleteIdentity(id string) error {
	if _, ok := e.store.GetIdentity(id); !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownIdentity, id)
	}

	before := e.fetchableSnapshot()
	e.notifier.AbortFetch(id)

	tx := e.store.Begin()
	for _, t := range e.store.TrustsFrom(id) {
		tx.DeleteTrust(t.TrusterID, t.TrusteeID)
	}
	for _, t := range e.store.TrustsTo(id) {
		tx.DeleteTrust(t.TrusterID, t.TrusteeID)
	}
	for _, sc := range e.store.ScoresForOwner(id) {
		tx.DeleteScore(sc.OwnerID, sc.SubjectID)
	}
	for _, sc := range e.store.ScoresForSubject(id) {
		tx.DeleteScore(sc.OwnerID, sc.SubjectID)
	}
	tx.DeleteEditionHintsForSubject(id)
	tx.DeleteIdentity(id)
	e.scores.RecomputeAllScores(tx)
	tx.Commit()

	e.notifyFetchableChanges(before)
	logging.Logger.Info("deleted identity", "id", id)
	return nil
}
