// Package download implements the Download Policy (C4), Fast Downloader
// (C5) and Slow Downloader + Hint Queue (C6): deciding which identities to
// fetch, maintaining continuous subscriptions for directly-trusted
// identities, and priority-ordered one-shot fetches for the rest.
package download

import (
	"fmt"
	"time"

	"github.com/freenet/plugin-wot/internal/graph"
	"github.com/freenet/plugin-wot/internal/logging"
	"github.com/freenet/plugin-wot/internal/model"
	"github.com/freenet/plugin-wot/internal/scoreengine"
	"github.com/freenet/plugin-wot/internal/store"
)

// StoreNewEditionHint implements spec §4.6's hint ingestion: reject
// obsolete or unfetchable hints, reject sources below MIN_CAPACITY,
// supersede any existing hint for the same (source, subject) only if the
// new edition is strictly greater. The returned bool is true when the hint
// was stored. Nothing signals the slow downloader: its workers find the new
// hint on their next pollInterval tick.
func StoreNewEditionHint(s *store.Store, scores *scoreengine.Engine, sourceID, subjectID string, edition int64) (woke bool, err error) {
	if err := model.ValidateEdition(edition); err != nil {
		return false, err
	}

	subject, ok := s.GetIdentity(subjectID)
	if !ok {
		return false, fmt.Errorf("%w: subject %q", model.ErrUnknownIdentity, subjectID)
	}
	if subject.CurrentEdition >= edition {
		return false, nil // obsolete
	}
	if !scores.ShouldFetchIdentity(subjectID) {
		return false, nil
	}

	sourceCapacity := scores.BestCapacity(sourceID)
	if sourceCapacity < scores.MinCapacity() {
		return false, nil
	}

	existing, exists := s.GetEditionHint(sourceID, subjectID)
	if exists && existing.Edition >= edition {
		return false, nil
	}

	obfuscated := s.ObfuscateID(subjectID)
	priority := model.ComputePriority(
		time.Now(),
		sourceCapacity,
		scores.BestScoreSign(sourceID),
		obfuscated,
		edition,
	)

	tx := s.Begin()
	if exists {
		tx.DeleteEditionHint(sourceID, subjectID)
	}
	tx.PutEditionHint(&model.EditionHint{
		SourceID:        sourceID,
		SubjectID:       subjectID,
		Edition:         edition,
		Date:            model.RoundToDay(time.Now()),
		SourceCapacity:  sourceCapacity,
		SourceScoreSign: scores.BestScoreSign(sourceID),
		Priority:        priority,
	})
	tx.Commit()

	logging.Logger.Debug("stored edition hint", "source", sourceID, "subject", subjectID, "edition", edition)
	return true, nil
}

// AbortFetchCleanup deletes every hint naming subjectID, per spec §4.6's
// abortFetch contract: already-running requests for subjectID are left to
// complete; no cascading work is scheduled.
func AbortFetchCleanup(s *store.Store, subjectID string) {
	tx := s.Begin()
	tx.DeleteEditionHintsForSubject(subjectID)
	tx.Commit()
}

// graphOps is the subset of *graph.Engine the downloaders call back into
// once a fetch resolves, named for readability at call sites.
type graphOps interface {
	OnFetchedAndParsedSuccessfully(id string, edition int64) error
	OnFetchedAndParsingFailed(id string, edition int64) error
}

var _ graphOps = (*graph.Engine)(nil)
