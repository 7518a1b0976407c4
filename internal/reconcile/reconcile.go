// Package reconcile merges booking facts from both platforms with the stored
// ledger into a mutation set the ledger store applies in one transaction.
package reconcile

import (
	"maps"
	"time"

	"courtsync/pkg/config"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
)

type Reconciler struct {
	log *logger.Logger
}

func NewReconciler(cfg *config.Config) *Reconciler {
	return &Reconciler{log: cfg.Log}
}

// Reconcile computes the full mutation set for one cycle. Slots the ledger
// knows but the facts do not mention are left alone: absence means "not
// observed this cycle", never cancellation. Running the same facts against
// the resulting ledger state again yields an empty set.
func (r *Reconciler) Reconcile(facts []model.BookingFact, snapshot map[model.SlotKey]*model.LedgerEntry, now time.Time) ([]model.LedgerMutation, error) {
	groups := make(map[model.SlotKey][]model.BookingFact, len(facts))
	order := make([]model.SlotKey, 0, len(facts))
	for _, f := range facts {
		key := f.Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	var mutations []model.LedgerMutation
	var conflicts int
	for _, key := range order {
		claim, err := mergeGroup(key, groups[key])
		if err != nil {
			r.log.Error("Reconciliation aborted on contradictory facts", "key", key.String(), "error", err)
			return nil, err
		}
		if claim.status == model.StatusConflict {
			conflicts++
			r.log.Warn("Cross-source conflict",
				"key", key.String(),
				"source_of_truth", claim.truth,
			)
		}

		prior, ok := snapshot[key]
		if !ok {
			mutations = append(mutations, model.LedgerMutation{
				Op: model.MutationInsert,
				Entry: model.LedgerEntry{
					Facility:      key.Facility,
					Sport:         claim.sport,
					Court:         claim.court,
					SlotStart:     key.SlotStart,
					SlotEnd:       key.SlotEnd,
					Status:        claim.status,
					SourceOfTruth: claim.truth,
					ExternalIDs:   claim.ids,
					LastSyncedAt:  now,
					Version:       1,
				},
			})
			continue
		}

		merged := mergeIDs(prior.ExternalIDs, claim.ids)
		if prior.Status == claim.status && prior.SourceOfTruth == claim.truth && maps.Equal(prior.ExternalIDs, merged) {
			continue
		}

		next := *prior
		next.Status = claim.status
		next.SourceOfTruth = claim.truth
		next.ExternalIDs = merged
		if next.Sport == "" {
			next.Sport = claim.sport
		}
		if next.Court == "" {
			next.Court = claim.court
		}
		next.LastSyncedAt = now
		next.Version = prior.Version + 1
		mutations = append(mutations, model.LedgerMutation{
			Op:              model.MutationUpdate,
			Entry:           next,
			ExpectedVersion: prior.Version,
		})
	}

	r.log.Info("Reconciliation finished",
		"facts", len(facts),
		"slots", len(order),
		"mutations", len(mutations),
		"conflicts", conflicts,
	)
	return mutations, nil
}

// groupClaim is the merged observation for one slot key.
type groupClaim struct {
	status model.SlotStatus
	truth  model.Source
	ids    map[string]string
	sport  string
	court  string
}

// statusRank orders claims within one source: a booking claim beats a
// cancellation claim beats plain availability.
func statusRank(s model.SlotStatus) int {
	switch s {
	case model.StatusBooked:
		return 3
	case model.StatusCancelled:
		return 2
	default:
		return 1
	}
}

func mergeGroup(key model.SlotKey, group []model.BookingFact) (groupClaim, error) {
	claim := groupClaim{}
	statusBySource := make(map[model.Source]model.SlotStatus, 2)
	var sources []model.Source
	bookedIDs := make(map[string]struct{})

	for _, f := range group {
		if f.Sport != "" {
			if claim.sport == "" {
				claim.sport = f.Sport
			} else if claim.sport != f.Sport {
				return groupClaim{}, &ReconciliationError{Key: key, Reason: "facts name different sports for one slot"}
			}
		}
		if f.Court != "" {
			if claim.court == "" {
				claim.court = f.Court
			} else if claim.court != f.Court {
				return groupClaim{}, &ReconciliationError{Key: key, Reason: "facts name different courts for one slot"}
			}
		}

		prev, seen := statusBySource[f.Source]
		if !seen {
			sources = append(sources, f.Source)
			statusBySource[f.Source] = f.Status
		} else if statusRank(f.Status) > statusRank(prev) {
			statusBySource[f.Source] = f.Status
		}

		if f.ExternalID != "" {
			if claim.ids == nil {
				claim.ids = make(map[string]string, 2)
			}
			claim.ids[string(f.Source)] = f.ExternalID
			if f.Status == model.StatusBooked {
				bookedIDs[f.ExternalID] = struct{}{}
			}
		}
	}

	// Two distinct booking identities on one slot is a true double-booking.
	// Neither side wins; a human has to untangle it.
	if len(bookedIDs) > 1 {
		claim.status = model.StatusConflict
		claim.truth = bookedTruth(sources, statusBySource)
		return claim, nil
	}

	if len(sources) == 1 {
		claim.status = statusBySource[sources[0]]
		claim.truth = sources[0]
		return claim, nil
	}

	first, second := statusBySource[sources[0]], statusBySource[sources[1]]
	switch {
	case first == second:
		claim.status = first
		claim.truth = model.SourceBoth
	case first == model.StatusBooked:
		claim.status = model.StatusConflict
		claim.truth = sources[0]
	case second == model.StatusBooked:
		claim.status = model.StatusConflict
		claim.truth = sources[1]
	case first == model.StatusCancelled:
		claim.status = model.StatusCancelled
		claim.truth = sources[0]
	default:
		claim.status = model.StatusCancelled
		claim.truth = sources[1]
	}
	return claim, nil
}

func bookedTruth(sources []model.Source, statusBySource map[model.Source]model.SlotStatus) model.Source {
	var booked []model.Source
	for _, s := range sources {
		if statusBySource[s] == model.StatusBooked {
			booked = append(booked, s)
		}
	}
	if len(booked) == 1 {
		return booked[0]
	}
	return model.SourceBoth
}

func mergeIDs(prior, incoming map[string]string) map[string]string {
	if len(incoming) == 0 {
		return prior
	}
	merged := make(map[string]string, len(prior)+len(incoming))
	maps.Copy(merged, prior)
	maps.Copy(merged, incoming)
	return merged
}
