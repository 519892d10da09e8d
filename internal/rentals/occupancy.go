package rentals

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

// DateOf truncates t to its UTC calendar date. Contract bounds are whole days.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Occupies reports whether an Active contract covers asOf. Only the end
// bound is consulted, so a contract also occupies dates before its start.
func Occupies(c models.RentalContract, asOf time.Time) bool {
	if c.Status != enums.ContractStatusActive {
		return false
	}
	return c.EndDate == nil || !DateOf(*c.EndDate).Before(DateOf(asOf))
}

// ComputeOccupied returns the equipment covered by an Active contract whose
// end date is unset or on/after asOf. Cancelled contracts never occupy.
func ComputeOccupied(contracts []models.RentalContract, asOf time.Time) map[uuid.UUID]struct{} {
	occupied := make(map[uuid.UUID]struct{})
	for _, c := range contracts {
		if Occupies(c, asOf) {
			occupied[c.EquipmentID] = struct{}{}
		}
	}
	return occupied
}

// ComputeAvailable returns owned minus occupied as of asOf. When
// excludingContractID names one of contracts, its equipment is always
// included so the contract being edited can keep its own equipment.
func ComputeAvailable(owned []models.Equipment, contracts []models.RentalContract, asOf time.Time, excludingContractID *uuid.UUID) []models.Equipment {
	occupied := ComputeOccupied(contracts, asOf)

	var keep uuid.UUID
	if excludingContractID != nil {
		for _, c := range contracts {
			if c.ID == *excludingContractID {
				keep = c.EquipmentID
				break
			}
		}
	}

	out := make([]models.Equipment, 0, len(owned))
	for _, eq := range owned {
		_, busy := occupied[eq.ID]
		if !busy || (keep != uuid.Nil && eq.ID == keep) {
			out = append(out, eq)
		}
	}
	return out
}

// Window is an inclusive date range; a nil End is open-ended.
type Window struct {
	Start time.Time
	End   *time.Time
}

// Overlaps reports whether two inclusive date windows share at least one day.
func (w Window) Overlaps(other Window) bool {
	if w.End != nil && DateOf(*w.End).Before(DateOf(other.Start)) {
		return false
	}
	if other.End != nil && DateOf(*other.End).Before(DateOf(w.Start)) {
		return false
	}
	return true
}

func windowOf(c models.RentalContract) Window {
	return Window{Start: c.StartDate, End: c.EndDate}
}

// OverlappingActive returns the Active contracts in contracts that intersect w.
func OverlappingActive(contracts []models.RentalContract, w Window) []models.RentalContract {
	var out []models.RentalContract
	for _, c := range contracts {
		if c.Status == enums.ContractStatusActive && windowOf(c).Overlaps(w) {
			out = append(out, c)
		}
	}
	return out
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
