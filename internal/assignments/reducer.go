package assignments

import (
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

// ViolationKind names a break in the delivery/return alternation.
type ViolationKind string

const (
	ViolationDoubleDelivery ViolationKind = "double_delivery"
	ViolationOrphanReturn   ViolationKind = "orphan_return"
	ViolationSecondHolding  ViolationKind = "second_holding"
)

// Violation points at the movement that broke alternation for its equipment.
type Violation struct {
	EquipmentID uuid.UUID     `json:"equipment_id"`
	MovementID  int64         `json:"movement_id"`
	Kind        ViolationKind `json:"kind"`
}

// Snapshot is the custody state implied by a ledger replay.
type Snapshot struct {
	// ByEmployee maps employee -> equipment last delivered to them and not yet returned.
	ByEmployee map[uuid.UUID]uuid.UUID
	// ByEquipment maps equipment -> current holder.
	ByEquipment map[uuid.UUID]uuid.UUID
	Violations  []Violation
}

// Held reports whether the equipment is held by someone in this snapshot.
func (s Snapshot) Held(equipmentID uuid.UUID) bool {
	_, ok := s.ByEquipment[equipmentID]
	return ok
}

// Order returns a copy of movements sorted by (OccurredAt, ID). Ties on
// OccurredAt keep ledger sequence order.
func Order(movements []models.Movement) []models.Movement {
	ordered := make([]models.Movement, len(movements))
	copy(ordered, movements)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		return a.ID < b.ID
	})
	return ordered
}

// Reduce replays the ledger into current custody. It never mutates its input
// and returns the same snapshot for the same movements.
//
// A delivery onto held equipment still moves custody to the new employee and
// is reported as a double delivery; a return of unheld equipment is ignored
// and reported as an orphan return. A delivery to an employee who already
// holds other equipment is reported as a second holding and the employee's
// mapping follows the newest delivery.
func Reduce(movements []models.Movement) Snapshot {
	snap := Snapshot{
		ByEmployee:  make(map[uuid.UUID]uuid.UUID),
		ByEquipment: make(map[uuid.UUID]uuid.UUID),
	}

	for _, m := range Order(movements) {
		holder, held := snap.ByEquipment[m.EquipmentID]
		switch m.Type {
		case enums.MovementTypeDelivery:
			if held {
				snap.Violations = append(snap.Violations, Violation{
					EquipmentID: m.EquipmentID,
					MovementID:  m.ID,
					Kind:        ViolationDoubleDelivery,
				})
				clearEmployee(snap.ByEmployee, holder, m.EquipmentID)
			}
			if current, ok := snap.ByEmployee[m.EmployeeID]; ok && current != m.EquipmentID {
				snap.Violations = append(snap.Violations, Violation{
					EquipmentID: m.EquipmentID,
					MovementID:  m.ID,
					Kind:        ViolationSecondHolding,
				})
			}
			snap.ByEquipment[m.EquipmentID] = m.EmployeeID
			snap.ByEmployee[m.EmployeeID] = m.EquipmentID
		case enums.MovementTypeReturn:
			if !held {
				snap.Violations = append(snap.Violations, Violation{
					EquipmentID: m.EquipmentID,
					MovementID:  m.ID,
					Kind:        ViolationOrphanReturn,
				})
				continue
			}
			delete(snap.ByEquipment, m.EquipmentID)
			clearEmployee(snap.ByEmployee, holder, m.EquipmentID)
			clearEmployee(snap.ByEmployee, m.EmployeeID, m.EquipmentID)
		}
	}
	return snap
}

// HolderOf replays a single equipment's movements through Reduce and returns
// its holder. Movements for other equipment are ignored.
func HolderOf(movements []models.Movement, equipmentID uuid.UUID) (uuid.UUID, bool) {
	own := make([]models.Movement, 0, len(movements))
	for _, m := range movements {
		if m.EquipmentID == equipmentID {
			own = append(own, m)
		}
	}
	holder, held := Reduce(own).ByEquipment[equipmentID]
	return holder, held
}

// HeldBy lists, sorted, the equipment the employee holds after replaying
// movements.
func HeldBy(movements []models.Movement, employeeID uuid.UUID) []uuid.UUID {
	var held []uuid.UUID
	for equipmentID, holder := range Reduce(movements).ByEquipment {
		if holder == employeeID {
			held = append(held, equipmentID)
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i].String() < held[j].String() })
	return held
}

// LastMovement returns the latest movement in replay order.
func LastMovement(movements []models.Movement) (models.Movement, bool) {
	if len(movements) == 0 {
		return models.Movement{}, false
	}
	ordered := Order(movements)
	return ordered[len(ordered)-1], true
}

func clearEmployee(byEmployee map[uuid.UUID]uuid.UUID, employeeID, equipmentID uuid.UUID) {
	if current, ok := byEmployee[employeeID]; ok && current == equipmentID {
		delete(byEmployee, employeeID)
	}
}
