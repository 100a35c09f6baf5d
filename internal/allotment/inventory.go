package allotment

import (
	"sort"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// SeatDelta is the net change applied to one category counter of a
// course.  The general counter of the course moves by the same amount.
type SeatDelta struct {
	CourseID uint64         `json:"course_id"`
	Category model.Category `json:"category"`
	Delta    int            `json:"delta"`
}

type deltaKey struct {
	course   uint64
	category model.Category
}

// Inventory is a working copy of the seat counters of a set of courses.
// It is not safe for concurrent use; an allotment run owns its inventory
// exclusively.
type Inventory struct {
	courses map[uint64]*model.Course
	deltas  map[deltaKey]int
}

// NewInventory copies courses into a fresh inventory.  Later mutations do
// not affect the slice passed in.
func NewInventory(courses []model.Course) *Inventory {
	inv := &Inventory{
		courses: make(map[uint64]*model.Course, len(courses)),
		deltas:  make(map[deltaKey]int),
	}
	for _, c := range courses {
		cc := c.Clone()
		inv.courses[c.ID] = &cc
	}
	return inv
}

// Course returns a copy of the current state of a course.
func (inv *Inventory) Course(id uint64) (model.Course, bool) {
	c, ok := inv.courses[id]
	if !ok {
		return model.Course{}, false
	}
	return c.Clone(), true
}

// Courses returns copies of every course ordered by id.
func (inv *Inventory) Courses() []model.Course {
	out := make([]model.Course, 0, len(inv.courses))
	for _, c := range inv.courses {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reserve takes one general seat and one category seat of the course.
// It returns false and leaves the counters untouched when either pool is
// exhausted or the course is unknown.
func (inv *Inventory) Reserve(courseID uint64, cat model.Category) bool {
	c, ok := inv.courses[courseID]
	if !ok {
		return false
	}
	if c.AvailableSeats <= 0 || c.CategorySeats[cat] <= 0 {
		return false
	}
	c.AvailableSeats--
	c.CategorySeats[cat]--
	inv.deltas[deltaKey{courseID, cat}]--
	return true
}

// Release gives back one general seat and one category seat.  Releasing
// more seats than the course was sanctioned is a constraint violation.
func (inv *Inventory) Release(courseID uint64, cat model.Category) error {
	c, ok := inv.courses[courseID]
	if !ok {
		return NotFound("course %d not found", courseID)
	}
	if err := ReleaseSeat(c, cat); err != nil {
		return err
	}
	inv.deltas[deltaKey{courseID, cat}]++
	return nil
}

// Deltas returns the non-zero net changes made through this inventory,
// ordered by course then category.
func (inv *Inventory) Deltas() []SeatDelta {
	out := make([]SeatDelta, 0, len(inv.deltas))
	for k, d := range inv.deltas {
		if d == 0 {
			continue
		}
		out = append(out, SeatDelta{CourseID: k.course, Category: k.category, Delta: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CourseID != out[j].CourseID {
			return out[i].CourseID < out[j].CourseID
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// ReleaseSeat increments the general and category counters of c in
// place.  It is shared by the allocator and the decision workflow, which
// releases seats on a single locked course row.
func ReleaseSeat(c *model.Course, cat model.Category) error {
	if !cat.Valid() {
		return InvalidArgument("unknown category %q", cat)
	}
	if c.AvailableSeats+1 > c.TotalSeats {
		return Constraint("course %d would exceed its %d sanctioned seats", c.ID, c.TotalSeats)
	}
	if c.CategorySeats == nil {
		c.CategorySeats = make(map[model.Category]int)
	}
	c.AvailableSeats++
	c.CategorySeats[cat]++
	return nil
}
